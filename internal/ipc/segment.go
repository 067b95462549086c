//go:build linux && (amd64 || arm64)

/*
 *
 * Copyright 2025 The OpenXR-OverlayLayer Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

// Package ipc provides the shared-memory primitives the overlay layer is
// built on: mmapped segments with a validated header, a bump-allocated
// RPC arena with a pointer-fixup table, futex-backed cross-process
// semaphores and mutexes, and peer-process termination watching.
package ipc

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Memory layout constants.
const (
	// Magic bytes for segment identification.
	SegmentMagic = "XROVLSHM"

	// Current protocol version. A main and an overlay must agree on
	// this exactly; header validation rejects a segment whose version
	// differs when it is opened.
	SegmentVersion = uint32(1)

	// Segment header size (aligned to 128 bytes).
	SegmentHeaderSize = 128
)

// SegmentHeader is the fixed header at offset 0 of every shared segment.
// Fields are accessed atomically; the struct layout is part of the wire
// contract between the two processes.
type SegmentHeader struct {
	magic      [8]byte // 0x00: "XROVLSHM"
	version    uint32  // 0x08: protocol version
	flags      uint32  // 0x0C: reserved
	totalSize  uint64  // 0x10: total segment size in bytes
	mainPID    uint32  // 0x18: main process id
	overlayPID uint32  // 0x1C: overlay process id
	mainReady  uint32  // 0x20: main side mapped and initialized
	overlayReady uint32 // 0x24: overlay side mapped
	closed     uint32  // 0x28: closed flag (0 open, 1 closed)
	pad        uint32  // 0x2C: padding
	reserved   [80]byte // 0x30-0x7F: reserved to 128B
}

func (h *SegmentHeader) Magic() [8]byte        { return h.magic }
func (h *SegmentHeader) SetMagic(m [8]byte)    { h.magic = m }
func (h *SegmentHeader) Version() uint32       { return atomic.LoadUint32(&h.version) }
func (h *SegmentHeader) SetVersion(v uint32)   { atomic.StoreUint32(&h.version, v) }
func (h *SegmentHeader) TotalSize() uint64     { return atomic.LoadUint64(&h.totalSize) }
func (h *SegmentHeader) SetTotalSize(n uint64) { atomic.StoreUint64(&h.totalSize, n) }
func (h *SegmentHeader) MainPID() uint32       { return atomic.LoadUint32(&h.mainPID) }
func (h *SegmentHeader) SetMainPID(p uint32)   { atomic.StoreUint32(&h.mainPID, p) }
func (h *SegmentHeader) OverlayPID() uint32    { return atomic.LoadUint32(&h.overlayPID) }
func (h *SegmentHeader) SetOverlayPID(p uint32) { atomic.StoreUint32(&h.overlayPID, p) }

func (h *SegmentHeader) MainReady() bool { return atomic.LoadUint32(&h.mainReady) != 0 }
func (h *SegmentHeader) SetMainReady(ready bool) {
	atomic.StoreUint32(&h.mainReady, boolWord(ready))
}

func (h *SegmentHeader) OverlayReady() bool { return atomic.LoadUint32(&h.overlayReady) != 0 }
func (h *SegmentHeader) SetOverlayReady(ready bool) {
	atomic.StoreUint32(&h.overlayReady, boolWord(ready))
}

func (h *SegmentHeader) Closed() bool { return atomic.LoadUint32(&h.closed) != 0 }
func (h *SegmentHeader) SetClosed(closed bool) {
	atomic.StoreUint32(&h.closed, boolWord(closed))
	futexWake(&h.closed, 1<<30)
}

func boolWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// ValidateSegmentHeader validates a mapped header for consistency.
func ValidateSegmentHeader(h *SegmentHeader, mappedSize uint64) error {
	if h.Magic() != [8]byte{'X', 'R', 'O', 'V', 'L', 'S', 'H', 'M'} {
		return fmt.Errorf("invalid magic bytes")
	}
	if h.Version() != SegmentVersion {
		return fmt.Errorf("unsupported version %d, expected %d", h.Version(), SegmentVersion)
	}
	if h.TotalSize() != mappedSize {
		return fmt.Errorf("total size mismatch: header says %d, mapped %d", h.TotalSize(), mappedSize)
	}
	return nil
}

// Segment is a mapped shared memory segment.
type Segment struct {
	File *os.File       // backing file under /dev/shm
	Mem  []byte         // memory-mapped region
	H    *SegmentHeader // typed view of the header
	Path string         // file path
	owns bool           // creator unlinks the file on Close
}

// Body returns the region following the header.
func (s *Segment) Body() []byte {
	return s.Mem[SegmentHeaderSize:]
}

// BodyPointer returns an unsafe pointer to a byte offset within the body.
func (s *Segment) BodyPointer(off uintptr) unsafe.Pointer {
	return unsafe.Pointer(&s.Mem[SegmentHeaderSize+int(off)])
}

// CreateSegment creates and maps a new shared memory segment whose body
// is bodySize bytes. The creator owns the file and unlinks it on Close.
func CreateSegment(name string, bodySize uint64) (*Segment, error) {
	path := segmentPath(name)
	totalSize := uint64(SegmentHeaderSize) + alignTo64(bodySize)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create segment file %s: %w", path, err)
	}

	cleanup := func() {
		file.Close()
		os.Remove(path)
	}

	if err := file.Truncate(int64(totalSize)); err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to resize segment file: %w", err)
	}

	mem, err := unix.Mmap(int(file.Fd()), 0, int(totalSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to mmap segment: %w", err)
	}

	seg := &Segment{
		File: file,
		Mem:  mem,
		Path: path,
		H:    (*SegmentHeader)(unsafe.Pointer(&mem[0])),
		owns: true,
	}

	seg.H.SetMagic([8]byte{'X', 'R', 'O', 'V', 'L', 'S', 'H', 'M'})
	seg.H.SetVersion(SegmentVersion)
	seg.H.SetTotalSize(totalSize)

	return seg, nil
}

// OpenSegment opens and maps an existing shared memory segment.
func OpenSegment(name string) (*Segment, error) {
	path := segmentPath(name)

	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open segment file %s: %w", path, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat segment file: %w", err)
	}

	size := info.Size()
	if size < SegmentHeaderSize {
		file.Close()
		return nil, fmt.Errorf("segment file too small: %d bytes", size)
	}

	mem, err := unix.Mmap(int(file.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to mmap segment: %w", err)
	}

	hdr := (*SegmentHeader)(unsafe.Pointer(&mem[0]))
	if err := ValidateSegmentHeader(hdr, uint64(size)); err != nil {
		unix.Munmap(mem)
		file.Close()
		return nil, fmt.Errorf("invalid segment header: %w", err)
	}

	return &Segment{
		File: file,
		Mem:  mem,
		Path: path,
		H:    hdr,
	}, nil
}

// Close unmaps the memory and closes the file. The creating side also
// unlinks the backing file.
func (s *Segment) Close() error {
	var firstErr error

	if s.Mem != nil {
		if err := unix.Munmap(s.Mem); err != nil && firstErr == nil {
			firstErr = err
		}
		s.Mem = nil
	}

	if s.File != nil {
		if err := s.File.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.File = nil
	}

	if s.owns {
		if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// RemoveSegment removes a shared memory segment file.
func RemoveSegment(name string) error {
	err := os.Remove(segmentPath(name))
	if err != nil && os.IsNotExist(err) {
		return os.ErrNotExist
	}
	return err
}

// SegmentExists checks whether a shared memory segment file exists.
func SegmentExists(name string) bool {
	_, err := os.Stat(segmentPath(name))
	return err == nil
}

// segmentPath generates the backing file path for a segment name.
func segmentPath(name string) string {
	if isDevShmAvailable() {
		return filepath.Join("/dev/shm", name)
	}
	return filepath.Join(os.TempDir(), name)
}

// isDevShmAvailable checks whether /dev/shm is available.
func isDevShmAvailable() bool {
	info, err := os.Stat("/dev/shm")
	if err != nil {
		return false
	}
	return info.IsDir()
}

// alignTo64 aligns a size to a 64-byte boundary.
func alignTo64(size uint64) uint64 {
	return (size + 63) &^ 63
}
