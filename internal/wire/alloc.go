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

package wire

import (
	"unsafe"

	"github.com/IemptyB/OpenXR-OverlayLayer/internal/ipc"
)

// Alloc bump-allocates one zeroed T in the arena.
func Alloc[T any](a *ipc.Arena) (*T, error) {
	var zero T
	p, err := a.Allocate(unsafe.Sizeof(zero))
	if err != nil {
		return nil, err
	}
	return (*T)(p), nil
}

// CopyIn serializes one leaf value (no pointers inside) into the arena.
// A nil source serializes as nil.
func CopyIn[T any](a *ipc.Arena, src *T) (*T, error) {
	if src == nil {
		return nil, nil
	}
	dst, err := Alloc[T](a)
	if err != nil {
		return nil, err
	}
	*dst = *src
	return dst, nil
}

// CopyInSlice serializes count leaf values starting at src.
func CopyInSlice[T any](a *ipc.Arena, src *T, count uint32) (*T, error) {
	if src == nil || count == 0 {
		return nil, nil
	}
	var zero T
	p, err := a.Allocate(unsafe.Sizeof(zero) * uintptr(count))
	if err != nil {
		return nil, err
	}
	copy(unsafe.Slice((*T)(p), count), unsafe.Slice(src, count))
	return (*T)(p), nil
}

// Reserve allocates space for one output T without copying. A nil source
// reserves nothing and stays nil, so null output pointers round-trip.
func Reserve[T any](a *ipc.Arena, src *T) (*T, error) {
	if src == nil {
		return nil, nil
	}
	return Alloc[T](a)
}

// ReserveSlice allocates space for count output values without copying.
func ReserveSlice[T any](a *ipc.Arena, src *T, count uint32) (*T, error) {
	if src == nil || count == 0 {
		return nil, nil
	}
	var zero T
	p, err := a.Allocate(unsafe.Sizeof(zero) * uintptr(count))
	if err != nil {
		return nil, err
	}
	return (*T)(p), nil
}

// Register records the address of a pointer-bearing field in the fixup
// table. Every non-null pointer stored inside the arena must be
// registered; null fields are left out so the fixup table lists exactly
// the non-null pointer-bearing locations.
func Register[T any](a *ipc.Arena, loc **T) error {
	if *loc == nil {
		return nil
	}
	return a.RegisterPointer(unsafe.Pointer(loc))
}

// RegisterRaw records an untyped pointer location, skipping null.
func RegisterRaw(a *ipc.Arena, loc *unsafe.Pointer) error {
	if *loc == nil {
		return nil
	}
	return a.RegisterPointer(unsafe.Pointer(loc))
}

// Args returns the argument struct the writer placed first in the bump
// region. The host calls this after Absolutize.
func Args[T any](a *ipc.Arena) *T {
	return (*T)(unsafe.Pointer(a.Base() + ipc.ArenaHeaderSize))
}

// CopyOut copies one leaf output value back to the caller's storage.
// A nil source is ignored.
func CopyOut[T any](dst, src *T) {
	if src == nil || dst == nil {
		return
	}
	*dst = *src
}

// CopyOutSlice copies count leaf output values back to caller storage.
func CopyOutSlice[T any](dst, src *T, count uint32) {
	if src == nil || dst == nil || count == 0 {
		return
	}
	copy(unsafe.Slice(dst, count), unsafe.Slice(src, count))
}
