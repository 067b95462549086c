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

package ipc

import (
	"sync/atomic"
	"time"
	"unsafe"
)

// WakeWord wakes every waiter on a shared word.
func WakeWord(addr *uint32) {
	futexWake(addr, 1<<30)
}

// WaitWord blocks while the shared word holds val, up to the timeout.
// Spurious returns are allowed; callers re-check their condition.
func WaitWord(addr *uint32, val uint32, timeout time.Duration) {
	futexWaitTimeout(addr, val, timeout.Nanoseconds())
}

// Semaphore is a counting semaphore over a uint32 living in shared
// memory. Both processes construct a Semaphore over the same word.
type Semaphore struct {
	word *uint32
}

// SemaphoreAt returns a semaphore view of the word at p.
func SemaphoreAt(p unsafe.Pointer) *Semaphore {
	return &Semaphore{word: (*uint32)(p)}
}

// Post increments the count and wakes one waiter.
func (s *Semaphore) Post() {
	atomic.AddUint32(s.word, 1)
	futexWake(s.word, 1)
}

// TryWait decrements the count if it is positive.
func (s *Semaphore) TryWait() bool {
	for {
		v := atomic.LoadUint32(s.word)
		if v == 0 {
			return false
		}
		if atomic.CompareAndSwapUint32(s.word, v, v-1) {
			return true
		}
	}
}

// Wait blocks until the count can be decremented or the timeout elapses.
// A non-positive timeout waits forever. Returns ErrFutexTimeout on
// timeout.
func (s *Semaphore) Wait(timeout time.Duration) error {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		if s.TryWait() {
			return nil
		}
		var waitNs int64
		if timeout > 0 {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return ErrFutexTimeout
			}
			waitNs = remaining.Nanoseconds()
		}
		if err := futexWaitTimeout(s.word, 0, waitNs); err != nil && err != ErrFutexTimeout {
			return err
		}
	}
}

// Mutex is a cross-process mutex over a uint32 living in shared memory.
// State: 0 unlocked, 1 locked, 2 locked with waiters.
type Mutex struct {
	word *uint32
}

// MutexAt returns a mutex view of the word at p.
func MutexAt(p unsafe.Pointer) *Mutex {
	return &Mutex{word: (*uint32)(p)}
}

// Lock acquires the mutex, blocking as needed.
func (m *Mutex) Lock() {
	if atomic.CompareAndSwapUint32(m.word, 0, 1) {
		return
	}
	for {
		// Mark contended, then wait for release.
		if atomic.LoadUint32(m.word) == 2 || atomic.CompareAndSwapUint32(m.word, 1, 2) {
			futexWait(m.word, 2)
		}
		if atomic.CompareAndSwapUint32(m.word, 0, 2) {
			return
		}
	}
}

// TryLock acquires the mutex if it is free.
func (m *Mutex) TryLock() bool {
	return atomic.CompareAndSwapUint32(m.word, 0, 1)
}

// Unlock releases the mutex and wakes one waiter if any.
func (m *Mutex) Unlock() {
	if atomic.SwapUint32(m.word, 0) == 2 {
		futexWake(m.word, 1)
	}
}

// KeyedMutex is the cross-process GPU-surface lock coordinating
// producer/consumer access to a shared texture. The word holds 2*key
// when the surface was released with that key and is available, or an
// odd value while held. A side may only acquire under the key the other
// side released with.
type KeyedMutex struct {
	word *uint32
}

// KeyedMutexAt returns a keyed-mutex view of the word at p.
func KeyedMutexAt(p unsafe.Pointer) *KeyedMutex {
	return &KeyedMutex{word: (*uint32)(p)}
}

const keyedHeld = 1

// AcquireSync blocks until the surface is released under key, then holds
// it. A non-positive timeout waits forever. Returns ErrFutexTimeout on
// timeout.
func (k *KeyedMutex) AcquireSync(key uint64, timeout time.Duration) error {
	want := uint32(key) * 2
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		if atomic.CompareAndSwapUint32(k.word, want, keyedHeld) {
			return nil
		}
		var waitNs int64
		if timeout > 0 {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return ErrFutexTimeout
			}
			waitNs = remaining.Nanoseconds()
		}
		cur := atomic.LoadUint32(k.word)
		if cur == want {
			continue
		}
		if err := futexWaitTimeout(k.word, cur, waitNs); err != nil && err != ErrFutexTimeout {
			return err
		}
	}
}

// ReleaseSync releases the surface under key, making it acquirable by
// whichever side waits on that key.
func (k *KeyedMutex) ReleaseSync(key uint64) {
	atomic.StoreUint32(k.word, uint32(key)*2)
	futexWake(k.word, 1<<30)
}

// Held reports whether the surface is currently held by either side.
func (k *KeyedMutex) Held() bool {
	return atomic.LoadUint32(k.word)&keyedHeld != 0
}
