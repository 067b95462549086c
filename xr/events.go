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

package xr

import "unsafe"

// EventDataBuffer is the caller-provided event sink for PollEvent. The
// runtime writes one event structure into it, starting with the
// structure header; Varying is large enough for any core event payload.
type EventDataBuffer struct {
	Type    StructureType
	Next    unsafe.Pointer
	Varying [400]byte
}

// Event reads the buffer back as a base header for type dispatch.
func (b *EventDataBuffer) Event() *BaseOutStructure {
	return (*BaseOutStructure)(unsafe.Pointer(b))
}

// EventDataSessionStateChanged reports a session lifecycle transition.
type EventDataSessionStateChanged struct {
	Type    StructureType
	Next    unsafe.Pointer
	Session Session
	State   SessionState
	Time    Time
}

// EventDataSessionLossPending reports that a session will be lost at
// LossTime.
type EventDataSessionLossPending struct {
	Type     StructureType
	Next     unsafe.Pointer
	Session  Session
	LossTime Time
}

// EventDataInstanceLossPending reports that the instance will be lost.
type EventDataInstanceLossPending struct {
	Type     StructureType
	Next     unsafe.Pointer
	LossTime Time
}

// EventDataEventsLost reports queue overflow.
type EventDataEventsLost struct {
	Type           StructureType
	Next           unsafe.Pointer
	LostEventCount uint32
	_              uint32
}

// EventDataInteractionProfileChanged reports that the bindings of a
// session changed.
type EventDataInteractionProfileChanged struct {
	Type    StructureType
	Next    unsafe.Pointer
	Session Session
}

// EventSession returns the session a buffered event is scoped to, or
// (NullHandle, false) for instance-scoped events.
func EventSession(b *EventDataBuffer) (Session, bool) {
	switch b.Type {
	case TypeEventDataSessionStateChanged:
		return (*EventDataSessionStateChanged)(unsafe.Pointer(b)).Session, true
	case TypeEventDataSessionLossPending:
		return (*EventDataSessionLossPending)(unsafe.Pointer(b)).Session, true
	case TypeEventDataInteractionProfileChanged:
		return (*EventDataInteractionProfileChanged)(unsafe.Pointer(b)).Session, true
	}
	return NullHandle, false
}

// SetEventSession rewrites the session handle embedded in a buffered
// event, used when replaying events to an overlay under its local
// handle. Instance-scoped events are left untouched.
func SetEventSession(b *EventDataBuffer, s Session) {
	switch b.Type {
	case TypeEventDataSessionStateChanged:
		(*EventDataSessionStateChanged)(unsafe.Pointer(b)).Session = s
	case TypeEventDataSessionLossPending:
		(*EventDataSessionLossPending)(unsafe.Pointer(b)).Session = s
	case TypeEventDataInteractionProfileChanged:
		(*EventDataInteractionProfileChanged)(unsafe.Pointer(b)).Session = s
	}
}

// CriticalEvent reports whether an event must survive queue overflow.
// Session state changes and loss warnings are never dropped.
func CriticalEvent(b *EventDataBuffer) bool {
	switch b.Type {
	case TypeEventDataSessionStateChanged,
		TypeEventDataSessionLossPending,
		TypeEventDataInstanceLossPending:
		return true
	}
	return false
}
