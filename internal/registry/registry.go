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

// Package registry tracks the bidirectional mapping between the local
// opaque identifiers handed to overlays and the real handles held by
// the main process, plus per-handle bookkeeping.
package registry

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/IemptyB/OpenXR-OverlayLayer/xr"
)

// ObjectType classifies a tracked handle.
type ObjectType int

const (
	ObjectInstance ObjectType = iota
	ObjectSession
	ObjectSpace
	ObjectSwapchain
	ObjectAction
	ObjectActionSet
)

var objectTypeNames = [...]string{
	"instance", "session", "space", "swapchain", "action", "action-set",
}

func (t ObjectType) String() string {
	if int(t) < len(objectTypeNames) {
		return objectTypeNames[t]
	}
	return "object(?)"
}

// Info is the per-handle record: the corresponding real handle (zero for
// purely local façades), the parent local handle, and optional per-type
// state attached by the owning subsystem.
type Info struct {
	Type   ObjectType
	Real   uint64
	Parent uint64
	Data   any
}

// localHandleBase keeps layer-generated identifiers far away from any
// value the runtime could mint, so a local id can never collide with a
// real handle.
const localHandleBase = 0x4F56_0000_0000_0000

var nextLocal atomic.Uint64

// NextLocalHandle returns a fresh layer-generated 64-bit identifier.
func NextLocalHandle() uint64 {
	return localHandleBase + nextLocal.Add(1)
}

// Registry is the process-wide handle table. The mutex is held only for
// lookup/insert/erase, never across an RPC.
type Registry struct {
	mu      sync.Mutex
	byLocal map[uint64]*Info
	byReal  map[uint64]uint64 // real -> local, for event rewriting
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		byLocal: make(map[uint64]*Info),
		byReal:  make(map[uint64]uint64),
	}
}

// Insert registers a new local handle for the given record and returns it.
func (r *Registry) Insert(info *Info) uint64 {
	local := NextLocalHandle()
	r.mu.Lock()
	r.byLocal[local] = info
	if info.Real != 0 {
		r.byReal[info.Real] = local
	}
	r.mu.Unlock()
	return local
}

// Bind updates the real handle of an existing record, once the runtime
// call that produced it completes.
func (r *Registry) Bind(local, real uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.byLocal[local]
	if !ok {
		return false
	}
	if info.Real != 0 {
		delete(r.byReal, info.Real)
	}
	info.Real = real
	if real != 0 {
		r.byReal[real] = local
	}
	return true
}

// Lookup returns the record behind a local handle.
func (r *Registry) Lookup(local uint64) (*Info, bool) {
	r.mu.Lock()
	info, ok := r.byLocal[local]
	r.mu.Unlock()
	return info, ok
}

// Real translates a local handle to its real handle.
func (r *Registry) Real(local uint64) (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.byLocal[local]
	if !ok {
		return 0, false
	}
	return info.Real, true
}

// LocalFromReal reverse-translates a real handle, used when rewriting
// runtime-surfaced events for an overlay.
func (r *Registry) LocalFromReal(real uint64) (uint64, bool) {
	r.mu.Lock()
	local, ok := r.byReal[real]
	r.mu.Unlock()
	return local, ok
}

// Remove erases a local handle. Removing an absent handle is a no-op so
// duplicated peer-termination cleanup stays idempotent.
func (r *Registry) Remove(local uint64) {
	r.mu.Lock()
	if info, ok := r.byLocal[local]; ok {
		if info.Real != 0 {
			delete(r.byReal, info.Real)
		}
		delete(r.byLocal, local)
	}
	r.mu.Unlock()
}

// Children returns the local handles whose parent is the given handle.
func (r *Registry) Children(parent uint64) []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []uint64
	for local, info := range r.byLocal {
		if info.Parent == parent {
			out = append(out, local)
		}
	}
	return out
}

// RestoreRealHandles walks a structure chain and rewrites every embedded
// local handle to its real counterpart, in place, before the structure
// is passed to the runtime. Returns false if any handle is unknown.
func (r *Registry) RestoreRealHandles(chain unsafe.Pointer) bool {
	return r.translateChain(chain, r.Real)
}

// SubstituteLocalHandles walks a structure chain and rewrites every
// embedded real handle back to the local identifier, before the
// structure is returned to the overlay's caller.
func (r *Registry) SubstituteLocalHandles(chain unsafe.Pointer) bool {
	return r.translateChain(chain, r.LocalFromReal)
}

func (r *Registry) translateChain(chain unsafe.Pointer, xlat func(uint64) (uint64, bool)) bool {
	ok := true
	rewrite := func(h *uint64) {
		if *h == 0 {
			return
		}
		v, found := xlat(*h)
		if !found {
			ok = false
			return
		}
		*h = v
	}

	for p := chain; p != nil; {
		base := (*xr.BaseInStructure)(p)
		switch base.Type {
		case xr.TypeCompositionLayerQuad:
			quad := (*xr.CompositionLayerQuad)(p)
			rewrite((*uint64)(unsafe.Pointer(&quad.Space)))
			rewrite((*uint64)(unsafe.Pointer(&quad.SubImage.Swapchain)))
		case xr.TypeCompositionLayerProjection:
			proj := (*xr.CompositionLayerProjection)(p)
			rewrite((*uint64)(unsafe.Pointer(&proj.Space)))
			for i, views := 0, proj.ViewList(); i < len(views); i++ {
				rewrite((*uint64)(unsafe.Pointer(&views[i].SubImage.Swapchain)))
			}
		case xr.TypeFrameEndInfo:
			fei := (*xr.FrameEndInfo)(p)
			for _, layer := range fei.LayerList() {
				if layer != nil && !r.translateChain(unsafe.Pointer(layer), xlat) {
					ok = false
				}
			}
		case xr.TypeActionSpaceCreateInfo:
			ci := (*xr.ActionSpaceCreateInfo)(p)
			rewrite((*uint64)(unsafe.Pointer(&ci.Action)))
		case xr.TypeActionsSyncInfo:
			si := (*xr.ActionsSyncInfo)(p)
			if si.ActiveActionSets != nil {
				sets := unsafe.Slice((*xr.ActiveActionSet)(si.ActiveActionSets), si.CountActiveActionSets)
				for i := range sets {
					rewrite((*uint64)(unsafe.Pointer(&sets[i].ActionSet)))
				}
			}
		case xr.TypeActionStateGetInfo:
			gi := (*xr.ActionStateGetInfo)(p)
			rewrite((*uint64)(unsafe.Pointer(&gi.Action)))
		case xr.TypeHapticActionInfo:
			hi := (*xr.HapticActionInfo)(p)
			rewrite((*uint64)(unsafe.Pointer(&hi.Action)))
		case xr.TypeViewLocateInfo:
			vli := (*xr.ViewLocateInfo)(p)
			rewrite((*uint64)(unsafe.Pointer(&vli.Space)))
		}
		p = base.Next
	}
	return ok
}
