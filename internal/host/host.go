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

// Package host runs the main-process side of the overlay bridge: the
// negotiator, one RPC servicer per overlay connection, the opcode
// dispatch table, and the main-as-overlay implementations of every
// command, executed against the real runtime session.
package host

import (
	"sync"

	"github.com/golang/glog"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/IemptyB/OpenXR-OverlayLayer/internal/registry"
	"github.com/IemptyB/OpenXR-OverlayLayer/internal/session"
	"github.com/IemptyB/OpenXR-OverlayLayer/internal/texture"
	"github.com/IemptyB/OpenXR-OverlayLayer/internal/transport"
	"github.com/IemptyB/OpenXR-OverlayLayer/xr"
)

// OverlayLayerBudget is the number of composition layers reserved for
// overlays; system properties returned to applications hide it.
const OverlayLayerBudget = 2

// texCacheSize bounds the host-side cache of opened shared textures.
const texCacheSize = 128

// Config carries the host-side knobs.
type Config struct {
	// MaxOverlayLayers bounds one overlay's end-frame submission.
	MaxOverlayLayers int

	// SerializeEverything degrades per-session locking to one coarse
	// mutex, for bring-up.
	SerializeEverything bool

	// LayerVersion is published during negotiation.
	LayerVersion uint32
}

// Host is the main-process bridge state: the downchain runtime, the
// handle registry, the main session context, and the set of live
// overlay connections.
type Host struct {
	cfg       Config
	downchain xr.Runtime
	reg       *registry.Registry

	instance  xr.Instance
	systemID  xr.SystemID
	adapterID uint64

	// globalMu is the serialize-everything fallback lock.
	globalMu sync.Mutex

	mu      sync.Mutex
	mainCtx *session.MainContext
	conns   map[string]*Connection

	textures *lru.Cache[string, *texture.Texture]

	negotiator *transport.Negotiator
	group      *errgroup.Group
}

// Connection is one overlay's servicer-side state.
type Connection struct {
	ch         *transport.RPCChannels
	overlayPID uint32

	// ctx is nil until the overlay creates its session.
	ctx *session.OverlayContext

	// instanceCreateInfo caches the overlay's create-instance chain.
	instanceCreateInfo any

	// residualEvents holds events buffered for a session the overlay
	// already destroyed, so loss-pending and exiting still surface on
	// subsequent polls.
	residualEvents []*xr.EventDataBuffer

	// heldByHost names textures the host still holds from a previous
	// release copy, pending hand-back at the overlay's next wait.
	heldByHost map[string]struct{}

	// heldByOverlay names textures the overlay acquired through wait
	// and has not yet released, so they can be force-released if the
	// overlay dies.
	heldByOverlay map[string]struct{}

	dropOnce sync.Once
}

// New builds a host over the downchain runtime.
func New(downchain xr.Runtime, cfg Config) *Host {
	if cfg.MaxOverlayLayers <= 0 {
		cfg.MaxOverlayLayers = session.MaxOverlayCompositionLayers
	}
	textures, _ := lru.NewWithEvict(texCacheSize, func(name string, t *texture.Texture) {
		t.Close()
	})
	return &Host{
		cfg:       cfg,
		downchain: downchain,
		reg:       registry.New(),
		conns:     make(map[string]*Connection),
		textures:  textures,
	}
}

// Registry exposes the handle registry to the main-side layer.
func (h *Host) Registry() *registry.Registry { return h.reg }

// SetInstance records the real instance identity published to overlays
// at handshake.
func (h *Host) SetInstance(instance xr.Instance, systemID xr.SystemID, adapterID uint64) {
	h.instance = instance
	h.systemID = systemID
	h.adapterID = adapterID
}

// MainContext returns the main session context, or nil before the main
// session exists.
func (h *Host) MainContext() *session.MainContext {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.mainCtx
}

// lockSession takes the lock serializing runtime calls against the real
// session and returns the matching unlock.
func (h *Host) lockSession(ctx *session.MainContext) func() {
	if h.cfg.SerializeEverything || ctx == nil {
		h.globalMu.Lock()
		return h.globalMu.Unlock
	}
	ctx.Mu.Lock()
	return ctx.Mu.Unlock
}

// StartMainSession begins hosting: records the real session and spawns
// the negotiator accepting overlay connections.
func (h *Host) StartMainSession(real xr.Session) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.mainCtx != nil {
		return nil
	}
	h.mainCtx = session.NewMainContext(real)

	neg, err := transport.CreateNegotiation(h.cfg.LayerVersion)
	if err != nil {
		h.mainCtx = nil
		return err
	}
	h.negotiator = neg
	h.group = &errgroup.Group{}
	h.group.Go(func() error {
		neg.Run(h.accept)
		return nil
	})
	glog.V(1).Info("host: main session active, negotiator running")
	return nil
}

// StopMainSession tears down the negotiator and every overlay
// connection; called when the main session is destroyed.
func (h *Host) StopMainSession() {
	h.mu.Lock()
	neg := h.negotiator
	conns := make([]*Connection, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.negotiator = nil
	h.mu.Unlock()

	if neg == nil {
		return
	}
	neg.Stop()
	// Wake every servicer without unmapping under it; each drops its
	// own connection on the way out.
	for _, c := range conns {
		c.ch.Shutdown()
	}
	h.group.Wait()
	neg.Close()

	h.mu.Lock()
	h.mainCtx = nil
	h.conns = make(map[string]*Connection)
	h.mu.Unlock()
	h.textures.Purge()
	glog.V(1).Info("host: main session stopped")
}

// accept runs on the negotiator goroutine for each admitted overlay.
func (h *Host) accept(ch *transport.RPCChannels, overlayPID uint32) {
	conn := &Connection{
		ch:            ch,
		overlayPID:    overlayPID,
		heldByHost:    make(map[string]struct{}),
		heldByOverlay: make(map[string]struct{}),
	}
	h.mu.Lock()
	h.conns[ch.ConnID] = conn
	h.mu.Unlock()

	h.group.Go(func() error {
		h.serve(conn)
		return nil
	})
}

// serve is the per-connection RPC servicer loop. It exits when the
// overlay terminates, closes the connection, or the host shuts down.
func (h *Host) serve(conn *Connection) {
	glog.V(1).Infof("[conn %s] servicer started for overlay pid=%d", conn.ch.ConnID, conn.overlayPID)
	for {
		if err := conn.ch.WaitForRequest(); err != nil {
			glog.V(1).Infof("[conn %s] connection ended: %v", conn.ch.ConnID, err)
			h.dropConnection(conn)
			return
		}

		a := conn.ch.Arena
		a.Absolutize()
		res := dispatch(h, conn, a)
		a.Header().SetResult(int32(res))
		a.Relativize()
		conn.ch.FinishResponse()
	}
}

// overlayConnections snapshots the live connections that have created
// an overlay session.
func (h *Host) overlayConnections() []*Connection {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Connection, 0, len(h.conns))
	for _, c := range h.conns {
		if c.ctx != nil {
			out = append(out, c)
		}
	}
	return out
}

// openTexture returns the cached shared texture for name, opening it on
// first use.
func (h *Host) openTexture(name string) (*texture.Texture, error) {
	if t, ok := h.textures.Get(name); ok {
		return t, nil
	}
	t, err := texture.Open(name)
	if err != nil {
		return nil, err
	}
	h.textures.Add(name, t)
	return t, nil
}

// dropConnection is the single connection-scoped cleanup routine,
// invoked by whichever wait first observes the peer gone. It
// force-releases keyed-mutex holds, discards cached layers and destroys
// the overlay's child objects. It does not close or evict the shared
// textures the host opened for this overlay; they stay in the texture
// cache until its size bound evicts them or StopMainSession purges it.
// Running it twice is harmless.
func (h *Host) dropConnection(conn *Connection) {
	conn.dropOnce.Do(func() {
		glog.V(1).Infof("[conn %s] cleaning up overlay pid=%d", conn.ch.ConnID, conn.overlayPID)

		for name := range conn.heldByOverlay {
			if t, ok := h.textures.Get(name); ok {
				t.ForceRelease(xr.KeyMain)
			}
			delete(conn.heldByOverlay, name)
		}
		for name := range conn.heldByHost {
			if t, ok := h.textures.Get(name); ok {
				t.ForceRelease(xr.KeyOverlay)
			}
			delete(conn.heldByHost, name)
		}

		if conn.ctx != nil {
			conn.ctx.ClearLayers()
			h.destroyOverlaySession(conn)
		}

		h.mu.Lock()
		delete(h.conns, conn.ch.ConnID)
		h.mu.Unlock()
		conn.ch.Close()
	})
}

// destroyOverlaySession tears down every child object the overlay
// session owned and unregisters its handles. Safe to call with objects
// already half-destroyed; destroys are idempotent.
func (h *Host) destroyOverlaySession(conn *Connection) {
	ctx := conn.ctx
	if ctx == nil {
		return
	}
	mainCtx := h.MainContext()

	for sc := range ctx.LocalSwapchains {
		h.destroyLocalSwapchain(conn, sc)
	}
	for sp := range ctx.LocalSpaces {
		if real, ok := h.reg.Real(uint64(sp)); ok && mainCtx != nil {
			unlock := h.lockSession(mainCtx)
			h.downchain.DestroySpace(xr.Space(real))
			unlock()
		}
		h.reg.Remove(uint64(sp))
		delete(ctx.LocalSpaces, sp)
	}
	for ac := range ctx.LocalActions {
		if real, ok := h.reg.Real(uint64(ac)); ok {
			h.downchain.DestroyAction(xr.Action(real))
		}
		h.reg.Remove(uint64(ac))
		delete(ctx.LocalActions, ac)
	}
	for as := range ctx.LocalActionSets {
		if real, ok := h.reg.Real(uint64(as)); ok {
			h.downchain.DestroyActionSet(xr.ActionSet(real))
		}
		h.reg.Remove(uint64(as))
		delete(ctx.LocalActionSets, as)
	}

	// Events already queued for the dying session (loss-pending,
	// exiting) must stay reachable for later polls.
	for {
		ev, ok := ctx.NextEvent()
		if !ok {
			break
		}
		conn.residualEvents = append(conn.residualEvents, ev)
	}

	h.reg.Remove(uint64(ctx.LocalSession))
	conn.ctx = nil
}
