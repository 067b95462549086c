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

// Package overlaylayer is a cross-process overlay multiplexer for a VR
// compositor API. A main application wraps its runtime with
// NewMainLayer and keeps calling the API as usual; overlay applications
// in other processes obtain the same API surface from Connect, and
// their composition layers are merged into the main application's
// frames through shared memory and shared GPU surfaces.
package overlaylayer

import (
	"flag"
	"os"
	"time"
)

// LayerBinaryVersion is exchanged during negotiation; a main and an
// overlay must match exactly.
const LayerBinaryVersion = uint32(0x00000001)

// Options configures either role of the layer.
type Options struct {
	// ArenaSize is the RPC shared-memory arena capacity in bytes.
	ArenaSize int

	// MaxOverlayLayers bounds a single overlay's end-frame submission.
	MaxOverlayLayers int

	// NegotiationTimeout bounds how long an overlay waits for a main
	// process to appear before its session creation fails.
	NegotiationTimeout time.Duration

	// SerializeEverything degrades per-session locking to one coarse
	// mutex, for bring-up against misbehaving runtimes.
	SerializeEverything bool

	// ApplicationName is reported by overlay clients at create-instance.
	ApplicationName string
}

// DefaultOptions returns the standard configuration.
func DefaultOptions() Options {
	return Options{
		ArenaSize:          1 << 20,
		MaxOverlayLayers:   16,
		NegotiationTimeout: 10 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.ArenaSize <= 0 {
		o.ArenaSize = def.ArenaSize
	}
	if o.MaxOverlayLayers <= 0 {
		o.MaxOverlayLayers = def.MaxOverlayLayers
	}
	if o.NegotiationTimeout <= 0 {
		o.NegotiationTimeout = def.NegotiationTimeout
	}
	return o
}

// InitLogging wires glog to stderr and picks the verbosity up from the
// XR_OVERLAY_LOG_LEVEL environment variable.
func InitLogging() {
	flag.Set("logtostderr", "true")
	if level := os.Getenv("XR_OVERLAY_LOG_LEVEL"); level != "" {
		flag.Set("v", level)
	}
}
