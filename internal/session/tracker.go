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

// Package session tracks per-session lifecycle state on the main side:
// the lifecycle FSM shared by the main session and every overlay
// session, the main session context owning the real runtime session,
// and the per-overlay session context.
package session

import (
	"github.com/IemptyB/OpenXR-OverlayLayer/xr"
)

// Command is an API call that drives the lifecycle FSM.
type Command int

const (
	CommandBeginSession Command = iota
	CommandWaitFrame
	CommandEndSession
	CommandRequestExit
)

// LossState is the orthogonal session-loss dimension.
type LossState int

const (
	NotLost LossState = iota
	LossPending
	Lost
)

// StateTracker carries the lifecycle state of one session: the
// runtime-surfaced state, the running and exit-requested flags, and the
// loss dimension.
type StateTracker struct {
	Loss          LossState
	State         xr.SessionState
	Running       bool
	ExitRequested bool
}

// DoCommand applies an API call to the tracker.
func (t *StateTracker) DoCommand(cmd Command) {
	switch cmd {
	case CommandBeginSession:
		t.Running = true
	case CommandEndSession:
		t.Running = false
	case CommandRequestExit:
		t.ExitRequested = true
	}
}

// DoStateChange records a runtime-surfaced state transition.
func (t *StateTracker) DoStateChange(state xr.SessionState) {
	t.State = state
}

// DoSessionLost marks the session lost.
func (t *StateTracker) DoSessionLost() {
	t.Loss = Lost
}

// stateRank orders the up-ladder; stopping/exiting are handled apart.
func stateRank(s xr.SessionState) int {
	switch s {
	case xr.SessionStateIdle:
		return 1
	case xr.SessionStateReady:
		return 2
	case xr.SessionStateSynchronized:
		return 3
	case xr.SessionStateVisible:
		return 4
	case xr.SessionStateFocused:
		return 5
	}
	return 0
}

// PendingStateChange derives the next state transition an overlay
// session should surface, following the main session's observed state:
// up the idle → ready → synchronized → visible → focused ladder while
// the main climbs, back down and through stopping/exiting once the main
// reaches stopping or exiting or an exit was requested. A main that
// steps down without stopping (say focused to visible) does not pull
// the overlay down. One transition is returned per
// call; callers poll until none is pending.
func (t *StateTracker) PendingStateChange(main *StateTracker) (xr.SessionState, bool) {
	if t.Loss != NotLost && t.State != xr.SessionStateLossPending {
		return t.change(xr.SessionStateLossPending)
	}

	if t.State == xr.SessionStateUnknown {
		return t.change(xr.SessionStateIdle)
	}

	windingDown := t.ExitRequested || main.ExitRequested ||
		main.State == xr.SessionStateStopping || main.State == xr.SessionStateExiting

	if windingDown {
		switch t.State {
		case xr.SessionStateFocused:
			return t.change(xr.SessionStateVisible)
		case xr.SessionStateVisible:
			return t.change(xr.SessionStateSynchronized)
		case xr.SessionStateSynchronized:
			return t.change(xr.SessionStateStopping)
		case xr.SessionStateReady:
			return t.change(xr.SessionStateStopping)
		case xr.SessionStateStopping:
			if !t.Running {
				return t.change(xr.SessionStateIdle)
			}
		case xr.SessionStateIdle:
			return t.change(xr.SessionStateExiting)
		}
		return xr.SessionStateUnknown, false
	}

	ours, theirs := stateRank(t.State), stateRank(main.State)
	if ours == 0 || theirs == 0 || ours >= theirs {
		return xr.SessionStateUnknown, false
	}

	switch t.State {
	case xr.SessionStateIdle:
		return t.change(xr.SessionStateReady)
	case xr.SessionStateReady:
		// The app must begin the session before it can synchronize.
		if t.Running {
			return t.change(xr.SessionStateSynchronized)
		}
	case xr.SessionStateSynchronized:
		return t.change(xr.SessionStateVisible)
	case xr.SessionStateVisible:
		return t.change(xr.SessionStateFocused)
	}
	return xr.SessionStateUnknown, false
}

func (t *StateTracker) change(next xr.SessionState) (xr.SessionState, bool) {
	t.State = next
	return next, true
}
