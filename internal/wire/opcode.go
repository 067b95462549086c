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

// Package wire defines the RPC protocol carried through the IPC arena:
// the opcode set, the per-opcode argument structures, the extension
// chain copier, and the serialize/copy-out halves of each command.
package wire

// Opcode identifies an RPC command. Values are stable wire identifiers;
// new opcodes may be appended but existing values never change.
type Opcode uint64

const (
	OpInvalid Opcode = iota
	OpHandshake
	OpCreateInstance
	OpGetSystem
	OpCreateSession
	OpDestroySession
	OpBeginSession
	OpEndSession
	OpRequestExitSession
	OpEnumerateSwapchainFormats
	OpCreateSwapchain
	OpDestroySwapchain
	OpEnumerateSwapchainImages
	OpAcquireSwapchainImage
	OpWaitSwapchainImage
	OpReleaseSwapchainImage
	OpCreateReferenceSpace
	OpCreateActionSpace
	OpLocateSpace
	OpDestroySpace
	OpEnumerateViewConfigurations
	OpEnumerateViewConfigurationViews
	OpGetViewConfigurationProperties
	OpGetSystemProperties
	OpGetInstanceProperties
	OpPollEvent
	OpWaitFrame
	OpBeginFrame
	OpEndFrame
	OpSyncActionsAndGetState
	OpStopHapticFeedback
	OpApplyHapticFeedback
	OpLocateViews
	OpGetInputSourceLocalizedName
	OpCreateActionSet
	OpDestroyActionSet
	OpCreateAction
	OpDestroyAction

	opCount
)

var opcodeNames = [...]string{
	OpInvalid:                         "invalid",
	OpHandshake:                       "handshake",
	OpCreateInstance:                  "create-instance",
	OpGetSystem:                       "get-system",
	OpCreateSession:                   "create-session",
	OpDestroySession:                  "destroy-session",
	OpBeginSession:                    "begin-session",
	OpEndSession:                      "end-session",
	OpRequestExitSession:              "request-exit",
	OpEnumerateSwapchainFormats:       "enumerate-swapchain-formats",
	OpCreateSwapchain:                 "create-swapchain",
	OpDestroySwapchain:                "destroy-swapchain",
	OpEnumerateSwapchainImages:        "enumerate-swapchain-images",
	OpAcquireSwapchainImage:           "acquire-swapchain-image",
	OpWaitSwapchainImage:              "wait-swapchain-image",
	OpReleaseSwapchainImage:           "release-swapchain-image",
	OpCreateReferenceSpace:            "create-reference-space",
	OpCreateActionSpace:               "create-action-space",
	OpLocateSpace:                     "locate-space",
	OpDestroySpace:                    "destroy-space",
	OpEnumerateViewConfigurations:     "enumerate-view-configurations",
	OpEnumerateViewConfigurationViews: "enumerate-view-configuration-views",
	OpGetViewConfigurationProperties:  "get-view-configuration-properties",
	OpGetSystemProperties:             "get-system-properties",
	OpGetInstanceProperties:           "get-instance-properties",
	OpPollEvent:                       "poll-event",
	OpWaitFrame:                       "wait-frame",
	OpBeginFrame:                      "begin-frame",
	OpEndFrame:                        "end-frame",
	OpSyncActionsAndGetState:          "sync-actions-and-get-state",
	OpStopHapticFeedback:              "stop-haptic",
	OpApplyHapticFeedback:             "apply-haptic",
	OpLocateViews:                     "locate-views",
	OpGetInputSourceLocalizedName:     "get-input-source-localized-name",
	OpCreateActionSet:                 "create-action-set",
	OpDestroyActionSet:                "destroy-action-set",
	OpCreateAction:                    "create-action",
	OpDestroyAction:                   "destroy-action",
}

func (o Opcode) String() string {
	if int(o) < len(opcodeNames) {
		return opcodeNames[o]
	}
	return "opcode(?)"
}

// Valid reports whether o names a dispatchable command.
func (o Opcode) Valid() bool {
	return o > OpInvalid && o < opCount
}
