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

// Package xr defines the compositor API surface the overlay layer
// interposes: opaque handles, result codes, chained structures and the
// Runtime interface implemented both by the real runtime wrapper (main
// role) and by the RPC client (overlay role).
package xr

import "fmt"

// Result is the status code every API operation returns. Zero and
// positive values are qualified successes; negative values are errors.
type Result int32

const (
	Success Result = 0

	// Qualified successes.
	TimeoutExpired      Result = 1
	SessionLossPending  Result = 3
	EventUnavailable    Result = 4
	SessionNotFocused   Result = 8
	FrameDiscarded      Result = 9

	// Errors.
	ErrorValidationFailure      Result = -1
	ErrorRuntimeFailure         Result = -2
	ErrorInitializationFailed   Result = -6
	ErrorFunctionUnsupported    Result = -7
	ErrorFeatureUnsupported     Result = -8
	ErrorLimitReached           Result = -10
	ErrorSizeInsufficient       Result = -11
	ErrorHandleInvalid          Result = -12
	ErrorSessionRunning         Result = -14
	ErrorSessionNotRunning      Result = -16
	ErrorSessionLost            Result = -17
	ErrorSystemInvalid          Result = -18
	ErrorSwapchainFormatUnsupported Result = -34
	ErrorCallOrderInvalid       Result = -37
	ErrorGraphicsDeviceInvalid  Result = -38
	ErrorTimeInvalid            Result = -40
)

// Succeeded reports whether r is Success or a qualified success.
func (r Result) Succeeded() bool { return r >= 0 }

// Failed reports whether r is an error code.
func (r Result) Failed() bool { return r < 0 }

var resultNames = map[Result]string{
	Success:                         "SUCCESS",
	TimeoutExpired:                  "TIMEOUT_EXPIRED",
	SessionLossPending:              "SESSION_LOSS_PENDING",
	EventUnavailable:                "EVENT_UNAVAILABLE",
	SessionNotFocused:               "SESSION_NOT_FOCUSED",
	FrameDiscarded:                  "FRAME_DISCARDED",
	ErrorValidationFailure:          "ERROR_VALIDATION_FAILURE",
	ErrorRuntimeFailure:             "ERROR_RUNTIME_FAILURE",
	ErrorInitializationFailed:       "ERROR_INITIALIZATION_FAILED",
	ErrorFunctionUnsupported:        "ERROR_FUNCTION_UNSUPPORTED",
	ErrorFeatureUnsupported:         "ERROR_FEATURE_UNSUPPORTED",
	ErrorLimitReached:               "ERROR_LIMIT_REACHED",
	ErrorSizeInsufficient:           "ERROR_SIZE_INSUFFICIENT",
	ErrorHandleInvalid:              "ERROR_HANDLE_INVALID",
	ErrorSessionRunning:             "ERROR_SESSION_RUNNING",
	ErrorSessionNotRunning:          "ERROR_SESSION_NOT_RUNNING",
	ErrorSessionLost:                "ERROR_SESSION_LOST",
	ErrorSystemInvalid:              "ERROR_SYSTEM_INVALID",
	ErrorSwapchainFormatUnsupported: "ERROR_SWAPCHAIN_FORMAT_UNSUPPORTED",
	ErrorCallOrderInvalid:           "ERROR_CALL_ORDER_INVALID",
	ErrorGraphicsDeviceInvalid:      "ERROR_GRAPHICS_DEVICE_INVALID",
	ErrorTimeInvalid:                "ERROR_TIME_INVALID",
}

func (r Result) String() string {
	if s, ok := resultNames[r]; ok {
		return s
	}
	return fmt.Sprintf("RESULT(%d)", int32(r))
}
