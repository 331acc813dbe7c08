/*
 * Copyright 2025 Scrayos UG (haftungsbeschränkt)
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
 */

package client

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// playerCapacityMessage is the exact description the sidecar attaches to the
// generic fault it raises when a new player is rejected because the registry
// is full. The sidecar does not use a dedicated status code for this case,
// so the translation below has to match on this string. WARNING: the string
// is not versioned upstream; if Agones ever rewords it, the translation
// silently stops working and callers see the raw remote fault again.
const playerCapacityMessage = "Players are already at capacity"

var (
	// ErrClosed is returned by every operation issued after Close.
	ErrClosed = status.Error(codes.Unavailable, "the sdk connection has already been closed")

	// ErrPlayerCapacityExhausted is returned by PlayerConnect when the
	// player registry is full and the player is not yet part of it.
	ErrPlayerCapacityExhausted = errors.New("player capacity is exhausted")

	// ErrHealthTaskStarted is returned when the health task is started a
	// second time on the same client.
	ErrHealthTaskStarted = errors.New("the health task has already been started for this client")
)

// invalidArgumentf builds a local validation failure. It is raised before
// any network call and shares the status mechanism with remote faults so
// callers inspect both the same way.
func invalidArgumentf(format string, args ...interface{}) error {
	return status.Errorf(codes.InvalidArgument, format, args...)
}

// translatePlayerConnectError converts the capacity fault of PlayerConnect
// into ErrPlayerCapacityExhausted and passes every other fault through
// unmodified.
func translatePlayerConnectError(err error) error {
	s, ok := status.FromError(err)
	if !ok {
		return err
	}

	if s.Code() == codes.Unknown && s.Message() == playerCapacityMessage {
		return ErrPlayerCapacityExhausted
	}

	return err
}
