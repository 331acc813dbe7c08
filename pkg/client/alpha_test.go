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
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/scrayosnet/agones-go-sdk/pkg/localsdk"
)

func TestPlayerConnect(t *testing.T) {
	c, _ := newTestClient(t, localsdk.Config{PlayerCapacity: 4})
	ctx := context.Background()

	connected, err := c.Alpha().PlayerConnect(ctx, "player-1")
	require.NoError(t, err)
	require.True(t, connected)

	// connecting the same player again is an idempotent no-op
	connected, err = c.Alpha().PlayerConnect(ctx, "player-1")
	require.NoError(t, err)
	require.False(t, connected)

	count, err := c.Alpha().PlayerCount(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestPlayerConnectAtCapacity(t *testing.T) {
	c, _ := newTestClient(t, localsdk.Config{PlayerCapacity: 0})

	// the translated condition, not the raw remote fault
	_, err := c.Alpha().PlayerConnect(context.Background(), "player-1")
	require.ErrorIs(t, err, ErrPlayerCapacityExhausted)
}

func TestPlayerDisconnect(t *testing.T) {
	c, _ := newTestClient(t, localsdk.Config{PlayerCapacity: 4})
	ctx := context.Background()

	disconnected, err := c.Alpha().PlayerDisconnect(ctx, "player-1")
	require.NoError(t, err)
	require.False(t, disconnected)

	_, err = c.Alpha().PlayerConnect(ctx, "player-1")
	require.NoError(t, err)

	disconnected, err = c.Alpha().PlayerDisconnect(ctx, "player-1")
	require.NoError(t, err)
	require.True(t, disconnected)
}

func TestConnectedPlayers(t *testing.T) {
	c, _ := newTestClient(t, localsdk.Config{PlayerCapacity: 4})
	ctx := context.Background()

	for _, id := range []string{"player-1", "player-2"} {
		_, err := c.Alpha().PlayerConnect(ctx, id)
		require.NoError(t, err)
	}

	players, err := c.Alpha().ConnectedPlayers(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"player-1", "player-2"}, players)

	connected, err := c.Alpha().IsPlayerConnected(ctx, "player-1")
	require.NoError(t, err)
	require.True(t, connected)

	connected, err = c.Alpha().IsPlayerConnected(ctx, "player-3")
	require.NoError(t, err)
	require.False(t, connected)
}

func TestPlayerCapacity(t *testing.T) {
	c, _ := newTestClient(t, localsdk.Config{PlayerCapacity: 4})
	ctx := context.Background()

	capacity, err := c.Alpha().PlayerCapacity(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 4, capacity)

	require.NoError(t, c.Alpha().SetPlayerCapacity(ctx, 16))

	capacity, err = c.Alpha().PlayerCapacity(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 16, capacity)
}

func TestSetPlayerCapacityNegative(t *testing.T) {
	c, _ := newTestClient(t, localsdk.Config{PlayerCapacity: 4})

	err := c.Alpha().SetPlayerCapacity(context.Background(), -1)
	require.Error(t, err)
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestLoweredCapacityKeepsPlayers(t *testing.T) {
	c, _ := newTestClient(t, localsdk.Config{PlayerCapacity: 2})
	ctx := context.Background()

	for _, id := range []string{"player-1", "player-2"} {
		_, err := c.Alpha().PlayerConnect(ctx, id)
		require.NoError(t, err)
	}

	require.NoError(t, c.Alpha().SetPlayerCapacity(ctx, 1))

	// existing players stay registered, only new additions are blocked
	count, err := c.Alpha().PlayerCount(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	_, err = c.Alpha().PlayerConnect(ctx, "player-3")
	require.ErrorIs(t, err, ErrPlayerCapacityExhausted)
}

func TestTranslatePlayerConnectError(t *testing.T) {
	// pinned to the exact remote description; if this test breaks after an
	// Agones upgrade, the sidecar reworded the fault and the translation
	// has to follow
	translated := translatePlayerConnectError(
		status.Error(codes.Unknown, "Players are already at capacity"))
	require.ErrorIs(t, translated, ErrPlayerCapacityExhausted)

	other := status.Error(codes.Unknown, "some other fault")
	require.Same(t, other, translatePlayerConnectError(other))

	wrongCode := status.Error(codes.ResourceExhausted, "Players are already at capacity")
	require.Same(t, wrongCode, translatePlayerConnectError(wrongCode))

	plain := errors.New("not a status")
	require.Same(t, plain, translatePlayerConnectError(plain))
}
