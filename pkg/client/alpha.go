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

	alpha "agones.dev/agones/pkg/sdk/alpha"
	"google.golang.org/grpc"
)

// Alpha exposes the experimental player-tracking operations of the SDK.
// These endpoints are disabled in the sidecar by default and may still
// change or disappear between releases. An Alpha shares the connection of
// the Client it was obtained from and cannot close it.
type Alpha struct {
	client *Client
	sdk    alpha.SDKClient
}

func newAlpha(client *Client, conn grpc.ClientConnInterface) *Alpha {
	return &Alpha{
		client: client,
		sdk:    alpha.NewSDKClient(conn),
	}
}

// PlayerConnect registers a player in the registry of this instance. It
// returns false if the player was already registered, which is not an
// error. If the registry is at capacity and the player is new, the call
// fails with ErrPlayerCapacityExhausted.
func (a *Alpha) PlayerConnect(ctx context.Context, playerID string) (bool, error) {
	done, err := a.client.acquire()
	if err != nil {
		return false, err
	}
	defer done()

	res, err := a.sdk.PlayerConnect(ctx, &alpha.PlayerID{PlayerID: playerID})
	if err != nil {
		return false, translatePlayerConnectError(err)
	}
	return res.Bool, nil
}

// PlayerDisconnect removes a player from the registry of this instance. It
// returns false if the player was not registered, which is not an error.
func (a *Alpha) PlayerDisconnect(ctx context.Context, playerID string) (bool, error) {
	done, err := a.client.acquire()
	if err != nil {
		return false, err
	}
	defer done()

	res, err := a.sdk.PlayerDisconnect(ctx, &alpha.PlayerID{PlayerID: playerID})
	if err != nil {
		return false, err
	}
	return res.Bool, nil
}

// ConnectedPlayers returns a snapshot of the currently registered players.
func (a *Alpha) ConnectedPlayers(ctx context.Context) ([]string, error) {
	done, err := a.client.acquire()
	if err != nil {
		return nil, err
	}
	defer done()

	res, err := a.sdk.GetConnectedPlayers(ctx, &alpha.Empty{})
	if err != nil {
		return nil, err
	}
	return res.List, nil
}

// IsPlayerConnected reports whether a player is currently registered.
func (a *Alpha) IsPlayerConnected(ctx context.Context, playerID string) (bool, error) {
	done, err := a.client.acquire()
	if err != nil {
		return false, err
	}
	defer done()

	res, err := a.sdk.IsPlayerConnected(ctx, &alpha.PlayerID{PlayerID: playerID})
	if err != nil {
		return false, err
	}
	return res.Bool, nil
}

// PlayerCount returns the current size of the player registry.
func (a *Alpha) PlayerCount(ctx context.Context) (int64, error) {
	done, err := a.client.acquire()
	if err != nil {
		return 0, err
	}
	defer done()

	res, err := a.sdk.GetPlayerCount(ctx, &alpha.Empty{})
	if err != nil {
		return 0, err
	}
	return res.Count, nil
}

// PlayerCapacity returns the current capacity of the player registry.
func (a *Alpha) PlayerCapacity(ctx context.Context) (int64, error) {
	done, err := a.client.acquire()
	if err != nil {
		return 0, err
	}
	defer done()

	res, err := a.sdk.GetPlayerCapacity(ctx, &alpha.Empty{})
	if err != nil {
		return 0, err
	}
	return res.Count, nil
}

// SetPlayerCapacity changes the capacity of the player registry. Lowering
// the capacity below the current registry size does not evict registered
// players, it only blocks future additions. Zero permits no players at all.
// Negative capacities fail locally without a round trip.
func (a *Alpha) SetPlayerCapacity(ctx context.Context, capacity int64) error {
	if capacity < 0 {
		return invalidArgumentf("the supplied capacity %d must not be negative", capacity)
	}

	done, err := a.client.acquire()
	if err != nil {
		return err
	}
	defer done()

	_, err = a.sdk.SetPlayerCapacity(ctx, &alpha.Count{Count: capacity})
	return err
}
