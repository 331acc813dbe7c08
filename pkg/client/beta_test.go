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
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/scrayosnet/agones-go-sdk/pkg/localsdk"
)

func newBetaTestClient(t *testing.T) *Client {
	t.Helper()
	c, _ := newTestClient(t, localsdk.Config{
		Counters: map[string]localsdk.Counter{
			"rooms": {Count: 1, Capacity: 3},
			"empty": {Count: 0, Capacity: 5},
		},
		Lists: map[string]localsdk.List{
			"players": {Capacity: 3, Values: []string{"ann", "bob"}},
		},
	})
	return c
}

func TestCounterCount(t *testing.T) {
	c := newBetaTestClient(t)
	ctx := context.Background()

	count, err := c.Beta().CounterCount(ctx, "rooms")
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	require.NoError(t, c.Beta().SetCounterCount(ctx, "rooms", 3))

	count, err = c.Beta().CounterCount(ctx, "rooms")
	require.NoError(t, err)
	require.EqualValues(t, 3, count)
}

func TestCounterCountOutOfRange(t *testing.T) {
	c := newBetaTestClient(t)
	ctx := context.Background()

	err := c.Beta().SetCounterCount(ctx, "rooms", 4)
	require.Equal(t, codes.OutOfRange, status.Code(err))

	err = c.Beta().SetCounterCount(ctx, "rooms", -1)
	require.Equal(t, codes.OutOfRange, status.Code(err))
}

func TestCounterUnknown(t *testing.T) {
	c := newBetaTestClient(t)
	ctx := context.Background()

	_, err := c.Beta().CounterCount(ctx, "missing")
	require.Equal(t, codes.NotFound, status.Code(err))

	err = c.Beta().IncrementCounter(ctx, "missing")
	require.Equal(t, codes.NotFound, status.Code(err))

	err = c.Beta().SetCounterCapacity(ctx, "missing", 10)
	require.Equal(t, codes.NotFound, status.Code(err))
}

func TestIncrementCounter(t *testing.T) {
	c := newBetaTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Beta().IncrementCounter(ctx, "rooms"))
	require.NoError(t, c.Beta().IncrementCounter(ctx, "rooms"))

	// the counter is now at its capacity of 3
	err := c.Beta().IncrementCounter(ctx, "rooms")
	require.Equal(t, codes.OutOfRange, status.Code(err))

	count, err := c.Beta().CounterCount(ctx, "rooms")
	require.NoError(t, err)
	require.EqualValues(t, 3, count)
}

func TestDecrementCounter(t *testing.T) {
	c := newBetaTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Beta().DecrementCounter(ctx, "rooms"))

	// decrementing below zero fails and leaves the count untouched
	err := c.Beta().DecrementCounter(ctx, "rooms")
	require.Equal(t, codes.OutOfRange, status.Code(err))

	count, err := c.Beta().CounterCount(ctx, "rooms")
	require.NoError(t, err)
	require.EqualValues(t, 0, count)
}

func TestCounterCapacity(t *testing.T) {
	c := newBetaTestClient(t)
	ctx := context.Background()

	capacity, err := c.Beta().CounterCapacity(ctx, "rooms")
	require.NoError(t, err)
	require.EqualValues(t, 3, capacity)

	require.NoError(t, c.Beta().SetCounterCapacity(ctx, "rooms", 10))

	capacity, err = c.Beta().CounterCapacity(ctx, "rooms")
	require.NoError(t, err)
	require.EqualValues(t, 10, capacity)
}

func TestSetCounterCapacityNegative(t *testing.T) {
	c := newBetaTestClient(t)

	err := c.Beta().SetCounterCapacity(context.Background(), "rooms", -1)
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestListQueries(t *testing.T) {
	c := newBetaTestClient(t)
	ctx := context.Background()

	size, err := c.Beta().ListSize(ctx, "players")
	require.NoError(t, err)
	require.Equal(t, 2, size)

	values, err := c.Beta().ListValues(ctx, "players")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"ann", "bob"}, values)

	contains, err := c.Beta().ListContains(ctx, "players", "ann")
	require.NoError(t, err)
	require.True(t, contains)

	contains, err = c.Beta().ListContains(ctx, "players", "cleo")
	require.NoError(t, err)
	require.False(t, contains)

	_, err = c.Beta().ListValues(ctx, "missing")
	require.Equal(t, codes.NotFound, status.Code(err))
}

func TestAddListValue(t *testing.T) {
	c := newBetaTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Beta().AddListValue(ctx, "players", "cleo"))

	// duplicates are rejected and leave the list unchanged
	err := c.Beta().AddListValue(ctx, "players", "cleo")
	require.Equal(t, codes.AlreadyExists, status.Code(err))

	size, err := c.Beta().ListSize(ctx, "players")
	require.NoError(t, err)
	require.Equal(t, 3, size)

	// the list is now at its capacity of 3
	err = c.Beta().AddListValue(ctx, "players", "dan")
	require.Equal(t, codes.OutOfRange, status.Code(err))
}

func TestRemoveListValue(t *testing.T) {
	c := newBetaTestClient(t)
	ctx := context.Background()

	err := c.Beta().RemoveListValue(ctx, "players", "cleo")
	require.Equal(t, codes.NotFound, status.Code(err))

	require.NoError(t, c.Beta().RemoveListValue(ctx, "players", "ann"))

	contains, err := c.Beta().ListContains(ctx, "players", "ann")
	require.NoError(t, err)
	require.False(t, contains)
}

func TestListCapacity(t *testing.T) {
	c := newBetaTestClient(t)
	ctx := context.Background()

	capacity, err := c.Beta().ListCapacity(ctx, "players")
	require.NoError(t, err)
	require.EqualValues(t, 3, capacity)

	require.NoError(t, c.Beta().AddListValue(ctx, "players", "cleo"))
	require.NoError(t, c.Beta().SetListCapacity(ctx, "players", 2))

	// shrinking the capacity below the current size evicts nothing
	size, err := c.Beta().ListSize(ctx, "players")
	require.NoError(t, err)
	require.Equal(t, 3, size)

	err = c.Beta().AddListValue(ctx, "players", "dan")
	require.Equal(t, codes.OutOfRange, status.Code(err))
}

func TestSetListCapacityNegative(t *testing.T) {
	c := newBetaTestClient(t)

	err := c.Beta().SetListCapacity(context.Background(), "players", -1)
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}
