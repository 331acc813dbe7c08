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
	"slices"

	beta "agones.dev/agones/pkg/sdk/beta"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/fieldmaskpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Beta exposes the counter and list operations of the SDK. Counters hold a
// count bounded by a capacity, lists hold unique values bounded by a
// capacity. Both are validated by the sidecar: unknown names fail with
// NotFound, bound violations with OutOfRange and duplicate list values with
// AlreadyExists. A Beta shares the connection of the Client it was obtained
// from and cannot close it.
type Beta struct {
	client *Client
	sdk    beta.SDKClient
}

func newBeta(client *Client, conn grpc.ClientConnInterface) *Beta {
	return &Beta{
		client: client,
		sdk:    beta.NewSDKClient(conn),
	}
}

// CounterCount returns the current count of the named counter.
func (b *Beta) CounterCount(ctx context.Context, name string) (int64, error) {
	done, err := b.client.acquire()
	if err != nil {
		return 0, err
	}
	defer done()

	res, err := b.sdk.GetCounter(ctx, &beta.GetCounterRequest{Name: name})
	if err != nil {
		return 0, err
	}
	return res.Count, nil
}

// SetCounterCount sets the count of the named counter to an absolute value.
// The sidecar rejects values outside [0, capacity] with OutOfRange.
func (b *Beta) SetCounterCount(ctx context.Context, name string, count int64) error {
	return b.updateCounter(ctx, &beta.CounterUpdateRequest{
		Name:  name,
		Count: wrapperspb.Int64(count),
	})
}

// IncrementCounter increases the count of the named counter by one. The
// sidecar rejects increments past the capacity with OutOfRange.
func (b *Beta) IncrementCounter(ctx context.Context, name string) error {
	return b.updateCounter(ctx, &beta.CounterUpdateRequest{
		Name:      name,
		CountDiff: 1,
	})
}

// DecrementCounter decreases the count of the named counter by one. The
// sidecar rejects decrements below zero with OutOfRange.
func (b *Beta) DecrementCounter(ctx context.Context, name string) error {
	return b.updateCounter(ctx, &beta.CounterUpdateRequest{
		Name:      name,
		CountDiff: -1,
	})
}

// CounterCapacity returns the capacity of the named counter.
func (b *Beta) CounterCapacity(ctx context.Context, name string) (int64, error) {
	done, err := b.client.acquire()
	if err != nil {
		return 0, err
	}
	defer done()

	res, err := b.sdk.GetCounter(ctx, &beta.GetCounterRequest{Name: name})
	if err != nil {
		return 0, err
	}
	return res.Capacity, nil
}

// SetCounterCapacity changes the capacity of the named counter. Negative
// capacities fail locally without a round trip.
func (b *Beta) SetCounterCapacity(ctx context.Context, name string, capacity int64) error {
	if capacity < 0 {
		return invalidArgumentf("the supplied capacity %d must not be negative", capacity)
	}

	return b.updateCounter(ctx, &beta.CounterUpdateRequest{
		Name:     name,
		Capacity: wrapperspb.Int64(capacity),
	})
}

func (b *Beta) updateCounter(ctx context.Context, update *beta.CounterUpdateRequest) error {
	done, err := b.client.acquire()
	if err != nil {
		return err
	}
	defer done()

	_, err = b.sdk.UpdateCounter(ctx, &beta.UpdateCounterRequest{
		CounterUpdateRequest: update,
	})
	return err
}

// ListSize returns the number of values in the named list.
func (b *Beta) ListSize(ctx context.Context, name string) (int, error) {
	values, err := b.ListValues(ctx, name)
	if err != nil {
		return 0, err
	}
	return len(values), nil
}

// ListValues returns a snapshot of the values in the named list.
func (b *Beta) ListValues(ctx context.Context, name string) ([]string, error) {
	done, err := b.client.acquire()
	if err != nil {
		return nil, err
	}
	defer done()

	res, err := b.sdk.GetList(ctx, &beta.GetListRequest{Name: name})
	if err != nil {
		return nil, err
	}
	return res.Values, nil
}

// ListContains reports whether the named list contains the given value.
func (b *Beta) ListContains(ctx context.Context, name, value string) (bool, error) {
	values, err := b.ListValues(ctx, name)
	if err != nil {
		return false, err
	}
	return slices.Contains(values, value), nil
}

// AddListValue appends a value to the named list. The sidecar rejects
// values that are already present with AlreadyExists and additions to a
// full list with OutOfRange.
func (b *Beta) AddListValue(ctx context.Context, name, value string) error {
	done, err := b.client.acquire()
	if err != nil {
		return err
	}
	defer done()

	_, err = b.sdk.AddListValue(ctx, &beta.AddListValueRequest{
		Name:  name,
		Value: value,
	})
	return err
}

// RemoveListValue removes a value from the named list. The sidecar rejects
// values that are not present with NotFound.
func (b *Beta) RemoveListValue(ctx context.Context, name, value string) error {
	done, err := b.client.acquire()
	if err != nil {
		return err
	}
	defer done()

	_, err = b.sdk.RemoveListValue(ctx, &beta.RemoveListValueRequest{
		Name:  name,
		Value: value,
	})
	return err
}

// ListCapacity returns the capacity of the named list.
func (b *Beta) ListCapacity(ctx context.Context, name string) (int64, error) {
	done, err := b.client.acquire()
	if err != nil {
		return 0, err
	}
	defer done()

	res, err := b.sdk.GetList(ctx, &beta.GetListRequest{Name: name})
	if err != nil {
		return 0, err
	}
	return res.Capacity, nil
}

// SetListCapacity changes the capacity of the named list through a partial
// update naming only the capacity field. Values already in the list are not
// evicted when the capacity shrinks below the current size. Negative
// capacities fail locally without a round trip.
func (b *Beta) SetListCapacity(ctx context.Context, name string, capacity int64) error {
	if capacity < 0 {
		return invalidArgumentf("the supplied capacity %d must not be negative", capacity)
	}

	done, err := b.client.acquire()
	if err != nil {
		return err
	}
	defer done()

	_, err = b.sdk.UpdateList(ctx, &beta.UpdateListRequest{
		List: &beta.List{
			Name:     name,
			Capacity: capacity,
		},
		UpdateMask: &fieldmaskpb.FieldMask{Paths: []string{"capacity"}},
	})
	return err
}
