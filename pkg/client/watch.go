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

	sdk "agones.dev/agones/pkg/sdk"
	log "github.com/sirupsen/logrus"
)

// WatchGameServer subscribes to changes of the resource backing this
// instance. The first element on the returned channel is the state at
// subscription time, every later element is the complete snapshot after a
// change. The subscription runs until the supplied context is cancelled or
// the client is closed; a terminal transport failure is delivered on the
// error channel instead. Both channels are closed when the subscription
// ends. Subscriptions are independent of each other: cancelling one does
// not affect other subscriptions or the client.
func (c *Client) WatchGameServer(ctx context.Context) (<-chan *sdk.GameServer, <-chan error) {
	gsCh := make(chan *sdk.GameServer)
	errCh := make(chan error, 1)

	fail := func(err error) (<-chan *sdk.GameServer, <-chan error) {
		errCh <- err
		close(gsCh)
		close(errCh)
		return gsCh, errCh
	}

	if c.closed.Load() {
		return fail(ErrClosed)
	}

	// Bind the subscription to both the caller's context and the client
	// lifetime, so Close tears down outstanding subscriptions.
	watchCtx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-c.ctx.Done():
			cancel()
		case <-watchCtx.Done():
		}
	}()

	stream, err := c.sdk.WatchGameServer(watchCtx, &sdk.Empty{})
	if err != nil {
		cancel()
		return fail(err)
	}

	logger := c.logger.WithFields(log.Fields{
		"component": "watch",
	})

	go func() {
		defer cancel()
		defer close(gsCh)
		defer close(errCh)

		for {
			gs, err := stream.Recv()
			if err != nil {
				if watchCtx.Err() != nil {
					logger.Debug("exiting watch loop: subscription cancelled")
					return
				}
				logger.WithError(err).Warn("watch stream failed")
				errCh <- err
				return
			}

			select {
			case gsCh <- gs:
			case <-watchCtx.Done():
				logger.Debug("exiting watch loop: subscription cancelled")
				return
			}
		}
	}()

	return gsCh, errCh
}
