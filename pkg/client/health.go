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
	"time"

	sdk "agones.dev/agones/pkg/sdk"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// StartHealthTask opens a long-lived health stream and emits one ping on it
// every HealthPingInterval, the first one right away. The task runs until
// the supplied context is cancelled or the client is closed. It can be
// started at most once per client; a second start fails with
// ErrHealthTaskStarted without touching the running task.
func (c *Client) StartHealthTask(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}

	c.healthMu.Lock()
	defer c.healthMu.Unlock()

	if c.healthStream != nil {
		return ErrHealthTaskStarted
	}

	taskCtx, cancel := context.WithCancel(ctx)
	stream, err := c.sdk.Health(taskCtx)
	if err != nil {
		cancel()
		return err
	}
	c.healthStream = stream
	c.healthCancel = cancel

	go c.runHealthTask(taskCtx)

	return nil
}

func (c *Client) runHealthTask(ctx context.Context) {
	ticker := time.NewTicker(HealthPingInterval)
	defer ticker.Stop()

	c.sendHealthPing()
	for {
		select {
		case <-ticker.C:
			c.sendHealthPing()
		case <-ctx.Done():
			return
		}
	}
}

// sendHealthPing emits a single ping on the health task's stream. Holding
// healthMu guarantees the stream has not been completed concurrently.
func (c *Client) sendHealthPing() {
	c.healthMu.Lock()
	defer c.healthMu.Unlock()

	if c.healthStream == nil {
		return
	}

	if err := c.healthStream.Send(&sdk.Empty{}); err != nil {
		c.logger.WithError(err).Warn("failed to send a health ping to the sidecar")
	}
}

// stopHealthTask completes the health stream during Close.
func (c *Client) stopHealthTask() {
	c.healthMu.Lock()
	defer c.healthMu.Unlock()

	if c.healthStream == nil {
		return
	}

	if _, err := c.healthStream.CloseAndRecv(); err != nil && status.Code(err) != codes.Canceled {
		c.logger.WithError(err).Debug("failed to complete the health stream cleanly")
	}
	c.healthCancel()
	c.healthStream = nil
}
