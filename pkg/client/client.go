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

// Package client implements the game-server side of the Agones SDK protocol.
// A Client reports the lifecycle state of the calling process to the local
// sidecar and observes state changes the sidecar pushes back. All durable
// state and all protocol semantics are owned by the sidecar; the client only
// requests transitions and never assigns state directly.
//
// The stable operations live on Client itself, the experimental
// player-tracking operations on the Alpha sub-client and the counter/list
// operations on the Beta sub-client. All three share one gRPC connection
// which only Close releases.
package client

import (
	"context"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	sdk "agones.dev/agones/pkg/sdk"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/scrayosnet/agones-go-sdk/pkg/config"
)

const (
	// metadataKeyPrefix is prepended to every label and annotation key
	// before transmission so SDK-owned metadata cannot collide with
	// unrelated keys on the resource.
	metadataKeyPrefix = "agones.dev/sdk-"

	// shutdownGracePeriod bounds how long Close waits for in-flight calls
	// before the connection is terminated regardless.
	shutdownGracePeriod = 5 * time.Second

	// HealthPingInterval is the interval the health task reports on.
	HealthPingInterval = 5 * time.Second
)

// metaKeyPattern is the pattern label and annotation keys have to satisfy to
// be accepted by Kubernetes: alphanumeric boundaries, interior characters
// may additionally be '_', '.' or '-'.
var metaKeyPattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9_.-])*[a-zA-Z0-9]$`)

// Client talks to the Agones sidecar of this game-server instance.
type Client struct {
	logger *log.Logger
	conn   *grpc.ClientConn
	sdk    sdk.SDKClient
	alpha  *Alpha
	beta   *Beta

	// ctx spans the lifetime of the client and is cancelled by Close to
	// tear down outstanding watch subscriptions.
	ctx    context.Context
	cancel context.CancelFunc

	inflight  sync.WaitGroup
	closed    atomic.Bool
	closeOnce sync.Once

	// healthMu serializes starting the health task, emitting scheduled
	// pings and terminating the ping stream during Close, so a ping is
	// never written to an already-completed stream.
	healthMu     sync.Mutex
	healthStream sdk.SDK_HealthClient
	healthCancel context.CancelFunc
}

// New connects a new Client to the sidecar endpoint in cfg. Construction
// performs no RPC; the connection is established lazily on first use. The
// sidecar listens on the loopback interface without TLS, so the connection
// is always plaintext.
func New(logger *log.Logger, cfg config.Config, dialOpts ...grpc.DialOption) (*Client, error) {
	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(unaryMetricsInterceptor),
		grpc.WithStreamInterceptor(streamMetricsInterceptor),
	}, dialOpts...)

	conn, err := grpc.NewClient(cfg.Address(), opts...)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		logger: logger,
		conn:   conn,
		sdk:    sdk.NewSDKClient(conn),
		ctx:    ctx,
		cancel: cancel,
	}
	c.alpha = newAlpha(c, conn)
	c.beta = newBeta(c, conn)

	return c, nil
}

// Alpha returns the experimental player-tracking sub-client. The same
// instance is returned on every call.
func (c *Client) Alpha() *Alpha {
	return c.alpha
}

// Beta returns the counter/list sub-client. The same instance is returned
// on every call.
func (c *Client) Beta() *Beta {
	return c.beta
}

// acquire registers an in-flight call so Close can drain it. It fails once
// the client has been closed.
func (c *Client) acquire() (func(), error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	c.inflight.Add(1)
	return c.inflight.Done, nil
}

// Ready marks this instance as ready to accept player connections.
func (c *Client) Ready(ctx context.Context) error {
	done, err := c.acquire()
	if err != nil {
		return err
	}
	defer done()

	_, err = c.sdk.Ready(ctx, &sdk.Empty{})
	return err
}

// Allocate marks this instance as claimed outside of a regular allocation.
func (c *Client) Allocate(ctx context.Context) error {
	done, err := c.acquire()
	if err != nil {
		return err
	}
	defer done()

	_, err = c.sdk.Allocate(ctx, &sdk.Empty{})
	return err
}

// Shutdown requests the deletion of this instance. The process is expected
// to keep running until it is terminated through its pod.
func (c *Client) Shutdown(ctx context.Context) error {
	done, err := c.acquire()
	if err != nil {
		return err
	}
	defer done()

	_, err = c.sdk.Shutdown(ctx, &sdk.Empty{})
	return err
}

// Reserve moves this instance into the Reserved state for the given number
// of seconds, preventing deletion and allocation for that period. Zero
// reserves for an unlimited duration. Negative durations fail locally
// without a round trip.
func (c *Client) Reserve(ctx context.Context, seconds int64) error {
	if seconds < 0 {
		return invalidArgumentf("the supplied seconds %d must not be negative", seconds)
	}

	done, err := c.acquire()
	if err != nil {
		return err
	}
	defer done()

	_, err = c.sdk.Reserve(ctx, &sdk.Duration{Seconds: seconds})
	return err
}

// Health opens a health stream, emits a single ping and closes the stream
// again. Use HealthPings or the health task for continuous reporting.
func (c *Client) Health(ctx context.Context) error {
	done, err := c.acquire()
	if err != nil {
		return err
	}
	defer done()

	stream, err := c.sdk.Health(ctx)
	if err != nil {
		return err
	}
	if err := stream.Send(&sdk.Empty{}); err != nil {
		return err
	}

	_, err = stream.CloseAndRecv()
	return err
}

// HealthPings opens a health stream and emits one ping per element received
// on pings, in emission order. The stream is closed when pings is closed or
// the context is cancelled.
func (c *Client) HealthPings(ctx context.Context, pings <-chan struct{}) error {
	done, err := c.acquire()
	if err != nil {
		return err
	}
	defer done()

	stream, err := c.sdk.Health(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-pings:
			if !ok {
				_, err := stream.CloseAndRecv()
				return err
			}
			if err := stream.Send(&sdk.Empty{}); err != nil {
				return err
			}
		}
	}
}

// SetLabel publishes a label on the resource of this instance. The key is
// validated locally and transmitted with the SDK metadata prefix.
func (c *Client) SetLabel(ctx context.Context, key, value string) error {
	return c.setMeta(ctx, key, value, c.sdk.SetLabel)
}

// SetAnnotation publishes an annotation on the resource of this instance.
// The key is validated locally and transmitted with the SDK metadata prefix.
func (c *Client) SetAnnotation(ctx context.Context, key, value string) error {
	return c.setMeta(ctx, key, value, c.sdk.SetAnnotation)
}

func (c *Client) setMeta(
	ctx context.Context,
	key, value string,
	call func(context.Context, *sdk.KeyValue, ...grpc.CallOption) (*sdk.Empty, error),
) error {
	if !metaKeyPattern.MatchString(key) {
		return invalidArgumentf("the supplied key %q does not match the pattern for metadata keys", key)
	}

	done, err := c.acquire()
	if err != nil {
		return err
	}
	defer done()

	_, err = call(ctx, &sdk.KeyValue{
		Key:   metadataKeyPrefix + key,
		Value: value,
	})
	return err
}

// GameServer fetches a fresh snapshot of the resource backing this
// instance. The snapshot is never cached or mutated locally.
func (c *Client) GameServer(ctx context.Context) (*sdk.GameServer, error) {
	done, err := c.acquire()
	if err != nil {
		return nil, err
	}
	defer done()

	return c.sdk.GetGameServer(ctx, &sdk.Empty{})
}

// Close releases the connection to the sidecar. The health task is stopped,
// in-flight calls are drained bounded by the shutdown grace period and
// outstanding watch subscriptions are cancelled. Close is idempotent, never
// fails and every operation issued afterwards fails with ErrClosed.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.stopHealthTask()

		drained := make(chan struct{})
		go func() {
			c.inflight.Wait()
			close(drained)
		}()
		select {
		case <-drained:
		case <-time.After(shutdownGracePeriod):
			c.logger.Warn("graceful sdk shutdown timed out, forcing the connection closed")
		}

		c.cancel()
		if err := c.conn.Close(); err != nil {
			c.logger.WithError(err).Debug("failed to close the sdk connection cleanly")
		}
	})
	return nil
}
