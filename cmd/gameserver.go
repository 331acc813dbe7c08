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

// A demo game-server harness that walks through the SDK lifecycle: it waits
// for the sidecar, starts health reporting, marks itself ready and logs
// every state change pushed back until it is terminated.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/scrayosnet/agones-go-sdk/pkg/client"
	"github.com/scrayosnet/agones-go-sdk/pkg/config"
)

type flags struct {
	LogLevel string `name:"log-level" help:"Log level, one of trace, debug, info, warn, error, fatal" default:"info"`
	Label    string `name:"label" help:"Optional label to publish on the game server resource, as key=value." default:""`
}

func getLogLevel(value string) (log.Level, error) {
	switch strings.ToLower(value) {
	case "trace":
		return log.TraceLevel, nil
	case "debug":
		return log.DebugLevel, nil
	case "info":
		return log.InfoLevel, nil
	case "warn":
		return log.WarnLevel, nil
	case "error":
		return log.ErrorLevel, nil
	case "fatal":
		return log.FatalLevel, nil
	default:
		return 0, fmt.Errorf("invalid log level '%s'", value)
	}
}

func main() {
	var flags flags
	kong.Parse(&flags)

	logLevel, err := getLogLevel(flags.LogLevel)
	if err != nil {
		log.Fatal(err)
	}

	logger := &log.Logger{}
	logger.SetOutput(os.Stdout)
	logger.SetLevel(logLevel)
	logger.SetFormatter(&log.JSONFormatter{})

	ctx, shutdown := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer shutdown()

	cfg, err := config.FromEnv()
	if err != nil {
		logger.WithError(err).Fatal("failed to resolve the sidecar endpoint")
	}

	sdk, err := client.New(logger, cfg)
	if err != nil {
		logger.WithError(err).Fatal("failed to create the sdk client")
	}
	defer func() {
		_ = sdk.Close()
	}()

	// the sidecar may still be starting, poll until it answers
	err = backoff.Retry(func() error {
		_, err := sdk.GameServer(ctx)
		return err
	}, backoff.WithContext(backoff.NewExponentialBackOff(), ctx))
	if err != nil {
		logger.WithError(err).Fatal("sidecar did not become reachable")
	}

	if err := sdk.StartHealthTask(ctx); err != nil {
		logger.WithError(err).Fatal("failed to start the health task")
	}

	if key, value, ok := strings.Cut(flags.Label, "="); ok {
		if err := sdk.SetLabel(ctx, key, value); err != nil {
			logger.WithError(err).Fatal("failed to publish the label")
		}
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		gsCh, errCh := sdk.WatchGameServer(groupCtx)
		for gs := range gsCh {
			logger.WithFields(log.Fields{
				"state": gs.GetStatus().GetState(),
			}).Info("game server state update")
		}
		return <-errCh
	})

	group.Go(func() error {
		return sdk.Ready(groupCtx)
	})

	<-ctx.Done()
	logger.Info("received shutdown signal, shutting down")
	if err := group.Wait(); err != nil {
		logger.WithError(err).Warn("lifecycle loop returned an error")
	}
}
