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

// A local stand-in for the Agones sidecar, for developing game servers
// without a cluster. State lives in memory and can be seeded from a YAML
// fixture file that is hot-reloaded on change.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"github.com/scrayosnet/agones-go-sdk/pkg/config"
	"github.com/scrayosnet/agones-go-sdk/pkg/localsdk"
)

type flags struct {
	Port           int    `name:"port" help:"Port to serve the SDK services on." default:"9357"`
	File           string `name:"file" help:"Optional game server fixture file (YAML or JSON), hot-reloaded on change." default:""`
	PlayerCapacity int64  `name:"player-capacity" help:"Initial capacity of the player registry." default:"64"`
	LogLevel       string `name:"log-level" help:"Log level, one of trace, debug, info, warn, error, fatal" default:"info"`
}

func main() {
	var flags flags
	kong.Parse(&flags)

	logLevel, err := log.ParseLevel(flags.LogLevel)
	if err != nil {
		log.Fatal(err)
	}

	logger := &log.Logger{}
	logger.SetOutput(os.Stdout)
	logger.SetLevel(logLevel)
	logger.SetFormatter(&log.JSONFormatter{})

	ctx, shutdown := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer shutdown()

	server := localsdk.NewServer(logger, localsdk.Config{
		PlayerCapacity: flags.PlayerCapacity,
	})

	if flags.File != "" {
		if err := server.LoadFile(flags.File); err != nil {
			logger.WithError(err).Fatal("failed to load the game server fixture file")
		}
		go func() {
			if err := server.WatchFile(ctx, flags.File); err != nil {
				logger.WithError(err).Warn("fixture file watch ended with an error")
			}
		}()
	}

	grpcServer := grpc.NewServer()
	server.Register(grpcServer)

	listen, err := net.Listen("tcp", fmt.Sprintf("%s:%d", config.DefaultHost, flags.Port))
	if err != nil {
		logger.WithError(err).Fatal("failed to listen for sdk connections")
	}
	logger.Infof("local sdk server listening on %s", listen.Addr())

	go func() {
		<-ctx.Done()
		logger.Info("received shutdown signal, shutting down")
		grpcServer.GracefulStop()
	}()

	if err := grpcServer.Serve(listen); err != nil {
		logger.WithError(err).Fatal("sdk server returned an error")
	}
}
