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

// Package config resolves the address of the local Agones sidecar. The
// sidecar always runs next to the game-server process, so the host is fixed
// and only the port can differ between environments. Resolution happens once
// at client construction and never again afterwards.
package config

import (
	"fmt"
	"os"
	"strconv"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	// DefaultHost is the host the Agones sidecar is reachable under.
	DefaultHost = "127.0.0.1"
	// DefaultPort is the port the sidecar exposes its gRPC interface under
	// unless it was moved through the environment.
	DefaultPort = 9357
	// PortEnvKey is the environment variable the sidecar publishes its
	// gRPC port under inside the game-server container.
	PortEnvKey = "AGONES_SDK_GRPC_PORT"
)

// Config holds the endpoint of the local Agones sidecar.
type Config struct {
	// Host is the host of the sidecar's gRPC interface.
	Host string
	// Port is the port of the sidecar's gRPC interface.
	Port int
}

// Default returns the static default sidecar endpoint.
func Default() Config {
	return Config{
		Host: DefaultHost,
		Port: DefaultPort,
	}
}

// FromEnv resolves the sidecar endpoint, overriding the default port with
// the value of the environment variable if it is set. A set but non-numeric
// value fails resolution instead of silently falling back to the default.
func FromEnv() (Config, error) {
	cfg := Default()

	value, ok := os.LookupEnv(PortEnvKey)
	if !ok {
		return cfg, nil
	}

	port, err := strconv.Atoi(value)
	if err != nil {
		return Config{}, status.Errorf(
			codes.InvalidArgument,
			"environment variable %s contains no valid port: %q", PortEnvKey, value,
		)
	}
	cfg.Port = port

	return cfg, nil
}

// Address returns the dial target for the configured endpoint.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
