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

package localsdk

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	sdk "agones.dev/agones/pkg/sdk"
	"github.com/cenkalti/backoff/v4"
	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"sigs.k8s.io/yaml"
)

// LoadFile replaces the game-server state with the contents of a YAML (or
// JSON) fixture file and notifies all watchers.
func (s *Server) LoadFile(path string) error {
	fileBytes, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read game server fixture file: %w", err)
	}

	jsonBytes, err := yaml.YAMLToJSON(fileBytes)
	if err != nil {
		return fmt.Errorf("failed to convert fixture file from YAML to JSON: %w", err)
	}

	gs := &sdk.GameServer{}
	if err := json.Unmarshal(jsonBytes, gs); err != nil {
		return fmt.Errorf("failed to unmarshal game server fixture file: %w", err)
	}

	s.SetGameServer(gs)
	return nil
}

// WatchFile reloads the fixture file whenever it changes on disk, until the
// context is cancelled. Registration of the watch is retried with
// exponential backoff, so editors that replace the file on save only cause
// a short gap instead of a terminal failure.
func (s *Server) WatchFile(ctx context.Context, path string) error {
	logger := s.logger.WithFields(log.Fields{
		"component":    "filewatcher",
		"fixture_file": path,
	})

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			logger.WithError(err).Warn("failed to close watcher successfully")
		}
	}()

	reload := func() {
		if err := s.LoadFile(path); err != nil {
			logger.WithError(err).Warn("failed to reload game server fixture file")
		}
	}

	backOff := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	return backoff.Retry(func() error {
		if err := watcher.Add(path); err != nil {
			logger.WithError(err).Warn("failed to watch fixture file")
			return err
		}
		defer func() {
			if err := watcher.Remove(path); err != nil {
				logger.WithError(err).Debug("failed to remove watch")
			}
		}()

		reload()

		for {
			select {
			case <-ctx.Done():
				logger.Debug("exiting fixture watch: context cancelled")
				return nil
			case event, ok := <-watcher.Events:
				if !ok {
					return fmt.Errorf("fixture watch event channel closed")
				}

				if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
					// editors replace files on save, retry the watch on
					// the new inode
					return fmt.Errorf("fixture file was moved: %s", event.Op)
				}
				if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
					continue
				}

				// the write event can fire before the contents hit the
				// disk, give the writer a moment to finish
				time.Sleep(100 * time.Millisecond)
				reload()
			case err, ok := <-watcher.Errors:
				if !ok {
					return fmt.Errorf("fixture watch error channel closed")
				}
				logger.WithError(err).Warn("fixture watch reported an error")
			}
		}
	}, backOff)
}
