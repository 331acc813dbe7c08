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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const readyFixture = `
object_meta:
  name: fixture
  labels:
    mode: development
status:
  state: Ready
`

const allocatedFixture = `
object_meta:
  name: fixture
status:
  state: Allocated
`

func writeFixture(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gameserver.yaml")
	writeFixture(t, path, readyFixture)

	s := NewServer(testLogger(), Config{})
	require.NoError(t, s.LoadFile(path))

	gs := s.GameServer()
	require.Equal(t, "fixture", gs.ObjectMeta.Name)
	require.Equal(t, "development", gs.ObjectMeta.Labels["mode"])
	require.Equal(t, "Ready", gs.Status.State)
}

func TestLoadFileMissing(t *testing.T) {
	s := NewServer(testLogger(), Config{})

	err := s.LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gameserver.yaml")
	writeFixture(t, path, "status: [not, a, mapping]")

	s := NewServer(testLogger(), Config{})
	require.Error(t, s.LoadFile(path))
}

func TestWatchFileReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gameserver.yaml")
	writeFixture(t, path, readyFixture)

	s := NewServer(testLogger(), Config{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watchDone := make(chan error, 1)
	go func() {
		watchDone <- s.WatchFile(ctx, path)
	}()

	require.Eventually(t, func() bool {
		return s.GameServer().Status.State == "Ready"
	}, 5*time.Second, 50*time.Millisecond, "expected the initial fixture to be loaded")

	writeFixture(t, path, allocatedFixture)

	require.Eventually(t, func() bool {
		return s.GameServer().Status.State == "Allocated"
	}, 5*time.Second, 50*time.Millisecond, "expected the rewritten fixture to be loaded")

	cancel()
	select {
	case err := <-watchDone:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("expected the watch to exit after cancellation")
	}
}
