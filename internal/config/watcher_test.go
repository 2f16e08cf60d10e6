// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antimetal/rtscope/internal/config"
)

func TestWatcher_InitialLoad(t *testing.T) {
	path := writeConfig(t, "node_name: initial\n")

	w, err := config.NewWatcher(path, testr.New(t))
	require.NoError(t, err)
	defer w.Close()

	assert.Equal(t, "initial", w.Current().NodeName)
}

func TestWatcher_InvalidInitialConfig(t *testing.T) {
	path := writeConfig(t, "monitor: [")

	_, err := config.NewWatcher(path, testr.New(t))
	assert.Error(t, err)
}

func TestWatcher_Reload(t *testing.T) {
	path := writeConfig(t, "node_name: before\n")

	w, err := config.NewWatcher(path, testr.New(t))
	require.NoError(t, err)
	defer w.Close()

	updates := w.Subscribe()
	require.NotNil(t, updates)

	require.NoError(t, os.WriteFile(path, []byte("node_name: after\n"), 0o644))

	select {
	case cfg := <-updates:
		assert.Equal(t, "after", cfg.NodeName)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}

	assert.Equal(t, "after", w.Current().NodeName)
}

func TestWatcher_KeepsPreviousOnBadEdit(t *testing.T) {
	path := writeConfig(t, "node_name: good\n")

	w, err := config.NewWatcher(path, testr.New(t))
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("monitor: ["), 0o644))

	// The previous config survives an invalid edit
	assert.Eventually(t, func() bool {
		return w.Current().NodeName == "good"
	}, time.Second, 10*time.Millisecond)
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rtscope.yaml")
	require.NoError(t, os.WriteFile(path, []byte("node_name: mine\n"), 0o644))

	w, err := config.NewWatcher(path, testr.New(t))
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("node_name: other\n"), 0o644))

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, "mine", w.Current().NodeName)
}

func TestWatcher_SubscribeAfterClose(t *testing.T) {
	path := writeConfig(t, "node_name: x\n")

	w, err := config.NewWatcher(path, testr.New(t))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Nil(t, w.Subscribe())
}
