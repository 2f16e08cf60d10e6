// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package environment_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antimetal/rtscope/pkg/config/environment"
)

func TestGetNodeName(t *testing.T) {
	t.Setenv("NODE_NAME", "worker-7")
	name, err := environment.GetNodeName()
	require.NoError(t, err)
	assert.Equal(t, "worker-7", name)
}

func TestGetNodeName_FallsBackToHostname(t *testing.T) {
	t.Setenv("NODE_NAME", "")
	name, err := environment.GetNodeName()
	require.NoError(t, err)
	assert.NotEmpty(t, name)
}

func TestGetHostPaths(t *testing.T) {
	t.Setenv("HOST_PROC", "")
	t.Setenv("HOST_SYS", "")
	paths := environment.GetHostPaths()
	assert.Equal(t, "/proc", paths.Proc)
	assert.Equal(t, "/sys", paths.Sys)

	t.Setenv("HOST_PROC", "/host/proc")
	t.Setenv("HOST_SYS", "/host/sys")
	paths = environment.GetHostPaths()
	assert.Equal(t, "/host/proc", paths.Proc)
	assert.Equal(t, "/host/sys", paths.Sys)
}
