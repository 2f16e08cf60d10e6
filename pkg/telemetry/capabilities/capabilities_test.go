// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package capabilities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCapabilityString(t *testing.T) {
	assert.Equal(t, "CAP_SYS_NICE", CAP_SYS_NICE.String())
	assert.Equal(t, "CAP_SYS_ADMIN", CAP_SYS_ADMIN.String())
	assert.Equal(t, "UNKNOWN", Capability(99).String())
}

func TestSchedulingCapabilities(t *testing.T) {
	caps := SchedulingCapabilities()
	assert.Contains(t, caps, CAP_SYS_NICE)
	assert.Contains(t, caps, CAP_SYS_ADMIN)
}

func TestHasAnyCapability_EmptyWanted(t *testing.T) {
	ok, err := HasAnyCapability(nil)
	assert.NoError(t, err)
	assert.True(t, ok)
}
