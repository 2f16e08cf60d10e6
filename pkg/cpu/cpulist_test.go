// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package cpu_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antimetal/rtscope/pkg/cpu"
)

func TestParseCPUList(t *testing.T) {
	tests := []struct {
		input    string
		expected []int32
	}{
		{"", []int32{}},
		{"0", []int32{0}},
		{"0-3", []int32{0, 1, 2, 3}},
		{"0,2-4,7", []int32{0, 2, 3, 4, 7}},
		{"5-5", []int32{5}},
		{" 0 , 2-3 ", []int32{0, 2, 3}},
		{"0-127\n", func() []int32 {
			cpus := make([]int32, 128)
			for i := range cpus {
				cpus[i] = int32(i)
			}
			return cpus
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cpus, err := cpu.ParseCPUList(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, cpus)
		})
	}
}

func TestParseCPUList_Errors(t *testing.T) {
	inputs := []string{"a", "0-", "-3", "3-1", "0--3", "1,x"}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			_, err := cpu.ParseCPUList(input)
			assert.Error(t, err)
		})
	}
}
