// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

//go:build !linux

package capabilities

// HasAnyCapability reports false for any non-empty wanted set on
// non-Linux platforms; there is no capability model to query and
// elevation is never attempted.
func HasAnyCapability(wanted []Capability) (bool, error) {
	return len(wanted) == 0, nil
}
