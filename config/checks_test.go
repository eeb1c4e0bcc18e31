// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-lpc/itsinspect/config"
)

func writeChecksFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "checks.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %+v", err)
	}
	return path
}

func TestLoadChecksValid(t *testing.T) {
	path := writeChecksFile(t, `
[cdps_expected]
enabled = true
count = 42
`)
	c, err := config.LoadChecks(path)
	if err != nil {
		t.Fatalf("LoadChecks: %+v", err)
	}
	if !c.CDPsExpected.Enabled || c.CDPsExpected.Count != 42 {
		t.Fatalf("c.CDPsExpected = %+v, want {Enabled:true Count:42}", c.CDPsExpected)
	}
}

func TestLoadChecksRejectsUnrecognisedKey(t *testing.T) {
	path := writeChecksFile(t, `
[cdps_expected]
enbaled = true
count = 42
`)
	if _, err := config.LoadChecks(path); err == nil {
		t.Fatalf("LoadChecks with misspelled key: got nil error, want one")
	}
}
