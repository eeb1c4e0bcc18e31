// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stats

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/xerrors"
)

// mysqlDSNPrefix marks an --input-stats-file argument as a MySQL DSN
// (stats.Archive) rather than a path on disk.
const mysqlDSNPrefix = "mysql://"

// IsMySQLDSN reports whether ref names a MySQL DSN rather than a file path.
func IsMySQLDSN(ref string) bool {
	return strings.HasPrefix(ref, mysqlDSNPrefix)
}

// DumpJSON writes c to w as JSON.
func DumpJSON(w io.Writer, c Counters) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c); err != nil {
		return xerrors.Errorf("stats: could not encode JSON: %w", err)
	}
	return nil
}

// DumpTOML writes c to w as TOML.
func DumpTOML(w io.Writer, c Counters) error {
	enc := toml.NewEncoder(w)
	if err := enc.Encode(c); err != nil {
		return xerrors.Errorf("stats: could not encode TOML: %w", err)
	}
	return nil
}

// LoadReference reads a reference Counters set from a JSON or TOML file,
// selecting the decoder by extension (".toml" vs everything else, which is
// treated as JSON, mirroring --input-stats-file's format sniffing).
func LoadReference(path string) (Counters, error) {
	c := newCounters()
	f, err := os.Open(path)
	if err != nil {
		return c, xerrors.Errorf("stats: could not open reference file %q: %w", path, err)
	}
	defer f.Close()

	if isTOML(path) {
		if _, err := toml.NewDecoder(f).Decode(&c); err != nil {
			return c, xerrors.Errorf("stats: could not decode TOML reference %q: %w", path, err)
		}
		return c, nil
	}
	if err := json.NewDecoder(f).Decode(&c); err != nil {
		return c, xerrors.Errorf("stats: could not decode JSON reference %q: %w", path, err)
	}
	return c, nil
}

func isTOML(path string) bool {
	n := len(path)
	return n >= 5 && path[n-5:] == ".toml"
}

// LoadReferenceMySQL fetches the reference Counters for runNumber from the
// run_stats table of the database named by the mysql:// DSN ref.
func LoadReferenceMySQL(ctx context.Context, ref string, runNumber uint64) (Counters, error) {
	dsn := strings.TrimPrefix(ref, mysqlDSNPrefix)
	a, err := OpenArchive(dsn)
	if err != nil {
		return newCounters(), err
	}
	defer a.Close()
	return a.Fetch(ctx, runNumber)
}

// StoreMySQL persists c under runNumber to the run_stats table of the
// database named by the mysql:// DSN ref, the --output-stats counterpart
// of LoadReferenceMySQL. The schema is created on first use.
func StoreMySQL(ctx context.Context, ref string, runNumber uint64, c Counters) error {
	dsn := strings.TrimPrefix(ref, mysqlDSNPrefix)
	a, err := OpenArchive(dsn)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.CreateSchema(ctx); err != nil {
		return err
	}
	return a.Store(ctx, runNumber, c)
}
