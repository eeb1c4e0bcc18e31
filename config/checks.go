// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
	"golang.org/x/xerrors"

	"github.com/go-lpc/itsinspect/validator"
)

// Checks is the on-disk shape of the --checks-toml file:
// the configurable custom checks, decoded with github.com/BurntSushi/toml.
type Checks struct {
	CDPsExpected struct {
		Enabled bool   `toml:"enabled"`
		Count   uint64 `toml:"count"`
	} `toml:"cdps_expected"`

	TriggersPHTExpected struct {
		Enabled bool   `toml:"enabled"`
		Count   uint64 `toml:"count"`
	} `toml:"triggers_pht_expected"`

	RDHVersionExpected struct {
		Enabled bool  `toml:"enabled"`
		Version uint8 `toml:"version"`
	} `toml:"rdh_version_expected"`

	ITSTriggerPeriod struct {
		Enabled bool   `toml:"enabled"`
		Period  uint32 `toml:"period"`
	} `toml:"its_trigger_period"`

	ChipOrdersOB [][]uint8 `toml:"chip_orders_ob"`
	ChipCountOB  uint8     `toml:"chip_count_ob"`
}

// LoadChecks decodes a Checks struct from path. Unrecognised keys are a
// fatal config error, not a silent no-op, so a misspelled key in the file
// cannot pass for a disabled check.
func LoadChecks(path string) (Checks, error) {
	var c Checks
	f, err := os.Open(path)
	if err != nil {
		return c, xerrors.Errorf("config: could not open checks file %q: %w", path, err)
	}
	defer f.Close()

	md, err := toml.NewDecoder(f).Decode(&c)
	if err != nil {
		return c, xerrors.Errorf("config: could not decode checks file %q: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return c, xerrors.Errorf("config: checks file %q has unrecognised key(s) %v", path, undecoded)
	}
	return c, nil
}

// ToValidatorConfig converts a Checks file into the validator package's
// runtime configuration, falling back to the built-in OB chip-order
// default when the file leaves it unset.
func (c Checks) ToValidatorConfig() validator.CustomChecksConfig {
	var out validator.CustomChecksConfig
	out.CDPsExpected.Enabled = c.CDPsExpected.Enabled
	out.CDPsExpected.Count = c.CDPsExpected.Count
	out.TriggersPHTExpected.Enabled = c.TriggersPHTExpected.Enabled
	out.TriggersPHTExpected.Count = c.TriggersPHTExpected.Count
	out.RDHVersionExpected.Enabled = c.RDHVersionExpected.Enabled
	out.RDHVersionExpected.Version = c.RDHVersionExpected.Version
	out.ITSTriggerPeriod.Enabled = c.ITSTriggerPeriod.Enabled
	out.ITSTriggerPeriod.Period = c.ITSTriggerPeriod.Period

	out.Lanes = validator.DefaultLaneChecksConfig()
	if len(c.ChipOrdersOB) > 0 {
		out.Lanes.ChipOrdersOB = c.ChipOrdersOB
	}
	if c.ChipCountOB != 0 {
		out.Lanes.ChipCountOB = c.ChipCountOB
	}
	return out
}

// GenerateTemplate writes a commented, all-disabled Checks file to w, for
// --generate-checks-toml (original_source/src/util/config/check.rs).
func GenerateTemplate(w io.Writer) error {
	_, err := fmt.Fprint(w, checksTemplate)
	return err
}

const checksTemplate = `# itsinspect checks configuration.
# Every check below is disabled by default; set enabled = true and fill in
# the expected value(s) to turn it on.

# chip_orders_ob lists the legal ascending chip-id orderings for an outer
# barrel lane; leave empty to use the built-in default ([0..6], [9..14]).
chip_orders_ob = []
chip_count_ob = 7

[cdps_expected]
enabled = false
count = 0

[triggers_pht_expected]
enabled = false
count = 0

[rdh_version_expected]
enabled = false
version = 7

[its_trigger_period]
enabled = false
period = 0
`

// GenerateCompletions writes a completion script for shell ("bash", "zsh",
// "fish") to w. No completion-generation library appears anywhere in the
// example pack, so these are small hand-written templates rather than an
// imported dependency.
func GenerateCompletions(w io.Writer, shell string) error {
	script, ok := completionScripts[shell]
	if !ok {
		return xerrors.Errorf("config: unknown shell %q, want bash, zsh or fish", shell)
	}
	_, err := fmt.Fprint(w, script)
	return err
}

var completionScripts = map[string]string{
	"bash": `_itsinspect() {
    local cur="${COMP_WORDS[COMP_CWORD]}"
    COMPREPLY=( $(compgen -W "check view" -- "$cur") )
}
complete -F _itsinspect itsinspect
`,
	"zsh": `#compdef itsinspect
_arguments '1: :(check view)'
`,
	"fish": `complete -c itsinspect -n "__fish_use_subcommand" -a "check view"
`,
}
