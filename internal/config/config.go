// Package config loads the optional tunables file. Every knob has a default
// that matches the documented conversion behavior; the file only exists for
// operators who need to deviate.
package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
	units "github.com/docker/go-units"
	"github.com/pkg/errors"
)

// Tunables are the resolved conversion parameters.
type Tunables struct {
	// SafetyFactor scales the live data size to pick the NTFS shrink target.
	SafetyFactor float64

	// EmptyThresholdKB overrides the source-is-empty threshold. Zero keeps
	// the computed default of max(1MiB, disk/1000).
	EmptyThresholdKB uint64

	// ContinueThresholdKB overrides the keep-iterating threshold. Zero keeps
	// the computed default of max(10MiB, disk/100).
	ContinueThresholdKB uint64

	// SettleCap bounds the I/O settling wait of the durability barrier.
	SettleCap time.Duration

	// HashThresholdBytes is the file size above which verification hashes
	// content instead of trusting sizes.
	HashThresholdBytes int64
}

// Default returns the tunables used when no config file is given.
func Default() Tunables {
	return Tunables{
		SafetyFactor:       1.05,
		SettleCap:          30 * time.Second,
		HashThresholdBytes: 100 * 1024,
	}
}

// fileTunables is the TOML shape. Sizes are human strings ("10MiB") so the
// file reads the way the log output does.
type fileTunables struct {
	SafetyFactor      float64 `toml:"safety_factor"`
	EmptyThreshold    string  `toml:"empty_threshold"`
	ContinueThreshold string  `toml:"continue_threshold"`
	SettleCapSeconds  int     `toml:"settle_cap_seconds"`
	HashThreshold     string  `toml:"hash_threshold"`
}

// Load reads the tunables file at path and merges it over the defaults.
func Load(path string) (Tunables, error) {
	t := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return t, errors.Wrap(err, "reading config file")
	}

	var ft fileTunables
	if err := toml.Unmarshal(data, &ft); err != nil {
		return t, errors.Wrap(err, "decoding toml")
	}

	if ft.SafetyFactor != 0 {
		if ft.SafetyFactor < 1.0 {
			return t, errors.Errorf("safety_factor %v would shrink below live data", ft.SafetyFactor)
		}
		t.SafetyFactor = ft.SafetyFactor
	}
	if ft.EmptyThreshold != "" {
		kb, err := parseSizeKB(ft.EmptyThreshold)
		if err != nil {
			return t, errors.Wrap(err, "parsing empty_threshold")
		}
		t.EmptyThresholdKB = kb
	}
	if ft.ContinueThreshold != "" {
		kb, err := parseSizeKB(ft.ContinueThreshold)
		if err != nil {
			return t, errors.Wrap(err, "parsing continue_threshold")
		}
		t.ContinueThresholdKB = kb
	}
	if ft.SettleCapSeconds != 0 {
		if ft.SettleCapSeconds < 0 {
			return t, errors.New("settle_cap_seconds must be positive")
		}
		t.SettleCap = time.Duration(ft.SettleCapSeconds) * time.Second
	}
	if ft.HashThreshold != "" {
		n, err := units.RAMInBytes(ft.HashThreshold)
		if err != nil {
			return t, errors.Wrap(err, "parsing hash_threshold")
		}
		t.HashThresholdBytes = n
	}

	return t, nil
}

func parseSizeKB(s string) (uint64, error) {
	n, err := units.RAMInBytes(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errors.Errorf("negative size %q", s)
	}
	return uint64(n) / 1024, nil
}
