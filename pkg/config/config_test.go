// Copyright (C) 2021  Antonio Lassandro

// This program is free software: you can redistribute it and/or modify it
// under the terms of the GNU General Public License as published by the Free
// Software Foundation, either version 3 of the License, or (at your option)
// any later version.

// This program is distributed in the hope that it will be useful, but WITHOUT
// ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or
// FITNESS FOR A PARTICULAR PURPOSE.  See the GNU General Public License for
// more details.

// You should have received a copy of the GNU General Public License along
// with this program.  If not, see <http://www.gnu.org/licenses/>.

package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/lassandro/gosos/pkg/config"
)

func TestDefault(t *testing.T) {
	cfg := config.Default()

	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}

	if cfg.MemorySize != 3000 || cfg.Quantum != 10 || cfg.Level() != logrus.InfoLevel {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}

func TestDecode(t *testing.T) {
	cfg, err := config.Decode(strings.NewReader(`{
		"memory_size": 500,
		"log_level": "debug",
		"devices": [{"id": 7, "kind": "disk", "latency_ms": 1}]
	}`))

	if err != nil {
		t.Fatal(err)
	}

	if cfg.MemorySize != 500 {
		t.Errorf("memory_size want: 500, have: %d", cfg.MemorySize)
	}

	if cfg.ClockFreq != config.Default().ClockFreq {
		t.Errorf("clock_freq want: default, have: %d", cfg.ClockFreq)
	}

	if cfg.Level() != logrus.DebugLevel {
		t.Errorf("level want: debug, have: %v", cfg.Level())
	}

	if len(cfg.Devices) != 1 || cfg.Devices[0] != (config.Device{ID: 7, Kind: "disk", LatencyMS: 1}) {
		t.Errorf("devices want: [disk 7], have: %+v", cfg.Devices)
	}
}

func TestDecodeInvalid(t *testing.T) {
	tests := []struct {
		Name  string
		Input string
	}{
		{"Syntax", `{"memory_size": }`},
		{"Unknown Field", `{"memory": 10}`},
		{"Memory", `{"memory_size": 0}`},
		{"Clock", `{"clock_freq": -1}`},
		{"Quantum", `{"quantum": 0}`},
		{"Queue", `{"interrupt_queue": 0}`},
		{"Multiplier", `{"alloc_multiplier": -2}`},
		{"Level", `{"log_level": "loud"}`},
		{"Kind", `{"devices": [{"id": 1, "kind": "printer"}]}`},
		{"Duplicate", `{"devices": [{"id": 1, "kind": "disk"}, {"id": 1, "kind": "console"}]}`},
		{"Latency", `{"devices": [{"id": 1, "kind": "disk", "latency_ms": -5}]}`},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			_, err := config.Decode(strings.NewReader(test.Input))

			if !errors.Is(err, config.ErrInvalidConfig) {
				t.Errorf("want: %v, have: %v", config.ErrInvalidConfig, err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sos.json")

	if err := os.WriteFile(path, []byte(`{"seed": 42}`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)

	if err != nil {
		t.Fatal(err)
	}

	if cfg.Seed != 42 {
		t.Errorf("seed want: 42, have: %d", cfg.Seed)
	}

	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.json")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("want: %v, have: %v", os.ErrNotExist, err)
	}
}
