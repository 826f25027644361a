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

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

const (
	DEVICE_CONSOLE  = "console"
	DEVICE_DISK     = "disk"
	DEVICE_KEYBOARD = "keyboard"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Device struct {
	ID        int    `json:"id"`
	Kind      string `json:"kind"`
	LatencyMS int    `json:"latency_ms"`
}

type Config struct {
	MemorySize      int      `json:"memory_size"`
	ClockFreq       int      `json:"clock_freq"`
	Quantum         int      `json:"quantum"`
	Seed            int64    `json:"seed"`
	LogLevel        string   `json:"log_level"`
	InterruptQueue  int      `json:"interrupt_queue"`
	AllocMultiplier int      `json:"alloc_multiplier"`
	Devices         []Device `json:"devices"`
}

func Default() *Config {
	return &Config{
		MemorySize:      3000,
		ClockFreq:       5,
		Quantum:         10,
		LogLevel:        "info",
		InterruptQueue:  64,
		AllocMultiplier: 2,
		Devices: []Device{
			{ID: 0, Kind: DEVICE_KEYBOARD, LatencyMS: 0},
			{ID: 1, Kind: DEVICE_CONSOLE, LatencyMS: 5},
			{ID: 2, Kind: DEVICE_DISK, LatencyMS: 20},
		},
	}
}

// Decode reads a JSON document over the defaults. Fields missing from the
// document keep their default value, unknown fields are rejected.
func Decode(r io.Reader) (*Config, error) {
	cfg := Default()

	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)

	if err != nil {
		return nil, err
	}

	defer file.Close()

	cfg, err := Decode(file)

	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

func (cfg *Config) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	if cfg.MemorySize <= 0 {
		return invalid("memory_size must be positive, have %d", cfg.MemorySize)
	}

	if cfg.ClockFreq < 0 {
		return invalid("clock_freq must not be negative, have %d", cfg.ClockFreq)
	}

	if cfg.Quantum <= 0 {
		return invalid("quantum must be positive, have %d", cfg.Quantum)
	}

	if cfg.InterruptQueue <= 0 {
		return invalid("interrupt_queue must be positive, have %d", cfg.InterruptQueue)
	}

	if cfg.AllocMultiplier <= 0 {
		return invalid("alloc_multiplier must be positive, have %d", cfg.AllocMultiplier)
	}

	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return invalid("log_level: %v", err)
	}

	ids := make(map[int]bool, len(cfg.Devices))

	for _, dev := range cfg.Devices {
		switch dev.Kind {
		case DEVICE_CONSOLE, DEVICE_DISK, DEVICE_KEYBOARD:
		default:
			return invalid("device %d: unknown kind '%s'", dev.ID, dev.Kind)
		}

		if ids[dev.ID] {
			return invalid("device %d: duplicate id", dev.ID)
		}

		if dev.LatencyMS < 0 {
			return invalid("device %d: negative latency", dev.ID)
		}

		ids[dev.ID] = true
	}

	return nil
}

// Level is the parsed log level, Validate has already checked it.
func (cfg *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(cfg.LogLevel)

	if err != nil {
		return logrus.InfoLevel
	}

	return level
}
