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

package main

import (
	"bufio"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/mattn/go-tty"
	"github.com/pkg/profile"
	"github.com/sirupsen/logrus"

	"github.com/lassandro/gosos/pkg/assembler"
	"github.com/lassandro/gosos/pkg/config"
	"github.com/lassandro/gosos/pkg/device"
	"github.com/lassandro/gosos/pkg/kernel"
	"github.com/lassandro/gosos/pkg/machine"
	"github.com/lassandro/gosos/pkg/program"
)

type sosCmd struct {
	Config   string   `name:"config" short:"c" type:"existingfile" help:"JSON machine configuration."`
	Debug    bool     `help:"Run the machine in the debug REPL."`
	Profile  string   `enum:"none,cpu,mem" default:"none" help:"Write a cpu or mem profile to the working directory."`
	LogLevel string   `name:"log-level" env:"SOS_LOG_LEVEL" help:"Override the configured log level."`
	Seed     int64    `help:"Override the configured EXEC seed, 0 seeds from the clock."`
	Programs []string `arg:"" type:"existingfile" help:"Program images (.s or .bin). The first one boots."`
}

// image is a loaded program plus whatever the debugger can learn about it.
type image struct {
	prog     *program.Program
	symtable *assembler.SymTable
	source   string
}

// runeReader adapts a bufio.Reader to the keyboard's rune source when stdin
// is not a terminal.
type runeReader struct {
	*bufio.Reader
}

func (rr runeReader) ReadRune() (rune, error) {
	r, _, err := rr.Reader.ReadRune()
	return r, err
}

func programName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func loadImage(path string) (*image, error) {
	file, err := os.Open(path)

	if err != nil {
		return nil, err
	}

	defer file.Close()

	name := programName(path)

	if filepath.Ext(path) == ".bin" {
		prog, err := program.Decode(name, file)

		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}

		result := &image{prog: prog}
		symfile := strings.TrimSuffix(path, filepath.Ext(path)) + ".sosdb"

		if sym, err := os.Open(symfile); err == nil {
			var symtable assembler.SymTable

			if err := gob.NewDecoder(sym).Decode(&symtable); err == nil {
				result.symtable = &symtable
				result.source = symtable.Source
			}

			sym.Close()
		}

		return result, nil
	}

	symtable := &assembler.SymTable{}
	prog, errs := assembler.Assemble(name, file, symtable)

	if len(errs) > 0 {
		return nil, fmt.Errorf("%s: %w", path, errors.Join(errs...))
	}

	source, err := filepath.Abs(path)

	if err != nil {
		source = path
	}

	symtable.Source = source
	return &image{prog: prog, symtable: symtable, source: source}, nil
}

func newLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	logger.SetLevel(cfg.Level())
	return logger
}

// attachDevices builds the configured devices. The returned closer releases
// the terminal if the keyboard opened one. While debugging the REPL owns the
// terminal, so no keyboard is attached.
func attachDevices(cfg *config.Config, k *kernel.Kernel, ic *machine.InterruptController, log logrus.FieldLogger, debug bool) (func(), error) {
	closer := func() {}

	for _, entry := range cfg.Devices {
		latency := time.Duration(entry.LatencyMS) * time.Millisecond

		var dev device.Device

		switch entry.Kind {
		case config.DEVICE_CONSOLE:
			dev = device.NewConsole(os.Stdout, ic, latency)

		case config.DEVICE_DISK:
			dev = device.NewDisk(ic, latency)

		case config.DEVICE_KEYBOARD:
			if debug {
				log.WithField("device", entry.ID).Warn("keyboard not attached while debugging")
				continue
			}

			if isTerminal(int(os.Stdin.Fd())) {
				term, err := tty.Open()

				if err != nil {
					return closer, err
				}

				closer = func() { term.Close() }
				dev = device.NewKeyboard(term, ic, latency)
			} else {
				dev = device.NewKeyboard(runeReader{bufio.NewReader(os.Stdin)}, ic, latency)
			}
		}

		if err := k.RegisterDevice(dev, entry.ID); err != nil {
			return closer, err
		}

		log.WithFields(logrus.Fields{
			"device":  entry.ID,
			"kind":    entry.Kind,
			"latency": latency,
		}).Debug("device attached")
	}

	return closer, nil
}

func (cmd *sosCmd) loadConfig() (*config.Config, error) {
	cfg := config.Default()

	if cmd.Config != "" {
		var err error

		if cfg, err = config.Load(cmd.Config); err != nil {
			return nil, err
		}
	}

	if cmd.LogLevel != "" {
		cfg.LogLevel = cmd.LogLevel
	}

	if cmd.Seed != 0 {
		cfg.Seed = cmd.Seed
	}

	return cfg, cfg.Validate()
}

func (cmd *sosCmd) Run() error {
	cfg, err := cmd.loadConfig()

	if err != nil {
		return err
	}

	log := newLogger(cfg)

	switch cmd.Profile {
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.Quiet).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.Quiet).Stop()
	}

	images := make([]*image, 0, len(cmd.Programs))

	for _, path := range cmd.Programs {
		img, err := loadImage(path)

		if err != nil {
			return err
		}

		images = append(images, img)
	}

	mc := machine.New(machine.NewRAM(cfg.MemorySize))
	mc.ClockFreq = cfg.ClockFreq
	mc.Interrupts = machine.NewInterruptController(cfg.InterruptQueue)

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	k := kernel.New(mc, kernel.Options{
		Quantum:         cfg.Quantum,
		AllocMultiplier: cfg.AllocMultiplier,
		Console:         os.Stdout,
		Logger:          log,
		Rand:            rand.New(rand.NewSource(seed)),
	})

	closeDevices, err := attachDevices(cfg, k, mc.Interrupts, log, cmd.Debug)
	defer closeDevices()

	if err != nil {
		return err
	}

	for _, img := range images {
		k.AddProgram(img.prog)
	}

	if err := k.Boot(); err != nil {
		return err
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	if cmd.Debug {
		s := newSession(k, mc, images, os.Stdin, os.Stdout)
		defer s.close()

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt)
		defer signal.Stop(sigs)

		go func() {
			for range sigs {
				s.dbg.Break = true
			}
		}()

		s.repl()
	} else {
		ctx, stop = signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
	}

	err = mc.Run(ctx)

	stats := k.Stats()
	log.WithFields(logrus.Fields{
		"exited":         stats.Exited,
		"avg_max_starve": stats.AvgMaxStarve,
		"avg_avg_starve": stats.AvgAvgStarve,
		"ticks":          mc.Ticks(),
	}).Info("simulation finished")

	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

func main() {
	var cmd sosCmd

	ctx := kong.Parse(&cmd,
		kong.Name("sos"),
		kong.Description("Runs programs on a simulated processor under a priority scheduling kernel."),
		kong.UsageOnError(),
		kong.Configuration(kong.JSON, "~/.sos.json"),
	)

	ctx.FatalIfErrorf(ctx.Run())
}
