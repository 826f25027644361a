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
	"bytes"
	"encoding/gob"
	"os"
	"path/filepath"
	"strings"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/lassandro/gosos/pkg/config"
	"github.com/lassandro/gosos/pkg/kernel"
	"github.com/lassandro/gosos/pkg/machine"
)

const loopSource = "start: SET R0 1\nloop: BRANCH loop\n"

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()

	if err := os.WriteFile(path, data, 0666); err != nil {
		t.Fatal(err)
	}
}

func TestLoadImage(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "loop.s")
	writeFile(t, source, []byte(loopSource))

	img, err := loadImage(source)

	if err != nil {
		t.Fatal(err)
	}

	if img.prog.Name != "loop" || len(img.prog.Instructions) != 2 {
		t.Errorf("want: loop with 2 instructions, have: %s with %d", img.prog.Name, len(img.prog.Instructions))
	}

	if img.symtable.Labels[4] != "loop" {
		t.Errorf("want: label loop at 4, have: %v", img.symtable.Labels)
	}

	buffer := new(bytes.Buffer)

	if err := img.prog.Encode(buffer); err != nil {
		t.Fatal(err)
	}

	writeFile(t, filepath.Join(dir, "loop.bin"), buffer.Bytes())

	buffer.Reset()

	if err := gob.NewEncoder(buffer).Encode(img.symtable); err != nil {
		t.Fatal(err)
	}

	writeFile(t, filepath.Join(dir, "loop.sosdb"), buffer.Bytes())

	decoded, err := loadImage(filepath.Join(dir, "loop.bin"))

	if err != nil {
		t.Fatal(err)
	}

	if decoded.symtable == nil || decoded.source != img.source {
		t.Errorf("want: symbol table for %s, have: %+v", img.source, decoded.symtable)
	}

	if len(decoded.prog.Instructions) != 2 || decoded.prog.Instructions[1][0] != machine.OP_BRANCH {
		t.Errorf("want: %v, have: %v", img.prog.Instructions, decoded.prog.Instructions)
	}
}

func TestLoadImageErrors(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "bad.s")
	writeFile(t, source, []byte("FROB R0\n"))

	if _, err := loadImage(source); err == nil {
		t.Error("want: assembly error, have: nil")
	}

	if _, err := loadImage(filepath.Join(dir, "missing.bin")); err == nil {
		t.Error("want: open error, have: nil")
	}
}

func TestSession(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "loop.s")
	writeFile(t, source, []byte(loopSource))

	img, err := loadImage(source)

	if err != nil {
		t.Fatal(err)
	}

	logger, _ := logtest.NewNullLogger()
	mc := machine.New(machine.NewRAM(500))
	k := kernel.New(mc, kernel.Options{Logger: logger})
	k.AddProgram(img.prog)

	if err := k.Boot(); err != nil {
		t.Fatal(err)
	}

	input := strings.NewReader("break add loop\nbreak list\nps\nreg R2 7\nq\n")
	out := new(bytes.Buffer)

	s := newSession(k, mc, []*image{img}, input, out)
	defer s.close()

	s.repl()

	// Idle owns [0, 36], so the program is loaded at 37.
	if len(s.dbg.Breakpoints) != 1 || s.dbg.Breakpoints[0].Addr != 41 {
		t.Errorf("want: breakpoint at 41, have: %v", s.dbg.Breakpoints)
	}

	if mc.Register(machine.REG_R2) != 7 {
		t.Errorf("want: R2=7, have: %d", mc.Register(machine.REG_R2))
	}

	for _, want := range []string{"Breakpoint added [0041]", "RUNNING", "loop"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("want: output containing %q, have: %q", want, out.String())
		}
	}

	if !mc.Halted() || mc.Err() != nil {
		t.Errorf("want: clean halt, have: halted=%v err=%v", mc.Halted(), mc.Err())
	}
}

// The debug REPL reads stdin, so the keyboard stays detached while the
// other devices are wired as configured.
func TestAttachDevicesDebug(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	mc := machine.New(machine.NewRAM(500))
	mc.Interrupts = machine.NewInterruptController(4)
	k := kernel.New(mc, kernel.Options{Logger: logger})

	cfg := config.Default()
	closeDevices, err := attachDevices(cfg, k, mc.Interrupts, logger, true)
	defer closeDevices()

	if err != nil {
		t.Fatal(err)
	}

	for _, entry := range cfg.Devices {
		info := k.Devices().Lookup(entry.ID)

		if entry.Kind == config.DEVICE_KEYBOARD {
			if info != nil {
				t.Errorf("device %d: want: no keyboard, have: %v", entry.ID, info)
			}
		} else if info == nil {
			t.Errorf("device %d: want: %s, have: nothing", entry.ID, entry.Kind)
		}
	}

	if entry := hook.LastEntry(); entry == nil || entry.Message != "keyboard not attached while debugging" {
		t.Errorf("want: keyboard warning, have: %v", entry)
	}
}
