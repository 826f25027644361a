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

package debugger

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/lassandro/gosos/pkg/machine"
)

var ErrNoBreakpoint = errors.New("Invalid breakpoint number")
var ErrNoWatchpoint = errors.New("Invalid watchpoint number")

func New() *Debugger {
	return &Debugger{
		Images: make(map[string]*Image),
		Out:    os.Stdout,
	}
}

func (dbg *Debugger) Step(mc *machine.Machine) {
	if dbg.HandleBreak == nil {
		return
	}

	if dbg.Break {
		dbg.HandleBreak(dbg, mc)
		return
	}

	pc := mc.Register(machine.REG_BASE) + mc.PC()

	for _, breakpoint := range dbg.Breakpoints {
		if pc == breakpoint.Addr {
			dbg.HandleBreak(dbg, mc)
			break
		}
	}
}

func (dbg *Debugger) Read(addr int, mc *machine.Machine) {
	if dbg.HandleRead == nil {
		return
	}

	for _, watchpoint := range dbg.Watchpoints {
		if watchpoint.Type == WriteWatch {
			continue
		}

		if addr == watchpoint.Addr {
			dbg.HandleRead(addr, dbg, mc)
			break
		}
	}
}

func (dbg *Debugger) Write(addr int, mc *machine.Machine) {
	if dbg.HandleWrite == nil {
		return
	}

	for _, watchpoint := range dbg.Watchpoints {
		if watchpoint.Type == ReadWatch {
			continue
		}

		if addr == watchpoint.Addr {
			dbg.HandleWrite(addr, dbg, mc)
			break
		}
	}
}

// AddBreakpoint reports false if one already exists at addr.
func (dbg *Debugger) AddBreakpoint(addr int) bool {
	for _, breakpoint := range dbg.Breakpoints {
		if breakpoint.Addr == addr {
			return false
		}
	}

	dbg.Breakpoints = append(dbg.Breakpoints, Breakpoint{addr})
	return true
}

func (dbg *Debugger) RemoveBreakpoint(i int) error {
	if i < 0 || i >= len(dbg.Breakpoints) {
		return ErrNoBreakpoint
	}

	dbg.Breakpoints[i] = dbg.Breakpoints[len(dbg.Breakpoints)-1]
	dbg.Breakpoints = dbg.Breakpoints[:len(dbg.Breakpoints)-1]
	return nil
}

// AddWatchpoint replaces the type of an existing watchpoint on addr.
func (dbg *Debugger) AddWatchpoint(addr int, wtype WatchpointType) {
	for i, watchpoint := range dbg.Watchpoints {
		if watchpoint.Addr == addr {
			dbg.Watchpoints[i].Type = wtype
			return
		}
	}

	dbg.Watchpoints = append(dbg.Watchpoints, Watchpoint{addr, wtype})
}

func (dbg *Debugger) RemoveWatchpoint(i int) error {
	if i < 0 || i >= len(dbg.Watchpoints) {
		return ErrNoWatchpoint
	}

	dbg.Watchpoints[i] = dbg.Watchpoints[len(dbg.Watchpoints)-1]
	dbg.Watchpoints = dbg.Watchpoints[:len(dbg.Watchpoints)-1]
	return nil
}

// LookupLabel searches every image for a label, returning its logical
// address.
func (dbg *Debugger) LookupLabel(label string) (string, int, bool) {
	names := make([]string, 0, len(dbg.Images))
	for name := range dbg.Images {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		image := dbg.Images[name]

		if image.SymTable == nil {
			continue
		}

		for addr, have := range image.SymTable.Labels {
			if have == label {
				return name, addr, true
			}
		}
	}

	return "", 0, false
}

// PrintSource prints count source lines of the named program starting at
// the line that assembled the logical address addr.
func (dbg *Debugger) PrintSource(name string, addr, count int) {
	image, exists := dbg.Images[name]

	if !exists || image.Source == nil {
		fmt.Fprintln(dbg.Out, "No source file loaded")
		return
	}

	if image.SymTable == nil {
		fmt.Fprintln(dbg.Out, "No symbol table loaded")
		return
	}

	offset, exists := image.SymTable.Symbols[addr]

	if !exists {
		fmt.Fprintf(dbg.Out, "No instruction found at %d\n", addr)
		return
	}

	lines := make(map[int64]int, len(image.SymTable.Symbols))
	for lineaddr, linebyte := range image.SymTable.Symbols {
		lines[linebyte] = lineaddr
	}

	if _, err := image.Source.Seek(offset, io.SeekStart); err != nil {
		fmt.Fprintln(dbg.Out, err)
		return
	}

	scanner := bufio.NewScanner(image.Source)
	scanner.Split(bufio.ScanLines)

	for i := 0; i < count; i++ {
		if !scanner.Scan() {
			break
		}

		line := scanner.Text()

		if lineaddr, found := lines[offset]; found {
			fmt.Fprintf(dbg.Out, "\033[1m[%04d]\033[0m ", lineaddr)
		} else {
			fmt.Fprint(dbg.Out, "\033[1;30m~~~~~~\033[0m ")
		}

		fmt.Fprintln(dbg.Out, line)

		offset += int64(len(line) + 1)
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintln(dbg.Out, err)
	}
}

// PrintMem prints count cells from absolute address addr, four per row.
func (dbg *Debugger) PrintMem(memory machine.Memory, addr, count int) {
	for i := addr; i < addr+count; i++ {
		if i < 0 || i >= memory.Size() {
			break
		}

		if i == addr {
			fmt.Fprintf(dbg.Out, "\033[1m[%04d]\033[0m ", i)
		} else if (i-addr)%4 == 0 {
			fmt.Fprintln(dbg.Out)
			fmt.Fprintf(dbg.Out, "\033[1m[%04d]\033[0m ", i)
		}

		result := memory.Read(i)

		if result == 0 {
			fmt.Fprintf(dbg.Out, "\033[1;30m%6d\033[0m ", result)
		} else {
			fmt.Fprintf(dbg.Out, "%6d ", result)
		}
	}

	fmt.Fprintln(dbg.Out)
}

var registerNames = [machine.NUMREG]string{
	"R0", "R1", "R2", "R3", "R4", "PC", "SP", "BASE", "LIM",
}

// ParseRegister accepts the same register names as the assembler.
func ParseRegister(name string) (int, bool) {
	for i, have := range registerNames {
		if strings.EqualFold(have, name) {
			return i, true
		}
	}

	return 0, false
}

func (dbg *Debugger) PrintRegisters(regs machine.Registers) {
	for i := 0; i < machine.NUMGENREG; i++ {
		fmt.Fprintf(dbg.Out, "\033[1m%s:\033[0m %d\t", registerNames[i], regs[i])
	}

	fmt.Fprintln(dbg.Out)

	for i := machine.NUMGENREG; i < machine.NUMREG; i++ {
		fmt.Fprintf(dbg.Out, "\033[1m%s:\033[0m %d\t", registerNames[i], regs[i])
	}

	fmt.Fprintln(dbg.Out)
}
