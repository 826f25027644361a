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
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/lassandro/gosos/pkg/debugger"
	"github.com/lassandro/gosos/pkg/encoding"
	"github.com/lassandro/gosos/pkg/kernel"
	"github.com/lassandro/gosos/pkg/machine"
)

type session struct {
	dbg *debugger.Debugger
	k   *kernel.Kernel
	mc  *machine.Machine

	in      *bufio.Scanner
	out     io.Writer
	lastcmd []string
	files   []*os.File
}

func newSession(k *kernel.Kernel, mc *machine.Machine, images []*image, in io.Reader, out io.Writer) *session {
	s := &session{
		dbg: debugger.New(),
		k:   k,
		mc:  mc,
		in:  bufio.NewScanner(in),
		out: out,
	}

	s.dbg.Out = out

	for _, img := range images {
		if img.symtable == nil {
			continue
		}

		entry := &debugger.Image{SymTable: img.symtable}

		if img.source != "" {
			if file, err := os.Open(img.source); err == nil {
				entry.Source = file
				s.files = append(s.files, file)
			} else {
				fmt.Fprintln(out, "Error loading source file")
				fmt.Fprintln(out, err)
			}
		}

		s.dbg.Images[img.prog.Name] = entry
	}

	s.dbg.HandleBreak = func(dbg *debugger.Debugger, mc *machine.Machine) {
		s.handleBreak()
	}
	s.dbg.HandleRead = func(addr int, dbg *debugger.Debugger, mc *machine.Machine) {
		s.handleAccess(addr)
	}
	s.dbg.HandleWrite = func(addr int, dbg *debugger.Debugger, mc *machine.Machine) {
		s.handleAccess(addr)
	}

	mc.Debugger = s.dbg
	return s
}

func (s *session) close() {
	for _, file := range s.files {
		file.Close()
	}
}

// current is the program name of the running process, and where it is
// loaded in physical memory.
func (s *session) current() (string, int) {
	if cur := s.k.Scheduler().Current(); cur != nil {
		return cur.Program(), s.mc.Register(machine.REG_BASE)
	}

	return "", 0
}

// baseOf finds where a process running the named program is loaded.
func (s *session) baseOf(name string) (int, bool) {
	for _, info := range s.k.Processes() {
		if info.Program == name {
			return info.Registers[machine.REG_BASE], true
		}
	}

	return 0, false
}

// resolve turns a number into an absolute address, or a label into the
// absolute address of that label in a loaded process.
func (s *session) resolve(arg string) (int, error) {
	if addr, err := encoding.DecodeNumber(arg); err == nil {
		return addr, nil
	}

	name, addr, ok := s.dbg.LookupLabel(arg)

	if !ok {
		return 0, fmt.Errorf("unable to find '%s'", arg)
	}

	base, ok := s.baseOf(name)

	if !ok {
		return 0, fmt.Errorf("%s is not loaded", name)
	}

	return base + addr, nil
}

func indexFormat(n int, suffix string) string {
	digits := math.Floor(math.Log10(float64(n + 1)))
	return fmt.Sprintf("#%%0%dd: %s\n", int64(digits)+1, suffix)
}

func (s *session) debugBreak(args []string) {
	if len(args) == 0 {
		args = append(args, "l")
	}

	cmd := args[0]
	args = args[1:]

	switch cmd {
	case "a", "add":
		const usage = "break add [addr|label]"

		if len(args) != 1 {
			fmt.Fprintln(s.out, usage)
			return
		}

		addr, err := s.resolve(args[0])

		if err != nil {
			fmt.Fprintln(s.out, err)
			return
		}

		if s.dbg.AddBreakpoint(addr) {
			fmt.Fprintf(s.out, "Breakpoint added [%04d]\n", addr)
		}

	case "l", "ls", "list":
		format := indexFormat(len(s.dbg.Breakpoints), "%04d")

		for i, breakpoint := range s.dbg.Breakpoints {
			fmt.Fprintf(s.out, format, i, breakpoint.Addr)
		}

	case "r", "rm", "remove":
		const usage = "break remove [#]"

		if len(args) != 1 {
			fmt.Fprintln(s.out, usage)
			return
		}

		i, err := strconv.Atoi(args[0])

		if err != nil {
			fmt.Fprintln(s.out, err)
			return
		}

		if err := s.dbg.RemoveBreakpoint(i); err != nil {
			fmt.Fprintln(s.out, err)
			return
		}

		fmt.Fprintf(s.out, "Breakpoint removed [%d]\n", i)

	case "clear":
		s.dbg.Breakpoints = nil
		fmt.Fprintln(s.out, "Breakpoints reset")

	default:
		fmt.Fprintf(s.out, "break: '%s' is not a valid command\n", cmd)
	}
}

var watchNames = map[debugger.WatchpointType]string{
	debugger.ReadWatch:      "read",
	debugger.WriteWatch:     "write",
	debugger.ReadWriteWatch: "readwrite",
}

func (s *session) debugWatch(args []string) {
	const usage = "watch [add|list|rm|clear]"

	if len(args) == 0 {
		fmt.Fprintln(s.out, usage)
		return
	}

	cmd := args[0]
	args = args[1:]

	switch cmd {
	case "a", "add":
		const usage = "watch add [addr|label] [read|write|readwrite]"

		if len(args) != 2 {
			fmt.Fprintln(s.out, usage)
			return
		}

		addr, err := s.resolve(args[0])

		if err != nil {
			fmt.Fprintln(s.out, err)
			return
		}

		var wtype debugger.WatchpointType

		switch args[1] {
		case "r", "read":
			wtype = debugger.ReadWatch
		case "w", "write":
			wtype = debugger.WriteWatch
		case "rw", "readwrite":
			wtype = debugger.ReadWriteWatch
		default:
			fmt.Fprintln(s.out, usage)
			return
		}

		s.dbg.AddWatchpoint(addr, wtype)
		fmt.Fprintf(s.out, "Watchpoint added [%04d] (%s)\n", addr, watchNames[wtype])

	case "l", "ls", "list":
		format := indexFormat(len(s.dbg.Watchpoints), "%04d %s")

		for i, watchpoint := range s.dbg.Watchpoints {
			fmt.Fprintf(s.out, format, i, watchpoint.Addr, watchNames[watchpoint.Type])
		}

	case "r", "rm", "remove":
		const usage = "watch rm [#]"

		if len(args) != 1 {
			fmt.Fprintln(s.out, usage)
			return
		}

		i, err := strconv.Atoi(args[0])

		if err != nil {
			fmt.Fprintln(s.out, err)
			return
		}

		if err := s.dbg.RemoveWatchpoint(i); err != nil {
			fmt.Fprintln(s.out, err)
			return
		}

		fmt.Fprintf(s.out, "Watchpoint removed [%d]\n", i)

	case "clear":
		s.dbg.Watchpoints = nil
		fmt.Fprintln(s.out, "Watchpoints reset")

	default:
		fmt.Fprintf(s.out, "watch: '%s' is not a valid command\n", cmd)
	}
}

func (s *session) debugReg(args []string) {
	const usage = "register [R#|PC|SP|BASE|LIM] [value]"

	if len(args) == 0 {
		s.dbg.PrintRegisters(s.mc.Registers())
		return
	}

	if len(args) != 2 {
		fmt.Fprintln(s.out, usage)
		return
	}

	idx, ok := debugger.ParseRegister(args[0])

	if !ok {
		fmt.Fprintln(s.out, "Invalid register")
		return
	}

	value, err := encoding.DecodeNumber(args[1])

	if err != nil {
		fmt.Fprintln(s.out, err)
		return
	}

	s.mc.SetRegister(idx, value)
	fmt.Fprintf(s.out, "\033[1m%s:\033[0m %d\n", strings.ToUpper(args[0]), value)
}

func (s *session) debugSource(args []string) {
	const usage = "source [addr|label] [#]"

	if len(args) > 2 {
		fmt.Fprintln(s.out, usage)
		return
	}

	name, _ := s.current()
	addr := s.mc.PC()
	count := 3

	if len(args) > 0 {
		if image, labelAddr, ok := s.dbg.LookupLabel(args[0]); ok {
			name, addr = image, labelAddr
		} else if value, err := encoding.DecodeNumber(args[0]); err == nil {
			addr = value
		} else {
			fmt.Fprintln(s.out, err)
			return
		}
	}

	if len(args) > 1 {
		value, err := strconv.Atoi(args[1])

		if err != nil {
			fmt.Fprintln(s.out, err)
			return
		}

		count = value
	}

	s.dbg.PrintSource(name, addr, count)
}

func (s *session) debugLabels(args []string) {
	if len(args) > 0 {
		fmt.Fprintln(s.out, "labels")
		return
	}

	names := make([]string, 0, len(s.dbg.Images))
	for name := range s.dbg.Images {
		names = append(names, name)
	}

	if len(names) == 0 {
		fmt.Fprintln(s.out, "No symbol table loaded")
		return
	}

	sort.Strings(names)

	for _, name := range names {
		labels := s.dbg.Images[name].SymTable.Labels

		keys := make([]int, 0, len(labels))
		for addr := range labels {
			keys = append(keys, addr)
		}

		sort.Ints(keys)

		for _, addr := range keys {
			fmt.Fprintf(s.out, "\033[1m%s[%04d]\033[0m %s\n", name, addr, labels[addr])
		}
	}
}

func (s *session) debugJump(args []string) {
	const usage = "jump [addr|label]"

	if len(args) != 1 {
		fmt.Fprintln(s.out, usage)
		return
	}

	if addr, err := encoding.DecodeNumber(args[0]); err == nil {
		s.mc.SetPC(addr)
		fmt.Fprintf(s.out, "\033[1mPC:\033[0m %d\n", addr)
		return
	}

	name, _ := s.current()

	if image, exists := s.dbg.Images[name]; exists {
		for addr, label := range image.SymTable.Labels {
			if label == args[0] {
				s.mc.SetPC(addr)
				fmt.Fprintf(s.out, "\033[1mPC:\033[0m %d \033[1;30m(%s)\033[0m\n", addr, label)
				return
			}
		}
	}

	fmt.Fprintf(s.out, "Unable to find '%s' in %s\n", args[0], name)
}

func (s *session) debugMemory(args []string) {
	const usage = "memory [addr|label] [#]"

	if len(args) > 2 {
		fmt.Fprintln(s.out, usage)
		return
	}

	_, base := s.current()
	addr := base + s.mc.PC()
	count := machine.INSTRSIZE

	if len(args) > 0 {
		value, err := s.resolve(args[0])

		if err != nil {
			fmt.Fprintln(s.out, err)
			return
		}

		addr = value
	}

	if len(args) > 1 {
		value, err := strconv.Atoi(args[1])

		if err != nil {
			fmt.Fprintln(s.out, err)
			return
		}

		count = value
	}

	s.dbg.PrintMem(s.mc.Memory, addr, count)
}

func (s *session) debugSet(args []string) {
	const usage = "set [addr] [value]"

	if len(args) != 2 {
		fmt.Fprintln(s.out, usage)
		return
	}

	addr, err := s.resolve(args[0])

	if err != nil {
		fmt.Fprintln(s.out, err)
		return
	}

	value, err := encoding.DecodeNumber(args[1])

	if err != nil {
		fmt.Fprintln(s.out, err)
		return
	}

	if addr < 0 || addr >= s.mc.Memory.Size() {
		fmt.Fprintf(s.out, "%d is outside of memory\n", addr)
		return
	}

	s.mc.Memory.Write(addr, value)
	s.dbg.PrintMem(s.mc.Memory, addr, 1)
}

func (s *session) debugProcesses() {
	for _, info := range s.k.Processes() {
		fmt.Fprintf(
			s.out,
			"\033[1m%5d\033[0m %-8s %-7s %-10s PC=%-5d BASE=%-5d maxStarve=%d avgStarve=%.2f\n",
			info.PID,
			info.State,
			info.Priority,
			info.Program,
			info.Registers[machine.REG_PC],
			info.Registers[machine.REG_BASE],
			info.MaxStarve,
			info.AvgStarve,
		)
	}
}

// repl reads commands until one resumes the machine. An empty line repeats
// the previous command.
func (s *session) repl() {
	for {
		fmt.Fprint(s.out, "\033[1;30m(dbg)\033[0m ")

		if !s.in.Scan() {
			fmt.Fprintln(s.out)
			s.mc.Halt(nil)
			return
		}

		args := strings.Fields(s.in.Text())

		if len(args) == 0 {
			if len(s.lastcmd) == 0 {
				continue
			}
			args = s.lastcmd
		} else {
			s.lastcmd = make([]string, len(args))
			copy(s.lastcmd, args)
		}

		cmd := args[0]
		args = args[1:]

		switch cmd {
		case "b", "bp", "break", "breakpoint":
			s.debugBreak(args)

		case "w", "wp", "watch", "watchpoint":
			s.debugWatch(args)

		case "r", "reg", "register", "registers":
			s.debugReg(args)

		case "s", "src", "source":
			s.debugSource(args)

		case "l", "label", "labels":
			s.debugLabels(args)

		case "j", "jmp", "jump":
			s.debugJump(args)

		case "m", "mem", "memory":
			s.debugMemory(args)

		case "set":
			s.debugSet(args)

		case "p", "ps":
			s.debugProcesses()

		case "c", "continue":
			s.dbg.Break = false
			return

		case "n", "next":
			s.dbg.Break = true
			return

		case "q", "quit", "exit":
			s.mc.Halt(nil)
			return

		case "clear":
			fmt.Fprint(s.out, "\033[H\033[2J")

		default:
			fmt.Fprintf(s.out, "error: '%s' is not a valid command\n", cmd)
		}
	}
}

func (s *session) handleBreak() {
	name, _ := s.current()

	if !s.dbg.Break {
		fmt.Fprintln(s.out)
		fmt.Fprintln(s.out, "Program stopped")
		s.dbg.PrintSource(name, s.mc.PC(), 8)
	}

	s.repl()
}

func (s *session) handleAccess(addr int) {
	fmt.Fprintln(s.out)
	fmt.Fprintln(s.out, "Program stopped")
	s.dbg.PrintMem(s.mc.Memory, addr, 1)
	s.repl()
}
