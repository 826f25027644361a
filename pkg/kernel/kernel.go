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

package kernel

import (
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lassandro/gosos/pkg/device"
	"github.com/lassandro/gosos/pkg/machine"
	"github.com/lassandro/gosos/pkg/program"
)

// New attaches a kernel to the machine as its trap handler. The idle
// program's load region is reserved at the bottom of memory.
func New(cpu *machine.Machine, opts Options) *Kernel {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	if opts.Console == nil {
		opts.Console = io.Discard
	}

	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	if opts.AllocMultiplier <= 0 {
		opts.AllocMultiplier = DEFAULT_ALLOC_MULTIPLIER
	}

	k := &Kernel{
		cpu:             cpu,
		memory:          cpu.Memory,
		sched:           NewScheduler(cpu, opts.Quantum, opts.Logger),
		devices:         NewDeviceRegistry(),
		console:         opts.Console,
		log:             opts.Logger,
		rand:            opts.Rand,
		allocMultiplier: opts.AllocMultiplier,
		idleBase:        0,
		nextPID:         FIRST_PROC_ID,
	}

	k.nextLoadPos = k.idleBase + idleAllocSize() + 1
	cpu.Handler = k

	return k
}

func idleAllocSize() int {
	return len(idleProgram)*machine.INSTRSIZE + IDLE_STACK_SIZE
}

func (k *Kernel) Scheduler() *Scheduler {
	return k.sched
}

func (k *Kernel) Devices() *DeviceRegistry {
	return k.devices
}

func (k *Kernel) Stats() Stats {
	return k.stats
}

func (k *Kernel) RegisterDevice(dev device.Device, id int) error {
	if err := k.devices.Register(dev, id); err != nil {
		return err
	}

	k.log.WithField("device", id).Debug("device registered")
	return nil
}

// AddProgram makes a program available to EXEC.
func (k *Kernel) AddProgram(prog *program.Program) {
	k.programs = append(k.programs, &programEntry{prog: prog})
}

// Invocations reports how many processes have been loaded from prog.
func (k *Kernel) Invocations(prog *program.Program) int {
	for _, entry := range k.programs {
		if entry.prog == prog {
			return entry.calls
		}
	}

	return 0
}

// Boot loads the first registered program as the initial process.
func (k *Kernel) Boot() error {
	if len(k.programs) == 0 {
		return ErrNoPrograms
	}

	if k.nextLoadPos >= k.memory.Size() {
		return fmt.Errorf("%w: idle region needs %d cells", ErrOutOfMemory, k.nextLoadPos)
	}

	entry := k.programs[0]
	entry.calls++

	k.log.WithFields(logrus.Fields{
		"program": entry.prog.Name,
		"memory":  k.memory.Size(),
	}).Info("booting")

	return k.CreateProcess(entry.prog, k.allocFor(entry.prog))
}

func (k *Kernel) allocFor(prog *program.Program) int {
	if prog.AllocSize > 0 {
		return prog.AllocSize
	}

	return prog.Size() * k.allocMultiplier
}

// CreateProcess loads prog at the next free address and makes it the
// current process in the normal queue. The previous current process keeps
// its queue position.
func (k *Kernel) CreateProcess(prog *program.Program, allocSize int) error {
	if prog.Size() > allocSize {
		return fmt.Errorf(
			"%w: %s needs %d, has %d", ErrAllocTooSmall, prog.Name, prog.Size(), allocSize,
		)
	}

	base := k.nextLoadPos
	lim := base + allocSize

	if lim >= k.memory.Size() {
		return fmt.Errorf("%w: %s at %d+%d", ErrOutOfMemory, prog.Name, base, allocSize)
	}

	k.nextLoadPos = lim + 1

	if cur := k.sched.Current(); cur != nil {
		cur.Save(k.cpu)
	}

	var regs machine.Registers
	regs[machine.REG_BASE] = base
	regs[machine.REG_LIM] = lim
	regs[machine.REG_PC] = 0
	regs[machine.REG_SP] = allocSize
	k.cpu.SetRegisters(regs)

	proc := NewProcessControlBlock(k.nextPID)
	proc.program = prog.Name
	k.nextPID++
	proc.Save(k.cpu)

	for i, word := range prog.Export() {
		k.memory.Write(base+i, word)
	}

	k.sched.Admit(proc, PRIO_NORMAL)
	k.sched.SetCurrent(proc)

	k.log.WithFields(logrus.Fields{
		"pid":     proc.pid,
		"program": prog.Name,
		"base":    base,
		"lim":     lim,
	}).Debug("process created")

	return nil
}

// createIdleProcess runs the idle program so the machine has something to
// execute while every process waits on a device. It exits immediately,
// which triggers another scheduling decision.
func (k *Kernel) createIdleProcess() error {
	base := k.idleBase
	size := idleAllocSize()

	if base+size >= k.memory.Size() {
		return fmt.Errorf("%w: idle process", ErrOutOfMemory)
	}

	for i, instr := range idleProgram {
		for j, word := range instr {
			k.memory.Write(base+i*machine.INSTRSIZE+j, word)
		}
	}

	if cur := k.sched.Current(); cur != nil {
		cur.Save(k.cpu)
	}

	var regs machine.Registers
	regs[machine.REG_BASE] = base
	regs[machine.REG_LIM] = base + size
	regs[machine.REG_PC] = 0
	regs[machine.REG_SP] = size
	k.cpu.SetRegisters(regs)

	idle := NewProcessControlBlock(IDLE_PROC_ID)
	idle.program = "idle"
	k.sched.Admit(idle, PRIO_LOW)
	k.sched.SetCurrent(idle)

	k.log.WithField("pid", IDLE_PROC_ID).Trace("idle process created")
	return nil
}

// scheduleNewProcess switches to the best runnable process, falling back to
// the idle process. With no processes left the machine halts cleanly.
func (k *Kernel) scheduleNewProcess() error {
	if k.sched.Count() == 0 {
		k.log.WithFields(logrus.Fields{
			"exited":         k.stats.Exited,
			"avg_max_starve": k.stats.AvgMaxStarve,
			"avg_avg_starve": k.stats.AvgAvgStarve,
		}).Info("no processes remain, shutting down")

		k.cpu.Halt(nil)
		return nil
	}

	proc := k.sched.ChooseNext()

	if proc == nil {
		return k.createIdleProcess()
	}

	k.sched.Switch(proc)
	return nil
}

// removeCurrentProcess terminates the running process, releases its devices
// and reschedules.
func (k *Kernel) removeCurrentProcess() error {
	cur := k.sched.Current()

	if cur == nil {
		return k.scheduleNewProcess()
	}

	if cur.pid != IDLE_PROC_ID {
		k.recordStarvation(cur)
	}

	for _, info := range k.devices.Holding(cur) {
		info.RemoveProcess(cur)
		k.wakeOpener(info)
	}

	k.sched.RemoveCurrent()

	k.log.WithFields(logrus.Fields{
		"pid":        cur.pid,
		"max_starve": cur.maxStarve,
		"avg_starve": cur.avgStarve,
	}).Debug("process removed")

	return k.scheduleNewProcess()
}

func (k *Kernel) recordStarvation(p *ProcessControlBlock) {
	maxStarve := 0.0
	if p.maxStarve > 0 {
		maxStarve = float64(p.maxStarve)
	}

	n := float64(k.stats.Exited + 1)
	k.stats.AvgMaxStarve += (maxStarve - k.stats.AvgMaxStarve) / n
	k.stats.AvgAvgStarve += (p.avgStarve - k.stats.AvgAvgStarve) / n
	k.stats.Exited++
}

// wakeOpener unblocks the first process waiting to open the device. It is
// already associated with the device, so it now holds it.
func (k *Kernel) wakeOpener(info *DeviceInfo) {
	proc := info.SelectBlockedProcess(SYSCALL_OPEN, -1)

	if proc == nil {
		return
	}

	proc.Unblock(k.cpu)

	k.log.WithFields(logrus.Fields{
		"pid":    proc.pid,
		"device": info.id,
	}).Debug("open granted")
}

// Processes is a snapshot of the process table. The running process
// reports the live registers.
func (k *Kernel) Processes() []ProcessInfo {
	var result []ProcessInfo

	for _, p := range k.sched.Processes() {
		info := ProcessInfo{
			PID:       p.pid,
			Program:   p.program,
			Priority:  p.prio,
			Registers: p.registers,
			MaxStarve: p.maxStarve,
			AvgStarve: p.avgStarve,
		}

		switch {
		case p.Blocked():
			info.State = "BLOCKED"
		case p == k.sched.Current():
			info.State = "RUNNING"
			info.Registers = k.cpu.Registers()
		default:
			info.State = "READY"
		}

		result = append(result, info)
	}

	return result
}

func formatRegisters(regs machine.Registers) string {
	result := ""

	for i := 0; i < machine.NUMGENREG; i++ {
		result += fmt.Sprintf("r%d=%d ", i, regs[i])
	}

	return result + fmt.Sprintf(
		"PC=%d SP=%d BASE=%d LIM=%d",
		regs[machine.REG_PC],
		regs[machine.REG_SP],
		regs[machine.REG_BASE],
		regs[machine.REG_LIM],
	)
}
