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

	"github.com/lassandro/gosos/pkg/device"
	"github.com/lassandro/gosos/pkg/machine"
)

type Clock interface {
	Ticks() int
	AddTicks(n int)
}

// Processor is the part of the machine a process control block needs to
// move register state on and off the processor.
type Processor interface {
	Clock
	Registers() machine.Registers
	SetRegisters(regs machine.Registers)
}

// ProcessControlBlock owns a process's register snapshot while the process
// is not running. While it runs the live registers belong to the machine
// and the snapshot is stale.
type ProcessControlBlock struct {
	pid       int
	program   string
	registers machine.Registers

	blockedFor  device.Device
	blockedOp   int
	blockedAddr int

	lastReadyTime int
	numReady      int
	maxStarve     int
	avgStarve     float64

	quantum int
	prio    Priority
	queued  bool
}

func NewProcessControlBlock(pid int) *ProcessControlBlock {
	return &ProcessControlBlock{
		pid:           pid,
		blockedOp:     -1,
		blockedAddr:   -1,
		lastReadyTime: -1,
		maxStarve:     -1,
	}
}

func (p *ProcessControlBlock) PID() int {
	return p.pid
}

// Program is the name of the image the process was created from.
func (p *ProcessControlBlock) Program() string {
	return p.program
}

// Registers returns the saved snapshot.
func (p *ProcessControlBlock) Registers() machine.Registers {
	return p.registers
}

func (p *ProcessControlBlock) Quantum() int {
	return p.quantum
}

func (p *ProcessControlBlock) NumReady() int {
	return p.numReady
}

func (p *ProcessControlBlock) LastReadyTime() int {
	return p.lastReadyTime
}

func (p *ProcessControlBlock) MaxStarve() int {
	return p.maxStarve
}

func (p *ProcessControlBlock) AvgStarve() float64 {
	return p.avgStarve
}

// Save copies the live registers into the snapshot. The process is assumed
// to be leaving the processor, so it counts as made ready now.
func (p *ProcessControlBlock) Save(cpu Processor) {
	cpu.AddTicks(SAVE_LOAD_TIME)

	p.registers = cpu.Registers()
	p.numReady++
	p.lastReadyTime = cpu.Ticks()
}

// Restore puts the snapshot back on the processor and folds the time spent
// waiting into the starvation statistics.
func (p *ProcessControlBlock) Restore(cpu Processor) {
	cpu.AddTicks(SAVE_LOAD_TIME)
	cpu.SetRegisters(p.registers)

	starve := cpu.Ticks() - p.lastReadyTime

	if starve > p.maxStarve {
		p.maxStarve = starve
	}

	if p.numReady > 0 {
		n := float64(p.numReady)
		p.avgStarve = p.avgStarve*(n-1)/n + float64(starve)/n
	}
}

// Block records what the process waits for. The caller reschedules.
func (p *ProcessControlBlock) Block(dev device.Device, op int, addr int) {
	p.blockedFor = dev
	p.blockedOp = op
	p.blockedAddr = addr
}

// Unblock clears the blocking descriptor. Starvation is measured from now,
// not from when the process blocked.
func (p *ProcessControlBlock) Unblock(clock Clock) {
	p.blockedFor = nil
	p.blockedOp = -1
	p.blockedAddr = -1
	p.lastReadyTime = clock.Ticks()
}

func (p *ProcessControlBlock) Blocked() bool {
	return p.blockedFor != nil
}

// IsBlockedForDevice matches device and operation, and the address too for
// everything except OPEN.
func (p *ProcessControlBlock) IsBlockedForDevice(dev device.Device, op int, addr int) bool {
	if p.blockedFor == nil || p.blockedFor != dev || p.blockedOp != op {
		return false
	}

	return op == SYSCALL_OPEN || addr == p.blockedAddr
}

func (p *ProcessControlBlock) String() string {
	if p.Blocked() {
		return fmt.Sprintf(
			"process %d blocked for %s @%d on device #%d",
			p.pid,
			syscallName(p.blockedOp),
			p.blockedAddr,
			p.blockedFor.ID(),
		)
	}

	return fmt.Sprintf("process %d", p.pid)
}
