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

package machine

import (
	"fmt"
	"sync"
)

type FaultType uint
type InterruptType uint

// Registers is a full register file: R0-R4, PC, SP, BASE, LIM.
type Registers [NUMREG]int

// Instruction is an opcode plus up to three operands.
type Instruction [INSTRSIZE]int

// Memory is addressed absolutely and performs no bounds checking of its own.
type Memory interface {
	Read(addr int) int
	Write(addr int, value int)
	Size() int
}

// TrapHandler is the operating system side of the machine. Any error
// returned by a handler method halts the machine with that error.
type TrapHandler interface {
	SystemCall() error
	InterruptClock() error
	InterruptIOReadComplete(device, addr, data int) error
	InterruptIOWriteComplete(device, addr int) error

	// Reports a hardware fault. The machine halts after the call returns.
	Fault(fault *Fault)
}

type MachineDebugger interface {
	Step(mc *Machine)
	Read(addr int, mc *Machine)
	Write(addr int, mc *Machine)
}

type Machine struct {
	Memory     Memory
	Handler    TrapHandler
	Debugger   MachineDebugger
	Interrupts *InterruptController

	// Ticks between clock interrupts, zero disables the clock
	ClockFreq int

	regs      Registers
	ticks     int
	nextClock int
	halted    bool
	err       error
}

type Fault struct {
	Type        FaultType
	PC          int
	Addr        int
	Instruction Instruction
}

func (f *Fault) Error() string {
	switch f.Type {
	case FAULT_ILLEGAL_ADDRESS:
		return fmt.Sprintf("illegal memory access at %d (pc %d)", f.Addr, f.PC)
	case FAULT_DIVIDE_BY_ZERO:
		return fmt.Sprintf("divide by zero (pc %d)", f.PC)
	case FAULT_ILLEGAL_INSTRUCTION:
		return fmt.Sprintf(
			"illegal instruction [%d %d %d %d] (pc %d)",
			f.Instruction[0],
			f.Instruction[1],
			f.Instruction[2],
			f.Instruction[3],
			f.PC,
		)
	case FAULT_STACK_OVERFLOW:
		return fmt.Sprintf("stack overflow (sp %d)", f.Addr)
	case FAULT_STACK_UNDERFLOW:
		return fmt.Sprintf("popping off of empty stack (sp %d)", f.Addr)
	}

	return "unknown fault"
}

type Interrupt struct {
	Type   InterruptType
	Device int
	Addr   int
	Data   int
}

// InterruptController queues device completions until the machine reaches
// an instruction boundary. It is the only structure shared with device
// goroutines.
type InterruptController struct {
	events chan Interrupt
	done   chan struct{}
	once   sync.Once
}
