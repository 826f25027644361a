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
	"context"
	"errors"
)

func New(memory Memory) *Machine {
	return &Machine{Memory: memory}
}

// Registers returns a copy of the live register file.
func (mc *Machine) Registers() Registers {
	return mc.regs
}

func (mc *Machine) SetRegisters(regs Registers) {
	mc.regs = regs
}

func (mc *Machine) Register(idx int) int {
	return mc.regs[idx]
}

func (mc *Machine) SetRegister(idx int, value int) {
	mc.regs[idx] = value
}

func (mc *Machine) PC() int {
	return mc.regs[REG_PC]
}

func (mc *Machine) SetPC(value int) {
	mc.regs[REG_PC] = value
}

func (mc *Machine) Ticks() int {
	return mc.ticks
}

func (mc *Machine) AddTicks(n int) {
	mc.ticks += n
}

// Halt stops the machine. A nil error is a clean shutdown. Only the first
// halt is recorded.
func (mc *Machine) Halt(err error) {
	if mc.halted {
		return
	}

	mc.halted = true
	mc.err = err
}

func (mc *Machine) Halted() bool {
	return mc.halted
}

func (mc *Machine) Err() error {
	return mc.err
}

// Run steps the machine until it halts or the context is cancelled.
func (mc *Machine) Run(ctx context.Context) error {
	if mc.Interrupts != nil {
		defer mc.Interrupts.Close()
	}

	for !mc.halted {
		select {
		case <-ctx.Done():
			mc.Halt(ctx.Err())
		default:
			mc.Step()
		}
	}

	return mc.err
}

// ValidAddr reports whether a logical address lies within [0, LIM-BASE] and
// maps onto physical memory.
func (mc *Machine) ValidAddr(addr int) bool {
	if addr < 0 || addr > mc.regs[REG_LIM]-mc.regs[REG_BASE] {
		return false
	}

	physical := mc.regs[REG_BASE] + addr
	return physical >= 0 && physical < mc.Memory.Size()
}

// PushStack grows the logical stack down towards BASE.
func (mc *Machine) PushStack(value int) error {
	sp := mc.regs[REG_SP] - 1

	if sp < 0 {
		return &Fault{Type: FAULT_STACK_OVERFLOW, PC: mc.regs[REG_PC], Addr: sp}
	}

	if !mc.ValidAddr(sp) {
		return &Fault{Type: FAULT_ILLEGAL_ADDRESS, PC: mc.regs[REG_PC], Addr: sp}
	}

	mc.regs[REG_SP] = sp
	mc.write(mc.regs[REG_BASE]+sp, value)
	return nil
}

func (mc *Machine) PopStack() (int, error) {
	sp := mc.regs[REG_SP]

	if sp >= mc.regs[REG_LIM]-mc.regs[REG_BASE] {
		return 0, &Fault{Type: FAULT_STACK_UNDERFLOW, PC: mc.regs[REG_PC], Addr: sp}
	}

	if !mc.ValidAddr(sp) {
		return 0, &Fault{Type: FAULT_ILLEGAL_ADDRESS, PC: mc.regs[REG_PC], Addr: sp}
	}

	value := mc.read(mc.regs[REG_BASE] + sp)
	mc.regs[REG_SP]++
	return value, nil
}

// PeekStack reads the stack word depth entries below the top without
// popping it.
func (mc *Machine) PeekStack(depth int) (int, bool) {
	sp := mc.regs[REG_SP] + depth

	if depth < 0 || sp >= mc.regs[REG_LIM]-mc.regs[REG_BASE] || !mc.ValidAddr(sp) {
		return 0, false
	}

	return mc.Memory.Read(mc.regs[REG_BASE] + sp), true
}

func (mc *Machine) read(addr int) int {
	if mc.Debugger != nil {
		mc.Debugger.Read(addr, mc)
	}

	return mc.Memory.Read(addr)
}

func (mc *Machine) write(addr int, value int) {
	mc.Memory.Write(addr, value)

	if mc.Debugger != nil {
		mc.Debugger.Write(addr, mc)
	}
}

func (mc *Machine) fail(err error) {
	var fault *Fault

	if errors.As(err, &fault) && mc.Handler != nil {
		mc.Handler.Fault(fault)
	}

	mc.Halt(err)
}

func (mc *Machine) fetch() (Instruction, error) {
	var instr Instruction
	pc := mc.regs[REG_PC]

	if !mc.ValidAddr(pc) || !mc.ValidAddr(pc+INSTRSIZE-1) {
		return instr, &Fault{Type: FAULT_ILLEGAL_ADDRESS, PC: pc, Addr: pc}
	}

	for i := range instr {
		instr[i] = mc.read(mc.regs[REG_BASE] + pc + i)
	}

	return instr, nil
}

func (mc *Machine) serviceInterrupts() {
	if mc.Interrupts == nil || mc.Handler == nil {
		return
	}

	for !mc.halted {
		event, ok := mc.Interrupts.Poll()

		if !ok {
			return
		}

		var err error

		switch event.Type {
		case INT_IO_READ_COMPLETE:
			err = mc.Handler.InterruptIOReadComplete(
				event.Device, event.Addr, event.Data,
			)
		case INT_IO_WRITE_COMPLETE:
			err = mc.Handler.InterruptIOWriteComplete(event.Device, event.Addr)
		}

		if err != nil {
			mc.fail(err)
		}
	}
}

func (mc *Machine) serviceClock() {
	if mc.ClockFreq <= 0 || mc.Handler == nil {
		return
	}

	if mc.nextClock == 0 {
		mc.nextClock = mc.ticks + mc.ClockFreq
		return
	}

	if mc.ticks < mc.nextClock {
		return
	}

	mc.nextClock = mc.ticks + mc.ClockFreq

	if err := mc.Handler.InterruptClock(); err != nil {
		mc.fail(err)
	}
}

// faultAt points a fault raised by a stack helper at the instruction that
// used the stack, since PC has already moved past it.
func faultAt(err error, pc int) error {
	var fault *Fault

	if errors.As(err, &fault) {
		fault.PC = pc
	}

	return err
}

func validReg(idx int) bool {
	return idx >= 0 && idx < NUMREG
}

// Step services pending interrupts and the clock, then executes a single
// instruction. PC is advanced past the instruction before it executes, so
// a trap handler that saves the registers saves the return address.
func (mc *Machine) Step() {
	if mc.halted {
		return
	}

	mc.serviceInterrupts()

	if mc.halted {
		return
	}

	mc.serviceClock()

	if mc.halted {
		return
	}

	pc := mc.regs[REG_PC]
	instr, err := mc.fetch()

	if err != nil {
		mc.fail(err)
		return
	}

	illegal := &Fault{Type: FAULT_ILLEGAL_INSTRUCTION, PC: pc, Instruction: instr}

	mc.ticks++
	mc.regs[REG_PC] += INSTRSIZE

	switch instr[0] {
	// SET  |dst|value|-  | dst = value
	case OP_SET:
		if !validReg(instr[1]) {
			mc.fail(illegal)
			return
		}

		mc.regs[instr[1]] = instr[2]

	// ADD  |dst|src1|src2| dst = src1 op src2
	// SUB
	// MUL
	// DIV
	case OP_ADD, OP_SUB, OP_MUL, OP_DIV:
		if !validReg(instr[1]) || !validReg(instr[2]) || !validReg(instr[3]) {
			mc.fail(illegal)
			return
		}

		a := mc.regs[instr[2]]
		b := mc.regs[instr[3]]

		switch instr[0] {
		case OP_ADD:
			mc.regs[instr[1]] = a + b
		case OP_SUB:
			mc.regs[instr[1]] = a - b
		case OP_MUL:
			mc.regs[instr[1]] = a * b
		case OP_DIV:
			if b == 0 {
				mc.fail(&Fault{Type: FAULT_DIVIDE_BY_ZERO, PC: pc, Instruction: instr})
				return
			}

			mc.regs[instr[1]] = a / b
		}

	// COPY |dst|src|-    | dst = src
	case OP_COPY:
		if !validReg(instr[1]) || !validReg(instr[2]) {
			mc.fail(illegal)
			return
		}

		mc.regs[instr[1]] = mc.regs[instr[2]]

	// BRANCH |addr|-|-   | pc = addr
	case OP_BRANCH:
		mc.regs[REG_PC] = instr[1]

	// BNE  |r1|r2|addr   | pc = addr if r1 != r2
	// BLT  |r1|r2|addr   | pc = addr if r1 < r2
	case OP_BNE, OP_BLT:
		if !validReg(instr[1]) || !validReg(instr[2]) {
			mc.fail(illegal)
			return
		}

		a := mc.regs[instr[1]]
		b := mc.regs[instr[2]]

		if (instr[0] == OP_BNE && a != b) || (instr[0] == OP_BLT && a < b) {
			mc.regs[REG_PC] = instr[3]
		}

	// POP  |dst|-|-      | dst = *sp++
	case OP_POP:
		if !validReg(instr[1]) {
			mc.fail(illegal)
			return
		}

		value, err := mc.PopStack()

		if err != nil {
			mc.fail(faultAt(err, pc))
			return
		}

		mc.regs[instr[1]] = value

	// PUSH |src|-|-      | *--sp = src
	case OP_PUSH:
		if !validReg(instr[1]) {
			mc.fail(illegal)
			return
		}

		if err := mc.PushStack(mc.regs[instr[1]]); err != nil {
			mc.fail(faultAt(err, pc))
			return
		}

	// LOAD |dst|addr|-   | dst = mem[BASE + addr]
	// SAVE |src|addr|-   | mem[BASE + addr] = src
	case OP_LOAD, OP_SAVE:
		if !validReg(instr[1]) || !validReg(instr[2]) {
			mc.fail(illegal)
			return
		}

		addr := mc.regs[instr[2]]

		if !mc.ValidAddr(addr) {
			mc.fail(&Fault{Type: FAULT_ILLEGAL_ADDRESS, PC: pc, Addr: addr, Instruction: instr})
			return
		}

		if instr[0] == OP_LOAD {
			mc.regs[instr[1]] = mc.read(mc.regs[REG_BASE] + addr)
		} else {
			mc.write(mc.regs[REG_BASE]+addr, mc.regs[instr[1]])
		}

	// TRAP |-|-|-        | system call, arguments on the stack
	case OP_TRAP:
		if mc.Handler == nil {
			mc.fail(illegal)
			return
		}

		if err := mc.Handler.SystemCall(); err != nil {
			mc.fail(err)
			return
		}

	default:
		mc.fail(illegal)
		return
	}

	if mc.Debugger != nil {
		mc.Debugger.Step(mc)
	}
}
