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

const (
	OP_SET    int = 0
	OP_ADD    int = 1
	OP_SUB    int = 2
	OP_MUL    int = 3
	OP_DIV    int = 4
	OP_COPY   int = 5
	OP_BRANCH int = 6
	OP_BNE    int = 7
	OP_BLT    int = 8
	OP_POP    int = 9
	OP_PUSH   int = 10
	OP_LOAD   int = 11
	OP_SAVE   int = 12
	OP_TRAP   int = 15
)

const (
	REG_R0   int = 0
	REG_R1   int = 1
	REG_R2   int = 2
	REG_R3   int = 3
	REG_R4   int = 4
	REG_PC   int = 5
	REG_SP   int = 6
	REG_BASE int = 7
	REG_LIM  int = 8
)

const (
	// Registers below PC are general purpose
	NUMGENREG = REG_PC
	NUMREG    = 9

	// Every instruction is an opcode followed by three operand words
	INSTRSIZE = 4
)

const (
	FAULT_ILLEGAL_ADDRESS FaultType = iota
	FAULT_DIVIDE_BY_ZERO
	FAULT_ILLEGAL_INSTRUCTION
	FAULT_STACK_OVERFLOW
	FAULT_STACK_UNDERFLOW
)

const (
	INT_IO_READ_COMPLETE InterruptType = iota
	INT_IO_WRITE_COMPLETE
)
