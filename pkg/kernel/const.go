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
	"github.com/lassandro/gosos/pkg/machine"
)

const (
	SYSCALL_EXIT     = 0 // exit the current program
	SYSCALL_OUTPUT   = 1 // outputs a number
	SYSCALL_GETPID   = 2 // get current process id
	SYSCALL_OPEN     = 3 // access a device
	SYSCALL_CLOSE    = 4 // release a device
	SYSCALL_READ     = 5 // get input from device
	SYSCALL_WRITE    = 6 // send output to device
	SYSCALL_EXEC     = 7 // spawn a new process
	SYSCALL_YIELD    = 8 // give up the processor
	SYSCALL_COREDUMP = 9 // print process state and exit
)

const (
	SYSCALL_RET_SUCCESS      = 0
	SYSCALL_RET_DNE          = 1 // device doesn't exist
	SYSCALL_RET_NOT_SHARE    = 2 // device is not sharable
	SYSCALL_RET_ALREADY_OPEN = 3
	SYSCALL_RET_NOT_OPEN     = 4
	SYSCALL_RET_RO           = 5 // device is read only
	SYSCALL_RET_WO           = 6 // device is write only
)

const (
	PRIO_HIGH Priority = iota
	PRIO_NORMAL
	PRIO_LOW

	NUM_PRIO = 3
)

const (
	IDLE_PROC_ID  = 999
	FIRST_PROC_ID = 1001

	// Scheduling decisions a process may stay current before demotion
	DEFAULT_QUANTUM = 10

	// Ticks charged for every register save or restore
	SAVE_LOAD_TIME = 30

	// Allocation is this multiple of the program size when undeclared
	DEFAULT_ALLOC_MULTIPLIER = 2

	IDLE_STACK_SIZE = 20
)

var idleProgram = []machine.Instruction{
	{machine.OP_SET, machine.REG_R0, SYSCALL_EXIT, 0},
	{machine.OP_SET, machine.REG_R0, SYSCALL_EXIT, 0},
	{machine.OP_PUSH, machine.REG_R0, 0, 0},
	{machine.OP_TRAP, 0, 0, 0},
}
