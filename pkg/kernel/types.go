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
	"errors"
	"io"
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/lassandro/gosos/pkg/machine"
	"github.com/lassandro/gosos/pkg/program"
)

var (
	ErrNoPrograms    = errors.New("no programs to run")
	ErrOutOfMemory   = errors.New("out of memory for new process")
	ErrAllocTooSmall = errors.New("allocation smaller than program")
	ErrDeviceExists  = errors.New("device id already registered")
	ErrNoProcess     = errors.New("system call with no current process")
)

type Options struct {
	// Scheduling decisions before a running process is demoted
	Quantum int

	// Multiple of the program size allocated when a program declares none
	AllocMultiplier int

	// Receives OUTPUT and COREDUMP text
	Console io.Writer

	Logger logrus.FieldLogger
	Rand   *rand.Rand
}

// Stats are starvation figures averaged over every process that has exited,
// the idle process excluded.
type Stats struct {
	Exited       int
	AvgMaxStarve float64
	AvgAvgStarve float64
}

type ProcessInfo struct {
	PID       int
	Program   string
	State     string
	Priority  Priority
	Registers machine.Registers
	MaxStarve int
	AvgStarve float64
}

type programEntry struct {
	prog  *program.Program
	calls int
}

type Kernel struct {
	cpu     *machine.Machine
	memory  machine.Memory
	sched   *Scheduler
	devices *DeviceRegistry

	programs []*programEntry

	console io.Writer
	log     logrus.FieldLogger
	rand    *rand.Rand

	allocMultiplier int
	idleBase        int
	nextLoadPos     int
	nextPID         int

	stats Stats

	// Process whose stack a failed interrupt push was touching
	faulted *ProcessControlBlock
}
