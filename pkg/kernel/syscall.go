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

	"github.com/sirupsen/logrus"

	"github.com/lassandro/gosos/pkg/machine"
)

func syscallName(num int) string {
	switch num {
	case SYSCALL_EXIT:
		return "EXIT"
	case SYSCALL_OUTPUT:
		return "OUTPUT"
	case SYSCALL_GETPID:
		return "GETPID"
	case SYSCALL_OPEN:
		return "OPEN"
	case SYSCALL_CLOSE:
		return "CLOSE"
	case SYSCALL_READ:
		return "READ"
	case SYSCALL_WRITE:
		return "WRITE"
	case SYSCALL_EXEC:
		return "EXEC"
	case SYSCALL_YIELD:
		return "YIELD"
	case SYSCALL_COREDUMP:
		return "COREDUMP"
	}

	return fmt.Sprintf("SYSCALL(%d)", num)
}

// SystemCall services a TRAP. The call number is on top of the stack with
// the arguments beneath it, last argument first.
func (k *Kernel) SystemCall() error {
	cur := k.sched.Current()

	if cur == nil {
		return ErrNoProcess
	}

	num, err := k.cpu.PopStack()

	if err != nil {
		return err
	}

	k.log.WithFields(logrus.Fields{
		"pid":     cur.pid,
		"syscall": syscallName(num),
	}).Trace("system call")

	switch num {
	case SYSCALL_EXIT:
		return k.syscallExit()
	case SYSCALL_OUTPUT:
		k.sched.Downgrade(cur)
		return k.syscallOutput()
	case SYSCALL_GETPID:
		k.sched.Downgrade(cur)
		return k.cpu.PushStack(cur.pid)
	case SYSCALL_OPEN:
		return k.syscallOpen(cur)
	case SYSCALL_CLOSE:
		return k.syscallClose(cur)
	case SYSCALL_READ:
		k.sched.MoveTo(cur, PRIO_HIGH)
		return k.syscallRead(cur)
	case SYSCALL_WRITE:
		k.sched.MoveTo(cur, PRIO_HIGH)
		return k.syscallWrite(cur)
	case SYSCALL_EXEC:
		return k.syscallExec()
	case SYSCALL_YIELD:
		k.sched.Upgrade(cur)
		return k.scheduleNewProcess()
	case SYSCALL_COREDUMP:
		return k.syscallCoreDump()
	}

	k.log.WithFields(logrus.Fields{
		"pid":     cur.pid,
		"syscall": num,
	}).Warn("unknown system call ignored")

	return nil
}

func (k *Kernel) syscallExit() error {
	return k.removeCurrentProcess()
}

func (k *Kernel) syscallOutput() error {
	value, err := k.cpu.PopStack()

	if err != nil {
		return err
	}

	fmt.Fprintf(k.console, "OUTPUT: %d\n", value)
	return nil
}

func (k *Kernel) syscallOpen(cur *ProcessControlBlock) error {
	id, err := k.cpu.PopStack()

	if err != nil {
		return err
	}

	info := k.devices.Lookup(id)

	if info == nil {
		return k.cpu.PushStack(SYSCALL_RET_DNE)
	}

	if info.ContainsProcess(cur) {
		return k.cpu.PushStack(SYSCALL_RET_ALREADY_OPEN)
	}

	free := info.device.Sharable() || info.Unused()
	info.AddProcess(cur)

	if free {
		return k.cpu.PushStack(SYSCALL_RET_SUCCESS)
	}

	// The request is queued on the device, the caller sees success once the
	// holder closes it.
	cur.Block(info.device, SYSCALL_OPEN, -1)

	k.log.WithFields(logrus.Fields{
		"pid":    cur.pid,
		"device": id,
	}).Debug("open queued")

	if err := k.cpu.PushStack(SYSCALL_RET_SUCCESS); err != nil {
		return err
	}

	return k.scheduleNewProcess()
}

func (k *Kernel) syscallClose(cur *ProcessControlBlock) error {
	id, err := k.cpu.PopStack()

	if err != nil {
		return err
	}

	info := k.devices.Lookup(id)

	if info == nil {
		return k.cpu.PushStack(SYSCALL_RET_DNE)
	}

	if !info.ContainsProcess(cur) {
		return k.cpu.PushStack(SYSCALL_RET_NOT_OPEN)
	}

	info.RemoveProcess(cur)

	if err := k.cpu.PushStack(SYSCALL_RET_SUCCESS); err != nil {
		return err
	}

	k.wakeOpener(info)
	return nil
}

// popArgs pops n arguments and returns them in push order.
func (k *Kernel) popArgs(n int) ([]int, error) {
	args := make([]int, n)

	for i := n - 1; i >= 0; i-- {
		value, err := k.cpu.PopStack()

		if err != nil {
			return nil, err
		}

		args[i] = value
	}

	return args, nil
}

// retry puts the arguments and call number back and rewinds PC onto the
// TRAP, so the call runs again the next time the process is scheduled.
func (k *Kernel) retry(num int, args []int) error {
	k.cpu.SetPC(k.cpu.PC() - machine.INSTRSIZE)

	for _, arg := range args {
		if err := k.cpu.PushStack(arg); err != nil {
			return err
		}
	}

	return k.cpu.PushStack(num)
}

// checkIO validates a read or write request, pushing the failure code when
// the request is refused.
func (k *Kernel) checkIO(cur *ProcessControlBlock, id int, op int) (*DeviceInfo, bool, error) {
	info := k.devices.Lookup(id)

	if info == nil {
		return nil, false, k.cpu.PushStack(SYSCALL_RET_DNE)
	}

	if !info.ContainsProcess(cur) {
		return nil, false, k.cpu.PushStack(SYSCALL_RET_NOT_OPEN)
	}

	if op == SYSCALL_READ && !info.device.Readable() {
		return nil, false, k.cpu.PushStack(SYSCALL_RET_WO)
	}

	if op == SYSCALL_WRITE && !info.device.Writeable() {
		return nil, false, k.cpu.PushStack(SYSCALL_RET_RO)
	}

	return info, true, nil
}

// READ |device|addr|
func (k *Kernel) syscallRead(cur *ProcessControlBlock) error {
	args, err := k.popArgs(2)

	if err != nil {
		return err
	}

	id, addr := args[0], args[1]
	info, ok, err := k.checkIO(cur, id, SYSCALL_READ)

	if !ok {
		return err
	}

	if info.device.Available() {
		info.device.Read(addr)
		cur.Block(info.device, SYSCALL_READ, addr)
		k.log.WithField("pid", cur.pid).Debug(cur.String())
	} else if err := k.retry(SYSCALL_READ, args); err != nil {
		return err
	}

	return k.scheduleNewProcess()
}

// WRITE |device|addr|value|
func (k *Kernel) syscallWrite(cur *ProcessControlBlock) error {
	args, err := k.popArgs(3)

	if err != nil {
		return err
	}

	id, addr, value := args[0], args[1], args[2]
	info, ok, err := k.checkIO(cur, id, SYSCALL_WRITE)

	if !ok {
		return err
	}

	if info.device.Available() {
		info.device.Write(addr, value)
		cur.Block(info.device, SYSCALL_WRITE, addr)
		k.log.WithField("pid", cur.pid).Debug(cur.String())
	} else if err := k.retry(SYSCALL_WRITE, args); err != nil {
		return err
	}

	return k.scheduleNewProcess()
}

// syscallExec starts one of the least invoked programs as a new process,
// chosen at random among ties. The child becomes current and starts at its
// first instruction.
func (k *Kernel) syscallExec() error {
	if len(k.programs) == 0 {
		return ErrNoPrograms
	}

	least := k.programs[0].calls

	for _, entry := range k.programs {
		if entry.calls < least {
			least = entry.calls
		}
	}

	var candidates []*programEntry

	for _, entry := range k.programs {
		if entry.calls == least {
			candidates = append(candidates, entry)
		}
	}

	entry := candidates[k.rand.Intn(len(candidates))]
	entry.calls++

	return k.CreateProcess(entry.prog, k.allocFor(entry.prog))
}

func (k *Kernel) syscallCoreDump() error {
	fmt.Fprintf(k.console, "\n\nCORE DUMP!\n")
	fmt.Fprintln(k.console, formatRegisters(k.cpu.Registers()))
	fmt.Fprintln(k.console, "Top three stack items:")

	for i := 0; i < 3; i++ {
		if value, ok := k.cpu.PeekStack(i); ok {
			fmt.Fprintln(k.console, value)
		} else {
			fmt.Fprintln(k.console, "-- NULL --")
		}
	}

	return k.syscallExit()
}
