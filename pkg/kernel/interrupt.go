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
	"github.com/sirupsen/logrus"

	"github.com/lassandro/gosos/pkg/machine"
)

// InterruptClock gives the scheduler a chance to preempt the running
// process.
func (k *Kernel) InterruptClock() error {
	return k.scheduleNewProcess()
}

func (k *Kernel) InterruptIOReadComplete(id, addr, data int) error {
	proc := k.waitingFor(id, SYSCALL_READ, addr)

	if proc == nil {
		return nil
	}

	return k.complete(proc, data, SYSCALL_RET_SUCCESS)
}

func (k *Kernel) InterruptIOWriteComplete(id, addr int) error {
	proc := k.waitingFor(id, SYSCALL_WRITE, addr)

	if proc == nil {
		return nil
	}

	return k.complete(proc, SYSCALL_RET_SUCCESS)
}

// Fault reports a hardware fault. The machine halts after this returns.
func (k *Kernel) Fault(fault *machine.Fault) {
	entry := k.log.WithFields(logrus.Fields{
		"pc":   fault.PC,
		"addr": fault.Addr,
	})

	proc := k.sched.Current()

	if k.faulted != nil {
		proc, k.faulted = k.faulted, nil
	}

	if proc != nil {
		entry = entry.WithField("pid", proc.pid)
	}

	entry.Error(fault.Error())
}

// waitingFor finds the process blocked on the device for op at addr. A
// completion nobody waits for is dropped.
func (k *Kernel) waitingFor(id, op, addr int) *ProcessControlBlock {
	entry := k.log.WithFields(logrus.Fields{
		"device": id,
		"op":     syscallName(op),
		"addr":   addr,
	})

	info := k.devices.Lookup(id)

	if info == nil {
		entry.Warn("completion from unknown device ignored")
		return nil
	}

	proc := info.SelectBlockedProcess(op, addr)

	if proc == nil {
		entry.Warn("completion with no waiting process ignored")
		return nil
	}

	return proc
}

// complete unblocks proc at high priority and pushes the results of its
// system call onto its own stack.
func (k *Kernel) complete(proc *ProcessControlBlock, results ...int) error {
	k.sched.MoveTo(proc, PRIO_HIGH)
	proc.Unblock(k.cpu)

	k.log.WithField("pid", proc.pid).Debug("io complete")

	return k.onProcess(proc, func() error {
		for _, value := range results {
			if err := k.cpu.PushStack(value); err != nil {
				return err
			}
		}

		return nil
	})
}

// onProcess runs fn with proc's registers loaded on the processor, then
// puts the current process back.
func (k *Kernel) onProcess(proc *ProcessControlBlock, fn func() error) error {
	cur := k.sched.Current()

	if cur == proc {
		return fn()
	}

	if cur != nil {
		cur.Save(k.cpu)
	}

	proc.Restore(k.cpu)
	err := fn()
	proc.Save(k.cpu)

	if err != nil {
		k.faulted = proc
	}

	if cur != nil {
		cur.Restore(k.cpu)
	}

	return err
}
