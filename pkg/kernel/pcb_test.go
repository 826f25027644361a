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

package kernel_test

import (
	"testing"

	"github.com/lassandro/gosos/pkg/kernel"
	"github.com/lassandro/gosos/pkg/machine"
)

func TestSaveRestore(t *testing.T) {
	mc := machine.New(machine.NewRAM(16))
	p := kernel.NewProcessControlBlock(kernel.FIRST_PROC_ID)

	regs := machine.Registers{1, 2, 3, 4, 5, 6, 7, 8, 9}
	mc.SetRegisters(regs)

	p.Save(mc)
	mc.SetRegisters(machine.Registers{})
	p.Restore(mc)

	if have := mc.Registers(); have != regs {
		t.Fatalf("want: %v\nhave: %v", regs, have)
	}

	if p.Registers() != regs {
		t.Errorf("snapshot changed: %v", p.Registers())
	}

	if mc.Ticks() != 2*kernel.SAVE_LOAD_TIME {
		t.Errorf("ticks want: %d, have: %d", 2*kernel.SAVE_LOAD_TIME, mc.Ticks())
	}

	if p.MaxStarve() != kernel.SAVE_LOAD_TIME || p.AvgStarve() != kernel.SAVE_LOAD_TIME {
		t.Errorf("starve want: %d/%d, have: %d/%v",
			kernel.SAVE_LOAD_TIME, kernel.SAVE_LOAD_TIME, p.MaxStarve(), p.AvgStarve())
	}

	// Second cycle waits 50 ticks plus the restore cost
	mc.AddTicks(10)
	p.Save(mc)
	mc.AddTicks(50)
	p.Restore(mc)

	if p.NumReady() != 2 {
		t.Errorf("numReady want: 2, have: %d", p.NumReady())
	}

	if p.MaxStarve() != 80 {
		t.Errorf("maxStarve want: 80, have: %d", p.MaxStarve())
	}

	if p.AvgStarve() != 55 {
		t.Errorf("avgStarve want: 55, have: %v", p.AvgStarve())
	}
}

func TestUnblock(t *testing.T) {
	mc := machine.New(machine.NewRAM(16))
	p := kernel.NewProcessControlBlock(kernel.FIRST_PROC_ID)
	dev := &fakeDevice{readable: true, available: true}

	p.Block(dev, kernel.SYSCALL_READ, 3)

	if !p.Blocked() {
		t.Fatal("process should be blocked")
	}

	mc.AddTicks(123)
	p.Unblock(mc)

	if p.Blocked() {
		t.Fatal("process should not be blocked")
	}

	if p.LastReadyTime() != 123 {
		t.Errorf("lastReadyTime want: 123, have: %d", p.LastReadyTime())
	}

	if p.IsBlockedForDevice(dev, kernel.SYSCALL_READ, 3) {
		t.Error("unblocked process matched its old descriptor")
	}
}

func TestBlockedForDevice(t *testing.T) {
	d1 := &fakeDevice{readable: true, writeable: true}
	d2 := &fakeDevice{readable: true, writeable: true}

	type query struct {
		Device *fakeDevice
		Op     int
		Addr   int
	}

	tests := []struct {
		Name    string
		Blocked query
		Query   query
		Want    bool
	}{
		{"Exact", query{d1, kernel.SYSCALL_READ, 5}, query{d1, kernel.SYSCALL_READ, 5}, true},
		{"OtherAddr", query{d1, kernel.SYSCALL_READ, 5}, query{d1, kernel.SYSCALL_READ, 6}, false},
		{"OtherDevice", query{d1, kernel.SYSCALL_READ, 5}, query{d2, kernel.SYSCALL_READ, 5}, false},
		{"OtherOp", query{d1, kernel.SYSCALL_READ, 5}, query{d1, kernel.SYSCALL_WRITE, 5}, false},
		{"Write", query{d2, kernel.SYSCALL_WRITE, 9}, query{d2, kernel.SYSCALL_WRITE, 9}, true},
		{"OpenIgnoresAddr", query{d1, kernel.SYSCALL_OPEN, -1}, query{d1, kernel.SYSCALL_OPEN, 42}, true},
		{"OpenOtherDevice", query{d1, kernel.SYSCALL_OPEN, -1}, query{d2, kernel.SYSCALL_OPEN, -1}, false},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			p := kernel.NewProcessControlBlock(kernel.FIRST_PROC_ID)
			p.Block(test.Blocked.Device, test.Blocked.Op, test.Blocked.Addr)

			have := p.IsBlockedForDevice(test.Query.Device, test.Query.Op, test.Query.Addr)

			if have != test.Want {
				t.Errorf("want: %v, have: %v", test.Want, have)
			}
		})
	}
}
