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
	"errors"
	"testing"

	"github.com/lassandro/gosos/pkg/kernel"
)

func TestRegistry(t *testing.T) {
	registry := kernel.NewDeviceRegistry()
	d1 := &fakeDevice{readable: true}
	d2 := &fakeDevice{writeable: true}

	if err := registry.Register(d1, 1); err != nil {
		t.Fatal(err)
	}

	if err := registry.Register(d2, 2); err != nil {
		t.Fatal(err)
	}

	if err := registry.Register(&fakeDevice{}, 1); !errors.Is(err, kernel.ErrDeviceExists) {
		t.Fatalf("want: %v, have: %v", kernel.ErrDeviceExists, err)
	}

	if d2.ID() != 2 {
		t.Errorf("device id want: 2, have: %d", d2.ID())
	}

	if registry.Lookup(3) != nil {
		t.Error("lookup of unregistered id succeeded")
	}

	info := registry.Lookup(1)

	if info == nil || info.Device() != d1 {
		t.Fatal("lookup returned the wrong device")
	}

	p1 := kernel.NewProcessControlBlock(kernel.FIRST_PROC_ID)
	p2 := kernel.NewProcessControlBlock(kernel.FIRST_PROC_ID + 1)

	if !info.Unused() {
		t.Error("new device should be unused")
	}

	info.AddProcess(p1)
	info.AddProcess(p2)
	p2.Block(d1, kernel.SYSCALL_OPEN, -1)

	if have := info.SelectBlockedProcess(kernel.SYSCALL_OPEN, -1); have != p2 {
		t.Errorf("want: %v, have: %v", p2, have)
	}

	if have := info.SelectBlockedProcess(kernel.SYSCALL_READ, -1); have != nil {
		t.Errorf("want: nil, have: %v", have)
	}

	if holding := registry.Holding(p1); len(holding) != 1 || holding[0] != info {
		t.Errorf("holding want: [1], have: %v", holding)
	}

	info.RemoveProcess(p1)

	if info.ContainsProcess(p1) || !info.ContainsProcess(p2) {
		t.Error("remove dropped the wrong process")
	}

	if len(registry.Holding(p1)) != 0 {
		t.Error("removed process still holds a device")
	}
}
