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

package device

import (
	"time"
)

// Disk is an exclusive read/write store of integer cells keyed by address.
// Unwritten cells read as zero.
type Disk struct {
	base

	cells map[int]int
}

func NewDisk(completer Completer, latency time.Duration) *Disk {
	dev := &Disk{cells: make(map[int]int)}
	dev.completer = completer
	dev.latency = latency
	return dev
}

func (dev *Disk) Readable() bool  { return true }
func (dev *Disk) Writeable() bool { return true }
func (dev *Disk) Sharable() bool  { return false }

func (dev *Disk) Read(addr int) {
	dev.begin(
		func() int {
			dev.mu.Lock()
			defer dev.mu.Unlock()
			return dev.cells[addr]
		},
		func(c Completer, id, data int) { c.ReadComplete(id, addr, data) },
	)
}

func (dev *Disk) Write(addr int, value int) {
	dev.begin(
		func() int {
			dev.mu.Lock()
			defer dev.mu.Unlock()
			dev.cells[addr] = value
			return 0
		},
		func(c Completer, id, _ int) { c.WriteComplete(id, addr) },
	)
}
