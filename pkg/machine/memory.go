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

// RAM is a flat array of integer cells.
type RAM struct {
	cells []int
}

func NewRAM(size int) *RAM {
	return &RAM{cells: make([]int, size)}
}

func (ram *RAM) Read(addr int) int {
	return ram.cells[addr]
}

func (ram *RAM) Write(addr int, value int) {
	ram.cells[addr] = value
}

func (ram *RAM) Size() int {
	return len(ram.cells)
}
