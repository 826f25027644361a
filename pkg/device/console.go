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
	"fmt"
	"io"
	"sync"
	"time"
)

// Console is a sharable, write-only device that prints every value written
// to it. It never reports itself busy.
type Console struct {
	base

	outmu sync.Mutex
	out   io.Writer
}

func NewConsole(out io.Writer, completer Completer, latency time.Duration) *Console {
	dev := &Console{out: out}
	dev.completer = completer
	dev.latency = latency
	return dev
}

func (dev *Console) Readable() bool  { return false }
func (dev *Console) Writeable() bool { return true }
func (dev *Console) Sharable() bool  { return true }
func (dev *Console) Available() bool { return true }

// Read is never issued by the kernel against a write-only device.
func (dev *Console) Read(addr int) {}

func (dev *Console) Write(addr int, value int) {
	dev.begin(
		func() int {
			dev.outmu.Lock()
			defer dev.outmu.Unlock()
			fmt.Fprintf(dev.out, "CONSOLE: %d\n", value)
			return 0
		},
		func(c Completer, id, _ int) { c.WriteComplete(id, addr) },
	)
}
