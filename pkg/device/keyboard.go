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

// RuneSource is satisfied by *tty.TTY from github.com/mattn/go-tty.
type RuneSource interface {
	ReadRune() (rune, error)
}

// Keyboard is an exclusive, read-only device. Each read delivers the next
// rune from its source, or -1 once the source is exhausted.
type Keyboard struct {
	base

	source RuneSource
}

func NewKeyboard(source RuneSource, completer Completer, latency time.Duration) *Keyboard {
	dev := &Keyboard{source: source}
	dev.completer = completer
	dev.latency = latency
	return dev
}

func (dev *Keyboard) Readable() bool  { return true }
func (dev *Keyboard) Writeable() bool { return false }
func (dev *Keyboard) Sharable() bool  { return false }

func (dev *Keyboard) Read(addr int) {
	dev.begin(
		func() int {
			r, err := dev.source.ReadRune()
			if err != nil {
				return -1
			}
			return int(r)
		},
		func(c Completer, id, data int) { c.ReadComplete(id, addr, data) },
	)
}

// Write is never issued by the kernel against a read-only device.
func (dev *Keyboard) Write(addr int, value int) {}
