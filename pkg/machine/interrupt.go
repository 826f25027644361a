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

func NewInterruptController(size int) *InterruptController {
	return &InterruptController{
		events: make(chan Interrupt, size),
		done:   make(chan struct{}),
	}
}

// Post blocks while the queue is full, and drops the interrupt once the
// controller has been closed.
func (ic *InterruptController) Post(event Interrupt) {
	select {
	case ic.events <- event:
	case <-ic.done:
	}
}

func (ic *InterruptController) ReadComplete(device, addr, data int) {
	ic.Post(Interrupt{
		Type:   INT_IO_READ_COMPLETE,
		Device: device,
		Addr:   addr,
		Data:   data,
	})
}

func (ic *InterruptController) WriteComplete(device, addr int) {
	ic.Post(Interrupt{
		Type:   INT_IO_WRITE_COMPLETE,
		Device: device,
		Addr:   addr,
	})
}

// Poll returns the oldest pending interrupt without blocking.
func (ic *InterruptController) Poll() (Interrupt, bool) {
	select {
	case event := <-ic.events:
		return event, true
	default:
		return Interrupt{}, false
	}
}

func (ic *InterruptController) Close() {
	ic.once.Do(func() { close(ic.done) })
}
