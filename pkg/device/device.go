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
	"sync"
	"time"
)

// Device is the capability set the operating system sees. Read and Write
// return immediately, completion is reported later through a Completer.
type Device interface {
	ID() int
	SetID(id int)

	Readable() bool
	Writeable() bool
	Sharable() bool
	Available() bool

	Read(addr int)
	Write(addr int, value int)
}

// Completer receives asynchronous completion notifications from devices.
type Completer interface {
	ReadComplete(device, addr, data int)
	WriteComplete(device, addr int)
}

// base tracks identity and the single in-flight operation shared by every
// device variant.
type base struct {
	mu        sync.Mutex
	id        int
	busy      bool
	latency   time.Duration
	completer Completer
	wg        sync.WaitGroup
}

func (dev *base) ID() int {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.id
}

func (dev *base) SetID(id int) {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	dev.id = id
}

func (dev *base) Available() bool {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return !dev.busy
}

// begin marks the device busy and runs op on its own goroutine after the
// configured latency. op returns the read data, ignored for writes.
func (dev *base) begin(op func() int, done func(c Completer, id, data int)) {
	dev.mu.Lock()
	dev.busy = true
	id := dev.id
	dev.mu.Unlock()

	dev.wg.Add(1)
	go func() {
		defer dev.wg.Done()

		if dev.latency > 0 {
			time.Sleep(dev.latency)
		}

		data := op()

		dev.mu.Lock()
		dev.busy = false
		dev.mu.Unlock()

		if dev.completer != nil {
			done(dev.completer, id, data)
		}
	}()
}

// Wait blocks until every operation started so far has completed.
func (dev *base) Wait() {
	dev.wg.Wait()
}
