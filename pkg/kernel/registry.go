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

	"github.com/lassandro/gosos/pkg/device"
)

// DeviceInfo tracks the processes that have a device open or are waiting
// to open it.
type DeviceInfo struct {
	id     int
	device device.Device
	procs  []*ProcessControlBlock
}

func (info *DeviceInfo) ID() int {
	return info.id
}

func (info *DeviceInfo) Device() device.Device {
	return info.device
}

func (info *DeviceInfo) AddProcess(p *ProcessControlBlock) {
	info.procs = append(info.procs, p)
}

func (info *DeviceInfo) RemoveProcess(p *ProcessControlBlock) {
	for i, proc := range info.procs {
		if proc == p {
			info.procs = append(info.procs[:i], info.procs[i+1:]...)
			return
		}
	}
}

func (info *DeviceInfo) ContainsProcess(p *ProcessControlBlock) bool {
	for _, proc := range info.procs {
		if proc == p {
			return true
		}
	}

	return false
}

func (info *DeviceInfo) Processes() []*ProcessControlBlock {
	result := make([]*ProcessControlBlock, len(info.procs))
	copy(result, info.procs)
	return result
}

func (info *DeviceInfo) Unused() bool {
	return len(info.procs) == 0
}

// SelectBlockedProcess returns the first associated process waiting on
// this device for op at addr, or nil.
func (info *DeviceInfo) SelectBlockedProcess(op int, addr int) *ProcessControlBlock {
	for _, proc := range info.procs {
		if proc.IsBlockedForDevice(info.device, op, addr) {
			return proc
		}
	}

	return nil
}

type DeviceRegistry struct {
	devices []*DeviceInfo
}

func NewDeviceRegistry() *DeviceRegistry {
	return &DeviceRegistry{}
}

// Register assigns id to the device. Ids are unique.
func (r *DeviceRegistry) Register(dev device.Device, id int) error {
	if r.Lookup(id) != nil {
		return fmt.Errorf("%w: %d", ErrDeviceExists, id)
	}

	dev.SetID(id)
	r.devices = append(r.devices, &DeviceInfo{id: id, device: dev})
	return nil
}

func (r *DeviceRegistry) Lookup(id int) *DeviceInfo {
	for _, info := range r.devices {
		if info.id == id {
			return info
		}
	}

	return nil
}

func (r *DeviceRegistry) Devices() []*DeviceInfo {
	result := make([]*DeviceInfo, len(r.devices))
	copy(result, r.devices)
	return result
}

// Holding lists the devices p is associated with.
func (r *DeviceRegistry) Holding(p *ProcessControlBlock) []*DeviceInfo {
	var result []*DeviceInfo

	for _, info := range r.devices {
		if info.ContainsProcess(p) {
			result = append(result, info)
		}
	}

	return result
}
