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
)

type Priority int

func (prio Priority) String() string {
	switch prio {
	case PRIO_HIGH:
		return "high"
	case PRIO_NORMAL:
		return "normal"
	case PRIO_LOW:
		return "low"
	}

	return "none"
}

// Scheduler keeps every live process in exactly one of three priority
// queues. The current process stays in its queue while it runs.
type Scheduler struct {
	cpu     Processor
	quantum int
	log     logrus.FieldLogger

	current   *ProcessControlBlock
	processes []*ProcessControlBlock
	queues    [NUM_PRIO][]*ProcessControlBlock
}

func NewScheduler(cpu Processor, quantum int, log logrus.FieldLogger) *Scheduler {
	if quantum <= 0 {
		quantum = DEFAULT_QUANTUM
	}

	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Scheduler{cpu: cpu, quantum: quantum, log: log}
}

func (s *Scheduler) Current() *ProcessControlBlock {
	return s.current
}

func (s *Scheduler) Count() int {
	return len(s.processes)
}

func (s *Scheduler) Processes() []*ProcessControlBlock {
	result := make([]*ProcessControlBlock, len(s.processes))
	copy(result, s.processes)
	return result
}

func (s *Scheduler) Queue(prio Priority) []*ProcessControlBlock {
	result := make([]*ProcessControlBlock, len(s.queues[prio]))
	copy(result, s.queues[prio])
	return result
}

func (s *Scheduler) PriorityOf(p *ProcessControlBlock) (Priority, bool) {
	return p.prio, p.queued
}

// Admit adds a new process to the process list at the given priority.
func (s *Scheduler) Admit(p *ProcessControlBlock, prio Priority) {
	s.processes = append(s.processes, p)
	s.MoveTo(p, prio)
}

func (s *Scheduler) dequeue(p *ProcessControlBlock) {
	if !p.queued {
		return
	}

	queue := s.queues[p.prio]

	for i, proc := range queue {
		if proc == p {
			s.queues[p.prio] = append(queue[:i], queue[i+1:]...)
			break
		}
	}

	p.queued = false
}

// MoveTo places p at the tail of the given queue, removing it from the one
// it was in. A process already in that queue keeps its position.
func (s *Scheduler) MoveTo(p *ProcessControlBlock, prio Priority) {
	if p.queued && p.prio == prio {
		return
	}

	s.dequeue(p)
	s.queues[prio] = append(s.queues[prio], p)
	p.prio = prio
	p.queued = true
}

// Upgrade raises p one level, high stays high.
func (s *Scheduler) Upgrade(p *ProcessControlBlock) {
	if !p.queued {
		return
	}

	switch p.prio {
	case PRIO_LOW:
		s.MoveTo(p, PRIO_NORMAL)
	case PRIO_NORMAL:
		s.MoveTo(p, PRIO_HIGH)
	}
}

// Downgrade lowers p one level, low stays low.
func (s *Scheduler) Downgrade(p *ProcessControlBlock) {
	if !p.queued {
		return
	}

	switch p.prio {
	case PRIO_HIGH:
		s.MoveTo(p, PRIO_NORMAL)
	case PRIO_NORMAL:
		s.MoveTo(p, PRIO_LOW)
	}
}

// Normalize keeps candidates in the normal and high queues. Afterwards
// neither is empty unless the low queue is empty too, given at least two
// processes.
func (s *Scheduler) Normalize() {
	high := &s.queues[PRIO_HIGH]
	normal := &s.queues[PRIO_NORMAL]
	low := &s.queues[PRIO_LOW]

	if len(*normal) == 0 {
		if len(*low) > 0 {
			s.MoveTo((*low)[0], PRIO_NORMAL)
		} else if len(*high) > 0 {
			s.MoveTo((*high)[0], PRIO_NORMAL)
		}
	}

	if len(*high) == 0 && len(*normal) > 0 {
		s.MoveTo((*normal)[0], PRIO_HIGH)
	}

	// Filling high may have drained normal again
	if len(*normal) == 0 && len(*low) > 0 {
		s.MoveTo((*low)[0], PRIO_NORMAL)
	}
}

// ChooseNext picks the process that should run next, or nil when every
// process is blocked. Choosing the current process means no switch.
func (s *Scheduler) ChooseNext() *ProcessControlBlock {
	var fallback *ProcessControlBlock

	if cur := s.current; cur != nil && !cur.Blocked() {
		cur.quantum++

		if cur.quantum <= s.quantum {
			return cur
		}

		cur.quantum = 0
		s.Downgrade(cur)
		fallback = cur

		s.log.WithFields(logrus.Fields{
			"pid":  cur.pid,
			"prio": cur.prio,
		}).Trace("quantum expired")
	}

	s.Normalize()

	for _, queue := range s.queues {
		for _, proc := range queue {
			if !proc.Blocked() {
				return proc
			}
		}
	}

	return fallback
}

// SetCurrent marks p as running without touching the processor. Used when
// the caller has already loaded p's registers.
func (s *Scheduler) SetCurrent(p *ProcessControlBlock) {
	s.current = p

	if p != nil {
		p.quantum = 0
	}
}

// Switch saves the current process and restores p onto the processor.
func (s *Scheduler) Switch(p *ProcessControlBlock) {
	if p == s.current {
		return
	}

	if s.current != nil {
		s.current.Save(s.cpu)
	}

	s.log.WithFields(logrus.Fields{
		"from": pidOf(s.current),
		"to":   p.pid,
		"prio": p.prio,
	}).Debug("context switch")

	s.SetCurrent(p)
	p.Restore(s.cpu)
}

// Remove strips p from the process list and every queue.
func (s *Scheduler) Remove(p *ProcessControlBlock) {
	for i, proc := range s.processes {
		if proc == p {
			s.processes = append(s.processes[:i], s.processes[i+1:]...)
			break
		}
	}

	s.dequeue(p)

	if s.current == p {
		s.current = nil
	}
}

// RemoveCurrent strips the current process and leaves nothing running. The
// caller reschedules.
func (s *Scheduler) RemoveCurrent() *ProcessControlBlock {
	cur := s.current

	if cur != nil {
		s.Remove(cur)
	}

	return cur
}

func pidOf(p *ProcessControlBlock) int {
	if p == nil {
		return -1
	}

	return p.pid
}
