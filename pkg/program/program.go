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

package program

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/lassandro/gosos/pkg/machine"
)

const (
	// Marks the start of a program binary
	MAGIC int32 = 0x534F5331

	// Largest instruction count a binary may declare
	MAX_INSTRUCTIONS int32 = 1 << 16
)

var ErrInvalidBinary = errors.New("invalid program binary")

// Program is a fixed-width instruction array plus an optional declared
// allocation size. A zero AllocSize means the loader derives one.
type Program struct {
	Name         string
	Instructions []machine.Instruction
	AllocSize    int
}

// Size is the number of memory cells the program occupies.
func (prog *Program) Size() int {
	return len(prog.Instructions) * machine.INSTRSIZE
}

// Export flattens the program into memory cells.
func (prog *Program) Export() []int {
	result := make([]int, 0, prog.Size())

	for _, instr := range prog.Instructions {
		result = append(result, instr[:]...)
	}

	return result
}

// Encode writes the program as big-endian int32 words: magic, allocation
// size, instruction count, then every instruction word.
func (prog *Program) Encode(w io.Writer) error {
	words := make([]int32, 0, 3+prog.Size())
	words = append(words, MAGIC, int32(prog.AllocSize), int32(len(prog.Instructions)))

	for _, value := range prog.Export() {
		words = append(words, int32(value))
	}

	return binary.Write(w, binary.BigEndian, words)
}

func Decode(name string, r io.Reader) (*Program, error) {
	var header [3]int32

	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", name, ErrInvalidBinary, err)
	}

	if header[0] != MAGIC {
		return nil, fmt.Errorf("%s: %w: bad magic %#x", name, ErrInvalidBinary, header[0])
	}

	if header[1] < 0 || header[2] < 0 {
		return nil, fmt.Errorf("%s: %w: negative header field", name, ErrInvalidBinary)
	}

	if header[2] > MAX_INSTRUCTIONS {
		return nil, fmt.Errorf(
			"%s: %w: %d instructions exceeds %d", name, ErrInvalidBinary, header[2], MAX_INSTRUCTIONS,
		)
	}

	prog := &Program{
		Name:         name,
		AllocSize:    int(header[1]),
		Instructions: make([]machine.Instruction, 0, header[2]),
	}

	var words [machine.INSTRSIZE]int32

	for i := int32(0); i < header[2]; i++ {
		if err := binary.Read(r, binary.BigEndian, &words); err != nil {
			return nil, fmt.Errorf("%s: %w: instruction %d: %v", name, ErrInvalidBinary, i, err)
		}

		var instr machine.Instruction
		for j, word := range words {
			instr[j] = int(word)
		}

		prog.Instructions = append(prog.Instructions, instr)
	}

	return prog, nil
}
