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

package program_test

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/lassandro/gosos/pkg/machine"
	"github.com/lassandro/gosos/pkg/program"
)

func TestEncodeDecode(t *testing.T) {
	prog := &program.Program{
		Name:      "counter",
		AllocSize: 120,
		Instructions: []machine.Instruction{
			{machine.OP_SET, 0, -3, 0},
			{machine.OP_PUSH, 0, 0, 0},
			{machine.OP_TRAP, 0, 0, 0},
		},
	}

	var buf bytes.Buffer

	if err := prog.Encode(&buf); err != nil {
		t.Fatal(err)
	}

	if have := buf.Len(); have != 4*(3+12) {
		t.Errorf("Encoded size mismatch\nwant:%d\nhave:%d", 4*(3+12), have)
	}

	have, err := program.Decode("counter", &buf)

	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(have, prog) {
		t.Errorf("Decoded program mismatch\nwant:%+v\nhave:%+v", prog, have)
	}
}

func TestDecodeInvalid(t *testing.T) {
	tests := []struct {
		Name  string
		Input []byte
	}{
		{"Empty", nil},
		{"Bad Magic", []byte{0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0}},
		{"Truncated", []byte{0x53, 0x4F, 0x53, 0x31, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0}},
		{"Oversized Count", []byte{0x53, 0x4F, 0x53, 0x31, 0, 0, 0, 0, 0x01, 0x31, 0x2D, 0x00}},
		{"Missing Instructions", []byte{0x53, 0x4F, 0x53, 0x31, 0, 0, 0, 0, 0, 0, 0x10, 0}},
		{"Negative Count", []byte{0x53, 0x4F, 0x53, 0x31, 0, 0, 0, 0, 0xFF, 0xFF, 0xFF, 0xFF}},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			_, err := program.Decode(test.Name, bytes.NewReader(test.Input))

			if !errors.Is(err, program.ErrInvalidBinary) {
				t.Errorf("Decode error mismatch\nwant:%v\nhave:%v", program.ErrInvalidBinary, err)
			}
		})
	}
}

func TestExport(t *testing.T) {
	prog := &program.Program{
		Instructions: []machine.Instruction{
			{1, 2, 3, 4},
			{5, 6, 7, 8},
		},
	}

	want := []int{1, 2, 3, 4, 5, 6, 7, 8}

	if have := prog.Export(); !reflect.DeepEqual(have, want) {
		t.Errorf("Export mismatch\nwant:%v\nhave:%v", want, have)
	}

	if prog.Size() != 8 {
		t.Errorf("Size mismatch\nwant:8\nhave:%d", prog.Size())
	}
}
