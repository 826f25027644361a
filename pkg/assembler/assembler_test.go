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

package assembler_test

import (
	"reflect"
	"strings"
	"testing"

	"github.com/lassandro/gosos/pkg/assembler"
	"github.com/lassandro/gosos/pkg/machine"
)

type testCase struct {
	Name      string
	Input     string
	Output    []machine.Instruction
	AllocSize int
	SymTable  *assembler.SymTable
}

type failCase struct {
	Name  string
	Input string
	Error error
}

func testAssemblerSuccess(t *testing.T, test *testCase) {
	var symtable assembler.SymTable
	var symtarget *assembler.SymTable = nil

	if test.SymTable != nil {
		symtarget = &symtable
	}

	prog, errs := assembler.Assemble(
		test.Name, strings.NewReader(test.Input), symtarget,
	)

	if len(errs) > 0 {
		t.Fatal(errs[0])
	}

	if !reflect.DeepEqual(prog.Instructions, test.Output) {
		t.Fatalf(
			"Instruction encoding mismatch\nwant:%v\nhave:%v",
			test.Output,
			prog.Instructions,
		)
	}

	if prog.AllocSize != test.AllocSize {
		t.Fatalf(
			"Allocation size mismatch\nwant:%d\nhave:%d",
			test.AllocSize,
			prog.AllocSize,
		)
	}

	if test.SymTable != nil {
		if !reflect.DeepEqual(symtable.Symbols, test.SymTable.Symbols) {
			t.Fatalf(
				"Symtable encoding mismatch\nwant:%v\nhave:%v",
				test.SymTable.Symbols,
				symtable.Symbols,
			)
		}

		if !reflect.DeepEqual(symtable.Labels, test.SymTable.Labels) {
			t.Fatalf(
				"Symtable label mismatch\nwant:%v\nhave:%v",
				test.SymTable.Labels,
				symtable.Labels,
			)
		}
	}
}

func testAssemblerFail(t *testing.T, test *failCase) {
	prog, errs := assembler.Assemble(test.Name, strings.NewReader(test.Input), nil)

	if test.Error == nil {
		panic("Fail case missing error value")
	}

	if prog != nil {
		t.Fatalf("%s produced a program despite errors", t.Name())
	}

	if len(errs) == 0 {
		t.Fatalf(
			"%s produced error of incorrect type"+
				"\nwant:%T (test.Error)\nhave:<nil>",
			t.Name(),
			test.Error,
		)
	}

	if len(errs) > 1 {
		errTypes := make([]reflect.Type, 0, len(errs))
		for _, err := range errs {
			errTypes = append(errTypes, reflect.TypeOf(err))
		}

		t.Fatalf(
			"%s produced multiple errors:\n\twant:%T (test.Error)\n\thave:%v",
			t.Name(),
			test.Error,
			errTypes,
		)
	}

	if reflect.TypeOf(errs[0]) != reflect.TypeOf(test.Error) {
		t.Fatalf(
			"%s produced error of incorrect type"+
				"\nwant:%T (test.Error)\nhave:%T",
			t.Name(),
			test.Error,
			errs[0],
		)
	}
}

func testSuccess(t *testing.T, tests []testCase) {
	t.Run("Success", func(t *testing.T) {
		for _, test := range tests {
			t.Run(test.Name, func(t *testing.T) {
				testAssemblerSuccess(t, &test)
			})
		}
	})
}

func testFail(t *testing.T, tests []failCase) {
	t.Run("Fail", func(t *testing.T) {
		for _, test := range tests {
			t.Run(test.Name, func(t *testing.T) {
				testAssemblerFail(t, &test)
			})
		}
	})
}

// SET  |dst|value|-  |
func TestSet(t *testing.T) {
	testSuccess(t, []testCase{
		{
			Name:   "Decimal",
			Input:  "SET R0 42",
			Output: []machine.Instruction{{machine.OP_SET, machine.REG_R0, 42, 0}},
		},
		{
			Name:   "Prefixed",
			Input:  "set r1 #-5",
			Output: []machine.Instruction{{machine.OP_SET, machine.REG_R1, -5, 0}},
		},
		{
			Name:   "Hex",
			Input:  "SET R2, 0x1f",
			Output: []machine.Instruction{{machine.OP_SET, machine.REG_R2, 31, 0}},
		},
		{
			Name:   "Register Names",
			Input:  "SET LIM 0",
			Output: []machine.Instruction{{machine.OP_SET, machine.REG_LIM, 0, 0}},
		},
	})

	testFail(t, []failCase{
		{"Invalid Literal", "SET R0 12abc", &assembler.InvalidLiteralError{}},
		{"Oversized Literal", "SET R0 4294967296", &assembler.OversizedLiteralError{}},
		{"Register Value", "SET R0 4 R1", &assembler.InvalidNumArgumentsError{}},
		{"Literal Register", "SET 4 4", &assembler.InvalidOperandError{}},
		{"Unknown Register", "SET R5 4", &assembler.InvalidRegisterError{}},
	})
}

// ADD  |dst|src1|src2|
// SUB
// MUL
// DIV
// COPY |dst|src|-    |
func TestArithmetic(t *testing.T) {
	testSuccess(t, []testCase{
		{
			Name: "Arithmetic",
			Input: "ADD R0 R1 R2\n" +
				"SUB R1, R2, R3\n" +
				"MUL R2 R3 R4\n" +
				"DIV R4 R0 R1\n" +
				"COPY SP BASE",
			Output: []machine.Instruction{
				{machine.OP_ADD, machine.REG_R0, machine.REG_R1, machine.REG_R2},
				{machine.OP_SUB, machine.REG_R1, machine.REG_R2, machine.REG_R3},
				{machine.OP_MUL, machine.REG_R2, machine.REG_R3, machine.REG_R4},
				{machine.OP_DIV, machine.REG_R4, machine.REG_R0, machine.REG_R1},
				{machine.OP_COPY, machine.REG_SP, machine.REG_BASE, 0},
			},
		},
	})

	testFail(t, []failCase{
		{"Too Few Operands", "ADD R0 R1", &assembler.InvalidNumArgumentsError{}},
		{"Literal Operand", "ADD R0 R1 5", &assembler.InvalidOperandError{}},
		{"Copy Literal", "COPY R0 #1", &assembler.InvalidOperandError{}},
	})
}

// BRANCH |addr|-|-   |
// BNE  |r1|r2|addr   |
// BLT  |r1|r2|addr   |
func TestBranch(t *testing.T) {
	testSuccess(t, []testCase{
		{
			Name: "Labels",
			Input: "start:\n" +
				"\tSET R0 0\n" +
				"loop: ADD R0 R0 R1\n" +
				"\tBNE R0 R2 loop\n" +
				"\tBLT R0 R2 start\n" +
				"\tBRANCH end\n" +
				"end: TRAP",
			Output: []machine.Instruction{
				{machine.OP_SET, machine.REG_R0, 0, 0},
				{machine.OP_ADD, machine.REG_R0, machine.REG_R0, machine.REG_R1},
				{machine.OP_BNE, machine.REG_R0, machine.REG_R2, 4},
				{machine.OP_BLT, machine.REG_R0, machine.REG_R2, 0},
				{machine.OP_BRANCH, 20, 0, 0},
				{machine.OP_TRAP, 0, 0, 0},
			},
		},
		{
			Name:   "Literal Target",
			Input:  "BRANCH 0",
			Output: []machine.Instruction{{machine.OP_BRANCH, 0, 0, 0}},
		},
		{
			Name:  "Label Value",
			Input: "SET R0 data\ndata: TRAP",
			Output: []machine.Instruction{
				{machine.OP_SET, machine.REG_R0, 4, 0},
				{machine.OP_TRAP, 0, 0, 0},
			},
		},
	})

	testFail(t, []failCase{
		{"Unknown Label", "BRANCH nowhere", &assembler.UnknownLabelError{}},
		{"Redeclared Label", "a: TRAP\na: TRAP", &assembler.RedeclaredLabelError{}},
		{"Label Operand", "BRANCH loop:", &assembler.InvalidOperandError{}},
		{"Register Target", "BNE R0 R1 R2", &assembler.UnknownLabelError{}},
	})
}

// POP  |dst|-|-      |
// PUSH |src|-|-      |
// LOAD |dst|addr|-   |
// SAVE |src|addr|-   |
// TRAP |-|-|-        |
func TestStack(t *testing.T) {
	testSuccess(t, []testCase{
		{
			Name:  "Stack",
			Input: "PUSH R3\nPOP PC\nLOAD R0 R1\nSAVE R2 SP\nTRAP",
			Output: []machine.Instruction{
				{machine.OP_PUSH, machine.REG_R3, 0, 0},
				{machine.OP_POP, machine.REG_PC, 0, 0},
				{machine.OP_LOAD, machine.REG_R0, machine.REG_R1, 0},
				{machine.OP_SAVE, machine.REG_R2, machine.REG_SP, 0},
				{machine.OP_TRAP, 0, 0, 0},
			},
		},
	})

	testFail(t, []failCase{
		{"Push Literal", "PUSH 4", &assembler.InvalidOperandError{}},
		{"Trap Operand", "TRAP R0", &assembler.InvalidNumArgumentsError{}},
		{"Unknown Instruction", "JUMP 4", &assembler.UnknownIdentifierError{}},
		{"Instruction Literal", "42", &assembler.UnknownIdentifierError{}},
	})
}

func TestDirectives(t *testing.T) {
	testSuccess(t, []testCase{
		{
			Name:      "Alloc",
			Input:     ".alloc 100\nTRAP",
			Output:    []machine.Instruction{{machine.OP_TRAP, 0, 0, 0}},
			AllocSize: 100,
		},
		{
			Name:      "Alloc Hex",
			Input:     "TRAP\n.ALLOC 0x40",
			Output:    []machine.Instruction{{machine.OP_TRAP, 0, 0, 0}},
			AllocSize: 64,
		},
		{
			Name:   "End",
			Input:  "TRAP\n.end\nGARBAGE !!",
			Output: []machine.Instruction{{machine.OP_TRAP, 0, 0, 0}},
		},
	})

	testFail(t, []failCase{
		{"Negative Alloc", ".alloc -4\nTRAP", &assembler.InvalidLiteralError{}},
		{"Alloc Arguments", ".alloc\nTRAP", &assembler.InvalidNumArgumentsError{}},
		{"Alloc Label", ".alloc size\nTRAP", &assembler.InvalidOperandError{}},
		{"End Arguments", "TRAP\n.end 4", &assembler.InvalidNumArgumentsError{}},
		{"Unknown Directive", ".orig 0\nTRAP", &assembler.UnknownIdentifierError{}},
	})
}

func TestComment(t *testing.T) {
	testSuccess(t, []testCase{
		{
			Name: "Comments",
			Input: "# header\n" +
				"SET R0 1 ; trailing\n" +
				"; full line\n" +
				"SET R1 #2 # trailing hash\n" +
				"   \n" +
				"TRAP # done",
			Output: []machine.Instruction{
				{machine.OP_SET, machine.REG_R0, 1, 0},
				{machine.OP_SET, machine.REG_R1, 2, 0},
				{machine.OP_TRAP, 0, 0, 0},
			},
		},
	})

	testFail(t, []failCase{
		{"Only Comments", "# nothing\n; here", &assembler.EmptyProgramError{}},
	})
}

func TestCharacters(t *testing.T) {
	testFail(t, []failCase{
		{"Unexpected Character", "SET R0 4!", &assembler.UnexpectedCharacterError{}},
		{"Oversized Character", "SET R0 é", &assembler.OversizedCharacterError{}},
		{"Misplaced Colon", "SET R0 4:", &assembler.UnexpectedCharacterError{}},
		{"Misplaced Sign", "SET R-0 4", &assembler.UnexpectedCharacterError{}},
	})
}

func TestSymtable(t *testing.T) {
	testSuccess(t, []testCase{
		{
			Name: "Symtable",
			/*
				+  7	start:
				+  9	SET R0 1
				+  1
				+ 10	loop: TRAP
			*/
			Input: "start:\nSET R0 1\n\nloop: TRAP",
			Output: []machine.Instruction{
				{machine.OP_SET, machine.REG_R0, 1, 0},
				{machine.OP_TRAP, 0, 0, 0},
			},
			SymTable: &assembler.SymTable{
				Symbols: map[int]int64{
					0: 7,  // SET
					4: 17, // TRAP
				},
				Labels: map[int]string{
					0: "start",
					4: "loop",
				},
			},
		},
	})
}
