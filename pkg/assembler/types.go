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

package assembler

import (
	"fmt"
)

type TokenType uint
type OperandType uint
type DirectiveType uint

type Cursor struct {
	Line     int
	Column   int
	Byte     int64
	Size     int64
	LineByte int64
}

type Token struct {
	Type     TokenType
	Position Cursor
	Value    string
}

// SymTable maps logical instruction addresses back to the source. Symbols
// holds the byte offset of the line each instruction was assembled from.
type SymTable struct {
	Source  string
	Symbols map[int]int64
	Labels  map[int]string
}

type TokenError interface {
	GetPosition() Cursor
}

func positioned(pos Cursor, format string, args ...interface{}) string {
	return fmt.Sprintf("%d:%d: ", pos.Line, pos.Column) + fmt.Sprintf(format, args...)
}

func tokenName(tokenType TokenType) string {
	switch tokenType {
	case TOKEN_IDENT:
		return "Identifier"
	case TOKEN_LABEL:
		return "Label"
	case TOKEN_DIRECTIVE:
		return "Directive"
	case TOKEN_LITERAL:
		return "Literal"
	}

	return "<invalid>"
}

func operandName(operandType OperandType) string {
	switch operandType {
	case OPERAND_REGISTER:
		return "Register"
	case OPERAND_VALUE:
		return "Literal or Identifier"
	}

	return "<invalid>"
}

type InvalidOperandError struct {
	Position Cursor
	Required OperandType
	Received TokenType
}

func (err *InvalidOperandError) GetPosition() Cursor {
	return err.Position
}

func (err *InvalidOperandError) Error() string {
	return positioned(
		err.Position,
		"Invalid operands\n\twant:%s\n\thave:%s",
		operandName(err.Required),
		tokenName(err.Received),
	)
}

type InvalidNumArgumentsError struct {
	Position Cursor
	Required int
	Received int
}

func (err *InvalidNumArgumentsError) GetPosition() Cursor {
	return err.Position
}

func (err *InvalidNumArgumentsError) Error() string {
	return positioned(
		err.Position,
		"Invalid number of arguments\n\twant:%d\n\thave:%d",
		err.Required,
		err.Received,
	)
}

type InvalidLiteralError struct {
	Position Cursor
}

func (err *InvalidLiteralError) GetPosition() Cursor {
	return err.Position
}

func (err *InvalidLiteralError) Error() string {
	return positioned(err.Position, "Invalid numeric literal")
}

type OversizedLiteralError struct {
	Position Cursor
	Received string
}

func (err *OversizedLiteralError) GetPosition() Cursor {
	return err.Position
}

func (err *OversizedLiteralError) Error() string {
	return positioned(
		err.Position, "Literal exceeds allowed size\n\twant:32 bits\n\thave:%s", err.Received,
	)
}

type InvalidRegisterError struct {
	Position Cursor
}

func (err *InvalidRegisterError) GetPosition() Cursor {
	return err.Position
}

func (err *InvalidRegisterError) Error() string {
	return positioned(err.Position, "Invalid register identifier")
}

type UnexpectedCharacterError struct {
	Position Cursor
	Received rune
}

func (err *UnexpectedCharacterError) GetPosition() Cursor {
	return err.Position
}

func (err *UnexpectedCharacterError) Error() string {
	return positioned(err.Position, "Unexpected character %c", err.Received)
}

type OversizedCharacterError struct {
	Position Cursor
}

func (err *OversizedCharacterError) GetPosition() Cursor {
	return err.Position
}

func (err *OversizedCharacterError) Error() string {
	return positioned(err.Position, "Character exceeds ASCII limit")
}

type RedeclaredLabelError struct {
	Position Cursor
	Received string
}

func (err *RedeclaredLabelError) GetPosition() Cursor {
	return err.Position
}

func (err *RedeclaredLabelError) Error() string {
	return positioned(err.Position, "Redeclaration of label '%s'", err.Received)
}

type UnknownLabelError struct {
	Position Cursor
	Received string
}

func (err *UnknownLabelError) GetPosition() Cursor {
	return err.Position
}

func (err *UnknownLabelError) Error() string {
	return positioned(err.Position, "Unknown label '%s'", err.Received)
}

type UnknownIdentifierError struct {
	Position Cursor
	Received string
}

func (err *UnknownIdentifierError) GetPosition() Cursor {
	return err.Position
}

func (err *UnknownIdentifierError) Error() string {
	return positioned(err.Position, "Unknown identifier '%s'", err.Received)
}

type EmptyProgramError struct{}

func (err *EmptyProgramError) Error() string {
	return "Program contains no instructions"
}
