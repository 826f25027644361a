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
	"bufio"
	"errors"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/lassandro/gosos/pkg/encoding"
	"github.com/lassandro/gosos/pkg/machine"
	"github.com/lassandro/gosos/pkg/program"
)

func parseDirective(ident string) DirectiveType {
	if strings.EqualFold(ident, ".ALLOC") {
		return DIRECTIVE_ALLOC
	} else if strings.EqualFold(ident, ".END") {
		return DIRECTIVE_END
	}

	return DIRECTIVE_INVALID
}

var (
	operandsNone    = []OperandType{}
	operandsReg     = []OperandType{OPERAND_REGISTER}
	operandsRegReg  = []OperandType{OPERAND_REGISTER, OPERAND_REGISTER}
	operandsRegVal  = []OperandType{OPERAND_REGISTER, OPERAND_VALUE}
	operandsVal     = []OperandType{OPERAND_VALUE}
	operandsRegRegV = []OperandType{OPERAND_REGISTER, OPERAND_REGISTER, OPERAND_VALUE}
	operandsReg3    = []OperandType{OPERAND_REGISTER, OPERAND_REGISTER, OPERAND_REGISTER}
)

// parseInstruction returns the opcode and operand layout of a mnemonic.
func parseInstruction(ident string) (int, []OperandType, bool) {
	switch strings.ToUpper(ident) {
	case "SET":
		return machine.OP_SET, operandsRegVal, true
	case "ADD":
		return machine.OP_ADD, operandsReg3, true
	case "SUB":
		return machine.OP_SUB, operandsReg3, true
	case "MUL":
		return machine.OP_MUL, operandsReg3, true
	case "DIV":
		return machine.OP_DIV, operandsReg3, true
	case "COPY":
		return machine.OP_COPY, operandsRegReg, true
	case "BRANCH":
		return machine.OP_BRANCH, operandsVal, true
	case "BNE":
		return machine.OP_BNE, operandsRegRegV, true
	case "BLT":
		return machine.OP_BLT, operandsRegRegV, true
	case "POP":
		return machine.OP_POP, operandsReg, true
	case "PUSH":
		return machine.OP_PUSH, operandsReg, true
	case "LOAD":
		return machine.OP_LOAD, operandsRegReg, true
	case "SAVE":
		return machine.OP_SAVE, operandsRegReg, true
	case "TRAP":
		return machine.OP_TRAP, operandsNone, true
	}

	return 0, nil, false
}

func parseRegister(token *Token) (int, bool) {
	switch strings.ToUpper(token.Value) {
	case "R0":
		return machine.REG_R0, true
	case "R1":
		return machine.REG_R1, true
	case "R2":
		return machine.REG_R2, true
	case "R3":
		return machine.REG_R3, true
	case "R4":
		return machine.REG_R4, true
	case "PC":
		return machine.REG_PC, true
	case "SP":
		return machine.REG_SP, true
	case "BASE":
		return machine.REG_BASE, true
	case "LIM":
		return machine.REG_LIM, true
	}

	return 0, false
}

func parseLiteral(token *Token) (int, error) {
	result, err := encoding.DecodeNumber(token.Value)

	if errors.Is(err, strconv.ErrRange) {
		return 0, &OversizedLiteralError{token.Position, token.Value}
	} else if err != nil {
		return 0, &InvalidLiteralError{token.Position}
	}

	return result, nil
}

// tokenize splits one source line. A '#' followed by a digit or sign starts
// a decimal literal, anywhere else it starts a comment, as does ';'.
func tokenize(line string, cursor Cursor) (tokens []Token, errs []error) {
	var builder strings.Builder
	var tokenStart int
	var tokenType TokenType = TOKEN_NONE

	flush := func() {
		if builder.Len() > 0 {
			tokens = append(tokens, Token{
				Type: tokenType,
				Position: Cursor{
					Line:     cursor.Line,
					Column:   tokenStart,
					Byte:     cursor.Byte + int64(tokenStart-1),
					Size:     int64(builder.Len()),
					LineByte: cursor.Byte,
				},
				Value: builder.String(),
			})
			builder.Reset()
		}

		tokenType = TOKEN_NONE
	}

	for column, char := range line {
		cursor.Column = column + 1

		if tokenType == TOKEN_NONE {
			tokenStart = cursor.Column
		}

		switch {
		// Whitespace and operand separators
		case unicode.IsSpace(char) || char == ',':
			flush()
			continue

		// Comments
		case char == ';':
			flush()
			return

		// Decimal literal (i.e. #42) or comment
		case char == '#':
			if tokenType != TOKEN_NONE {
				errs = append(errs, &UnexpectedCharacterError{cursor, char})
				continue
			}

			if next := column + 1; next >= len(line) ||
				!(unicode.IsDigit(rune(line[next])) || line[next] == '-') {
				return
			}

			tokenType = TOKEN_LITERAL

		// Assembler directives
		case char == '.':
			if tokenType != TOKEN_NONE {
				errs = append(errs, &UnexpectedCharacterError{cursor, char})
				continue
			}

			tokenType = TOKEN_DIRECTIVE

		// Label declaration
		case char == ':':
			if tokenType != TOKEN_IDENT {
				errs = append(errs, &UnexpectedCharacterError{cursor, char})
				continue
			}

			tokenType = TOKEN_LABEL
			flush()
			continue

		// Numeric literal and sign
		case unicode.IsDigit(char) || char == '-':
			if tokenType == TOKEN_NONE {
				tokenType = TOKEN_LITERAL
			} else if char == '-' && tokenType != TOKEN_LITERAL {
				errs = append(errs, &UnexpectedCharacterError{cursor, char})
				continue
			}

		// Identifier
		case unicode.IsLetter(char) || char == '_':
			if char > unicode.MaxASCII {
				errs = append(errs, &OversizedCharacterError{cursor})
				continue
			}

			if tokenType == TOKEN_NONE {
				tokenType = TOKEN_IDENT
			}

		default:
			if char > unicode.MaxASCII {
				errs = append(errs, &OversizedCharacterError{cursor})
			} else {
				errs = append(errs, &UnexpectedCharacterError{cursor, char})
			}

			continue
		}

		builder.WriteRune(char)
	}

	flush()
	return
}

// Assemble translates SOS assembly into a program. Every error found is
// reported, the program is nil if there were any.
func Assemble(name string, input io.Reader, symtable *SymTable) (*program.Program, []error) {
	type LabelRef struct {
		Label    string
		Instr    int
		Operand  int
		Position Cursor
	}

	var labels = make(map[string]int)
	var labelRefs []LabelRef
	var errs []error

	var scanner = bufio.NewScanner(input)
	var cursor = Cursor{Line: 1}

	prog := &program.Program{Name: name}

	if symtable != nil {
		if symtable.Symbols == nil {
			symtable.Symbols = make(map[int]int64)
		}

		if symtable.Labels == nil {
			symtable.Labels = make(map[int]string)
		}
	}

	next := func(line string) {
		cursor.Line++
		cursor.Byte += int64(len(line) + 1)
		cursor.LineByte = cursor.Byte
	}

	for scanner.Scan() {
		line := scanner.Text()
		cursor.Size = int64(len(line))

		tokens, lineErrs := tokenize(line, cursor)

		// Pass on assembling lines that did not parse
		if len(lineErrs) > 0 {
			errs = append(errs, lineErrs...)
			next(line)
			continue
		}

		addr := len(prog.Instructions) * machine.INSTRSIZE

		if len(tokens) > 0 && tokens[0].Type == TOKEN_LABEL {
			label := tokens[0]

			if _, exists := labels[label.Value]; exists {
				errs = append(
					errs, &RedeclaredLabelError{label.Position, label.Value},
				)
			} else {
				labels[label.Value] = addr

				if symtable != nil {
					symtable.Labels[addr] = label.Value
				}
			}

			tokens = tokens[1:]
		}

		if len(tokens) == 0 {
			next(line)
			continue
		}

		keyword := &tokens[0]
		operands := tokens[1:]

		if keyword.Type == TOKEN_DIRECTIVE {
			directive := parseDirective(keyword.Value)

			if directive == DIRECTIVE_END {
				if count := len(operands); count != 0 {
					errs = append(
						errs, &InvalidNumArgumentsError{keyword.Position, 0, count},
					)
				}

				break
			}

			switch directive {
			// .alloc N
			case DIRECTIVE_ALLOC:
				if count := len(operands); count != 1 {
					errs = append(
						errs, &InvalidNumArgumentsError{keyword.Position, 1, count},
					)

					break
				}

				if operands[0].Type != TOKEN_LITERAL {
					errs = append(errs, &InvalidOperandError{
						operands[0].Position, OPERAND_VALUE, operands[0].Type,
					})

					break
				}

				size, err := parseLiteral(&operands[0])

				if err != nil {
					errs = append(errs, err)
				} else if size < 0 {
					errs = append(errs, &InvalidLiteralError{operands[0].Position})
				} else {
					prog.AllocSize = size
				}

			default:
				errs = append(
					errs, &UnknownIdentifierError{keyword.Position, keyword.Value},
				)
			}

			next(line)
			continue
		}

		opcode, layout, ok := parseInstruction(keyword.Value)

		if keyword.Type != TOKEN_IDENT || !ok {
			errs = append(
				errs, &UnknownIdentifierError{keyword.Position, keyword.Value},
			)

			next(line)
			continue
		}

		if count := len(operands); count != len(layout) {
			errs = append(
				errs,
				&InvalidNumArgumentsError{keyword.Position, len(layout), count},
			)

			next(line)
			continue
		}

		instr := machine.Instruction{opcode}

		for i, operandType := range layout {
			operand := &operands[i]

			switch {
			case operandType == OPERAND_REGISTER && operand.Type == TOKEN_IDENT:
				if reg, ok := parseRegister(operand); ok {
					instr[i+1] = reg
				} else {
					errs = append(errs, &InvalidRegisterError{operand.Position})
				}

			case operandType == OPERAND_VALUE && operand.Type == TOKEN_LITERAL:
				if value, err := parseLiteral(operand); err != nil {
					errs = append(errs, err)
				} else {
					instr[i+1] = value
				}

			case operandType == OPERAND_VALUE && operand.Type == TOKEN_IDENT:
				if target, exists := labels[operand.Value]; exists {
					instr[i+1] = target
				} else {
					labelRefs = append(labelRefs, LabelRef{
						operand.Value,
						len(prog.Instructions),
						i + 1,
						operand.Position,
					})
				}

			default:
				errs = append(errs, &InvalidOperandError{
					operand.Position, operandType, operand.Type,
				})
			}
		}

		if symtable != nil {
			symtable.Symbols[addr] = cursor.LineByte
		}

		prog.Instructions = append(prog.Instructions, instr)
		next(line)
	}

	if err := scanner.Err(); err != nil {
		errs = append(errs, err)
	}

	// Resolve labels referenced before their declaration
	for _, ref := range labelRefs {
		addr, exists := labels[ref.Label]

		if !exists {
			errs = append(errs, &UnknownLabelError{ref.Position, ref.Label})
			continue
		}

		prog.Instructions[ref.Instr][ref.Operand] = addr
	}

	if len(errs) == 0 && len(prog.Instructions) == 0 {
		errs = append(errs, &EmptyProgramError{})
	}

	if len(errs) > 0 {
		return nil, errs
	}

	return prog, nil
}
