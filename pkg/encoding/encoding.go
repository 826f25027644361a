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

package encoding

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

var ErrInvalidNumber = errors.New("Invalid numeric string")

// Decodes a hexidecimal string in the formats: 0x2A, x2A, -0x2A
func DecodeHex(s string) (int, error) {
	negative := strings.HasPrefix(s, "-")

	if negative {
		s = s[1:]
	}

	if i := strings.IndexAny(s, "xX"); i == 0 {
		s = "0" + s
	} else if i != 1 || s[0] != '0' {
		return 0, ErrInvalidNumber
	}

	result, err := strconv.ParseInt(s, 0, 64)

	if err != nil {
		return 0, err
	}

	if negative {
		result = -result
	}

	return checkWord(result)
}

// Decodes a base-10 string in the formats: #123, 123, -123
func DecodeInt(s string) (int, error) {
	if i := strings.Index(s, "#"); i == 0 {
		s = s[1:]
	}

	result, err := strconv.ParseInt(s, 10, 64)

	if err != nil {
		return 0, err
	}

	return checkWord(result)
}

// Decodes either format, choosing by the presence of an x.
func DecodeNumber(s string) (int, error) {
	if strings.ContainsAny(s, "xX") {
		return DecodeHex(s)
	}

	return DecodeInt(s)
}

// Memory cells are stored as 32 bit words in program binaries.
func checkWord(value int64) (int, error) {
	if value < math.MinInt32 || value > math.MaxInt32 {
		return 0, strconv.ErrRange
	}

	return int(value), nil
}
