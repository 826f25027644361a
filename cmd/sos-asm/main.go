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

package main

import (
	"bufio"
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/sirupsen/logrus"

	"github.com/lassandro/gosos/pkg/assembler"
)

type asmCmd struct {
	Debug  bool   `help:"Write a symbol table next to the output, using the extension '.sosdb'."`
	Out    string `short:"o" help:"Name of the output file, defaults to the input name with extension '.bin'."`
	Source string `arg:"" optional:"" type:"existingfile" help:"Assembly source, read from stdin when omitted."`
}

var errAssembly = errors.New("assembly failed")

// report prints each error, underlining the offending token when the source
// can be re-read.
func report(log logrus.FieldLogger, input io.ReadSeeker, errs []error) {
	for _, err := range errs {
		var tokenErr assembler.TokenError

		if input == nil || !errors.As(err, &tokenErr) {
			log.Error(err)
			continue
		}

		cursor := tokenErr.GetPosition()

		if _, err := input.Seek(cursor.LineByte, io.SeekStart); err != nil {
			log.Error(err)
			continue
		}

		line, _ := bufio.NewReader(input).ReadString('\n')
		line = strings.TrimRight(line, "\r\n")

		size := int(cursor.Size)
		if size < 1 {
			size = 1
		}

		underline := strings.Repeat(" ", int(cursor.Byte-cursor.LineByte)) +
			"^" + strings.Repeat("~", size-1)

		log.Errorf("%s\n%s\n\033[31m%s\033[0m", err, line, underline)
	}
}

func (cmd *asmCmd) Run(log *logrus.Logger) error {
	var input io.ReadSeeker
	var name string
	var symtable assembler.SymTable

	if cmd.Source == "" {
		data, err := io.ReadAll(os.Stdin)

		if err != nil {
			return err
		}

		input = bytes.NewReader(data)
		name = "out"
	} else {
		file, err := os.Open(cmd.Source)

		if err != nil {
			return err
		}

		defer file.Close()

		input = file
		name = strings.TrimSuffix(filepath.Base(cmd.Source), filepath.Ext(cmd.Source))

		if symtable.Source, err = filepath.Abs(cmd.Source); err != nil {
			log.Warn(err)
			symtable.Source = ""
		}
	}

	if cmd.Out == "" {
		cmd.Out = name + ".bin"
	}

	entry := log.WithField("file", name)

	prog, errs := assembler.Assemble(name, input, &symtable)

	if len(errs) > 0 {
		report(entry, input, errs)
		return errAssembly
	}

	buffer := new(bytes.Buffer)

	if err := prog.Encode(buffer); err != nil {
		return fmt.Errorf("error writing output file: %w", err)
	}

	if err := os.WriteFile(cmd.Out, buffer.Bytes(), 0666); err != nil {
		return fmt.Errorf("error writing output file: %w", err)
	}

	entry.WithFields(logrus.Fields{
		"out":          cmd.Out,
		"instructions": len(prog.Instructions),
		"alloc":        prog.AllocSize,
	}).Info("assembled")

	if !cmd.Debug {
		return nil
	}

	filename := strings.TrimSuffix(cmd.Out, filepath.Ext(cmd.Out)) + ".sosdb"

	file, err := os.Create(filename)

	if err != nil {
		return fmt.Errorf("error creating symbol table: %w", err)
	}

	defer file.Close()

	if err := gob.NewEncoder(file).Encode(symtable); err != nil {
		return fmt.Errorf("error writing symbol table: %w", err)
	}

	return nil
}

func main() {
	var cmd asmCmd

	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	ctx := kong.Parse(&cmd,
		kong.Name("sos-asm"),
		kong.Description("Assembles a program for the simulated processor."),
		kong.UsageOnError(),
	)

	ctx.FatalIfErrorf(ctx.Run(log))
}
