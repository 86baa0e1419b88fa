// Copyright 2025 cdriver project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package compdb reads clang compilation databases (compile_commands.json)
// and recovers the preprocessor-relevant flags for individual source files.
package compdb

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Command is a single compilation database entry. Exactly one of Command and
// Arguments is populated depending on how the build system emitted the entry.
type Command struct {
	Directory string   `json:"directory"`
	Command   string   `json:"command"`
	Arguments []string `json:"arguments"`
	File      string   `json:"file"`
}

type Database struct {
	// Keyed by absolute file path.
	cmds map[string]*Command
}

// ErrNoEntry is returned by Flags when the database has no record for a file.
var ErrNoEntry = errors.New("no compilation database entry")

// Load reads compile_commands.json from dir.
func Load(dir string) (*Database, error) {
	file := filepath.Join(dir, "compile_commands.json")
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read compilation database: %w", err)
	}
	var cmds []*Command
	if err := json.Unmarshal(data, &cmds); err != nil {
		return nil, fmt.Errorf("failed to parse %v: %w", file, err)
	}
	db := &Database{cmds: make(map[string]*Command)}
	for _, cmd := range cmds {
		path := cmd.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(cmd.Directory, path)
		}
		db.cmds[filepath.Clean(path)] = cmd
	}
	return db, nil
}

// Flags returns the include/define flags recorded for file: -I/-D/-U in both
// joined and separate-argument form, plus -isystem and -include with their
// following argument. Everything else (target flags, warnings, optimization,
// the compiler binary itself) is dropped since only the preprocessor runs on
// the result. Returns ErrNoEntry if the database has no record for file.
func (db *Database) Flags(file string) ([]string, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return nil, err
	}
	cmd := db.cmds[filepath.Clean(abs)]
	if cmd == nil {
		return nil, fmt.Errorf("%w for %v", ErrNoEntry, file)
	}
	args := cmd.Arguments
	if len(args) == 0 {
		args = splitCommand(cmd.Command)
	}
	var flags []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case strings.HasPrefix(arg, "-I"), strings.HasPrefix(arg, "-D"), strings.HasPrefix(arg, "-U"):
			flags = append(flags, arg)
			// Separate-argument form: the value follows as its own element.
			if (arg == "-I" || arg == "-D" || arg == "-U") && i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		case arg == "-isystem", arg == "-include":
			flags = append(flags, arg)
			if i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		}
	}
	return flags, nil
}

// splitCommand splits a shell command string into arguments, honoring single
// and double quotes and backslash escapes. Compilation databases quote paths
// with spaces this way.
func splitCommand(cmd string) []string {
	var args []string
	var cur strings.Builder
	var quote byte
	pending := false
	for i := 0; i < len(cmd); i++ {
		ch := cmd[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			} else if ch == '\\' && quote == '"' && i+1 < len(cmd) {
				i++
				cur.WriteByte(cmd[i])
			} else {
				cur.WriteByte(ch)
			}
		case ch == '\'' || ch == '"':
			quote = ch
			pending = true
		case ch == '\\' && i+1 < len(cmd):
			i++
			cur.WriteByte(cmd[i])
			pending = true
		case ch == ' ' || ch == '\t':
			if pending || cur.Len() != 0 {
				args = append(args, cur.String())
				cur.Reset()
				pending = false
			}
		default:
			cur.WriteByte(ch)
			pending = true
		}
	}
	if pending || cur.Len() != 0 {
		args = append(args, cur.String())
	}
	return args
}
