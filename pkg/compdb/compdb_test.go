// Copyright 2025 cdriver project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package compdb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDB(t *testing.T, dir, contents string) {
	t.Helper()
	err := os.WriteFile(filepath.Join(dir, "compile_commands.json"), []byte(contents), 0644)
	require.NoError(t, err)
}

func TestFlagsFromArguments(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "main.c")
	writeDB(t, dir, `[{
		"directory": "`+dir+`",
		"arguments": ["cc", "-c", "-O2", "-Wall", "-Iinclude", "-I", "other",
			"-DDEBUG=1", "-U", "NDEBUG", "-isystem", "/usr/lib/inc",
			"-include", "config.h", "-o", "main.o", "main.c"],
		"file": "main.c"
	}]`)
	db, err := Load(dir)
	require.NoError(t, err)
	flags, err := db.Flags(file)
	require.NoError(t, err)
	want := []string{
		"-Iinclude", "-I", "other", "-DDEBUG=1", "-U", "NDEBUG",
		"-isystem", "/usr/lib/inc", "-include", "config.h",
	}
	assert.Equal(t, want, flags)
}

func TestFlagsFromCommand(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "src", "lib.c")
	require.NoError(t, os.MkdirAll(filepath.Dir(file), 0755))
	writeDB(t, dir, `[{
		"directory": "`+dir+`",
		"command": "gcc -g -I'my dir' -DVERSION=\"1.0\" -fPIC -c src/lib.c",
		"file": "src/lib.c"
	}]`)
	db, err := Load(dir)
	require.NoError(t, err)
	flags, err := db.Flags(file)
	require.NoError(t, err)
	assert.Equal(t, []string{"-Imy dir", "-DVERSION=1.0"}, flags)
}


func TestFlagsJoinedOnly(t *testing.T) {
	// Joined -I/-D/-U forms must not consume the next argument.
	dir := t.TempDir()
	file := filepath.Join(dir, "a.c")
	writeDB(t, dir, `[{
		"directory": "`+dir+`",
		"arguments": ["cc", "-Iinc", "-DX", "-UY", "a.c"],
		"file": "a.c"
	}]`)
	db, err := Load(dir)
	require.NoError(t, err)
	flags, err := db.Flags(file)
	require.NoError(t, err)
	assert.Equal(t, []string{"-Iinc", "-DX", "-UY"}, flags)
}

func TestFlagsNoEntry(t *testing.T) {
	dir := t.TempDir()
	writeDB(t, dir, `[]`)
	db, err := Load(dir)
	require.NoError(t, err)
	_, err = db.Flags(filepath.Join(dir, "missing.c"))
	assert.ErrorIs(t, err, ErrNoEntry)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.Error(t, err)
}

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		cmd  string
		want []string
	}{
		{`cc -c main.c`, []string{"cc", "-c", "main.c"}},
		{`cc  -I'a b'  main.c`, []string{"cc", "-Ia b", "main.c"}},
		{`cc "-DX=\"y\"" main.c`, []string{"cc", `-DX="y"`, "main.c"}},
		{`cc -DEMPTY='' main.c`, []string{"cc", "-DEMPTY=", "main.c"}},
		{`cc a\ b.c`, []string{"cc", "a b.c"}},
		{``, nil},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, splitCommand(test.cmd), "cmd: %q", test.cmd)
	}
}
