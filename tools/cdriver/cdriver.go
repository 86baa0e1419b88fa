// Copyright 2025 cdriver project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// cdriver generates a standalone C driver for a source file: a main function
// that invokes the file's entry points with unconstrained arguments, plus
// stub definitions for the external functions the file calls. The driver is
// meant for consumption by symbolic/concolic analysis tools that implement
// the make_unknown/alloc_safe/_check_initialized primitives.
//
// Usage:
//
//	cdriver [-output driver.c] [-builddir dir] file.c
//
// The build directory must contain a compile_commands.json with an entry for
// the input file; its include/define flags are reused for preprocessing.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"cdriver/pkg/analysis"
	"cdriver/pkg/compdb"
	"cdriver/pkg/cparser"
	"cdriver/pkg/driver"
	"cdriver/pkg/log"
	"cdriver/pkg/osutil"
	"cdriver/pkg/tool"
)

func main() {
	var (
		flagOutput       = flag.String("output", "driver.c", "output driver file")
		flagBuildDir     = flag.String("builddir", ".", "directory containing compile_commands.json")
		flagExcludeConst = flag.Bool("exclude-const-globals", false,
			"do not randomize const-qualified global variables")
		flagSCC = flag.Bool("scc-entrypoints", false,
			"collapse mutually recursive function groups to a single entrypoint")
	)
	defer tool.Init()()
	if len(flag.Args()) != 1 {
		fmt.Fprintf(os.Stderr, "usage: cdriver [flags] file.c\n")
		flag.PrintDefaults()
		os.Exit(1)
	}
	file := flag.Arg(0)
	if err := osutil.IsAccessible(file); err != nil {
		tool.Fail(err)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		tool.Failf("failed to read input file: %v", err)
	}
	// The driver targets only functions defined in the input file itself, so
	// their names are collected before preprocessing pulls in headers.
	raw, err := cparser.Parse(data)
	if err != nil {
		tool.Failf("failed to parse %v: %v", file, err)
	}
	analyzed := raw.FunctionNames()
	if len(analyzed) == 0 {
		tool.Failf("no function definitions found in %v", file)
	}
	log.Logf(1, "analyzing %v functions from %v", len(analyzed), file)

	db, err := compdb.Load(*flagBuildDir)
	if err != nil {
		tool.Fail(err)
	}
	flags, err := db.Flags(file)
	if err != nil {
		tool.Fail(err)
	}
	src, err := compdb.Preprocess(file, flags)
	if err != nil {
		tool.Fail(err)
	}
	unit, err := cparser.Parse(src)
	if err != nil {
		tool.Failf("failed to parse preprocessed %v: %v", file, err)
	}

	var entrypoints []string
	var usage *analysis.Usage
	g := new(errgroup.Group)
	g.Go(func() error {
		if *flagSCC {
			entrypoints = analysis.EntrypointsSCC(unit, analyzed)
		} else {
			entrypoints = analysis.Entrypoints(unit, analyzed)
		}
		return nil
	})
	g.Go(func() error {
		usage = analysis.Globals(unit, analyzed, analysis.Config{
			ExcludeConstGlobals: *flagExcludeConst,
		})
		return nil
	})
	if err := g.Wait(); err != nil {
		tool.Fail(err)
	}
	log.Logf(1, "entrypoints: %q", entrypoints)
	log.Logf(1, "globals: %q, externals: %q", usage.GlobalVars, usage.ExternalFuncs)

	out := driver.Generate(unit, filepath.Base(file), entrypoints, usage)
	output := osutil.Abs(*flagOutput)
	if err := osutil.MkdirAll(filepath.Dir(output)); err != nil {
		tool.Fail(err)
	}
	if err := osutil.WriteFile(output, out); err != nil {
		tool.Failf("failed to write %v: %v", output, err)
	}
	log.Logf(0, "generated %v: %v entrypoints, %v globals, %v stubs",
		output, len(entrypoints), len(usage.GlobalVars), len(usage.ExternalFuncs))
}
