// Copyright 2025 cdriver project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package analysis

import (
	"sort"

	"cdriver/pkg/cparser"
)

// Usage holds the names of translation-unit globals and undefined external
// functions referenced by the analyzed function set. The two sets are
// disjoint: a reference resolves to exactly one declaration kind.
type Usage struct {
	GlobalVars    []string
	ExternalFuncs []string
}

// Config controls usage classification.
type Config struct {
	// ExcludeConstGlobals drops const-qualified globals from GlobalVars.
	// Off by default: const globals are reported and later randomized,
	// which models a driver starting from arbitrary rodata as well.
	ExcludeConstGlobals bool
}

// Globals computes Usage for every function definition in unit whose name is
// in names. The result is not transitively closed beyond the analyzed set:
// each analyzed function is walked directly, so names must already contain
// the full relevant function set (typically all functions defined in the
// target file).
func Globals(unit *cparser.Unit, names []string, cfg Config) *Usage {
	analyzed := nameSet(names)
	globals := make(map[string]bool)
	externals := make(map[string]bool)
	for _, fn := range unit.Functions() {
		if !analyzed[fn.Name] {
			continue
		}
		for _, ref := range fn.Refs {
			switch ref.Kind {
			case cparser.RefVar:
				g := unit.Global(ref.Name)
				if g == nil {
					continue
				}
				if cfg.ExcludeConstGlobals && g.IsConst {
					continue
				}
				globals[ref.Name] = true
			case cparser.RefFunc:
				if !ref.IsDefinition && !analyzed[ref.Name] {
					externals[ref.Name] = true
				}
			}
		}
	}
	return &Usage{
		GlobalVars:    sorted(globals),
		ExternalFuncs: sorted(externals),
	}
}

func sorted(set map[string]bool) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
