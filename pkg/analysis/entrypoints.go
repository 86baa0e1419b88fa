// Copyright 2025 cdriver project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package analysis computes the two inputs of driver synthesis from a parsed
// translation unit: the entrypoint set (functions not called by any other
// analyzed function) and the usage sets (globals and external functions
// touched by the analyzed functions).
package analysis

import (
	"sort"

	"cdriver/pkg/cparser"
)

// Entrypoints returns the names in names that are not called by any analyzed
// function, sorted. A function calling itself counts as a callee and is
// excluded unless some other path reaches it. Note that a closed cycle of
// mutually calling functions disappears from the result entirely; see
// EntrypointsSCC for the variant that reports such cycles.
func Entrypoints(unit *cparser.Unit, names []string) []string {
	analyzed := nameSet(names)
	callees := make(map[string]bool)
	for _, fn := range unit.Functions() {
		if !analyzed[fn.Name] {
			continue
		}
		for _, callee := range fn.Calls {
			if analyzed[callee] {
				callees[callee] = true
			}
		}
	}
	var entrypoints []string
	for name := range analyzed {
		if !callees[name] {
			entrypoints = append(entrypoints, name)
		}
	}
	sort.Strings(entrypoints)
	return entrypoints
}

// EntrypointsSCC condenses the call graph restricted to names into strongly
// connected components and returns one representative (the lexicographically
// least member) of every component with no incoming edge from outside itself.
// Unlike Entrypoints, a closed call cycle with no external caller is reported
// rather than vanishing.
func EntrypointsSCC(unit *cparser.Unit, names []string) []string {
	analyzed := nameSet(names)
	edges := make(map[string][]string)
	for _, fn := range unit.Functions() {
		if !analyzed[fn.Name] {
			continue
		}
		for _, callee := range fn.Calls {
			if analyzed[callee] && callee != fn.Name {
				edges[fn.Name] = append(edges[fn.Name], callee)
			}
		}
	}
	comp := condense(analyzed, edges)
	// A component is a root if no edge enters it from another component.
	entered := make(map[int]bool)
	for caller, callees := range edges {
		for _, callee := range callees {
			if comp[caller] != comp[callee] {
				entered[comp[callee]] = true
			}
		}
	}
	repr := make(map[int]string)
	for name, id := range comp {
		if entered[id] {
			continue
		}
		if cur, ok := repr[id]; !ok || name < cur {
			repr[id] = name
		}
	}
	var entrypoints []string
	for _, name := range repr {
		entrypoints = append(entrypoints, name)
	}
	sort.Strings(entrypoints)
	return entrypoints
}

// condense assigns a component id to every name using Tarjan's algorithm.
func condense(nodes map[string]bool, edges map[string][]string) map[string]int {
	type frame struct {
		index, lowlink int
		onStack        bool
	}
	state := make(map[string]*frame)
	comp := make(map[string]int)
	var stack []string
	next, ncomp := 0, 0

	var strongconnect func(v string)
	strongconnect = func(v string) {
		fr := &frame{index: next, lowlink: next}
		next++
		state[v] = fr
		stack = append(stack, v)
		fr.onStack = true
		for _, w := range edges[v] {
			if !nodes[w] {
				continue
			}
			wfr := state[w]
			if wfr == nil {
				strongconnect(w)
				if state[w].lowlink < fr.lowlink {
					fr.lowlink = state[w].lowlink
				}
			} else if wfr.onStack && wfr.index < fr.lowlink {
				fr.lowlink = wfr.index
			}
		}
		if fr.lowlink == fr.index {
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				state[w].onStack = false
				comp[w] = ncomp
				if w == v {
					break
				}
			}
			ncomp++
		}
	}

	// Iterate in sorted order for deterministic component ids.
	var ordered []string
	for name := range nodes {
		ordered = append(ordered, name)
	}
	sort.Strings(ordered)
	for _, name := range ordered {
		if state[name] == nil {
			strongconnect(name)
		}
	}
	return comp
}

func nameSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, name := range names {
		set[name] = true
	}
	return set
}
