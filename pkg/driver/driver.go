// Copyright 2025 cdriver project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package driver synthesizes the C driver translation unit: a main that calls
// every entrypoint with unconstrained argument values, stubs for external
// functions that randomize global state, and a routine that fills all used
// globals with unconstrained bytes. The caller links the generated file
// against three injection primitives: make_unknown (fill a buffer with
// unconstrained content), alloc_safe (allocate a buffer) and
// _check_initialized (assert a buffer is initialized); their semantics are
// owned by the downstream analysis tool.
package driver

import (
	"bytes"
	"fmt"

	"cdriver/pkg/analysis"
	"cdriver/pkg/cparser"
	"cdriver/pkg/log"
)

// Generate produces the complete driver source. include is the file name
// placed in the #include of the original translation unit, entrypoints are
// called in the given order, and usage supplies the global/external sets.
func Generate(unit *cparser.Unit, include string, entrypoints []string, usage *analysis.Usage) []byte {
	w := new(bytes.Buffer)
	fmt.Fprintf(w, "#include %q\n\n", include)
	writePrelude(w)
	writeRandomizeGlobals(w, unit, usage.GlobalVars)
	writeStubs(w, unit, usage.ExternalFuncs)
	writeMain(w, unit, entrypoints)
	return w.Bytes()
}

func writePrelude(w *bytes.Buffer) {
	w.WriteString("// Forward declarations for utility functions.\n")
	w.WriteString("void make_unknown(void *data, unsigned long size);\n")
	w.WriteString("void *alloc_safe(unsigned long size);\n")
	w.WriteString("void _check_initialized(void *data, unsigned long size);\n")
	w.WriteString("#define check_initialized(x) _check_initialized(&(x), sizeof(x))\n")
	w.WriteString("#define max(a,b) (((a) > (b)) ? (a) : (b))\n\n")
}

// writeRandomizeGlobals emits the routine that fills every used global with
// unconstrained bytes. It is called at the start of main (arbitrary initial
// state) and by every stub (an opaque external call may mutate any global).
func writeRandomizeGlobals(w *bytes.Buffer, unit *cparser.Unit, globals []string) {
	w.WriteString("void randomize_all_global_vars() {\n")
	for _, name := range globals {
		if unit.Global(name) == nil {
			log.Logf(0, "warning: could not find global variable %q in the translation unit, skipping", name)
			continue
		}
		fmt.Fprintf(w, "    make_unknown(&%v, sizeof(%v));\n", name, name)
	}
	w.WriteString("}\n\n")
}

func writeStubs(w *bytes.Buffer, unit *cparser.Unit, externals []string) {
	for _, name := range externals {
		decl := unit.Declaration(name)
		if decl == nil || unit.Function(name) != nil {
			log.Logf(0, "warning: no undefined declaration for external function %q, skipping", name)
			continue
		}
		writeStub(w, decl)
	}
}

// writeStub reconstructs the external function's exact signature and emits a
// mock body: randomize all globals, record the arguments as initialized,
// overwrite writable pointees, and return an unconstrained value.
func writeStub(w *bytes.Buffer, fn *cparser.Function) {
	names := paramNames(fn.Params, "arg")
	fmt.Fprintf(w, "%v %v(", fn.Ret.Spelling, fn.Name)
	for i, p := range fn.Params {
		if i > 0 {
			w.WriteString(", ")
		}
		fmt.Fprintf(w, "%v %v", p.Type.Spelling, names[i])
	}
	if fn.Variadic {
		if len(fn.Params) > 0 {
			w.WriteString(", ")
		}
		w.WriteString("...")
	}
	w.WriteString(") {\n")
	w.WriteString("    randomize_all_global_vars();\n")
	for i, p := range fn.Params {
		fmt.Fprintf(w, "    check_initialized(%v);\n", names[i])
		if p.Type.IsPointer {
			fmt.Fprintf(w, "    check_initialized(*%v);\n", names[i])
			if !p.Type.PointeeConst {
				fmt.Fprintf(w, "    make_unknown(%v, sizeof(*%v));\n", names[i], names[i])
			}
		}
	}
	if !fn.Ret.IsVoid() {
		if fn.Ret.IsPointer {
			fmt.Fprintf(w, "    %v out = (%v)alloc_safe(sizeof(%v));\n",
				fn.Ret.Spelling, fn.Ret.Spelling, fn.Ret.Pointee)
			w.WriteString("    make_unknown(out, sizeof(*out));\n")
		} else {
			fmt.Fprintf(w, "    %v out;\n", fn.Ret.Spelling)
			w.WriteString("    make_unknown(&out, sizeof(out));\n")
		}
		w.WriteString("    return out;\n")
	}
	w.WriteString("}\n\n")
}

// writeMain emits the driver entry function. Global state is randomized
// before any entrypoint call; each entrypoint gets its own lexical scope so
// argument names cannot collide across entrypoints.
func writeMain(w *bytes.Buffer, unit *cparser.Unit, entrypoints []string) {
	w.WriteString("int main() {\n")
	w.WriteString("    randomize_all_global_vars();\n")
	for _, name := range entrypoints {
		fn := unit.Function(name)
		if fn == nil {
			log.Logf(0, "warning: could not find definition for entrypoint %q, skipping", name)
			fmt.Fprintf(w, "    // Warning: Could not find definition for entrypoint '%v'. Skipping.\n", name)
			continue
		}
		writeEntrypointCall(w, fn)
	}
	w.WriteString("    return 0;\n")
	w.WriteString("}\n")
}

func writeEntrypointCall(w *bytes.Buffer, fn *cparser.Function) {
	names := paramNames(fn.Params, "arg_")
	w.WriteString("    {\n")
	for i, p := range fn.Params {
		fmt.Fprintf(w, "        %v %v;\n", p.Type.Spelling, names[i])
		if p.Type.IsPointer {
			// An unconstrained pointer value, not backing storage for the
			// pointee: downstream engines treat it as a fresh symbolic pointer.
			fmt.Fprintf(w, "        make_unknown(&%v, max(16, sizeof(*%v)));\n", names[i], names[i])
		} else {
			fmt.Fprintf(w, "        make_unknown(&%v, sizeof(%v));\n", names[i], names[i])
		}
	}
	fmt.Fprintf(w, "        %v(", fn.Name)
	for i, name := range names {
		if i > 0 {
			w.WriteString(", ")
		}
		w.WriteString(name)
	}
	w.WriteString(");\n")
	w.WriteString("    }\n")
}

// paramNames returns one unique name per parameter: the declared name where
// present, otherwise prefix+index. A declared name that collides with an
// earlier one in the same list is suffixed with its index.
func paramNames(params []cparser.Param, prefix string) []string {
	names := make([]string, len(params))
	seen := make(map[string]bool)
	for i, p := range params {
		name := p.Name
		if name == "" {
			name = fmt.Sprintf("%v%v", prefix, i)
		}
		if seen[name] {
			name = fmt.Sprintf("%v_%v", name, i)
		}
		seen[name] = true
		names[i] = name
	}
	return names
}
