// Copyright 2025 cdriver project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cdriver/pkg/cparser"
)

func parse(t *testing.T, src string) *cparser.Unit {
	t.Helper()
	unit, err := cparser.Parse([]byte(src))
	require.NoError(t, err)
	return unit
}

func TestEntrypoints(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{
			name: "callee excluded",
			src: `
int helper(int x) { return x; }
int top(int x) { return helper(x); }
`,
			want: []string{"top"},
		},
		{
			name: "call chain",
			src: `
void bar(void) {}
void foo(void) { bar(); }
int main(void) { foo(); return 0; }
void standalone(void) {}
void baz(void) { standalone(); }
`,
			want: []string{"baz", "main"},
		},
		{
			name: "all independent",
			src: `
void a(void) {}
void b(void) {}
`,
			want: []string{"a", "b"},
		},
		{
			name: "self recursion stays",
			src: `
int fact(int n) { return n ? n * fact(n - 1) : 1; }
`,
			want: nil,
		},
		{
			name: "mutual recursion excludes both",
			src: `
int even(int n);
int odd(int n) { return n ? even(n - 1) : 0; }
int even(int n) { return n ? odd(n - 1) : 1; }
`,
			want: nil,
		},
		{
			name: "external calls do not exclude",
			src: `
int external(int x);
int top(int x) { return external(x); }
`,
			want: []string{"top"},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			unit := parse(t, test.src)
			got := Entrypoints(unit, unit.FunctionNames())
			assert.Equal(t, test.want, got)
		})
	}
}

func TestEntrypointsIdempotent(t *testing.T) {
	unit := parse(t, `
int helper(int x) { return x; }
int top(int x) { return helper(x); }
void other(void) {}
`)
	first := Entrypoints(unit, unit.FunctionNames())
	second := Entrypoints(unit, unit.FunctionNames())
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"other", "top"}, first)
}

func TestEntrypointsSCC(t *testing.T) {
	// a -> b -> c -> a is one cycle; its lexicographically least member
	// represents the group.
	unit := parse(t, `
int a(int n);
int c(int n) { return a(n - 1); }
int b(int n) { return c(n); }
int a(int n) { return n ? b(n) : 0; }
`)
	got := EntrypointsSCC(unit, unit.FunctionNames())
	assert.Equal(t, []string{"a"}, got)
}

func TestEntrypointsSCCWithCaller(t *testing.T) {
	// The cycle is reachable from start, so only start remains.
	unit := parse(t, `
int a(int n);
int b(int n) { return a(n - 1); }
int a(int n) { return n ? b(n) : 0; }
int start(int n) { return a(n); }
`)
	got := EntrypointsSCC(unit, unit.FunctionNames())
	assert.Equal(t, []string{"start"}, got)
}

func TestGlobals(t *testing.T) {
	unit := parse(t, `
int counter;
int unused;
const int limit = 10;
int external(int x);
int defined_helper(int x) { return x; }

int top(int n) {
	counter += n;
	if (counter > limit)
		return external(n);
	return defined_helper(n);
}
`)
	names := unit.FunctionNames()

	usage := Globals(unit, names, Config{})
	assert.Equal(t, []string{"counter", "limit"}, usage.GlobalVars)
	assert.Equal(t, []string{"external"}, usage.ExternalFuncs)

	// Const globals drop out when excluded; externals are unaffected.
	usage = Globals(unit, names, Config{ExcludeConstGlobals: true})
	assert.Equal(t, []string{"counter"}, usage.GlobalVars)
	assert.Equal(t, []string{"external"}, usage.ExternalFuncs)
}

func TestGlobalsDisjoint(t *testing.T) {
	unit := parse(t, `
int state;
void poke(void);
void run(void) { state = 1; poke(); }
`)
	usage := Globals(unit, unit.FunctionNames(), Config{})
	vars := make(map[string]bool)
	for _, name := range usage.GlobalVars {
		vars[name] = true
	}
	for _, name := range usage.ExternalFuncs {
		assert.False(t, vars[name], "name %v classified both ways", name)
	}
	assert.Equal(t, []string{"state"}, usage.GlobalVars)
	assert.Equal(t, []string{"poke"}, usage.ExternalFuncs)
}

func TestGlobalsOnlyAnalyzed(t *testing.T) {
	// References from functions outside the analyzed set are ignored.
	unit := parse(t, `
int seen;
int hidden;
void analyzed(void) { seen = 1; }
void skipped(void) { hidden = 1; }
`)
	usage := Globals(unit, []string{"analyzed"}, Config{})
	assert.Equal(t, []string{"seen"}, usage.GlobalVars)
	assert.Empty(t, usage.ExternalFuncs)
}
