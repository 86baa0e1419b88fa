// Copyright 2025 cdriver project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package cparser parses a single C translation unit and answers the queries
// the analysis and synthesis stages need: which functions are defined, what
// each function calls, which file-scope declarations its body references,
// and the ordered parameter list of every function. Parsing is done with
// tree-sitter, which is error-tolerant: locally malformed input still yields
// all recoverable definitions.
package cparser

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
)

// ErrParse is returned when the input cannot be parsed at all.
var ErrParse = errors.New("failed to parse translation unit")

// RefKind says what declaration kind a reference resolved to.
type RefKind int

const (
	RefVar RefKind = iota
	RefFunc
)

// TypeInfo describes a declared type the way the generator needs it:
// the exact spelling plus pointer structure.
type TypeInfo struct {
	Spelling     string
	IsPointer    bool
	Pointee      string
	PointeeConst bool
}

func (t TypeInfo) IsVoid() bool {
	return !t.IsPointer && t.Spelling == "void"
}

// Param is a single function parameter. Name is empty for unnamed parameters;
// consumers synthesize a name when they need one.
type Param struct {
	Name string
	Type TypeInfo
}

// Function is a function definition or a bodiless declaration.
// For definitions, Calls and Refs hold everything extracted from the body
// during parsing; the body itself is never retained.
type Function struct {
	Name         string
	Params       []Param
	Ret          TypeInfo
	Variadic     bool
	IsDefinition bool
	Calls        []string // callee names of all call expressions, in body order
	Refs         []Ref    // references resolved to file-scope declarations
}

// Ref is a body reference resolved to a translation-unit-scope declaration.
// References to locals and parameters are dropped during extraction.
type Ref struct {
	Name         string
	Kind         RefKind
	IsDefinition bool // for RefFunc: whether the target has a body in this unit
}

// Global is a variable declared at translation-unit scope.
type Global struct {
	Name    string
	Type    TypeInfo
	IsConst bool
}

// Unit is the parsed translation unit. All queries are pure reads over
// indexes built once during Parse, so a Unit tolerates concurrent readers.
type Unit struct {
	funcs   []*Function
	index   map[string]*Function
	decls   map[string]*Function
	globals map[string]*Global
}

// Parse parses data as one C translation unit.
func Parse(data []byte) (*Unit, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(c.GetLanguage())
	tree, err := parser.ParseCtx(context.Background(), nil, data)
	if err != nil || tree == nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	root := tree.RootNode()
	if root == nil || unrecoverable(root) {
		return nil, ErrParse
	}
	b := &builder{
		data: data,
		unit: &Unit{
			index:   make(map[string]*Function),
			decls:   make(map[string]*Function),
			globals: make(map[string]*Global),
		},
		bodies: make(map[string]*sitter.Node),
	}
	b.collectTopLevel(root, false)
	for _, fn := range b.unit.funcs {
		b.extractBody(fn, b.bodies[fn.Name])
	}
	return b.unit, nil
}

// unrecoverable reports whether nothing at all was recovered from the input.
func unrecoverable(root *sitter.Node) bool {
	if root.Type() != "translation_unit" {
		return true
	}
	n := int(root.NamedChildCount())
	if n == 0 {
		return false // an empty file is a valid empty unit
	}
	for i := 0; i < n; i++ {
		if root.NamedChild(i).Type() != "ERROR" {
			return false
		}
	}
	return true
}

// Functions returns all function definitions in file order.
func (u *Unit) Functions() []*Function {
	return u.funcs
}

// FunctionNames returns the names of all function definitions in file order.
func (u *Unit) FunctionNames() []string {
	names := make([]string, 0, len(u.funcs))
	for _, fn := range u.funcs {
		names = append(names, fn.Name)
	}
	return names
}

// Function returns the definition with the given name, or nil.
func (u *Unit) Function(name string) *Function {
	return u.index[name]
}

// Declaration returns the bodiless declaration with the given name, or nil.
func (u *Unit) Declaration(name string) *Function {
	return u.decls[name]
}

// Global returns the translation-unit-scope variable with the given name, or nil.
func (u *Unit) Global(name string) *Global {
	return u.globals[name]
}

type builder struct {
	data   []byte
	unit   *Unit
	bodies map[string]*sitter.Node
}

func (b *builder) text(n *sitter.Node) string {
	return n.Content(b.data)
}

// collectTopLevel walks the tree collecting definitions, bodiless function
// declarations and file-scope variables. ERROR nodes are descended into so
// that declarations surrounded by malformed syntax are still recovered.
// insideFn suppresses treating local declarations as globals.
func (b *builder) collectTopLevel(n *sitter.Node, insideFn bool) {
	switch n.Type() {
	case "function_definition":
		if b.addDefinition(n) {
			return
		}
		// A mis-parse can swallow the following top-level definitions into
		// the broken node's body; descend to recover them.
	case "declaration":
		if !insideFn {
			b.addDeclaration(n)
		}
		return
	case "compound_statement":
		insideFn = true
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		b.collectTopLevel(n.NamedChild(i), insideFn)
	}
}

// addDefinition reports whether n yielded a usable function definition
// (including a duplicate of one already recorded).
func (b *builder) addDefinition(n *sitter.Node) bool {
	decl := n.ChildByFieldName("declarator")
	body := n.ChildByFieldName("body")
	if decl == nil || body == nil {
		return false
	}
	info := b.unwrapDeclarator(decl)
	if info.name == "" || info.params == nil {
		return false
	}
	fn := &Function{
		Name:         info.name,
		Params:       b.parseParams(info.params),
		Ret:          makeType(b.specifiers(n), info.depth),
		Variadic:     b.isVariadic(info.params),
		IsDefinition: true,
	}
	if _, ok := b.unit.index[fn.Name]; ok {
		return true // duplicate definition, keep the first
	}
	b.unit.funcs = append(b.unit.funcs, fn)
	b.unit.index[fn.Name] = fn
	b.bodies[fn.Name] = body
	return true
}

func (b *builder) addDeclaration(n *sitter.Node) {
	if b.hasStorageClass(n, "typedef") {
		return
	}
	base := b.specifiers(n)
	isConst := strings.HasPrefix(base, "const ") || strings.Contains(base, " const ") ||
		strings.HasSuffix(base, " const")
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if !isDeclaratorNode(child.Type()) {
			continue
		}
		info := b.unwrapDeclarator(child)
		if info.name == "" {
			continue
		}
		if info.params != nil {
			// A function declaration without a body.
			if _, ok := b.unit.decls[info.name]; ok {
				continue
			}
			b.unit.decls[info.name] = &Function{
				Name:     info.name,
				Params:   b.parseParams(info.params),
				Ret:      makeType(base, info.depth),
				Variadic: b.isVariadic(info.params),
			}
			continue
		}
		if _, ok := b.unit.globals[info.name]; ok {
			continue
		}
		b.unit.globals[info.name] = &Global{
			Name:    info.name,
			Type:    makeType(base, info.depth),
			IsConst: isConst && info.depth == 0,
		}
	}
}

// declInfo is the result of unwrapping a declarator chain: the declared name,
// the pointer depth accumulated outside any function declarator, and the
// parameter list node if the chain declares a function.
type declInfo struct {
	name   string
	depth  int
	params *sitter.Node
}

func (b *builder) unwrapDeclarator(n *sitter.Node) declInfo {
	var info declInfo
	for n != nil {
		switch n.Type() {
		case "init_declarator":
			n = n.ChildByFieldName("declarator")
		case "pointer_declarator", "abstract_pointer_declarator":
			info.depth++
			n = n.ChildByFieldName("declarator")
		case "array_declarator", "abstract_array_declarator":
			n = n.ChildByFieldName("declarator")
		case "function_declarator", "abstract_function_declarator":
			inner := n.ChildByFieldName("declarator")
			if inner != nil && inner.Type() == "parenthesized_declarator" {
				// Pointer-to-function variable, e.g. void (*fp)(int):
				// the parameter list belongs to the pointee type, not to a
				// declared function.
				n = inner
				continue
			}
			info.params = n.ChildByFieldName("parameters")
			n = inner
		case "parenthesized_declarator":
			n = firstNamedChild(n)
		case "identifier", "field_identifier", "type_identifier":
			info.name = b.text(n)
			return info
		default:
			return info
		}
	}
	return info
}

func firstNamedChild(n *sitter.Node) *sitter.Node {
	if n.NamedChildCount() == 0 {
		return nil
	}
	return n.NamedChild(0)
}

func isDeclaratorNode(typ string) bool {
	switch typ {
	case "init_declarator", "identifier", "pointer_declarator", "array_declarator",
		"function_declarator", "parenthesized_declarator":
		return true
	}
	return false
}

func isSpecifierNode(typ string) bool {
	switch typ {
	case "type_qualifier", "primitive_type", "sized_type_specifier", "type_identifier",
		"struct_specifier", "union_specifier", "enum_specifier", "macro_type_specifier":
		return true
	}
	return false
}

// specifiers reconstructs the base type spelling of a declaration node:
// the qualifiers and type specifier in source order, storage classes dropped.
func (b *builder) specifiers(n *sitter.Node) string {
	var parts []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if isDeclaratorNode(child.Type()) {
			break
		}
		if isSpecifierNode(child.Type()) {
			parts = append(parts, b.text(child))
		}
	}
	return strings.Join(parts, " ")
}

func (b *builder) hasStorageClass(n *sitter.Node, class string) bool {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() == "storage_class_specifier" && b.text(child) == class {
			return true
		}
	}
	return false
}

func (b *builder) parseParams(list *sitter.Node) []Param {
	var params []Param
	for i := 0; i < int(list.NamedChildCount()); i++ {
		n := list.NamedChild(i)
		if n.Type() != "parameter_declaration" {
			continue
		}
		base := b.specifiers(n)
		var info declInfo
		if decl := declaratorChild(n); decl != nil {
			info = b.unwrapDeclarator(decl)
		}
		typ := makeType(base, info.depth)
		if typ.IsVoid() && info.name == "" {
			continue // f(void) has no parameters
		}
		params = append(params, Param{Name: info.name, Type: typ})
	}
	return params
}

func declaratorChild(n *sitter.Node) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "identifier", "pointer_declarator", "array_declarator", "function_declarator",
			"parenthesized_declarator", "abstract_pointer_declarator",
			"abstract_array_declarator", "abstract_function_declarator":
			return child
		}
	}
	return nil
}

func (b *builder) isVariadic(list *sitter.Node) bool {
	for i := 0; i < int(list.ChildCount()); i++ {
		switch list.Child(i).Type() {
		case "...", "variadic_parameter":
			return true
		}
	}
	return false
}

func makeType(base string, depth int) TypeInfo {
	if base == "" {
		base = "int" // implicit int, pre-C99 style
	}
	t := TypeInfo{Spelling: base}
	if depth == 0 {
		return t
	}
	t.IsPointer = true
	t.Spelling = base + " " + strings.Repeat("*", depth)
	if depth == 1 {
		t.Pointee = base
		t.PointeeConst = strings.HasPrefix(base, "const ") || strings.Contains(base, " const")
	} else {
		t.Pointee = base + " " + strings.Repeat("*", depth-1)
	}
	return t
}

// extractBody fills fn.Calls and fn.Refs from the function body. Locals are
// collected first so that references resolving to a parameter or a body-local
// declaration are suppressed, leaving only file-scope references.
func (b *builder) extractBody(fn *Function, body *sitter.Node) {
	if body == nil {
		return
	}
	locals := make(map[string]bool)
	for _, p := range fn.Params {
		if p.Name != "" {
			locals[p.Name] = true
		}
	}
	walk(body, func(n *sitter.Node) bool {
		if n.Type() != "declaration" {
			return true
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			if !isDeclaratorNode(child.Type()) {
				continue
			}
			if info := b.unwrapDeclarator(child); info.name != "" {
				locals[info.name] = true
			}
		}
		return true
	})
	walk(body, func(n *sitter.Node) bool {
		switch n.Type() {
		case "call_expression":
			if target := n.ChildByFieldName("function"); target != nil && target.Type() == "identifier" {
				fn.Calls = append(fn.Calls, b.text(target))
			}
		case "identifier":
			name := b.text(n)
			if locals[name] {
				return true
			}
			if _, ok := b.unit.globals[name]; ok {
				fn.Refs = append(fn.Refs, Ref{Name: name, Kind: RefVar})
			} else if def, ok := b.unit.index[name]; ok {
				fn.Refs = append(fn.Refs, Ref{Name: name, Kind: RefFunc, IsDefinition: def.IsDefinition})
			} else if _, ok := b.unit.decls[name]; ok {
				fn.Refs = append(fn.Refs, Ref{Name: name, Kind: RefFunc})
			}
		}
		return true
	})
}

func walk(n *sitter.Node, fn func(*sitter.Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		walk(n.NamedChild(i), fn)
	}
}
