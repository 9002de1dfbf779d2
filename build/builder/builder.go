// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package builder turns a parse tree into typed intermediate
// representation. Declarations are processed in textual order: a
// reference only resolves to symbols declared before it. Building
// stops at the first error, so a compilation reports at most one.
package builder

import (
	"github.com/gx-org/gradgen/base/ordered"
	"github.com/gx-org/gradgen/build/fmterr"
	"github.com/gx-org/gradgen/build/ir"
	"github.com/gx-org/gradgen/build/syntax"
)

// Program is a built source file: its symbol table in declaration
// order and its main expression.
type Program struct {
	syms *ordered.Map[string, *ir.Symbol]
	main *ir.Symbol
}

// Build processes all the declarations of a parse tree, inferring
// the shape of every expression node.
func Build(file *syntax.File) (*Program, error) {
	b := &builder{prog: &Program{syms: ordered.NewMap[string, *ir.Symbol]()}}
	for _, decl := range file.Decls {
		var err error
		switch d := decl.(type) {
		case *syntax.VarDecl:
			err = b.varDecl(d)
		case *syntax.ConstDecl:
			err = b.constDecl(d)
		case *syntax.ExprDecl:
			err = b.exprDecl(d)
		default:
			err = fmterr.Internalf(decl.Pos(), "unknown declaration %T", decl)
		}
		if err != nil {
			return nil, err
		}
	}
	if b.prog.main == nil {
		return nil, fmterr.Errorf(fmterr.UnresolvedReference, fmterr.Pos{}, "no main expression declared")
	}
	return b.prog, nil
}

// BuildSource parses and builds a source text.
func BuildSource(src string) (*Program, error) {
	file, err := syntax.Parse(src)
	if err != nil {
		return nil, err
	}
	return Build(file)
}

// Symbol returns a declared symbol by name.
func (p *Program) Symbol(name string) (*ir.Symbol, bool) {
	return p.syms.Load(name)
}

// Symbols returns an iterator over all symbols in declaration order.
func (p *Program) Symbols() func(func(*ir.Symbol) bool) {
	return p.syms.Values()
}

// Main returns the symbol of the main expression.
func (p *Program) Main() *ir.Symbol {
	return p.main
}

// Params returns the input symbols in declaration order. Inputs are
// the declared numbers, integers, vectors and matrices: they become
// the parameters of the generated functions.
func (p *Program) Params() []*ir.Symbol {
	var params []*ir.Symbol
	for sym := range p.syms.Values() {
		switch sym.Kind {
		case ir.NumberSymbol, ir.IntSymbol, ir.VectorSymbol, ir.MatrixSymbol:
			params = append(params, sym)
		}
	}
	return params
}

// DiffSyms returns the symbols contributing differentiation
// variables, in declaration order.
func (p *Program) DiffSyms() []*ir.Symbol {
	var syms []*ir.Symbol
	for sym := range p.syms.Values() {
		if sym.Differentiable() {
			syms = append(syms, sym)
		}
	}
	return syms
}

// builder holds the state while declarations are processed.
type builder struct {
	prog *Program
	// loops is the stack of reduction loop variables in scope.
	loops []*ir.Symbol
}

// declare adds a symbol to the table, rejecting duplicate names.
func (b *builder) declare(sym *ir.Symbol) error {
	if prev, ok := b.prog.syms.Load(sym.Name); ok {
		return fmterr.Errorf(fmterr.DuplicateSymbol, sym.Pos, "%s already declared at %s", sym.Name, prev.Pos)
	}
	sym.Index = b.prog.syms.Size()
	b.prog.syms.Store(sym.Name, sym)
	return nil
}

// lookup resolves a name, innermost loop variables first, then
// declared symbols.
func (b *builder) lookup(name string) (*ir.Symbol, bool) {
	for i := len(b.loops) - 1; i >= 0; i-- {
		if b.loops[i].Name == name {
			return b.loops[i], true
		}
	}
	return b.prog.syms.Load(name)
}

func (b *builder) pushLoop(sym *ir.Symbol) {
	b.loops = append(b.loops, sym)
}

func (b *builder) popLoop() {
	b.loops = b.loops[:len(b.loops)-1]
}
