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

// Package grad differentiates expressions symbolically.
//
// A differentiation variable is a scalar: a declared number or one
// element of a differentiable vector. The derivative of an
// expression keeps the shape of the expression. Reductions with
// literal bounds are unrolled before differentiating; sums over
// symbolic bounds differentiate term by term, while products over
// symbolic bounds only differentiate to zero.
package grad

import (
	"fmt"

	"github.com/gx-org/gradgen/build/builder"
	"github.com/gx-org/gradgen/build/ir"
	"github.com/gx-org/gradgen/internal/exprdeps"
)

// Var is one scalar differentiation variable.
type Var struct {
	Sym *ir.Symbol
	// Elem is the element index for a vector symbol, -1 for a
	// scalar symbol.
	Elem int
}

// String returns the variable as source text.
func (v Var) String() string {
	if v.Elem < 0 {
		return v.Sym.Name
	}
	return fmt.Sprintf("%s[%d]", v.Sym.Name, v.Elem)
}

// Vars returns the differentiation variables of a program: one per
// declared number and one per element of each differentiable vector,
// in declaration order.
func Vars(prog *builder.Program) []Var {
	var vars []Var
	for _, sym := range prog.DiffSyms() {
		if sym.Shape().Kind() == ir.VectorKind {
			n, _ := ir.DimValue(sym.Shape().Rows)
			for elem := range n {
				vars = append(vars, Var{Sym: sym, Elem: elem})
			}
			continue
		}
		vars = append(vars, Var{Sym: sym, Elem: -1})
	}
	return vars
}

// Grad returns the derivative of an expression with respect to one
// variable.
func Grad(expr ir.Expr, wrt Var) (ir.Expr, error) {
	if !exprdeps.Collect(expr).DependsOn(wrt.Sym, wrt.Elem) {
		return ir.NewZero(expr.Shape()), nil
	}
	g := &grader{wrt: wrt}
	r, err := g.grad(expr)
	if err != nil {
		return nil, err
	}
	return r.expr, nil
}
