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

package goeval

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gx-org/gradgen/base/stringseq"
	"github.com/gx-org/gradgen/base/uname"
	"github.com/gx-org/gradgen/build/ir"
	"github.com/gx-org/gradgen/grad"
	"github.com/gx-org/gradgen/simplify"
)

// routine is one generated function.
type routine struct {
	// Name is the name of the function.
	Name string
	// Doc is the comment above the function.
	Doc string
	// Params is the parameter list.
	Params string
	// Result is the result type.
	Result string
	// Body holds the statements of the function, one per line.
	Body string
}

// export upper cases the first letter of a name so the generated
// function is exported.
func export(name string) string {
	return strings.ToUpper(name[:1]) + name[1:]
}

// goType returns the Go parameter type of a declared symbol.
func goType(sym *ir.Symbol) string {
	switch sym.Kind {
	case ir.IntSymbol:
		return "int"
	case ir.VectorSymbol:
		return "[]float64"
	case ir.MatrixSymbol:
		return "[][]float64"
	}
	return "float64"
}

func signature(params []*ir.Symbol) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p.Name + " " + goType(p)
	}
	return strings.Join(parts, ", ")
}

func varList(vars []grad.Var) string {
	return stringseq.JoinStringer(slices.Values(vars), ", ")
}

// reserveLoops reserves the loop variable names of an expression so
// generated temporaries do not collide with them.
func reserveLoops(names *uname.Unique, e ir.Expr) {
	switch x := e.(type) {
	case *ir.Unary:
		reserveLoops(names, x.X)
	case *ir.Binary:
		reserveLoops(names, x.X)
		reserveLoops(names, x.Y)
	case *ir.Call:
		reserveLoops(names, x.Arg)
	case *ir.Index:
		reserveLoops(names, x.X)
		reserveLoops(names, x.At)
	case *ir.Transpose:
		reserveLoops(names, x.X)
	case *ir.VectorLit:
		for _, elt := range x.Elts {
			reserveLoops(names, elt)
		}
	case *ir.Reduce:
		names.Reserve(x.Sym.Name)
		reserveLoops(names, x.Lo)
		reserveLoops(names, x.Hi)
		reserveLoops(names, x.Body)
	}
}

// guards emits the size checks of sequence parameters. Generated
// functions have no other failure path: a sequence not matching its
// declared size panics.
func (c *coder) guards(params []*ir.Symbol) {
	for _, p := range params {
		switch p.Kind {
		case ir.VectorSymbol:
			c.guardLen(fmt.Sprintf("len(%s)", p.Name), fmt.Sprintf("len(%s)", p.Name), c.dim(p.Shp.Rows))
		case ir.MatrixSymbol:
			c.guardLen(fmt.Sprintf("len(%s)", p.Name), fmt.Sprintf("len(%s)", p.Name), c.dim(p.Shp.Rows))
			row := c.names.Name("row")
			c.printf("for _, %s := range %s {", row, p.Name)
			c.depth++
			c.guardLen(fmt.Sprintf("columns of %s", p.Name), fmt.Sprintf("len(%s)", row), c.dim(p.Shp.Cols))
			c.depth--
			c.printf("}")
		}
	}
}

func (c *coder) guardLen(label, got, want string) {
	c.imports["fmt"] = true
	c.printf("if %s != %s {", got, want)
	c.depth++
	c.printf("panic(fmt.Sprintf(\"%s = %%d, want %%d\", %s, %s))", label, got, want)
	c.depth--
	c.printf("}")
}

// prep starts the body of one generated function: unroll small
// reductions, simplify the roots, bind their shared subexpressions
// and emit the parameter guards.
func (f *File) prep(roots []ir.Expr) (*coder, []ir.Expr, error) {
	names := uname.New()
	for _, p := range f.params {
		names.Reserve(p.Name)
	}
	for _, root := range roots {
		reserveLoops(names, root)
	}
	rs := make([]ir.Expr, len(roots))
	for i, root := range roots {
		expanded, err := unrollReduces(root, f.cfg.Unroll)
		if err != nil {
			return nil, nil, err
		}
		if rs[i], err = simplify.Simplify(expanded); err != nil {
			return nil, nil, err
		}
	}
	bindings, rs, err := simplify.Bind(names, rs)
	if err != nil {
		return nil, nil, err
	}
	c := newCoder(names, f.imports)
	c.guards(f.params)
	for _, b := range bindings {
		if err := c.assign(b.Sym.Name, b.Expr); err != nil {
			return nil, nil, err
		}
	}
	return c, rs, nil
}

func (f *File) valueRoutine() (*routine, error) {
	main := f.prog.Main()
	c, roots, err := f.prep([]ir.Expr{main.Value})
	if err != nil {
		return nil, err
	}
	ref, err := c.scalar(roots[0])
	if err != nil {
		return nil, err
	}
	c.printf("return %s", ref)
	return &routine{
		Name:   f.funcName,
		Doc:    fmt.Sprintf("// %s returns the value of %s.", f.funcName, main.Name),
		Params: f.signature,
		Result: "float64",
		Body:   c.body(),
	}, nil
}

// gradientRoutine generates the function filling the gradient, one
// entry per differentiation variable in declaration order. Entries
// deriving to zero keep the zero of the allocation.
func (f *File) gradientRoutine(grads []ir.Expr) (*routine, error) {
	c, roots, err := f.prep(grads)
	if err != nil {
		return nil, err
	}
	g := c.names.Name("grad")
	c.printf("%s := make([]float64, %d)", g, len(f.vars))
	for i, root := range roots {
		if ir.IsZero(root) {
			continue
		}
		s, err := c.scalar(root)
		if err != nil {
			return nil, err
		}
		c.printf("%s[%d] = %s", g, i, s)
	}
	c.printf("return %s", g)
	name := f.funcName + "Gradient"
	return &routine{
		Name:   name,
		Doc:    fmt.Sprintf("// %s returns the gradient of %s with respect to\n// (%s).", name, f.prog.Main().Name, varList(f.vars)),
		Params: f.signature,
		Result: "[]float64",
		Body:   c.body(),
	}, nil
}

// hessianRoutine generates the function filling the matrix of second
// derivatives. The matrix is symmetric: only the upper triangle is
// computed, the lower triangle copies the mirror cell.
func (f *File) hessianRoutine(grads []ir.Expr) (*routine, error) {
	hess, err := grad.Hessian(grads, f.vars)
	if err != nil {
		return nil, err
	}
	n := len(f.vars)
	upper := make([]ir.Expr, 0, n*(n+1)/2)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			upper = append(upper, hess[i][j])
		}
	}
	c, roots, err := f.prep(upper)
	if err != nil {
		return nil, err
	}
	h := c.names.Name("hess")
	c.printf("%s := make([][]float64, %d)", h, n)
	k := c.loop()
	c.printf("for %s := range %s {", k, h)
	c.depth++
	c.printf("%s[%s] = make([]float64, %d)", h, k, n)
	c.depth--
	c.printf("}")
	next := 0
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			root := roots[next]
			next++
			if ir.IsZero(root) {
				continue
			}
			s, err := c.scalar(root)
			if err != nil {
				return nil, err
			}
			c.printf("%s[%d][%d] = %s", h, i, j, s)
		}
	}
	if n > 1 {
		i, j := c.loop(), c.loop()
		c.printf("for %s := 1; %s < %d; %s++ {", i, i, n, i)
		c.depth++
		c.printf("for %s := 0; %s < %s; %s++ {", j, j, i, j)
		c.depth++
		c.printf("%s[%s][%s] = %s[%s][%s]", h, i, j, h, j, i)
		c.depth--
		c.printf("}")
		c.depth--
		c.printf("}")
	}
	c.printf("return %s", h)
	name := f.funcName + "Hessian"
	return &routine{
		Name:   name,
		Doc:    fmt.Sprintf("// %s returns the Hessian of %s with respect to\n// (%s).", name, f.prog.Main().Name, varList(f.vars)),
		Params: f.signature,
		Result: "[][]float64",
		Body:   c.body(),
	}, nil
}
