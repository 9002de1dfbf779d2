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
	"strconv"
	"strings"

	"github.com/gx-org/gradgen/base/uname"
	"github.com/gx-org/gradgen/build/fmterr"
	"github.com/gx-org/gradgen/build/ir"
	"github.com/gx-org/gradgen/build/syntax"
)

// coder emits the statements of one generated function. Scalar
// expressions render inline. Vector and matrix values render as loops
// filling named slices, except parameters, transposes and matrix rows,
// which are read in place through views.
type coder struct {
	names   *uname.Unique
	imports map[string]bool
	lines   []string
	depth   int
}

func newCoder(names *uname.Unique, imports map[string]bool) *coder {
	return &coder{names: names, imports: imports, depth: 1}
}

func (c *coder) printf(format string, args ...any) {
	c.lines = append(c.lines, strings.Repeat("\t", c.depth)+fmt.Sprintf(format, args...))
}

func (c *coder) body() string {
	return strings.Join(c.lines, "\n")
}

// temp returns a fresh name for a value materialized by the coder.
func (c *coder) temp() string {
	return c.names.Name("w")
}

// loop returns a fresh name for a generated loop counter.
func (c *coder) loop() string {
	return c.names.Name("k")
}

type (
	// vecView reads the elements of a vector value without
	// materializing it. n is the length as a Go integer expression.
	vecView struct {
		n  string
		at func(k string) string
	}

	// matView reads the cells of a matrix value. A transposed view
	// swaps its indices instead of copying the operand.
	matView struct {
		rows, cols string
		at         func(i, j string) string
	}
)

// scalar returns a Go expression computing a scalar value, emitting
// supporting statements for reductions and products of sequences.
func (c *coder) scalar(e ir.Expr) (string, error) {
	switch x := e.(type) {
	case *ir.Number:
		return x.Val.Text('g', -1), nil
	case *ir.Zero:
		return "0", nil
	case *ir.Ref:
		return c.scalarRef(x), nil
	case *ir.Unary:
		s, err := c.scalar(x.X)
		if err != nil {
			return "", err
		}
		return neg(s), nil
	case *ir.Binary:
		return c.scalarBinary(x)
	case *ir.Call:
		return c.call(x)
	case *ir.Index:
		view, err := c.vec(x.X)
		if err != nil {
			return "", err
		}
		at, err := c.intExpr(x.At)
		if err != nil {
			return "", err
		}
		return view.at(at), nil
	case *ir.Transpose:
		return c.scalar(x.X)
	case *ir.Reduce:
		return c.reduce(x)
	}
	return "", fmterr.Internalf(e.Pos(), "cannot generate a scalar from %T", e)
}

// scalarRef renders a reference in a float position. Integer and loop
// symbols hold Go integers and convert at the point of use.
func (c *coder) scalarRef(x *ir.Ref) string {
	switch x.Sym.Kind {
	case ir.IntSymbol, ir.LoopSymbol:
		return fmt.Sprintf("float64(%s)", x.Sym.Name)
	}
	return x.Sym.Name
}

// neg negates a rendered operand, keeping -- from appearing.
func neg(s string) string {
	if strings.HasPrefix(s, "-") {
		return "-(" + s + ")"
	}
	return "-" + s
}

// simpleOperand reports if a rendered expression is a name, a literal
// or an element read, cheap enough to repeat.
func simpleOperand(s string) bool {
	return !strings.ContainsAny(s, " (")
}

// bindScalar names a rendered scalar so a loop body does not
// recompute it at every iteration.
func (c *coder) bindScalar(s string) string {
	if simpleOperand(s) {
		return s
	}
	w := c.temp()
	c.printf("%s := %s", w, s)
	return w
}

func (c *coder) scalarBinary(x *ir.Binary) (string, error) {
	switch x.Op {
	case syntax.DOT:
		return c.dot(x)
	case syntax.MUL:
		if !x.X.Shape().IsScalar() || !x.Y.Shape().IsScalar() {
			return c.cellProduct(x)
		}
	case syntax.POW:
		a, err := c.scalar(x.X)
		if err != nil {
			return "", err
		}
		b, err := c.scalar(x.Y)
		if err != nil {
			return "", err
		}
		c.imports["math"] = true
		return fmt.Sprintf("math.Pow(%s, %s)", a, b), nil
	}
	a, err := c.scalar(x.X)
	if err != nil {
		return "", err
	}
	b, err := c.scalar(x.Y)
	if err != nil {
		return "", err
	}
	if x.Op == syntax.QUO && ir.IsZero(x.Y) {
		// A constant zero divisor does not compile in Go. Dividing by
		// a variable holding zero follows IEEE instead.
		w := c.temp()
		c.printf("%s := 0.0", w)
		b = w
	}
	return fmt.Sprintf("(%s %s %s)", a, x.Op, b), nil
}

// dot emits the accumulation loop of a dot product and returns the
// name of the accumulator.
func (c *coder) dot(x *ir.Binary) (string, error) {
	xs, err := c.vec(x.X)
	if err != nil {
		return "", err
	}
	ys, err := c.vec(x.Y)
	if err != nil {
		return "", err
	}
	acc := c.temp()
	k := c.loop()
	c.printf("%s := 0.0", acc)
	c.printf("for %s := 0; %s < %s; %s++ {", k, k, xs.n, k)
	c.depth++
	c.printf("%s += %s * %s", acc, xs.at(k), ys.at(k))
	c.depth--
	c.printf("}")
	return acc, nil
}

// cellProduct emits a row by column product collapsing to a single
// cell, such as the product of a transposed vector with a vector.
func (c *coder) cellProduct(x *ir.Binary) (string, error) {
	xm, err := c.asMat(x.X)
	if err != nil {
		return "", err
	}
	ym, err := c.asMat(x.Y)
	if err != nil {
		return "", err
	}
	acc := c.temp()
	k := c.loop()
	c.printf("%s := 0.0", acc)
	c.printf("for %s := 0; %s < %s; %s++ {", k, k, xm.cols, k)
	c.depth++
	c.printf("%s += %s * %s", acc, xm.at("0", k), ym.at(k, "0"))
	c.depth--
	c.printf("}")
	return acc, nil
}

func (c *coder) call(x *ir.Call) (string, error) {
	if x.Fun == ir.FuncNorm {
		return c.norm(x)
	}
	arg, err := c.scalar(x.Arg)
	if err != nil {
		return "", err
	}
	c.imports["math"] = true
	switch x.Fun {
	case ir.FuncSqrt:
		return fmt.Sprintf("math.Sqrt(%s)", arg), nil
	case ir.FuncLn:
		return fmt.Sprintf("math.Log(%s)", arg), nil
	case ir.FuncSin:
		return fmt.Sprintf("math.Sin(%s)", arg), nil
	case ir.FuncCos:
		return fmt.Sprintf("math.Cos(%s)", arg), nil
	case ir.FuncTan:
		return fmt.Sprintf("math.Tan(%s)", arg), nil
	case ir.FuncCot:
		arg = c.bindScalar(arg)
		return fmt.Sprintf("(math.Cos(%s) / math.Sin(%s))", arg, arg), nil
	}
	return "", fmterr.Internalf(x.Pos(), "cannot generate a call to %s", x.Fun)
}

// norm emits the sum of squared elements and returns its square root.
func (c *coder) norm(x *ir.Call) (string, error) {
	acc := c.temp()
	c.printf("%s := 0.0", acc)
	switch x.Arg.Shape().Kind() {
	case ir.VectorKind:
		v, err := c.vec(x.Arg)
		if err != nil {
			return "", err
		}
		k := c.loop()
		c.printf("for %s := 0; %s < %s; %s++ {", k, k, v.n, k)
		c.depth++
		c.printf("%s += %s * %s", acc, v.at(k), v.at(k))
		c.depth--
		c.printf("}")
	case ir.MatrixKind:
		m, err := c.asMat(x.Arg)
		if err != nil {
			return "", err
		}
		i, j := c.loop(), c.loop()
		c.printf("for %s := 0; %s < %s; %s++ {", i, i, m.rows, i)
		c.depth++
		c.printf("for %s := 0; %s < %s; %s++ {", j, j, m.cols, j)
		c.depth++
		c.printf("%s += %s * %s", acc, m.at(i, j), m.at(i, j))
		c.depth--
		c.printf("}")
		c.depth--
		c.printf("}")
	default:
		return "", fmterr.Internalf(x.Pos(), "cannot generate the norm of a %s", x.Arg.Shape())
	}
	c.imports["math"] = true
	return fmt.Sprintf("math.Sqrt(%s)", acc), nil
}

// reduce emits the loop of a scalar reduction and returns the name of
// the accumulator. Bounds are inclusive and an empty range leaves the
// neutral element.
func (c *coder) reduce(x *ir.Reduce) (string, error) {
	lo, err := c.intExpr(x.Lo)
	if err != nil {
		return "", err
	}
	hi, err := c.intExpr(x.Hi)
	if err != nil {
		return "", err
	}
	acc := c.temp()
	op, seed := "+=", "0.0"
	if x.Op == syntax.PRODUCT {
		op, seed = "*=", "1.0"
	}
	c.printf("%s := %s", acc, seed)
	i := x.Sym.Name
	c.printf("for %s := %s; %s <= %s; %s++ {", i, lo, i, hi, i)
	c.depth++
	ref, err := c.scalar(x.Body)
	if err != nil {
		return "", err
	}
	c.printf("%s %s %s", acc, op, ref)
	c.depth--
	c.printf("}")
	return acc, nil
}

// intExpr returns a Go integer expression for an index or a bound.
func (c *coder) intExpr(e ir.Expr) (string, error) {
	switch x := e.(type) {
	case *ir.Number:
		v, ok := x.IsInt()
		if !ok {
			return "", fmterr.Internalf(x.Pos(), "%s is not an integer", x)
		}
		return strconv.Itoa(v), nil
	case *ir.Zero:
		return "0", nil
	case *ir.Ref:
		return x.Sym.Name, nil
	case *ir.Unary:
		s, err := c.intExpr(x.X)
		if err != nil {
			return "", err
		}
		return neg(s), nil
	case *ir.Binary:
		a, err := c.intExpr(x.X)
		if err != nil {
			return "", err
		}
		b, err := c.intExpr(x.Y)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s %s %s)", a, x.Op, b), nil
	}
	return "", fmterr.Internalf(e.Pos(), "%s is not an integer expression", e)
}

// dim returns a Go integer expression for a dimension. A size given
// by a non-differentiable number parameter converts at the point of
// use.
func (c *coder) dim(d ir.Dim) string {
	switch x := d.(type) {
	case ir.LitDim:
		return strconv.Itoa(int(x))
	case ir.SymDim:
		if x.Sym.Kind == ir.IntSymbol {
			return x.Sym.Name
		}
		return fmt.Sprintf("int(%s)", x.Sym.Name)
	case ir.SumDim:
		return fmt.Sprintf("(%s + %s)", c.dim(x.X), c.dim(x.Y))
	}
	return d.String()
}

// vec returns a view over a vector value, materializing it when it
// cannot be read in place.
func (c *coder) vec(e ir.Expr) (vecView, error) {
	switch x := e.(type) {
	case *ir.Ref:
		return sliceView(x.Sym.Name), nil
	case *ir.Zero:
		return vecView{n: c.dim(x.Shape().Rows), at: func(string) string { return "0" }}, nil
	case *ir.Index:
		m, err := c.asMat(x.X)
		if err != nil {
			return vecView{}, err
		}
		at, err := c.intExpr(x.At)
		if err != nil {
			return vecView{}, err
		}
		return vecView{n: m.cols, at: func(k string) string { return m.at(at, k) }}, nil
	case *ir.Transpose:
		// The transpose of a single row matrix is a column.
		m, err := c.asMat(x.X)
		if err != nil {
			return vecView{}, err
		}
		return vecView{n: m.cols, at: func(k string) string { return m.at("0", k) }}, nil
	}
	w := c.temp()
	if err := c.assignVec(w, e); err != nil {
		return vecView{}, err
	}
	return sliceView(w), nil
}

func sliceView(name string) vecView {
	return vecView{
		n:  fmt.Sprintf("len(%s)", name),
		at: func(k string) string { return fmt.Sprintf("%s[%s]", name, k) },
	}
}

// asMat returns a matrix view of a vector or matrix value, a vector
// being a single column.
func (c *coder) asMat(e ir.Expr) (matView, error) {
	if e.Shape().Kind() == ir.VectorKind {
		v, err := c.vec(e)
		if err != nil {
			return matView{}, err
		}
		return matView{rows: v.n, cols: "1", at: func(i, j string) string { return v.at(i) }}, nil
	}
	return c.mat(e)
}

func (c *coder) mat(e ir.Expr) (matView, error) {
	switch x := e.(type) {
	case *ir.Ref:
		return c.cellsView(x.Sym.Name, x.Shape()), nil
	case *ir.Zero:
		return matView{
			rows: c.dim(x.Shape().Rows),
			cols: c.dim(x.Shape().Cols),
			at:   func(i, j string) string { return "0" },
		}, nil
	case *ir.Transpose:
		m, err := c.asMat(x.X)
		if err != nil {
			return matView{}, err
		}
		return matView{rows: m.cols, cols: m.rows, at: func(i, j string) string { return m.at(j, i) }}, nil
	}
	w := c.temp()
	if err := c.assignMat(w, e); err != nil {
		return matView{}, err
	}
	return c.cellsView(w, e.Shape()), nil
}

// cellsView reads the cells of a named matrix. The number of columns
// comes from the shape: a symbolic size can be resolved even when the
// matrix has no row to measure.
func (c *coder) cellsView(name string, shape ir.Shape) matView {
	return matView{
		rows: fmt.Sprintf("len(%s)", name),
		cols: c.dim(shape.Cols),
		at:   func(i, j string) string { return fmt.Sprintf("%s[%s][%s]", name, i, j) },
	}
}

// operand returns a view of one side of an elementwise operation, a
// scalar side broadcasting to every element.
func (c *coder) operand(e ir.Expr) (vecView, error) {
	if !e.Shape().IsScalar() {
		return c.vec(e)
	}
	s, err := c.scalar(e)
	if err != nil {
		return vecView{}, err
	}
	s = c.bindScalar(s)
	return vecView{at: func(string) string { return s }}, nil
}

func (c *coder) matOperand(e ir.Expr) (matView, error) {
	if !e.Shape().IsScalar() {
		return c.asMat(e)
	}
	s, err := c.scalar(e)
	if err != nil {
		return matView{}, err
	}
	s = c.bindScalar(s)
	return matView{at: func(i, j string) string { return s }}, nil
}

// assign emits the statements computing an expression into a fresh
// variable of the given name.
func (c *coder) assign(name string, e ir.Expr) error {
	switch e.Shape().Kind() {
	case ir.ScalarKind:
		s, err := c.scalar(e)
		if err != nil {
			return err
		}
		c.printf("%s := %s", name, s)
		return nil
	case ir.VectorKind:
		return c.assignVec(name, e)
	case ir.MatrixKind:
		return c.assignMat(name, e)
	}
	return fmterr.Internalf(e.Pos(), "cannot generate a %s value", e.Shape())
}

// fillVec emits the allocation of a vector and a loop setting every
// element.
func (c *coder) fillVec(name, n string, at func(k string) string) {
	c.printf("%s := make([]float64, %s)", name, n)
	k := c.loop()
	c.printf("for %s := range %s {", k, name)
	c.depth++
	c.printf("%s[%s] = %s", name, k, at(k))
	c.depth--
	c.printf("}")
}

// fillMat emits the allocation of a matrix and loops setting every
// cell.
func (c *coder) fillMat(name, rows, cols string, at func(i, j string) string) {
	c.printf("%s := make([][]float64, %s)", name, rows)
	i := c.loop()
	c.printf("for %s := range %s {", i, name)
	c.depth++
	c.printf("%s[%s] = make([]float64, %s)", name, i, cols)
	j := c.loop()
	c.printf("for %s := range %s[%s] {", j, name, i)
	c.depth++
	c.printf("%s[%s][%s] = %s", name, i, j, at(i, j))
	c.depth--
	c.printf("}")
	c.depth--
	c.printf("}")
}

func (c *coder) assignVec(name string, e ir.Expr) error {
	switch x := e.(type) {
	case *ir.VectorLit:
		elts := make([]string, len(x.Elts))
		for i, elt := range x.Elts {
			s, err := c.scalar(elt)
			if err != nil {
				return err
			}
			elts[i] = s
		}
		c.printf("%s := []float64{%s}", name, strings.Join(elts, ", "))
		return nil
	case *ir.Unit:
		c.printf("%s := make([]float64, %s)", name, c.dim(x.Shape().Rows))
		c.printf("%s[%d] = 1", name, x.At)
		return nil
	case *ir.Unary:
		v, err := c.vec(x.X)
		if err != nil {
			return err
		}
		c.fillVec(name, v.n, func(k string) string { return neg(v.at(k)) })
		return nil
	case *ir.Binary:
		return c.assignVecBinary(name, x)
	case *ir.Reduce:
		return c.assignReduce(name, x)
	}
	v, err := c.vec(e)
	if err != nil {
		return err
	}
	c.fillVec(name, v.n, v.at)
	return nil
}

func (c *coder) assignVecBinary(name string, x *ir.Binary) error {
	switch x.Op {
	case syntax.HASH:
		return c.concat(name, x)
	case syntax.MUL:
		if !x.X.Shape().IsScalar() && !x.Y.Shape().IsScalar() {
			return c.matProduct(name, x)
		}
	}
	xs, err := c.operand(x.X)
	if err != nil {
		return err
	}
	ys, err := c.operand(x.Y)
	if err != nil {
		return err
	}
	c.fillVec(name, c.dim(x.Shape().Rows), func(k string) string {
		return fmt.Sprintf("%s %s %s", xs.at(k), x.Op, ys.at(k))
	})
	return nil
}

// concat emits the concatenation of two vectors.
func (c *coder) concat(name string, x *ir.Binary) error {
	xs, err := c.vec(x.X)
	if err != nil {
		return err
	}
	ys, err := c.vec(x.Y)
	if err != nil {
		return err
	}
	c.printf("%s := make([]float64, %s+%s)", name, xs.n, ys.n)
	k := c.loop()
	c.printf("for %s := 0; %s < %s; %s++ {", k, k, xs.n, k)
	c.depth++
	c.printf("%s[%s] = %s", name, k, xs.at(k))
	c.depth--
	c.printf("}")
	k = c.loop()
	c.printf("for %s := 0; %s < %s; %s++ {", k, k, ys.n, k)
	c.depth++
	c.printf("%s[%s+%s] = %s", name, xs.n, k, ys.at(k))
	c.depth--
	c.printf("}")
	return nil
}

// matProduct emits a matrix product with a vector or matrix result.
func (c *coder) matProduct(name string, x *ir.Binary) error {
	xm, err := c.asMat(x.X)
	if err != nil {
		return err
	}
	ym, err := c.asMat(x.Y)
	if err != nil {
		return err
	}
	if x.Shape().Kind() == ir.VectorKind {
		c.printf("%s := make([]float64, %s)", name, xm.rows)
		i := c.loop()
		c.printf("for %s := range %s {", i, name)
		c.depth++
		acc, k := c.temp(), c.loop()
		c.printf("%s := 0.0", acc)
		c.printf("for %s := 0; %s < %s; %s++ {", k, k, xm.cols, k)
		c.depth++
		c.printf("%s += %s * %s", acc, xm.at(i, k), ym.at(k, "0"))
		c.depth--
		c.printf("}")
		c.printf("%s[%s] = %s", name, i, acc)
		c.depth--
		c.printf("}")
		return nil
	}
	c.printf("%s := make([][]float64, %s)", name, xm.rows)
	i := c.loop()
	c.printf("for %s := range %s {", i, name)
	c.depth++
	c.printf("%s[%s] = make([]float64, %s)", name, i, ym.cols)
	j := c.loop()
	c.printf("for %s := range %s[%s] {", j, name, i)
	c.depth++
	acc, k := c.temp(), c.loop()
	c.printf("%s := 0.0", acc)
	c.printf("for %s := 0; %s < %s; %s++ {", k, k, xm.cols, k)
	c.depth++
	c.printf("%s += %s * %s", acc, xm.at(i, k), ym.at(k, j))
	c.depth--
	c.printf("}")
	c.printf("%s[%s][%s] = %s", name, i, j, acc)
	c.depth--
	c.printf("}")
	c.depth--
	c.printf("}")
	return nil
}

func (c *coder) assignMat(name string, e ir.Expr) error {
	switch x := e.(type) {
	case *ir.Unary:
		m, err := c.asMat(x.X)
		if err != nil {
			return err
		}
		c.fillMat(name, m.rows, m.cols, func(i, j string) string { return neg(m.at(i, j)) })
		return nil
	case *ir.Binary:
		if x.Op == syntax.MUL && !x.X.Shape().IsScalar() && !x.Y.Shape().IsScalar() {
			return c.matProduct(name, x)
		}
		xs, err := c.matOperand(x.X)
		if err != nil {
			return err
		}
		ys, err := c.matOperand(x.Y)
		if err != nil {
			return err
		}
		c.fillMat(name, c.dim(x.Shape().Rows), c.dim(x.Shape().Cols), func(i, j string) string {
			return fmt.Sprintf("%s %s %s", xs.at(i, j), x.Op, ys.at(i, j))
		})
		return nil
	case *ir.Reduce:
		return c.assignReduce(name, x)
	}
	m, err := c.mat(e)
	if err != nil {
		return err
	}
	c.fillMat(name, m.rows, m.cols, m.at)
	return nil
}

// assignReduce emits a reduction with a vector or matrix body: the
// accumulator fills with the neutral element, then every iteration
// folds the body in elementwise.
func (c *coder) assignReduce(name string, x *ir.Reduce) error {
	lo, err := c.intExpr(x.Lo)
	if err != nil {
		return err
	}
	hi, err := c.intExpr(x.Hi)
	if err != nil {
		return err
	}
	op, seed := "+=", "0"
	if x.Op == syntax.PRODUCT {
		op, seed = "*=", "1"
	}
	shape := x.Shape()
	vector := shape.Kind() == ir.VectorKind
	if vector {
		c.fillVec(name, c.dim(shape.Rows), func(string) string { return seed })
	} else {
		c.fillMat(name, c.dim(shape.Rows), c.dim(shape.Cols), func(i, j string) string { return seed })
	}
	i := x.Sym.Name
	c.printf("for %s := %s; %s <= %s; %s++ {", i, lo, i, hi, i)
	c.depth++
	if vector {
		v, err := c.vec(x.Body)
		if err != nil {
			return err
		}
		k := c.loop()
		c.printf("for %s := range %s {", k, name)
		c.depth++
		c.printf("%s[%s] %s %s", name, k, op, v.at(k))
		c.depth--
		c.printf("}")
	} else {
		m, err := c.asMat(x.Body)
		if err != nil {
			return err
		}
		ri, rj := c.loop(), c.loop()
		c.printf("for %s := range %s {", ri, name)
		c.depth++
		c.printf("for %s := range %s[%s] {", rj, name, ri)
		c.depth++
		c.printf("%s[%s][%s] %s %s", name, ri, rj, op, m.at(ri, rj))
		c.depth--
		c.printf("}")
		c.depth--
		c.printf("}")
	}
	c.depth--
	c.printf("}")
	return nil
}
