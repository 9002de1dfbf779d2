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

package syntax_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gx-org/gradgen/build/fmterr"
	"github.com/gx-org/gradgen/build/syntax"
)

func TestParseDeclarations(t *testing.T) {
	src := `
// Distance between a rotated point and its image.
vector q(4) : equivalent;
vector p(3) : nodiff;
int n;
const HALF = 0.5;
expr norm2 = q . q;
main dist = norm2 * HALF;
`
	file, err := syntax.Parse(src)
	require.NoError(t, err)
	require.Len(t, file.Decls, 6)

	q, ok := file.Decls[0].(*syntax.VarDecl)
	require.True(t, ok)
	assert.Equal(t, syntax.VECTOR, q.Kw.Type)
	assert.Equal(t, "q", q.Name.Name)
	assert.Equal(t, syntax.AttrEquivalent, q.Attr)
	require.Len(t, q.Dims, 1)

	p, ok := file.Decls[1].(*syntax.VarDecl)
	require.True(t, ok)
	assert.Equal(t, syntax.AttrNoDiff, p.Attr)

	n, ok := file.Decls[2].(*syntax.VarDecl)
	require.True(t, ok)
	assert.Equal(t, syntax.INT, n.Kw.Type)
	assert.Empty(t, n.Dims)

	half, ok := file.Decls[3].(*syntax.ConstDecl)
	require.True(t, ok)
	assert.Equal(t, "HALF", half.Name.Name)

	norm2, ok := file.Decls[4].(*syntax.ExprDecl)
	require.True(t, ok)
	assert.False(t, norm2.Main())

	dist, ok := file.Decls[5].(*syntax.ExprDecl)
	require.True(t, ok)
	assert.True(t, dist.Main())
	assert.Equal(t, "dist", dist.Name.Name)
}

func TestParseMatrixDecl(t *testing.T) {
	file, err := syntax.Parse("matrix M(3, n);")
	require.NoError(t, err)
	require.Len(t, file.Decls, 1)
	m, ok := file.Decls[0].(*syntax.VarDecl)
	require.True(t, ok)
	assert.Equal(t, syntax.MATRIX, m.Kw.Type)
	require.Len(t, m.Dims, 2)
	_, ok = m.Dims[0].(*syntax.NumberLit)
	assert.True(t, ok)
	_, ok = m.Dims[1].(*syntax.Ident)
	assert.True(t, ok)
}

// Semicolons terminate declarations but are optional: every
// declaration starts with a keyword.
func TestParseWithoutSemicolons(t *testing.T) {
	file, err := syntax.Parse("number x\nvector v(2) : nodiff\nmain f = x * v[0]")
	require.NoError(t, err)
	require.Len(t, file.Decls, 3)
	f, ok := file.Decls[2].(*syntax.ExprDecl)
	require.True(t, ok)
	assert.True(t, f.Main())
}

func TestParsePrecedence(t *testing.T) {
	t.Run("product binds tighter than sum", func(t *testing.T) {
		x, err := syntax.ParseExpr("a + b * c")
		require.NoError(t, err)
		add, ok := x.(*syntax.BinaryExpr)
		require.True(t, ok)
		assert.Equal(t, syntax.ADD, add.Op)
		mul, ok := add.Y.(*syntax.BinaryExpr)
		require.True(t, ok)
		assert.Equal(t, syntax.MUL, mul.Op)
	})
	t.Run("power binds tighter than prefix minus", func(t *testing.T) {
		x, err := syntax.ParseExpr("-x^2")
		require.NoError(t, err)
		neg, ok := x.(*syntax.UnaryExpr)
		require.True(t, ok)
		pow, ok := neg.X.(*syntax.BinaryExpr)
		require.True(t, ok)
		assert.Equal(t, syntax.POW, pow.Op)
	})
	t.Run("power is right associative", func(t *testing.T) {
		x, err := syntax.ParseExpr("x^y^z")
		require.NoError(t, err)
		outer, ok := x.(*syntax.BinaryExpr)
		require.True(t, ok)
		assert.Equal(t, syntax.POW, outer.Op)
		inner, ok := outer.Y.(*syntax.BinaryExpr)
		require.True(t, ok)
		assert.Equal(t, syntax.POW, inner.Op)
	})
	t.Run("left associative subtraction", func(t *testing.T) {
		x, err := syntax.ParseExpr("a - b - c")
		require.NoError(t, err)
		outer, ok := x.(*syntax.BinaryExpr)
		require.True(t, ok)
		assert.Equal(t, syntax.SUB, outer.Op)
		inner, ok := outer.X.(*syntax.BinaryExpr)
		require.True(t, ok)
		assert.Equal(t, syntax.SUB, inner.Op)
	})
	t.Run("postfix on indexed element", func(t *testing.T) {
		x, err := syntax.ParseExpr("M[1]'")
		require.NoError(t, err)
		tr, ok := x.(*syntax.TransposeExpr)
		require.True(t, ok)
		_, ok = tr.X.(*syntax.IndexExpr)
		assert.True(t, ok)
	})
	t.Run("dot product at term level", func(t *testing.T) {
		x, err := syntax.ParseExpr("a . b + c")
		require.NoError(t, err)
		add, ok := x.(*syntax.BinaryExpr)
		require.True(t, ok)
		assert.Equal(t, syntax.ADD, add.Op)
		dot, ok := add.X.(*syntax.BinaryExpr)
		require.True(t, ok)
		assert.Equal(t, syntax.DOT, dot.Op)
	})
}

func TestParseExprForms(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{name: "call", src: "sqrt(x + 1)"},
		{name: "nested index", src: "M[1][2]"},
		{name: "vector literal", src: "[a, b, 3.5]"},
		{name: "construct", src: "u # v"},
		{name: "sum reduction", src: "for i in [1, 3] sum (i * n)"},
		{name: "product reduction", src: "for i in [1, n] product (v[i])"},
		{name: "parenthesized", src: "(a + b) * c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := syntax.ParseExpr(tt.src)
			assert.NoError(t, err)
		})
	}
}

func TestParseReduce(t *testing.T) {
	x, err := syntax.ParseExpr("for i in [1, n] sum (v[i] * i)")
	require.NoError(t, err)
	red, ok := x.(*syntax.ReduceExpr)
	require.True(t, ok)
	assert.Equal(t, "i", red.Index.Name)
	assert.Equal(t, syntax.SUM, red.Op)
	_, ok = red.Lo.(*syntax.NumberLit)
	assert.True(t, ok)
	_, ok = red.Hi.(*syntax.Ident)
	assert.True(t, ok)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{name: "missing declaration name", src: "number 3"},
		{name: "missing dimension", src: "vector v();"},
		{name: "bad attribute", src: "number x : fast;"},
		{name: "missing operand", src: "main e = a + ;"},
		{name: "unbalanced paren", src: "main e = (a + b;"},
		{name: "bad reduction op", src: "main e = for i in [1, 2] avg (i);"},
		{name: "illegal character", src: "main e = a ? b;"},
		{name: "statement after expression", src: "main e = a b;"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := syntax.Parse(tt.src)
			require.Error(t, err)
			assert.Equal(t, fmterr.SyntaxError, fmterr.KindOf(err))
			var ferr *fmterr.Error
			require.ErrorAs(t, err, &ferr)
			assert.True(t, ferr.Pos().IsValid())
		})
	}
}
