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

package canon_test

import (
	"testing"

	"github.com/gx-org/gradgen/build/builder"
	"github.com/gx-org/gradgen/build/ir"
	"github.com/gx-org/gradgen/internal/canon"
)

const decls = `
number x
number y
number z
vector v(3)
vector w(3)
matrix M(2, 2)
matrix N(2, 2)
vector q(4) : equivalent
`

func expr(t *testing.T, src string) ir.Expr {
	t.Helper()
	prog, err := builder.BuildSource(decls + "main f = " + src)
	if err != nil {
		t.Fatalf("BuildSource(%q): %+v", src, err)
	}
	return prog.Main().Value
}

func TestKeyEqual(t *testing.T) {
	tests := []struct {
		x, y string
	}{
		{x: "x + y", y: "y + x"},
		{x: "x * y", y: "y * x"},
		{x: "x - y", y: "-y + x"},
		{x: "(x + y) + z", y: "x + (z + y)"},
		{x: "x * (y * z)", y: "z * y * x"},
		{x: "2 * x", y: "x * 2"},
		{x: "v . w", y: "w . v"},
		{x: "x * (v . w)", y: "(w . v) * x"},
		{x: "for i in [0, 2] sum (v[i])", y: "for k in [0, 2] sum (v[k])"},
		{
			x: "for i in [0, 1] sum (for j in [0, 2] sum (v[j] * w[i]))",
			y: "for a in [0, 1] sum (for b in [0, 2] sum (v[b] * w[a]))",
		},
	}
	for _, test := range tests {
		xKey := canon.Key(expr(t, test.x))
		yKey := canon.Key(expr(t, test.y))
		if xKey != yKey {
			t.Errorf("%s and %s have different keys:\n%s\n%s", test.x, test.y, xKey, yKey)
		}
	}
}

func TestKeyDifferent(t *testing.T) {
	tests := []struct {
		x, y string
	}{
		{x: "x + y", y: "x * y"},
		{x: "x - y", y: "y - x"},
		{x: "x / y", y: "y / x"},
		{x: "x ^ y", y: "y ^ x"},
		{x: "(M * N)[0][0]", y: "(N * M)[0][0]"},
		{x: "(v # w)[0]", y: "(w # v)[0]"},
		{x: "q[0]", y: "q[1]"},
		{x: "for i in [0, 2] sum (v[i])", y: "for i in [0, 2] product (v[i])"},
	}
	for _, test := range tests {
		xKey := canon.Key(expr(t, test.x))
		yKey := canon.Key(expr(t, test.y))
		if xKey == yKey {
			t.Errorf("%s and %s share the key %s", test.x, test.y, xKey)
		}
	}
}

func TestFamilyKey(t *testing.T) {
	tests := []struct {
		x, y string
		want bool
	}{
		{x: "q[0] * x", y: "q[1] * x", want: true},
		{x: "2 * q[2]", y: "2 * q[3]", want: true},
		{x: "q[0] * v[0]", y: "q[1] * v[0]", want: true},
		{x: "q[0] * v[0]", y: "q[1] * v[1]", want: false},
		{x: "v[0] * x", y: "v[1] * x", want: false},
		{x: "q[0] * x", y: "q[1] * y", want: false},
	}
	for _, test := range tests {
		xKey := canon.FamilyKey(expr(t, test.x))
		yKey := canon.FamilyKey(expr(t, test.y))
		if got := xKey == yKey; got != test.want {
			t.Errorf("%s and %s: same family is %v but want %v (keys %s and %s)", test.x, test.y, got, test.want, xKey, yKey)
		}
	}
}

func TestFamilyKeyKeepsLoopIndices(t *testing.T) {
	// A non-literal index is not erased: the element read depends on
	// the loop variable, not on a fixed index.
	key := canon.FamilyKey(expr(t, "for i in [0, 3] sum (q[i])"))
	want := canon.FamilyKey(expr(t, "for k in [0, 3] sum (q[k])"))
	if key != want {
		t.Errorf("renaming the loop variable changed the family key:\n%s\n%s", key, want)
	}
	if other := canon.FamilyKey(expr(t, "for i in [0, 3] sum (q[0])")); other == key {
		t.Errorf("fixed and loop indices share the family key %s", key)
	}
}
