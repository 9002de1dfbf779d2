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

package interp_test

import (
	"math"
	"testing"

	"github.com/gx-org/gradgen/build/builder"
	"github.com/gx-org/gradgen/interp"
)

func evalMain(t *testing.T, src string, bind map[string]interp.Value) (interp.Value, error) {
	t.Helper()
	prog, err := builder.BuildSource(src)
	if err != nil {
		t.Fatalf("BuildSource(%q): %+v", src, err)
	}
	env := interp.NewEnv()
	for name, val := range bind {
		sym, ok := prog.Symbol(name)
		if !ok {
			t.Fatalf("symbol %s not declared", name)
		}
		env.Set(sym, val)
	}
	return interp.Eval(env, prog.Main().Value)
}

func checkScalar(t *testing.T, src string, bind map[string]interp.Value, want float64) {
	t.Helper()
	val, err := evalMain(t, src, bind)
	if err != nil {
		t.Errorf("Eval(%q): %+v", src, err)
		return
	}
	got, ok := val.(interp.Scalar)
	if !ok {
		t.Errorf("Eval(%q) = %s, want a scalar", src, val)
		return
	}
	if math.Abs(float64(got)-want) > 1e-9 {
		t.Errorf("Eval(%q) = %g, want %g", src, float64(got), want)
	}
}

func TestEvalScalarOps(t *testing.T) {
	x := map[string]interp.Value{"x": interp.Scalar(2)}
	tests := []struct {
		src  string
		bind map[string]interp.Value
		want float64
	}{
		{
			src:  "number x\nnumber y\nmain f = x * y + 2",
			bind: map[string]interp.Value{"x": interp.Scalar(3), "y": interp.Scalar(4)},
			want: 14,
		},
		{src: "number x\nmain f = x ^ 3", bind: x, want: 8},
		{src: "number x\nmain f = -x / 4", bind: x, want: -0.5},
		{src: "number x\nmain f = sqrt(x * 8)", bind: x, want: 4},
		{src: "number x\nmain f = ln(x / 2)", bind: x, want: 0},
		{
			src:  "number x\nmain f = sin(x) * sin(x) + cos(x) * cos(x)",
			bind: map[string]interp.Value{"x": interp.Scalar(0.7)},
			want: 1,
		},
		{
			src:  "number x\nmain f = tan(x) * cot(x)",
			bind: map[string]interp.Value{"x": interp.Scalar(0.3)},
			want: 1,
		},
		{src: "const C = 2 ^ 10\nnumber x\nmain f = C / x", bind: x, want: 512},
	}
	for _, test := range tests {
		checkScalar(t, test.src, test.bind, test.want)
	}
}

func TestEvalVectorsAndMatrices(t *testing.T) {
	tests := []struct {
		src  string
		bind map[string]interp.Value
		want float64
	}{
		{
			src: "vector v(3)\nvector w(3)\nmain f = v . w",
			bind: map[string]interp.Value{
				"v": interp.Vector{1, 2, 3},
				"w": interp.Vector{4, 5, 6},
			},
			want: 32,
		},
		{
			src:  "vector v(3)\nmain f = norm(v)",
			bind: map[string]interp.Value{"v": interp.Vector{3, 4, 0}},
			want: 5,
		},
		{
			src:  "vector v(3)\nmain f = v' * v",
			bind: map[string]interp.Value{"v": interp.Vector{1, 2, 3}},
			want: 14,
		},
		{
			src: "vector v(2)\nvector w(2)\nmain f = (v # w)[2]",
			bind: map[string]interp.Value{
				"v": interp.Vector{1, 2},
				"w": interp.Vector{7, 8},
			},
			want: 7,
		},
		{
			src: "matrix M(2, 2)\nvector v(2)\nmain f = (M * v)[0]",
			bind: map[string]interp.Value{
				"M": interp.Matrix{{1, 2}, {3, 4}},
				"v": interp.Vector{5, 6},
			},
			want: 17,
		},
		{
			src:  "matrix M(2, 3)\nmain f = M'[0][1]",
			bind: map[string]interp.Value{"M": interp.Matrix{{1, 2, 3}, {4, 5, 6}}},
			want: 4,
		},
		{
			src:  "matrix M(2, 2)\nmain f = norm(M)",
			bind: map[string]interp.Value{"M": interp.Matrix{{3, 0}, {0, 4}}},
			want: 5,
		},
		{
			src:  "number x\nmain f = [x, 2 * x] . [1, 3]",
			bind: map[string]interp.Value{"x": interp.Scalar(2)},
			want: 14,
		},
	}
	for _, test := range tests {
		checkScalar(t, test.src, test.bind, test.want)
	}
}

func TestEvalReduce(t *testing.T) {
	tests := []struct {
		src  string
		bind map[string]interp.Value
		want float64
	}{
		{
			src:  "vector v(4)\nmain f = for i in [0, 3] sum (v[i] * v[i])",
			bind: map[string]interp.Value{"v": interp.Vector{1, 2, 3, 4}},
			want: 30,
		},
		{
			src: "int n\nvector v(n) : nodiff\nmain f = for i in [0, n - 1] product (v[i])",
			bind: map[string]interp.Value{
				"n": interp.Scalar(3),
				"v": interp.Vector{2, 3, 4},
			},
			want: 24,
		},
		{
			src:  "matrix M(2, 2)\nmain f = for i in [0, 1] sum (for j in [0, 1] sum (M[i][j]))",
			bind: map[string]interp.Value{"M": interp.Matrix{{1, 2}, {3, 4}}},
			want: 10,
		},
		{
			// Same value as the unrolled n + 2*n + 3*n.
			src:  "int n\nmain f = for i in [1, 3] sum (i * n)",
			bind: map[string]interp.Value{"n": interp.Scalar(7)},
			want: 42,
		},
		{
			// The range becomes empty at run time: a sum of nothing is 0.
			src: "int n\nnumber x\nmain f = x + for i in [1, n] sum (i * x)",
			bind: map[string]interp.Value{
				"n": interp.Scalar(0),
				"x": interp.Scalar(5),
			},
			want: 5,
		},
	}
	for _, test := range tests {
		checkScalar(t, test.src, test.bind, test.want)
	}
}

func TestEvalErrors(t *testing.T) {
	tests := []struct {
		src  string
		bind map[string]interp.Value
	}{
		{
			src: "number x\nmain f = x * 2",
		},
		{
			src: "int n\nvector v(n) : nodiff\nmain f = v[2]",
			bind: map[string]interp.Value{
				"n": interp.Scalar(2),
				"v": interp.Vector{1, 2},
			},
		},
	}
	for _, test := range tests {
		if _, err := evalMain(t, test.src, test.bind); err == nil {
			t.Errorf("Eval(%q): no error", test.src)
		}
	}
}
