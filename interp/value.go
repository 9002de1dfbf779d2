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

package interp

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

type (
	// Value is a runtime value: a scalar, a vector or a matrix.
	Value interface {
		fmt.Stringer
		valueNode()
	}

	// Scalar is a scalar value.
	Scalar float64

	// Vector is a column vector value.
	Vector []float64

	// Matrix is a matrix value stored by rows.
	Matrix [][]float64
)

var (
	_ Value = Scalar(0)
	_ Value = Vector(nil)
	_ Value = Matrix(nil)
)

func (Scalar) valueNode() {}
func (Vector) valueNode() {}
func (Matrix) valueNode() {}

// String returns the scalar as text.
func (v Scalar) String() string { return fmt.Sprintf("%g", float64(v)) }

// String returns the vector as text.
func (v Vector) String() string {
	elts := make([]string, len(v))
	for i, elt := range v {
		elts[i] = fmt.Sprintf("%g", elt)
	}
	return "[" + strings.Join(elts, ", ") + "]"
}

// String returns the matrix as text, one row per bracket pair.
func (v Matrix) String() string {
	rows := make([]string, len(v))
	for i, row := range v {
		rows[i] = Vector(row).String()
	}
	return "[" + strings.Join(rows, ", ") + "]"
}

// asMatrix views a non-scalar value as a matrix, a vector being one
// column.
func asMatrix(v Value) (Matrix, error) {
	switch x := v.(type) {
	case Vector:
		m := make(Matrix, len(x))
		for i, elt := range x {
			m[i] = []float64{elt}
		}
		return m, nil
	case Matrix:
		return x, nil
	}
	return nil, errors.Errorf("cannot view %T as a matrix", v)
}

// fromMatrix narrows a matrix value: a single cell becomes a scalar
// and a single column becomes a vector.
func fromMatrix(m Matrix) Value {
	if len(m) == 1 && len(m[0]) == 1 {
		return Scalar(m[0][0])
	}
	single := true
	for _, row := range m {
		if len(row) != 1 {
			single = false
			break
		}
	}
	if !single {
		return m
	}
	v := make(Vector, len(m))
	for i, row := range m {
		v[i] = row[0]
	}
	return v
}

func mapValue(v Value, f func(float64) float64) (Value, error) {
	switch x := v.(type) {
	case Scalar:
		return Scalar(f(float64(x))), nil
	case Vector:
		r := make(Vector, len(x))
		for i, elt := range x {
			r[i] = f(elt)
		}
		return r, nil
	case Matrix:
		r := make(Matrix, len(x))
		for i, row := range x {
			r[i] = make([]float64, len(row))
			for j, elt := range row {
				r[i][j] = f(elt)
			}
		}
		return r, nil
	}
	return nil, errors.Errorf("unknown value %T", v)
}

func zipValues(x, y Value, f func(a, b float64) float64) (Value, error) {
	if xs, ok := x.(Scalar); ok {
		return mapValue(y, func(b float64) float64 { return f(float64(xs), b) })
	}
	if ys, ok := y.(Scalar); ok {
		return mapValue(x, func(a float64) float64 { return f(a, float64(ys)) })
	}
	switch xv := x.(type) {
	case Vector:
		yv, ok := y.(Vector)
		if !ok || len(xv) != len(yv) {
			return nil, errors.Errorf("cannot combine %s and %s elementwise", x, y)
		}
		r := make(Vector, len(xv))
		for i := range xv {
			r[i] = f(xv[i], yv[i])
		}
		return r, nil
	case Matrix:
		ym, ok := y.(Matrix)
		if !ok || len(xv) != len(ym) {
			return nil, errors.Errorf("cannot combine %s and %s elementwise", x, y)
		}
		r := make(Matrix, len(xv))
		for i, row := range xv {
			if len(row) != len(ym[i]) {
				return nil, errors.Errorf("cannot combine %s and %s elementwise", x, y)
			}
			r[i] = make([]float64, len(row))
			for j := range row {
				r[i][j] = f(row[j], ym[i][j])
			}
		}
		return r, nil
	}
	return nil, errors.Errorf("unknown value %T", x)
}

func matMul(x, y Matrix) (Matrix, error) {
	if len(x) == 0 || len(y) == 0 || len(x[0]) != len(y) {
		return nil, errors.Errorf("cannot multiply %s by %s", x, y)
	}
	inner, cols := len(y), len(y[0])
	r := make(Matrix, len(x))
	for i := range x {
		if len(x[i]) != inner {
			return nil, errors.Errorf("cannot multiply %s by %s", x, y)
		}
		r[i] = make([]float64, cols)
		for j := 0; j < cols; j++ {
			acc := 0.0
			for k := 0; k < inner; k++ {
				acc += x[i][k] * y[k][j]
			}
			r[i][j] = acc
		}
	}
	return r, nil
}
