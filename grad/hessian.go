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

package grad

import (
	"sync"

	"github.com/gx-org/gradgen/build/fmterr"
	"github.com/gx-org/gradgen/build/ir"
)

// Gradient differentiates an expression with respect to every
// variable, in variable order.
func Gradient(expr ir.Expr, vars []Var) ([]ir.Expr, error) {
	grads := make([]ir.Expr, len(vars))
	for i, wrt := range vars {
		g, err := Grad(expr, wrt)
		if err != nil {
			return nil, err
		}
		grads[i] = g
	}
	return grads, nil
}

// numWorkers is the number of simultaneous workers differentiating
// Hessian cells.
const numWorkers = 16

type cell struct {
	i, j int
}

// Hessian differentiates each gradient component once more to build
// the matrix of second derivatives. The matrix is symmetric so only
// the upper triangle is computed; the lower triangle shares the same
// expressions. Workers write to disjoint cells, and errors are
// reported in row-major cell order so the result does not depend on
// scheduling.
func Hessian(grads []ir.Expr, vars []Var) ([][]ir.Expr, error) {
	n := len(vars)
	if n != len(grads) {
		return nil, fmterr.Internalf(fmterr.Pos{}, "%d gradient components for %d variables", len(grads), n)
	}
	hess := make([][]ir.Expr, n)
	for i := range hess {
		hess[i] = make([]ir.Expr, n)
	}
	errs := make([]error, n*n)
	cells := make(chan cell)
	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range cells {
				var err error
				hess[c.i][c.j], err = Grad(grads[c.i], vars[c.j])
				errs[c.i*n+c.j] = err
			}
		}()
	}
	for i := range n {
		for j := i; j < n; j++ {
			cells <- cell{i: i, j: j}
		}
	}
	close(cells)
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	for i := range n {
		for j := range i {
			hess[i][j] = hess[j][i]
		}
	}
	return hess, nil
}
