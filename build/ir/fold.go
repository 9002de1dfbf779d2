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

package ir

import (
	"math"
	"math/big"

	"github.com/gx-org/gradgen/build/syntax"
)

// FoldBinary folds literal arithmetic over the scalar operators. It
// reports false when the operation has no finite literal result, such
// as a division by zero.
func FoldBinary(op syntax.TokenType, x, y *big.Float) (*big.Float, bool) {
	z := new(big.Float)
	switch op {
	case syntax.ADD:
		return z.Add(x, y), true
	case syntax.SUB:
		return z.Sub(x, y), true
	case syntax.MUL:
		return z.Mul(x, y), true
	case syntax.QUO:
		if y.Sign() == 0 {
			return nil, false
		}
		return z.Quo(x, y), true
	case syntax.POW:
		return foldPow(x, y)
	}
	return nil, false
}

// foldPow folds a power. An integer exponent multiplies exactly; any
// other exponent goes through the host float power.
func foldPow(x, y *big.Float) (*big.Float, bool) {
	if y.IsInt() {
		n, _ := y.Int64()
		return powInt(x, n)
	}
	xf, _ := x.Float64()
	yf, _ := y.Float64()
	r := math.Pow(xf, yf)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return nil, false
	}
	return big.NewFloat(r), true
}

func powInt(x *big.Float, n int64) (*big.Float, bool) {
	if n < 0 {
		if x.Sign() == 0 {
			return nil, false
		}
		inv, ok := powInt(x, -n)
		if !ok {
			return nil, false
		}
		return new(big.Float).Quo(big.NewFloat(1), inv), true
	}
	z := big.NewFloat(1)
	base := new(big.Float).Copy(x)
	for n > 0 {
		if n&1 == 1 {
			z.Mul(z, base)
		}
		base.Mul(base, base)
		n >>= 1
	}
	return z, true
}
