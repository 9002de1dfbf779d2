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

// Package api compiles expression programs into Go source code.
package api

import (
	"bytes"
	"os"

	"github.com/pkg/errors"
	"github.com/gx-org/gradgen/build/builder"
	"github.com/gx-org/gradgen/golang/goeval"
)

// Compile compiles a program into the Go source of its evaluation
// functions: the value of the main expression and, unless the
// configuration disables them, its gradient and Hessian. cfg may be
// nil for the defaults.
//
// A failing compilation reports exactly one error. An error in the
// program is a *fmterr.Error carrying its classification and source
// position, recovered with errors.As.
func Compile(src string, cfg *goeval.Config) ([]byte, error) {
	prog, err := builder.BuildSource(src)
	if err != nil {
		return nil, err
	}
	file, err := goeval.NewFile(cfg, prog)
	if err != nil {
		return nil, err
	}
	out := bytes.Buffer{}
	if err := file.WriteSource(&out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// CompileFile compiles a program read from a file.
func CompileFile(path string, cfg *goeval.Config) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("cannot read %s: %v", path, err)
	}
	return Compile(string(data), cfg)
}
