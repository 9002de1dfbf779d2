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

// Package goeval generates Go source code evaluating a program: a
// function returning the value of its main expression and, unless
// disabled, functions returning its gradient and Hessian with respect
// to the declared differentiation variables.
package goeval

import (
	"bytes"
	"fmt"
	"go/format"
	"io"
	"slices"
	"strings"
	"text/template"

	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"github.com/gx-org/gradgen/build/builder"
	"github.com/gx-org/gradgen/build/ir"
	"github.com/gx-org/gradgen/grad"

	_ "embed"
)

//go:embed eval.go.tmpl
var goEval string

var goFileTemplate = template.Must(template.New("GoEvalTMPL").Parse(goEval))

// File is a generated Go source file evaluating one program.
type File struct {
	// Package is the name of the generated package.
	Package string
	// Funcs are the generated functions.
	Funcs []*routine

	prog      *builder.Program
	cfg       *Config
	params    []*ir.Symbol
	vars      []grad.Var
	funcName  string
	signature string
	imports   map[string]bool
}

// NewFile generates the functions evaluating the main expression of a
// program. Parameters are the declared symbols in declaration order,
// so a symbol sizing a later sequence is always in scope.
func NewFile(cfg *Config, prog *builder.Program) (*File, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.check(); err != nil {
		return nil, err
	}
	main := prog.Main()
	f := &File{
		Package: cfg.Package,
		prog:    prog,
		cfg:     cfg,
		params:  prog.Params(),
		vars:    grad.Vars(prog),
		imports: make(map[string]bool),
	}
	if f.Package == "" {
		f.Package = DefaultPackage
	}
	f.funcName = cfg.Func
	if f.funcName == "" {
		f.funcName = export(main.Name)
	}
	f.signature = signature(f.params)
	value, err := f.valueRoutine()
	if err != nil {
		return nil, err
	}
	f.Funcs = append(f.Funcs, value)
	if cfg.NoGradient && cfg.NoHessian {
		return f, nil
	}
	grads, err := grad.Gradient(main.Value, f.vars)
	if err != nil {
		return nil, err
	}
	if !cfg.NoGradient {
		gradient, err := f.gradientRoutine(grads)
		if err != nil {
			return nil, err
		}
		f.Funcs = append(f.Funcs, gradient)
	}
	if !cfg.NoHessian {
		hessian, err := f.hessianRoutine(grads)
		if err != nil {
			return nil, err
		}
		f.Funcs = append(f.Funcs, hessian)
	}
	return f, nil
}

// Imports returns the import block of the file. Standard library
// packages are only imported once a generated function uses them.
func (f *File) Imports() string {
	if len(f.imports) == 0 {
		return ""
	}
	paths := maps.Keys(f.imports)
	slices.Sort(paths)
	lines := make([]string, len(paths))
	for i, path := range paths {
		lines[i] = fmt.Sprintf("\t%q", path)
	}
	return fmt.Sprintf("import (\n%s\n)", strings.Join(lines, "\n"))
}

// WriteSource writes the generated file as formatted Go source.
func (f *File) WriteSource(w io.Writer) error {
	source := bytes.Buffer{}
	if err := goFileTemplate.Execute(&source, f); err != nil {
		return err
	}
	formatted, err := format.Source(source.Bytes())
	if err != nil {
		// We copy the generated content to the writer for debugging.
		io.Copy(w, &source)
		return errors.Errorf("cannot format source code: %v", err)
	}
	_, err = w.Write(formatted)
	return err
}
