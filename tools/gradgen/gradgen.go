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

// Utility gradgen compiles an expression program into Go source code
// evaluating its value, gradient and Hessian.
//
// With an input file the generated code is written next to it with a
// .go extension. Without one, the program is read from the standard
// input and the generated code written to the standard output.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"go.uber.org/multierr"
	"github.com/gx-org/gradgen/api"
	"github.com/gx-org/gradgen/golang/goeval"
)

var (
	configPath = flag.String("config", "", "path to a YAML configuration file")
	out        = flag.String("out", "", "path of the generated file; - writes to the standard output")
	pkgName    = flag.String("package", "", "name of the generated package (default: resolved from the destination directory)")
	funcName   = flag.String("func", "", "base name of the generated functions (default: the exported name of the main expression)")
	noGradient = flag.Bool("nogradient", false, "do not generate the gradient function")
	noHessian  = flag.Bool("nohessian", false, "do not generate the Hessian function")
	unroll     = flag.Int("unroll", 0, "largest literal iteration count expanded without a loop")
)

func exit(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format, a...)
	fmt.Fprintln(os.Stderr)
	os.Exit(1)
}

// config merges the configuration file, if any, with the command
// line. A flag set on the command line wins over the file.
func config() *goeval.Config {
	cfg := &goeval.Config{}
	if *configPath != "" {
		var err error
		if cfg, err = goeval.LoadConfig(*configPath); err != nil {
			exit("%+v", err)
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "out":
			cfg.Out = *out
		case "package":
			cfg.Package = *pkgName
		case "func":
			cfg.Func = *funcName
		case "nogradient":
			cfg.NoGradient = *noGradient
		case "nohessian":
			cfg.NoHessian = *noHessian
		case "unroll":
			cfg.Unroll = *unroll
		}
	})
	return cfg
}

func write(path string, src []byte) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()
	_, err = f.Write(src)
	return err
}

func main() {
	flag.Parse()
	if flag.NArg() > 1 {
		exit("expected at most one input file, got %d\nusage: gradgen [flags] file.gg", flag.NArg())
	}
	cfg := config()
	input := flag.Arg(0)
	dest := cfg.Out
	if dest == "" {
		if input != "" {
			dest = input[:len(input)-len(filepath.Ext(input))] + ".go"
		}
	} else if dest == "-" {
		dest = ""
	}
	if cfg.Package == "" && dest != "" {
		// Name the generated package after the Go package of the
		// destination directory when there is one.
		if name, _, err := goeval.PackageFor(filepath.Dir(dest)); err == nil {
			cfg.Package = name
		}
	}
	var src []byte
	var err error
	if input != "" {
		src, err = api.CompileFile(input, cfg)
	} else {
		if isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()) {
			exit("no input file and the standard input is a terminal\nusage: gradgen [flags] file.gg")
		}
		var data []byte
		if data, err = io.ReadAll(os.Stdin); err != nil {
			exit("cannot read the standard input: %v", err)
		}
		src, err = api.Compile(string(data), cfg)
	}
	if err != nil {
		exit("%+v", err)
	}
	if dest == "" {
		if _, err := os.Stdout.Write(src); err != nil {
			exit("cannot write the generated code: %v", err)
		}
		return
	}
	if err := write(dest, src); err != nil {
		exit("cannot write %s: %v", dest, err)
	}
}
