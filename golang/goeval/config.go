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
	"go/token"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultPackage is the name of the generated package when none is
// configured and none can be resolved from the destination directory.
const DefaultPackage = "expr"

// Config controls the generated file.
type Config struct {
	// Package is the name of the generated package. An empty name
	// resolves from the destination directory, then falls back to
	// DefaultPackage.
	Package string `yaml:"package"`
	// Func is the base name of the generated functions. An empty
	// name exports the name of the main expression.
	Func string `yaml:"func"`
	// Out is the path of the generated file. Empty writes to the
	// standard output.
	Out string `yaml:"out"`
	// NoGradient drops the gradient function.
	NoGradient bool `yaml:"nogradient"`
	// NoHessian drops the Hessian function.
	NoHessian bool `yaml:"nohessian"`
	// Unroll is the largest literal iteration count expanded
	// without a loop. Zero keeps every reduction as a loop.
	Unroll int `yaml:"unroll"`
}

// LoadConfig reads a configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("cannot load configuration: %v", err)
	}
	return ParseConfig(data, path)
}

// ParseConfig parses a YAML configuration. path is only used in
// error messages.
func ParseConfig(data []byte, path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Errorf("%s: cannot parse configuration: %v", path, err)
	}
	if err := cfg.check(); err != nil {
		return nil, errors.Errorf("%s: %v", path, err)
	}
	return cfg, nil
}

func (cfg *Config) check() error {
	if cfg.Package != "" && !token.IsIdentifier(cfg.Package) {
		return errors.Errorf("package %q is not a valid Go identifier", cfg.Package)
	}
	if cfg.Func != "" && !token.IsIdentifier(cfg.Func) {
		return errors.Errorf("func %q is not a valid Go identifier", cfg.Func)
	}
	if cfg.Unroll < 0 {
		return errors.Errorf("unroll is %d, want zero or more", cfg.Unroll)
	}
	return nil
}
