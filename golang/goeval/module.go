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
	"os"
	"path"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/mod/modfile"
)

func findModuleRoot(dir string) string {
	dir = filepath.Clean(dir)
	if dir == "" {
		return ""
	}
	for {
		if fi, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil && !fi.IsDir() {
			return dir
		}
		d := filepath.Dir(dir)
		if d == dir {
			break
		}
		dir = d
	}
	return ""
}

// PackageFor returns the name and import path of the Go package a
// file generated in dir would belong to, resolved from the enclosing
// Go module.
func PackageFor(dir string) (name, importPath string, err error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", "", errors.Errorf("invalid path %q: %v", dir, err)
	}
	root := findModuleRoot(abs)
	if root == "" {
		return "", "", errors.Errorf("directory %q is not in a Go module: cannot find go.mod", dir)
	}
	modPath := filepath.Join(root, "go.mod")
	data, err := os.ReadFile(modPath)
	if err != nil {
		return "", "", errors.Errorf("cannot read %s: %v", modPath, err)
	}
	mod, err := modfile.Parse(modPath, data, nil)
	if err != nil {
		return "", "", errors.Errorf("cannot parse %s: %v", modPath, err)
	}
	if mod.Module == nil {
		return "", "", errors.Errorf("%s has no module directive", modPath)
	}
	importPath = mod.Module.Mod.Path
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", "", errors.Errorf("invalid path %q: %v", dir, err)
	}
	if rel != "." {
		importPath += "/" + filepath.ToSlash(rel)
	}
	return path.Base(importPath), importPath, nil
}
