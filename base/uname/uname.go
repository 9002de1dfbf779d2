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

// Package uname provides unique names.
package uname

import "fmt"

// Unique generates unique names.
type Unique struct {
	taken map[string]bool
	next  map[string]int
}

// New name generator.
func New() *Unique {
	return &Unique{
		taken: make(map[string]bool),
		next:  make(map[string]int),
	}
}

// Reserve marks a name as taken so that Name never returns it.
func (n *Unique) Reserve(name string) {
	n.taken[name] = true
}

// Name returns a unique name given a desired base name.
// If the base name is available, it is returned directly.
// Else, a numeric suffix is appended until a free name is found.
func (n *Unique) Name(base string) string {
	if !n.taken[base] {
		n.taken[base] = true
		n.next[base] = 1
		return base
	}
	for {
		if n.next[base] == 0 {
			n.next[base] = 1
		}
		name := fmt.Sprintf("%s%d", base, n.next[base])
		n.next[base]++
		if !n.taken[name] {
			n.taken[name] = true
			return name
		}
	}
}
