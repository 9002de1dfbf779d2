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

// Package syntax scans and parses expression source files.
package syntax

import "github.com/gx-org/gradgen/build/fmterr"

// Pos is a position in a source file. It is an alias of fmterr.Pos.
type Pos = fmterr.Pos

// TokenType identifies the type of a token.
type TokenType int

// Token types produced by the scanner.
const (
	ILLEGAL TokenType = iota
	EOF

	IDENT // q
	FLOAT // 3.14

	// Keywords.
	NUMBER     // number
	INT        // int
	VECTOR     // vector
	MATRIX     // matrix
	CONST      // const
	EXPR       // expr
	MAIN       // main
	FOR        // for
	IN         // in
	SUM        // sum
	PRODUCT    // product
	NODIFF     // nodiff
	EQUIVALENT // equivalent

	// Operators and delimiters.
	ADD       // +
	SUB       // -
	MUL       // *
	QUO       // /
	POW       // ^
	DOT       // .
	HASH      // #
	TRANSPOSE // '
	LPAREN    // (
	RPAREN    // )
	LBRACK    // [
	RBRACK    // ]
	COMMA     // ,
	ASSIGN    // =
	COLON     // :
	SEMICOLON // ;
)

var tokenNames = [...]string{
	ILLEGAL:    "ILLEGAL",
	EOF:        "EOF",
	IDENT:      "IDENT",
	FLOAT:      "FLOAT",
	NUMBER:     "number",
	INT:        "int",
	VECTOR:     "vector",
	MATRIX:     "matrix",
	CONST:      "const",
	EXPR:       "expr",
	MAIN:       "main",
	FOR:        "for",
	IN:         "in",
	SUM:        "sum",
	PRODUCT:    "product",
	NODIFF:     "nodiff",
	EQUIVALENT: "equivalent",
	ADD:        "+",
	SUB:        "-",
	MUL:        "*",
	QUO:        "/",
	POW:        "^",
	DOT:        ".",
	HASH:       "#",
	TRANSPOSE:  "'",
	LPAREN:     "(",
	RPAREN:     ")",
	LBRACK:     "[",
	RBRACK:     "]",
	COMMA:      ",",
	ASSIGN:     "=",
	COLON:      ":",
	SEMICOLON:  ";",
}

// String returns the source text of the token type,
// or its name for token types without a fixed spelling.
func (t TokenType) String() string {
	if t < 0 || int(t) >= len(tokenNames) {
		return "INVALID"
	}
	return tokenNames[t]
}

var keywords = map[string]TokenType{
	"number":     NUMBER,
	"int":        INT,
	"vector":     VECTOR,
	"matrix":     MATRIX,
	"const":      CONST,
	"expr":       EXPR,
	"main":       MAIN,
	"for":        FOR,
	"in":         IN,
	"sum":        SUM,
	"product":    PRODUCT,
	"nodiff":     NODIFF,
	"equivalent": EQUIVALENT,
}

// lookupIdent returns the keyword token type of an identifier spelling,
// or IDENT if the spelling is not a keyword.
func lookupIdent(name string) TokenType {
	if kw, ok := keywords[name]; ok {
		return kw
	}
	return IDENT
}

// Token is a lexical unit of a source file.
type Token struct {
	Type TokenType
	Lit  string
	Pos  Pos
}

// String returns the token source text.
func (t Token) String() string {
	switch t.Type {
	case IDENT, FLOAT, ILLEGAL:
		return t.Lit
	}
	return t.Type.String()
}
