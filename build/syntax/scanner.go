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

package syntax

import "unicode/utf8"

const eof = -1

// Scanner turns source text into tokens.
type Scanner struct {
	src  string
	off  int  // offset of ch
	next int  // offset after ch
	ch   rune // current character, eof at the end of the source
	line int
	col  int
}

// NewScanner returns a scanner over a source text.
func NewScanner(src string) *Scanner {
	s := &Scanner{src: src, line: 1}
	s.advance()
	return s
}

func (s *Scanner) advance() {
	if s.ch == '\n' {
		s.line++
		s.col = 0
	}
	s.col++
	if s.next >= len(s.src) {
		s.off = len(s.src)
		s.ch = eof
		return
	}
	r, w := utf8.DecodeRuneInString(s.src[s.next:])
	s.off = s.next
	s.next += w
	s.ch = r
}

func (s *Scanner) peek() rune {
	if s.next >= len(s.src) {
		return eof
	}
	r, _ := utf8.DecodeRuneInString(s.src[s.next:])
	return r
}

func (s *Scanner) pos() Pos {
	return Pos{Line: s.line, Column: s.col}
}

func (s *Scanner) skipSpace() {
	for {
		switch {
		case s.ch == ' ' || s.ch == '\t' || s.ch == '\r' || s.ch == '\n':
			s.advance()
		case s.ch == '/' && s.peek() == '/':
			for s.ch != '\n' && s.ch != eof {
				s.advance()
			}
		default:
			return
		}
	}
}

func isLetter(r rune) bool {
	return r == '_' || 'a' <= r && r <= 'z' || 'A' <= r && r <= 'Z'
}

func isDigit(r rune) bool {
	return '0' <= r && r <= '9'
}

// Scan returns the next token. At the end of the source,
// Scan keeps returning EOF tokens.
func (s *Scanner) Scan() Token {
	s.skipSpace()
	pos := s.pos()
	switch {
	case s.ch == eof:
		return Token{Type: EOF, Pos: pos}
	case isLetter(s.ch):
		lit := s.scanIdent()
		return Token{Type: lookupIdent(lit), Lit: lit, Pos: pos}
	case isDigit(s.ch):
		return Token{Type: FLOAT, Lit: s.scanNumber(), Pos: pos}
	}
	typ := ILLEGAL
	switch s.ch {
	case '+':
		typ = ADD
	case '-':
		typ = SUB
	case '*':
		typ = MUL
	case '/':
		typ = QUO
	case '^':
		typ = POW
	case '.':
		typ = DOT
	case '#':
		typ = HASH
	case '\'':
		typ = TRANSPOSE
	case '(':
		typ = LPAREN
	case ')':
		typ = RPAREN
	case '[':
		typ = LBRACK
	case ']':
		typ = RBRACK
	case ',':
		typ = COMMA
	case '=':
		typ = ASSIGN
	case ':':
		typ = COLON
	case ';':
		typ = SEMICOLON
	}
	lit := string(s.ch)
	s.advance()
	return Token{Type: typ, Lit: lit, Pos: pos}
}

func (s *Scanner) scanIdent() string {
	start := s.off
	for isLetter(s.ch) || isDigit(s.ch) {
		s.advance()
	}
	return s.src[start:s.offEnd()]
}

// scanNumber scans a decimal literal with an optional fraction
// and an optional exponent. A trailing dot is not consumed: it is
// the dot product operator.
func (s *Scanner) scanNumber() string {
	start := s.off
	for isDigit(s.ch) {
		s.advance()
	}
	if s.ch == '.' && isDigit(s.peek()) {
		s.advance()
		for isDigit(s.ch) {
			s.advance()
		}
	}
	if s.ch == 'e' || s.ch == 'E' {
		next := s.peek()
		if isDigit(next) || next == '+' || next == '-' {
			s.advance()
			if s.ch == '+' || s.ch == '-' {
				s.advance()
			}
			for isDigit(s.ch) {
				s.advance()
			}
		}
	}
	return s.src[start:s.offEnd()]
}

// offEnd returns the offset right after the last consumed character.
func (s *Scanner) offEnd() int {
	if s.ch == eof {
		return len(s.src)
	}
	return s.off
}
