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

import (
	"github.com/gx-org/gradgen/build/fmterr"
)

// Parser builds a parse tree from the token stream of a source file.
// Parsing stops at the first error.
type Parser struct {
	sc  *Scanner
	tok Token
}

// Parse parses a source file.
func Parse(src string) (*File, error) {
	p := &Parser{sc: NewScanner(src)}
	p.next()
	file := &File{}
	for p.tok.Type != EOF {
		decl, err := p.parseDecl()
		if err != nil {
			return nil, err
		}
		file.Decls = append(file.Decls, decl)
	}
	return file, nil
}

// ParseExpr parses a single expression, requiring that the whole
// source is consumed.
func ParseExpr(src string) (Expr, error) {
	p := &Parser{sc: NewScanner(src)}
	p.next()
	x, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.tok.Type != EOF {
		return nil, p.errorf(p.tok.Pos, "unexpected %s after expression", p.tok)
	}
	return x, nil
}

func (p *Parser) next() {
	p.tok = p.sc.Scan()
}

func (p *Parser) errorf(pos Pos, format string, a ...any) error {
	return fmterr.Errorf(fmterr.SyntaxError, pos, format, a...)
}

func (p *Parser) expect(t TokenType) (Token, error) {
	tok := p.tok
	if tok.Type != t {
		if tok.Type == ILLEGAL {
			return tok, p.errorf(tok.Pos, "invalid character %q", tok.Lit)
		}
		return tok, p.errorf(tok.Pos, "expected %s but got %s", t, tok)
	}
	p.next()
	return tok, nil
}

func (p *Parser) parseDecl() (Decl, error) {
	switch p.tok.Type {
	case NUMBER, INT, VECTOR, MATRIX:
		return p.parseVarDecl()
	case CONST:
		return p.parseConstDecl()
	case EXPR, MAIN:
		return p.parseExprDecl()
	}
	return nil, p.errorf(p.tok.Pos, "expected a declaration but got %s", p.tok)
}

// skipSemi consumes an optional declaration terminator. Declarations
// start with a keyword, so the semicolon carries no information.
func (p *Parser) skipSemi() {
	if p.tok.Type == SEMICOLON {
		p.next()
	}
}

func (p *Parser) parseIdent() (*Ident, error) {
	tok, err := p.expect(IDENT)
	if err != nil {
		return nil, err
	}
	return &Ident{NamePos: tok.Pos, Name: tok.Lit}, nil
}

func (p *Parser) parseVarDecl() (*VarDecl, error) {
	kw := p.tok
	p.next()
	name, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	decl := &VarDecl{Kw: kw, Name: name}
	numDims := 0
	switch kw.Type {
	case VECTOR:
		numDims = 1
	case MATRIX:
		numDims = 2
	}
	if numDims > 0 {
		if _, err := p.expect(LPAREN); err != nil {
			return nil, err
		}
		for i := range numDims {
			if i > 0 {
				if _, err := p.expect(COMMA); err != nil {
					return nil, err
				}
			}
			dim, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			decl.Dims = append(decl.Dims, dim)
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
	}
	if decl.Attr, err = p.parseAttr(); err != nil {
		return nil, err
	}
	p.skipSemi()
	return decl, nil
}

func (p *Parser) parseAttr() (Attr, error) {
	if p.tok.Type != COLON {
		return AttrNone, nil
	}
	p.next()
	attr := AttrNone
	switch p.tok.Type {
	case NODIFF:
		attr = AttrNoDiff
	case EQUIVALENT:
		attr = AttrEquivalent
	default:
		return AttrNone, p.errorf(p.tok.Pos, "expected %s or %s but got %s", NODIFF, EQUIVALENT, p.tok)
	}
	p.next()
	return attr, nil
}

func (p *Parser) parseConstDecl() (*ConstDecl, error) {
	kw := p.tok
	p.next()
	name, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(ASSIGN); err != nil {
		return nil, err
	}
	value, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	p.skipSemi()
	return &ConstDecl{Kw: kw, Name: name, Value: value}, nil
}

func (p *Parser) parseExprDecl() (*ExprDecl, error) {
	kw := p.tok
	p.next()
	name, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(ASSIGN); err != nil {
		return nil, err
	}
	value, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	p.skipSemi()
	return &ExprDecl{Kw: kw, Name: name, Value: value}, nil
}

// parseExpr parses at the lowest precedence level:
// addition, subtraction and vector construction.
func (p *Parser) parseExpr() (Expr, error) {
	x, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.tok.Type == ADD || p.tok.Type == SUB || p.tok.Type == HASH {
		op := p.tok
		p.next()
		y, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		x = &BinaryExpr{X: x, OpPos: op.Pos, Op: op.Type, Y: y}
	}
	return x, nil
}

// parseTerm parses multiplication, division and dot product.
func (p *Parser) parseTerm() (Expr, error) {
	x, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.tok.Type == MUL || p.tok.Type == QUO || p.tok.Type == DOT {
		op := p.tok
		p.next()
		y, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		x = &BinaryExpr{X: x, OpPos: op.Pos, Op: op.Type, Y: y}
	}
	return x, nil
}

// parseUnary parses prefix minus. Power binds tighter:
// -x^2 is -(x^2).
func (p *Parser) parseUnary() (Expr, error) {
	if p.tok.Type != SUB {
		return p.parsePower()
	}
	op := p.tok
	p.next()
	x, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &UnaryExpr{OpPos: op.Pos, Op: op.Type, X: x}, nil
}

// parsePower parses the right-associative power operator.
// The exponent may carry a prefix minus: x^-2.
func (p *Parser) parsePower() (Expr, error) {
	x, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}
	if p.tok.Type != POW {
		return x, nil
	}
	op := p.tok
	p.next()
	y, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &BinaryExpr{X: x, OpPos: op.Pos, Op: op.Type, Y: y}, nil
}

// parsePostfix parses element indexing and postfix transpose.
func (p *Parser) parsePostfix() (Expr, error) {
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.tok.Type {
		case LBRACK:
			lbrack := p.tok
			p.next()
			index, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(RBRACK); err != nil {
				return nil, err
			}
			x = &IndexExpr{X: x, Lbrack: lbrack.Pos, Index: index}
		case TRANSPOSE:
			x = &TransposeExpr{X: x, Quote: p.tok.Pos}
			p.next()
		default:
			return x, nil
		}
	}
}

func (p *Parser) parsePrimary() (Expr, error) {
	switch p.tok.Type {
	case FLOAT:
		lit := &NumberLit{ValPos: p.tok.Pos, Value: p.tok.Lit}
		p.next()
		return lit, nil
	case IDENT:
		ident := &Ident{NamePos: p.tok.Pos, Name: p.tok.Lit}
		p.next()
		if p.tok.Type != LPAREN {
			return ident, nil
		}
		return p.parseCall(ident)
	case LPAREN:
		lparen := p.tok
		p.next()
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		return &ParenExpr{Lparen: lparen.Pos, X: x}, nil
	case LBRACK:
		return p.parseVectorLit()
	case FOR:
		return p.parseReduce()
	case ILLEGAL:
		return nil, p.errorf(p.tok.Pos, "invalid character %q", p.tok.Lit)
	}
	return nil, p.errorf(p.tok.Pos, "expected an expression but got %s", p.tok)
}

func (p *Parser) parseCall(fun *Ident) (Expr, error) {
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	call := &CallExpr{Fun: fun}
	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
		if p.tok.Type != COMMA {
			break
		}
		p.next()
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	return call, nil
}

func (p *Parser) parseVectorLit() (Expr, error) {
	lbrack, err := p.expect(LBRACK)
	if err != nil {
		return nil, err
	}
	lit := &VectorLit{Lbrack: lbrack.Pos}
	for {
		elt, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		lit.Elts = append(lit.Elts, elt)
		if p.tok.Type != COMMA {
			break
		}
		p.next()
	}
	if _, err := p.expect(RBRACK); err != nil {
		return nil, err
	}
	return lit, nil
}

func (p *Parser) parseReduce() (Expr, error) {
	kw, err := p.expect(FOR)
	if err != nil {
		return nil, err
	}
	index, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(IN); err != nil {
		return nil, err
	}
	if _, err := p.expect(LBRACK); err != nil {
		return nil, err
	}
	lo, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(COMMA); err != nil {
		return nil, err
	}
	hi, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RBRACK); err != nil {
		return nil, err
	}
	op := p.tok
	if op.Type != SUM && op.Type != PRODUCT {
		return nil, p.errorf(op.Pos, "expected %s or %s but got %s", SUM, PRODUCT, op)
	}
	p.next()
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	body, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	return &ReduceExpr{
		For:   kw.Pos,
		Index: index,
		Lo:    lo,
		Hi:    hi,
		Op:    op.Type,
		Body:  body,
	}, nil
}
