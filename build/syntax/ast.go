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

type (
	// Node is implemented by all parse tree nodes.
	Node interface {
		// Pos returns the position of the first token of the node.
		Pos() Pos
	}

	// Decl is a top-level declaration.
	Decl interface {
		Node
		declNode()
	}

	// Expr is an expression node.
	Expr interface {
		Node
		exprNode()
	}
)

// File is a parsed source file.
type File struct {
	Decls []Decl
}

// Attr annotates a declared symbol.
type Attr int

const (
	// AttrNone marks a plain declaration.
	AttrNone Attr = iota
	// AttrNoDiff excludes a symbol from the differentiation variables.
	AttrNoDiff
	// AttrEquivalent marks the components of a symbol as structurally
	// interchangeable for derivative sharing.
	AttrEquivalent
)

var attrNames = [...]string{
	AttrNone:       "",
	AttrNoDiff:     "nodiff",
	AttrEquivalent: "equivalent",
}

// String returns the source spelling of the attribute.
func (a Attr) String() string {
	if a < 0 || int(a) >= len(attrNames) {
		return "invalid"
	}
	return attrNames[a]
}

type (
	// VarDecl declares a number, int, vector or matrix symbol.
	VarDecl struct {
		Kw   Token // NUMBER, INT, VECTOR or MATRIX
		Name *Ident
		Dims []Expr // none for scalars, one for vectors, two for matrices
		Attr Attr
	}

	// ConstDecl declares a named constant.
	ConstDecl struct {
		Kw    Token // CONST
		Name  *Ident
		Value Expr
	}

	// ExprDecl declares a named sub-expression, or the main expression
	// when declared with the main keyword.
	ExprDecl struct {
		Kw    Token // EXPR or MAIN
		Name  *Ident
		Value Expr
	}
)

func (d *VarDecl) declNode()   {}
func (d *ConstDecl) declNode() {}
func (d *ExprDecl) declNode()  {}

// Pos returns the position of the declaration keyword.
func (d *VarDecl) Pos() Pos { return d.Kw.Pos }

// Pos returns the position of the const keyword.
func (d *ConstDecl) Pos() Pos { return d.Kw.Pos }

// Pos returns the position of the expr or main keyword.
func (d *ExprDecl) Pos() Pos { return d.Kw.Pos }

// Main reports if the declaration is the main expression.
func (d *ExprDecl) Main() bool { return d.Kw.Type == MAIN }

type (
	// Ident refers to a symbol by name.
	Ident struct {
		NamePos Pos
		Name    string
	}

	// NumberLit is a decimal number literal. The literal is kept as
	// source text; the builder converts it.
	NumberLit struct {
		ValPos Pos
		Value  string
	}

	// UnaryExpr is a prefix unary operation.
	UnaryExpr struct {
		OpPos Pos
		Op    TokenType // SUB
		X     Expr
	}

	// BinaryExpr is a binary operation.
	BinaryExpr struct {
		X     Expr
		OpPos Pos
		Op    TokenType // ADD, SUB, MUL, QUO, POW, DOT or HASH
		Y     Expr
	}

	// ParenExpr is a parenthesized expression.
	ParenExpr struct {
		Lparen Pos
		X      Expr
	}

	// CallExpr applies a function to arguments.
	CallExpr struct {
		Fun  *Ident
		Args []Expr
	}

	// IndexExpr selects an element of a vector or a row of a matrix.
	IndexExpr struct {
		X      Expr
		Lbrack Pos
		Index  Expr
	}

	// TransposeExpr is the postfix transpose operator.
	TransposeExpr struct {
		X     Expr
		Quote Pos
	}

	// VectorLit builds a vector from element expressions.
	VectorLit struct {
		Lbrack Pos
		Elts   []Expr
	}

	// ReduceExpr accumulates a body over an integer range bound to a
	// loop variable, either as a sum or as a product.
	ReduceExpr struct {
		For    Pos
		Index  *Ident
		Lo, Hi Expr
		Op     TokenType // SUM or PRODUCT
		Body   Expr
	}
)

func (e *Ident) exprNode()         {}
func (e *NumberLit) exprNode()     {}
func (e *UnaryExpr) exprNode()     {}
func (e *BinaryExpr) exprNode()    {}
func (e *ParenExpr) exprNode()     {}
func (e *CallExpr) exprNode()      {}
func (e *IndexExpr) exprNode()     {}
func (e *TransposeExpr) exprNode() {}
func (e *VectorLit) exprNode()     {}
func (e *ReduceExpr) exprNode()    {}

// Pos returns the position of the identifier.
func (e *Ident) Pos() Pos { return e.NamePos }

// Pos returns the position of the literal.
func (e *NumberLit) Pos() Pos { return e.ValPos }

// Pos returns the position of the operator.
func (e *UnaryExpr) Pos() Pos { return e.OpPos }

// Pos returns the position of the left operand.
func (e *BinaryExpr) Pos() Pos { return e.X.Pos() }

// Pos returns the position of the opening parenthesis.
func (e *ParenExpr) Pos() Pos { return e.Lparen }

// Pos returns the position of the function name.
func (e *CallExpr) Pos() Pos { return e.Fun.Pos() }

// Pos returns the position of the indexed expression.
func (e *IndexExpr) Pos() Pos { return e.X.Pos() }

// Pos returns the position of the transposed expression.
func (e *TransposeExpr) Pos() Pos { return e.X.Pos() }

// Pos returns the position of the opening bracket.
func (e *VectorLit) Pos() Pos { return e.Lbrack }

// Pos returns the position of the for keyword.
func (e *ReduceExpr) Pos() Pos { return e.For }
