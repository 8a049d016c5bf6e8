package parser

import (
	"github.com/corani/minic/internal/ast"
	"github.com/corani/minic/internal/lexer"
)

// opInfo drives precedence climbing over the source precedence levels:
// LOr < LAnd < Eq < Rel < Add < Mul. All binary operators associate left.
type opInfo struct {
	precedence int
	kind       ast.BinOp
}

var opPrecedence = map[lexer.TokenType]opInfo{
	lexer.TypeLogOr:   {precedence: 1, kind: ast.OpLogOr},
	lexer.TypeLogAnd:  {precedence: 2, kind: ast.OpLogAnd},
	lexer.TypeEq:      {precedence: 3, kind: ast.OpEq},
	lexer.TypeNe:      {precedence: 3, kind: ast.OpNe},
	lexer.TypeLt:      {precedence: 4, kind: ast.OpLt},
	lexer.TypeLe:      {precedence: 4, kind: ast.OpLe},
	lexer.TypeGt:      {precedence: 4, kind: ast.OpGt},
	lexer.TypeGe:      {precedence: 4, kind: ast.OpGe},
	lexer.TypePlus:    {precedence: 5, kind: ast.OpAdd},
	lexer.TypeMinus:   {precedence: 5, kind: ast.OpSub},
	lexer.TypeStar:    {precedence: 6, kind: ast.OpMul},
	lexer.TypeSlash:   {precedence: 6, kind: ast.OpDiv},
	lexer.TypePercent: {precedence: 6, kind: ast.OpMod},
}

// parseExpression parses a full expression, including the assignment form
// "lval = exp", which binds loosest and associates right.
func (p *Parser) parseExpression() (ast.Expr, error) {
	lhs, err := p.parseBinary(0)
	if err != nil {
		return nil, err
	}

	if tok, ok := p.accept(lexer.TypeAssign); ok {
		target, isLVal := lhs.(*ast.LVal)
		if !isLVal {
			return nil, tok.Location.Errorf("left-hand side of assignment is not assignable")
		}

		value, err := p.parseExpression()
		if err != nil {
			return nil, err
		}

		return &ast.Assign{Target: target, Value: value, Loc: target.Loc}, nil
	}

	return lhs, nil
}

func (p *Parser) parseBinary(minPrec int) (ast.Expr, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for {
		tok := p.peek()

		info, ok := opPrecedence[tok.Type]
		if !ok || info.precedence < minPrec {
			return lhs, nil
		}

		p.next()

		rhs, err := p.parseBinary(info.precedence + 1)
		if err != nil {
			return nil, err
		}

		lhs = &ast.Binary{Op: info.kind, Lhs: lhs, Rhs: rhs, Loc: tok.Location}
	}
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	tok := p.peek()

	var op ast.UnaryOp

	switch tok.Type {
	case lexer.TypePlus:
		op = ast.UnaryPlus
	case lexer.TypeMinus:
		op = ast.UnaryMinus
	case lexer.TypeNot:
		op = ast.UnaryNot
	default:
		return p.parsePrimary()
	}

	p.next()

	x, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	return &ast.Unary{Op: op, X: x, Loc: tok.Location}, nil
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	tok := p.next()

	switch tok.Type {
	case lexer.TypeNumber:
		return &ast.IntLit{Value: tok.NumberVal, Loc: tok.Location}, nil
	case lexer.TypeLparen:
		x, err := p.parseExpression()
		if err != nil {
			return nil, err
		}

		if _, err := p.expect(lexer.TypeRparen); err != nil {
			return nil, err
		}

		return x, nil
	case lexer.TypeIdent:
		if _, ok := p.accept(lexer.TypeLparen); ok {
			return p.parseCallArgs(tok)
		}

		return &ast.LVal{Ident: tok.Identifier, Loc: tok.Location}, nil
	default:
		return nil, tok.Location.Errorf("expected expression, got %s", describe(tok))
	}
}

// parseCallArgs parses the argument list of "ident(...)"; the opening paren
// has already been consumed.
func (p *Parser) parseCallArgs(ident lexer.Token) (ast.Expr, error) {
	call := &ast.Call{Ident: ident.Identifier, Loc: ident.Location}

	if _, ok := p.accept(lexer.TypeRparen); ok {
		return call, nil
	}

	for {
		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}

		call.Args = append(call.Args, arg)

		if _, ok := p.accept(lexer.TypeComma); !ok {
			break
		}
	}

	if _, err := p.expect(lexer.TypeRparen); err != nil {
		return nil, err
	}

	return call, nil
}
