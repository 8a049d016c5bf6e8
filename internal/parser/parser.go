package parser

import (
	"fmt"

	"github.com/corani/minic/internal/ast"
	"github.com/corani/minic/internal/lexer"
)

type Parser struct {
	tokens []lexer.Token
	index  int
}

func New(tokens []lexer.Token) *Parser {
	return &Parser{tokens: tokens}
}

func (p *Parser) peek() lexer.Token {
	if p.index >= len(p.tokens) {
		loc := lexer.Location{}
		if n := len(p.tokens); n > 0 {
			loc = p.tokens[n-1].Location
		}

		return lexer.Token{Type: lexer.TypeEOF, Location: loc}
	}

	return p.tokens[p.index]
}

func (p *Parser) next() lexer.Token {
	tok := p.peek()
	if tok.Type != lexer.TypeEOF {
		p.index++
	}

	return tok
}

func describe(tok lexer.Token) string {
	if tok.Type == lexer.TypeEOF {
		return "end of input"
	}

	return fmt.Sprintf("%q", tok.StringVal)
}

func (p *Parser) expect(ty lexer.TokenType) (lexer.Token, error) {
	tok := p.next()
	if tok.Type != ty {
		return tok, tok.Location.Errorf("expected %s, got %s", ty, describe(tok))
	}

	return tok, nil
}

func (p *Parser) expectKeyword(kw lexer.Keyword) (lexer.Token, error) {
	tok := p.next()
	if tok.Type != lexer.TypeKeyword || tok.Keyword != kw {
		return tok, tok.Location.Errorf("expected %q, got %s", string(kw), describe(tok))
	}

	return tok, nil
}

func (p *Parser) accept(ty lexer.TokenType) (lexer.Token, bool) {
	if p.peek().Type == ty {
		return p.next(), true
	}

	return lexer.Token{}, false
}

func (p *Parser) acceptKeyword(kw lexer.Keyword) (lexer.Token, bool) {
	tok := p.peek()
	if tok.Type == lexer.TypeKeyword && tok.Keyword == kw {
		return p.next(), true
	}

	return lexer.Token{}, false
}

func (p *Parser) Parse() (*ast.CompUnit, error) {
	unit := &ast.CompUnit{}

	for p.peek().Type != lexer.TypeEOF {
		item, err := p.parseItem()
		if err != nil {
			return nil, err
		}

		unit.Items = append(unit.Items, item)
	}

	return unit, nil
}

func (p *Parser) parseItem() (ast.Item, error) {
	tok := p.peek()
	if tok.Type != lexer.TypeKeyword {
		return nil, tok.Location.Errorf("expected declaration, got %s", describe(tok))
	}

	switch tok.Keyword {
	case lexer.KeywordConst:
		return p.parseConstDecl()
	case lexer.KeywordInt, lexer.KeywordVoid:
		p.next()

		ident, err := p.expect(lexer.TypeIdent)
		if err != nil {
			return nil, err
		}

		if p.peek().Type == lexer.TypeLparen {
			return p.parseFuncDef(tok, ident)
		}

		if tok.Keyword == lexer.KeywordVoid {
			return nil, ident.Location.Errorf("variable %q declared void", ident.Identifier)
		}

		return p.parseVarDecl(tok, ident)
	default:
		return nil, tok.Location.Errorf("expected declaration, got %s", describe(tok))
	}
}

// parseConstDecl parses "const int a = 1, b = 2;" with the leading keyword
// still in the stream.
func (p *Parser) parseConstDecl() (*ast.ConstDecl, error) {
	first, err := p.expectKeyword(lexer.KeywordConst)
	if err != nil {
		return nil, err
	}

	if _, err := p.expectKeyword(lexer.KeywordInt); err != nil {
		return nil, err
	}

	decl := &ast.ConstDecl{Loc: first.Location}

	for {
		ident, err := p.expect(lexer.TypeIdent)
		if err != nil {
			return nil, err
		}

		if _, err := p.expect(lexer.TypeAssign); err != nil {
			return nil, err
		}

		init, err := p.parseExpression()
		if err != nil {
			return nil, err
		}

		decl.Defs = append(decl.Defs, ast.Def{
			Ident: ident.Identifier,
			Init:  init,
			Loc:   ident.Location,
		})

		if _, ok := p.accept(lexer.TypeComma); !ok {
			break
		}
	}

	if _, err := p.expect(lexer.TypeSemicolon); err != nil {
		return nil, err
	}

	return decl, nil
}

// parseVarDecl parses the tail of "int a = 1, b, c = 2;"; the type keyword
// and the first identifier have already been consumed.
func (p *Parser) parseVarDecl(kwTok, first lexer.Token) (*ast.VarDecl, error) {
	decl := &ast.VarDecl{Loc: kwTok.Location}
	ident := first

	for {
		def := ast.Def{Ident: ident.Identifier, Loc: ident.Location}

		if _, ok := p.accept(lexer.TypeAssign); ok {
			init, err := p.parseExpression()
			if err != nil {
				return nil, err
			}

			def.Init = init
		}

		decl.Defs = append(decl.Defs, def)

		if _, ok := p.accept(lexer.TypeComma); !ok {
			break
		}

		next, err := p.expect(lexer.TypeIdent)
		if err != nil {
			return nil, err
		}

		ident = next
	}

	if _, err := p.expect(lexer.TypeSemicolon); err != nil {
		return nil, err
	}

	return decl, nil
}

func (p *Parser) parseFuncDef(retTok, ident lexer.Token) (*ast.FuncDef, error) {
	fd := &ast.FuncDef{
		RetVoid: retTok.Keyword == lexer.KeywordVoid,
		Ident:   ident.Identifier,
		Loc:     retTok.Location,
	}

	if _, err := p.expect(lexer.TypeLparen); err != nil {
		return nil, err
	}

	if _, ok := p.accept(lexer.TypeRparen); !ok {
		for {
			if _, err := p.expectKeyword(lexer.KeywordInt); err != nil {
				return nil, err
			}

			name, err := p.expect(lexer.TypeIdent)
			if err != nil {
				return nil, err
			}

			fd.Params = append(fd.Params, ast.Param{
				Ident: name.Identifier,
				Loc:   name.Location,
			})

			if _, ok := p.accept(lexer.TypeComma); !ok {
				break
			}
		}

		if _, err := p.expect(lexer.TypeRparen); err != nil {
			return nil, err
		}
	}

	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}

	fd.Body = body

	return fd, nil
}

func (p *Parser) parseBlock() (*ast.Block, error) {
	open, err := p.expect(lexer.TypeLbrace)
	if err != nil {
		return nil, err
	}

	block := &ast.Block{Loc: open.Location}

	for {
		if _, ok := p.accept(lexer.TypeRbrace); ok {
			return block, nil
		}

		if p.peek().Type == lexer.TypeEOF {
			return nil, open.Location.Errorf("unterminated block")
		}

		item, err := p.parseBlockItem()
		if err != nil {
			return nil, err
		}

		block.Items = append(block.Items, item)
	}
}

func (p *Parser) parseBlockItem() (ast.Stmt, error) {
	tok := p.peek()
	if tok.Type == lexer.TypeKeyword {
		switch tok.Keyword {
		case lexer.KeywordConst:
			return p.parseConstDecl()
		case lexer.KeywordInt:
			p.next()

			ident, err := p.expect(lexer.TypeIdent)
			if err != nil {
				return nil, err
			}

			return p.parseVarDecl(tok, ident)
		case lexer.KeywordVoid:
			return nil, tok.Location.Errorf("variable declared void")
		}
	}

	return p.parseStmt()
}

func (p *Parser) parseStmt() (ast.Stmt, error) {
	tok := p.peek()

	switch {
	case tok.Type == lexer.TypeLbrace:
		return p.parseBlock()
	case tok.Type == lexer.TypeSemicolon:
		p.next()

		return &ast.ExprStmt{Loc: tok.Location}, nil
	case tok.Type == lexer.TypeKeyword:
		switch tok.Keyword {
		case lexer.KeywordReturn:
			p.next()

			st := &ast.Return{Loc: tok.Location}

			if _, ok := p.accept(lexer.TypeSemicolon); ok {
				return st, nil
			}

			x, err := p.parseExpression()
			if err != nil {
				return nil, err
			}

			st.X = x

			if _, err := p.expect(lexer.TypeSemicolon); err != nil {
				return nil, err
			}

			return st, nil
		case lexer.KeywordIf:
			return p.parseIf()
		case lexer.KeywordWhile:
			return p.parseWhile()
		case lexer.KeywordBreak:
			p.next()

			if _, err := p.expect(lexer.TypeSemicolon); err != nil {
				return nil, err
			}

			return &ast.Break{Loc: tok.Location}, nil
		case lexer.KeywordContinue:
			p.next()

			if _, err := p.expect(lexer.TypeSemicolon); err != nil {
				return nil, err
			}

			return &ast.Continue{Loc: tok.Location}, nil
		default:
			return nil, tok.Location.Errorf("unexpected keyword %q", tok.StringVal)
		}
	}

	// Expression or assignment statement.
	x, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(lexer.TypeSemicolon); err != nil {
		return nil, err
	}

	if a, ok := x.(*ast.Assign); ok {
		return a, nil
	}

	return &ast.ExprStmt{X: x, Loc: x.Location()}, nil
}

func (p *Parser) parseIf() (ast.Stmt, error) {
	first, err := p.expectKeyword(lexer.KeywordIf)
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(lexer.TypeLparen); err != nil {
		return nil, err
	}

	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(lexer.TypeRparen); err != nil {
		return nil, err
	}

	then, err := p.parseStmt()
	if err != nil {
		return nil, err
	}

	st := &ast.If{Cond: cond, Then: then, Loc: first.Location}

	if _, ok := p.acceptKeyword(lexer.KeywordElse); ok {
		alt, err := p.parseStmt()
		if err != nil {
			return nil, err
		}

		st.Else = alt
	}

	return st, nil
}

func (p *Parser) parseWhile() (ast.Stmt, error) {
	first, err := p.expectKeyword(lexer.KeywordWhile)
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(lexer.TypeLparen); err != nil {
		return nil, err
	}

	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(lexer.TypeRparen); err != nil {
		return nil, err
	}

	body, err := p.parseStmt()
	if err != nil {
		return nil, err
	}

	return &ast.While{Cond: cond, Body: body, Loc: first.Location}, nil
}
