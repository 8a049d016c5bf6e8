package loader

import (
	"os"

	"github.com/corani/minic/internal/ast"
	"github.com/corani/minic/internal/lexer"
	"github.com/corani/minic/internal/parser"
)

// Load reads a source file and parses it into its AST.
func Load(filename string) (*ast.CompUnit, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	lex, err := lexer.NewLexer(filename, f)
	if err != nil {
		return nil, err
	}

	tokens, err := lex.Tokens()
	if err != nil {
		return nil, err
	}

	return parser.New(tokens).Parse()
}
