package compiler

import (
	"fmt"
	"strings"

	"github.com/corani/minic/internal/ast"
	"github.com/corani/minic/internal/codegen"
	"github.com/corani/minic/internal/ir"
	"github.com/corani/minic/internal/kir"
	"github.com/corani/minic/internal/lexer"
	"github.com/corani/minic/internal/loader"
	"github.com/corani/minic/internal/parser"
)

// Mode selects the pipeline's final stage.
type Mode string

const (
	ModeKoopa Mode = "-koopa" // stop after frontend lowering, emit KIR text
	ModeRISCV Mode = "-riscv" // run the backend, emit RV32IM assembly
)

// CompileFile runs the pipeline over a source file.
func CompileFile(mode Mode, filename string) (string, error) {
	unit, err := loader.Load(filename)
	if err != nil {
		return "", err
	}

	return Compile(mode, unit)
}

// CompileSource runs the pipeline over in-memory source text. The filename
// only labels diagnostics.
func CompileSource(mode Mode, filename, src string) (string, error) {
	lex, err := lexer.NewLexer(filename, strings.NewReader(src))
	if err != nil {
		return "", err
	}

	tokens, err := lex.Tokens()
	if err != nil {
		return "", err
	}

	unit, err := parser.New(tokens).Parse()
	if err != nil {
		return "", err
	}

	return Compile(mode, unit)
}

// Compile lowers the AST to KIR text and, depending on mode, reparses that
// text and lowers it on to assembly.
func Compile(mode Mode, unit *ast.CompUnit) (string, error) {
	text, err := ir.Lower(unit)
	if err != nil {
		return "", err
	}

	switch mode {
	case ModeKoopa:
		return text, nil
	case ModeRISCV:
		prog, err := kir.Parse(text)
		if err != nil {
			return "", err
		}

		return codegen.Generate(prog)
	default:
		return "", fmt.Errorf("unsupported mode %q", string(mode))
	}
}
