package lexer

import "slices"

type Keyword string

const (
	KeywordInt      Keyword = "int"
	KeywordVoid     Keyword = "void"
	KeywordConst    Keyword = "const"
	KeywordIf       Keyword = "if"
	KeywordElse     Keyword = "else"
	KeywordWhile    Keyword = "while"
	KeywordBreak    Keyword = "break"
	KeywordContinue Keyword = "continue"
	KeywordReturn   Keyword = "return"
)

var keywords = []Keyword{
	KeywordInt,
	KeywordVoid,
	KeywordConst,
	KeywordIf,
	KeywordElse,
	KeywordWhile,
	KeywordBreak,
	KeywordContinue,
	KeywordReturn,
}

func checkKeyword(ident string) (Keyword, bool) {
	if slices.Contains(keywords, Keyword(ident)) {
		return Keyword(ident), true
	}

	return "", false
}
