package lexer

import (
	"errors"
	"io"
)

type Lexer struct {
	scan *Scanner
}

func NewLexer(filename string, r io.Reader) (*Lexer, error) {
	scan, err := NewScanner(filename, r)
	if err != nil {
		return nil, err
	}

	return &Lexer{scan: scan}, nil
}

// Tokens drains the whole input.
func (t *Lexer) Tokens() ([]Token, error) {
	var tokens []Token

	for {
		token, err := t.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return tokens, nil
			}

			return nil, err
		}

		tokens = append(tokens, token)
	}
}

func (t *Lexer) Next() (Token, error) {
	for {
		c, err := t.scan.Next()
		if err != nil {
			return Token{}, err // EOF
		}

		start := t.scan.Location()

		switch {
		case isWhitespace(c):
			continue
		case c == '/':
			c2, err := t.scan.Next()
			if err != nil { // EOF, the slash still forms a token
				return Token{Type: TypeSlash, StringVal: "/", Location: start}, nil
			}

			switch c2 {
			case '/':
				// Line comment: skip to end of line.
				for {
					c, err = t.scan.Next()
					if err != nil || c == '\n' {
						break
					}
				}

				continue
			case '*':
				// Block comment: skip to the closing "*/".
				var prev byte

				closed := false

				for {
					c, err = t.scan.Next()
					if err != nil {
						break
					}

					if prev == '*' && c == '/' {
						closed = true

						break
					}

					prev = c
				}

				if !closed {
					return Token{}, start.Errorf("unterminated block comment")
				}

				continue
			default:
				t.scan.Unread(1)

				return Token{Type: TypeSlash, StringVal: "/", Location: start}, nil
			}
		case isNumeric(c):
			// Munch the maximal alphanumeric run; NewNumberToken rejects
			// malformed literals like "123abc" or "08".
			buf := []byte{c}

			for {
				c, err = t.scan.Next()
				if err != nil {
					break // EOF, the literal still forms a token
				}

				if isAlphanumeric(c) {
					buf = append(buf, c)
				} else {
					t.scan.Unread(1)

					break
				}
			}

			return NewNumberToken(string(buf), start)
		case isAlpha(c):
			buf := []byte{c}

			for {
				c, err = t.scan.Next()
				if err != nil {
					break // EOF, the identifier still forms a token
				}

				if isAlphanumeric(c) {
					buf = append(buf, c)
				} else {
					t.scan.Unread(1)

					break
				}
			}

			return NewIdentOrKeywordToken(string(buf), start), nil
		default:
			// Maximal munch for symbolic tokens.
			mmType := TypeEOF
			mmToken := ""
			prefix := []byte{c}

			for {
				foundPrefix := false

				for k, v := range symbols {
					if len(k) >= len(prefix) && k[:len(prefix)] == string(prefix) {
						foundPrefix = true

						if k == string(prefix) {
							mmToken = k
							mmType = v
						}
					}
				}

				if !foundPrefix {
					break
				}

				c2, err := t.scan.Next()
				if err != nil {
					break
				}

				prefix = append(prefix, c2)
			}

			if mmToken == "" {
				return Token{}, start.Errorf("unexpected character %q", string(c))
			}

			if count := len(prefix) - len(mmToken); count > 0 {
				t.scan.Unread(count)
			}

			return Token{Type: mmType, StringVal: mmToken, Location: start}, nil
		}
	}
}

func isAlphanumeric(a byte) bool { return isAlpha(a) || isNumeric(a) }
func isAlpha(a byte) bool        { return (a >= 'a' && a <= 'z') || (a >= 'A' && a <= 'Z') || a == '_' }
func isNumeric(d byte) bool      { return d >= '0' && d <= '9' }
func isWhitespace(c byte) bool   { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }
