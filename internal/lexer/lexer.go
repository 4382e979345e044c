package lexer

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/duns-scotus/mlpy/internal/ast"
	"github.com/duns-scotus/mlpy/internal/logging"
)

// Error is a lexical error with a precise source location.
type Error struct {
	Span    ast.Span
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Span, e.Message)
}

// Lexer scans ML source text into tokens one at a time.
type Lexer struct {
	file   string
	src    string
	pos    int // byte offset of the rune about to be read
	line   int
	col    int
}

// New creates a Lexer over src. file is optional and only used for
// diagnostics.
func New(src, file string) *Lexer {
	return &Lexer{file: file, src: src, pos: 0, line: 1, col: 1}
}

// Lex scans the entire input and returns every token, ending with one EOF
// token. It is deterministic and side-effect free beyond debug logging.
func Lex(src, file string) ([]Token, error) {
	l := New(src, file)
	var toks []Token
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Kind == EOF {
			break
		}
	}
	logging.LexerDebug("lexed %d tokens from %s (%d bytes)", len(toks), file, len(src))
	return toks, nil
}

func (l *Lexer) here() ast.Span {
	return ast.Span{File: l.file, Line: l.line, Column: l.col, EndLine: l.line, EndColumn: l.col}
}

func (l *Lexer) peekRune() (rune, int) {
	if l.pos >= len(l.src) {
		return 0, 0
	}
	r, size := utf8.DecodeRuneInString(l.src[l.pos:])
	return r, size
}

func (l *Lexer) peekAt(offset int) byte {
	if l.pos+offset >= len(l.src) {
		return 0
	}
	return l.src[l.pos+offset]
}

func (l *Lexer) advance() rune {
	r, size := l.peekRune()
	if size == 0 {
		return 0
	}
	l.pos += size
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func (l *Lexer) skipWhitespaceAndComments() error {
	for {
		r, _ := l.peekRune()
		switch {
		case r == ' ' || r == '\t' || r == '\r' || r == '\n':
			l.advance()
		case r == '/' && l.peekAt(1) == '/':
			for {
				r, size := l.peekRune()
				if size == 0 || r == '\n' {
					break
				}
				l.advance()
			}
		case r == '/' && l.peekAt(1) == '*':
			start := l.here()
			l.advance()
			l.advance()
			closed := false
			for {
				r, size := l.peekRune()
				if size == 0 {
					break
				}
				if r == '*' && l.peekAt(1) == '/' {
					l.advance()
					l.advance()
					closed = true
					break
				}
				l.advance()
			}
			if !closed {
				return &Error{Span: start, Message: "unterminated block comment"}
			}
		default:
			return nil
		}
	}
}

// Next scans and returns the next token.
func (l *Lexer) Next() (Token, error) {
	if err := l.skipWhitespaceAndComments(); err != nil {
		return Token{}, err
	}

	start := l.here()
	r, size := l.peekRune()
	if size == 0 {
		return Token{Kind: EOF, Span: start}, nil
	}

	switch {
	case unicode.IsLetter(r) || r == '_':
		return l.lexIdent(start)
	case unicode.IsDigit(r):
		return l.lexNumber(start)
	case r == '"' || r == '\'':
		return l.lexString(start, r)
	default:
		return l.lexOperator(start)
	}
}

func (l *Lexer) lexIdent(start ast.Span) (Token, error) {
	var b strings.Builder
	for {
		r, size := l.peekRune()
		if size == 0 || !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			break
		}
		b.WriteRune(r)
		l.advance()
	}
	text := b.String()
	span := l.spanFrom(start)

	if kind, ok := literalKeywords[text]; ok {
		tok := Token{Kind: kind, Text: text, Span: span}
		if kind == Bool {
			tok.StringValue = text
		}
		return tok, nil
	}
	if Keywords[text] {
		return Token{Kind: Keyword, Text: text, Span: span}, nil
	}
	return Token{Kind: Ident, Text: text, Span: span}, nil
}

func (l *Lexer) lexNumber(start ast.Span) (Token, error) {
	var b strings.Builder
	sawDot := false
	for {
		r, size := l.peekRune()
		if size == 0 {
			break
		}
		if unicode.IsDigit(r) {
			b.WriteRune(r)
			l.advance()
			continue
		}
		if r == '.' && !sawDot && unicode.IsDigit(rune(l.peekAt(1))) {
			sawDot = true
			b.WriteRune(r)
			l.advance()
			continue
		}
		break
	}
	text := b.String()
	val, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return Token{}, &Error{Span: start, Message: fmt.Sprintf("invalid numeric literal %q", text)}
	}
	span := l.spanFrom(start)
	return Token{Kind: Number, Text: text, NumberValue: val, Span: span}, nil
}

func (l *Lexer) lexString(start ast.Span, quote rune) (Token, error) {
	l.advance() // consume opening quote
	var b strings.Builder
	for {
		r, size := l.peekRune()
		if size == 0 {
			return Token{}, &Error{Span: start, Message: "unterminated string literal"}
		}
		if r == quote {
			l.advance()
			break
		}
		if r == '\n' {
			return Token{}, &Error{Span: start, Message: "unterminated string literal"}
		}
		if r == '\\' {
			l.advance()
			esc, size2 := l.peekRune()
			if size2 == 0 {
				return Token{}, &Error{Span: start, Message: "unterminated string literal"}
			}
			l.advance()
			switch esc {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '\\':
				b.WriteByte('\\')
			case '"':
				b.WriteByte('"')
			case '\'':
				b.WriteByte('\'')
			case '0':
				b.WriteByte(0)
			default:
				return Token{}, &Error{Span: start, Message: fmt.Sprintf("invalid escape sequence \\%c", esc)}
			}
			continue
		}
		b.WriteRune(r)
		l.advance()
	}
	span := l.spanFrom(start)
	return Token{Kind: String, Text: b.String(), StringValue: b.String(), Span: span}, nil
}

// multiCharOps lists, longest first, operators that span more than one byte.
var multiCharOps = []string{
	"...", "==", "!=", "<=", ">=", "&&", "||", "+=", "-=", "*=", "/=",
}

func (l *Lexer) lexOperator(start ast.Span) (Token, error) {
	for _, op := range multiCharOps {
		if strings.HasPrefix(l.src[l.pos:], op) {
			for range op {
				l.advance()
			}
			return Token{Kind: Op, Text: op, Span: l.spanFrom(start)}, nil
		}
	}

	r := l.advance()
	switch r {
	case '+', '-', '*', '/', '%', '=', '<', '>', '!', '(', ')', '{', '}',
		'[', ']', ',', '.', ':', ';', '?', '&', '|':
		return Token{Kind: Op, Text: string(r), Span: l.spanFrom(start)}, nil
	default:
		return Token{}, &Error{Span: start, Message: fmt.Sprintf("unrecognized character %q", r)}
	}
}

func (l *Lexer) spanFrom(start ast.Span) ast.Span {
	return ast.Span{File: l.file, Line: start.Line, Column: start.Column, EndLine: l.line, EndColumn: l.col}
}
