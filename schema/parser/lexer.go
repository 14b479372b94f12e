package parser

import (
	"strings"
	"unicode/utf8"

	"github.com/syssam/prax"
	"github.com/syssam/prax/schema"
)

// tokenKind identifies a lexical token.
type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokInt
	tokFloat
	tokAt
	tokAtAt
	tokLBrace
	tokRBrace
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokComma
	tokColon
	tokEquals
	tokQuestion
)

var tokenNames = [...]string{
	tokEOF:      "end of input",
	tokIdent:    "identifier",
	tokString:   "string",
	tokInt:      "integer",
	tokFloat:    "float",
	tokAt:       "'@'",
	tokAtAt:     "'@@'",
	tokLBrace:   "'{'",
	tokRBrace:   "'}'",
	tokLParen:   "'('",
	tokRParen:   "')'",
	tokLBracket: "'['",
	tokRBracket: "']'",
	tokComma:    "','",
	tokColon:    "':'",
	tokEquals:   "'='",
	tokQuestion: "'?'",
}

func (k tokenKind) String() string { return tokenNames[k] }

// token is a lexeme with its source span. Doc holds the `///` comment
// lines immediately preceding the token.
type token struct {
	kind tokenKind
	text string
	span schema.Span
	doc  string
}

// lex splits src into tokens. Regular comments are dropped; doc comments
// are attached to the next token.
func lex(src string) ([]token, error) {
	l := &lexer{src: src}
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		l.toks = append(l.toks, tok)
		if tok.kind == tokEOF {
			return l.toks, nil
		}
	}
}

type lexer struct {
	src  string
	pos  int
	toks []token
	docs []string
}

func (l *lexer) next() (token, error) {
	if err := l.skipSpace(); err != nil {
		return token{}, err
	}
	start := l.pos
	tok := token{span: schema.Span{Start: start, End: start}}
	if len(l.docs) > 0 {
		tok.doc = strings.Join(l.docs, "\n")
		l.docs = l.docs[:0]
	}
	if l.pos >= len(l.src) {
		tok.kind = tokEOF
		return tok, nil
	}
	c := l.src[l.pos]
	switch {
	case isIdentStart(c):
		l.pos++
		for l.pos < len(l.src) && (isIdentPart(l.src[l.pos]) || l.dottedIdent()) {
			l.pos++
		}
		tok.kind = tokIdent
	case isDigit(c) || (c == '-' && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1])):
		tok.kind = l.number()
	case c == '"':
		text, err := l.string()
		if err != nil {
			return token{}, err
		}
		tok.kind, tok.text = tokString, text
		tok.span.End = l.pos
		return tok, nil
	case c == '@':
		l.pos++
		tok.kind = tokAt
		if l.pos < len(l.src) && l.src[l.pos] == '@' {
			l.pos++
			tok.kind = tokAtAt
		}
	default:
		kind, ok := punct[c]
		if !ok {
			r, size := utf8.DecodeRuneInString(l.src[l.pos:])
			return token{}, prax.NewSyntaxError(l.pos, size, "unexpected character %q", r)
		}
		l.pos++
		tok.kind = kind
	}
	tok.span.End = l.pos
	tok.text = l.src[start:l.pos]
	return tok, nil
}

var punct = map[byte]tokenKind{
	'{': tokLBrace,
	'}': tokRBrace,
	'(': tokLParen,
	')': tokRParen,
	'[': tokLBracket,
	']': tokRBracket,
	',': tokComma,
	':': tokColon,
	'=': tokEquals,
	'?': tokQuestion,
}

// dottedIdent reports whether the lexer is on a '.' that joins two
// identifier parts, as in db.VarChar or auth.uid.
func (l *lexer) dottedIdent() bool {
	return l.src[l.pos] == '.' && l.pos+1 < len(l.src) && isIdentStart(l.src[l.pos+1])
}

func (l *lexer) skipSpace() error {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			l.pos++
		case strings.HasPrefix(l.src[l.pos:], "///"):
			end := l.lineEnd()
			l.docs = append(l.docs, strings.TrimSpace(l.src[l.pos+3:end]))
			l.pos = end
		case strings.HasPrefix(l.src[l.pos:], "//"):
			l.pos = l.lineEnd()
		case strings.HasPrefix(l.src[l.pos:], "/*"):
			end := strings.Index(l.src[l.pos+2:], "*/")
			if end < 0 {
				return prax.NewSyntaxError(l.pos, len(l.src)-l.pos, "unterminated block comment")
			}
			l.pos += end + 4
		default:
			return nil
		}
	}
	return nil
}

func (l *lexer) lineEnd() int {
	if i := strings.IndexByte(l.src[l.pos:], '\n'); i >= 0 {
		return l.pos + i
	}
	return len(l.src)
}

func (l *lexer) number() tokenKind {
	if l.src[l.pos] == '-' {
		l.pos++
	}
	for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
		l.pos++
	}
	if l.pos+1 < len(l.src) && l.src[l.pos] == '.' && isDigit(l.src[l.pos+1]) {
		l.pos++
		for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			l.pos++
		}
		return tokFloat
	}
	return tokInt
}

// string scans a "…" or """…""" literal. Triple-quoted content is kept
// verbatim; single-quoted content has its escapes decoded.
func (l *lexer) string() (string, error) {
	start := l.pos
	if strings.HasPrefix(l.src[l.pos:], `"""`) {
		end := strings.Index(l.src[l.pos+3:], `"""`)
		if end < 0 {
			return "", prax.NewSyntaxError(start, len(l.src)-start, "unterminated triple-quoted string")
		}
		text := l.src[l.pos+3 : l.pos+3+end]
		l.pos += end + 6
		return text, nil
	}
	l.pos++
	var b strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch c {
		case '"':
			l.pos++
			return b.String(), nil
		case '\n':
			return "", prax.NewSyntaxError(start, l.pos-start, "unterminated string")
		case '\\':
			if l.pos+1 >= len(l.src) {
				return "", prax.NewSyntaxError(start, l.pos-start, "unterminated string")
			}
			l.pos++
			switch e := l.src[l.pos]; e {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '"', '\\', '\'':
				b.WriteByte(e)
			default:
				return "", prax.NewSyntaxError(l.pos-1, 2, "unknown escape sequence \\%c", e)
			}
			l.pos++
		default:
			b.WriteByte(c)
			l.pos++
		}
	}
	return "", prax.NewSyntaxError(start, l.pos-start, "unterminated string")
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
