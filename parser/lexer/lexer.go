// Copyright © 2024 The ELPS authors

// Package lexer splits Clojure source text into tokens.
package lexer

import (
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/luthersystems/cljsym/parser/token"
)

type LexFn func(*Lexer) []*token.Token

// Runes that terminate a symbol, keyword or number.
const delimiters = "()[]{}\";@^`~\\,"

type Lexer struct {
	scanner *token.Scanner
	lex     LexFn
}

func New(s *token.Scanner) *Lexer {
	lex := &Lexer{
		scanner: s,
		lex:     (*Lexer).readToken,
	}
	return lex
}

func (lex *Lexer) ReadToken() []*token.Token {
	return lex.lex(lex)
}

func (lex *Lexer) readToken() []*token.Token {
	lex.skipWhitespace()
	if err := lex.scanner.ScanRune(); err != nil {
		return lex.emitError(err, true)
	}
	switch c := lex.scanner.Rune(); c {
	case '(':
		return lex.emitText(token.PAREN_L)
	case ')':
		return lex.emitText(token.PAREN_R)
	case '[':
		return lex.emitText(token.BRACKET_L)
	case ']':
		return lex.emitText(token.BRACKET_R)
	case '{':
		return lex.emitText(token.BRACE_L)
	case '}':
		return lex.emitText(token.BRACE_R)
	case '\'':
		return lex.emitText(token.QUOTE)
	case '`':
		return lex.emitText(token.SYNTAX_QUOTE)
	case '~':
		if lex.scanner.AcceptRune('@') {
			return lex.emitText(token.UNQUOTE_SPLICING)
		}
		return lex.emitText(token.UNQUOTE)
	case '@':
		return lex.emitText(token.DEREF)
	case '^':
		return lex.emitText(token.META)
	case ';':
		lex.scanner.AcceptSeq(func(c rune) bool { return c != '\n' })
		return lex.emitText(token.COMMENT)
	case '"':
		return lex.readString(token.STRING)
	case '\\':
		return lex.readChar()
	case ':':
		lex.scanner.AcceptSeq(isWord)
		if lex.scanner.Text() == ":" {
			return lex.errorf("invalid keyword")
		}
		return lex.emitText(token.KEYWORD)
	case '#':
		return lex.readDispatch()
	case '+', '-':
		if isDigit(lex.peekRune()) {
			return lex.readNumber()
		}
		return lex.readSymbol()
	default:
		if isDigit(c) {
			return lex.readNumber()
		}
		if isWord(c) {
			return lex.readSymbol()
		}
		return lex.errorf("unexpected text starting with %q", c)
	}
}

// readDispatch handles the reader macros introduced by '#'.
func (lex *Lexer) readDispatch() []*token.Token {
	c, ok := lex.scanner.Peek()
	if !ok {
		return lex.errorf("unexpected EOF after #")
	}
	switch c {
	case '{':
		lex.scanner.ScanRune()
		return lex.emitText(token.SET_L)
	case '(':
		lex.scanner.ScanRune()
		return lex.emitText(token.FN_L)
	case '\'':
		lex.scanner.ScanRune()
		return lex.emitText(token.VAR_QUOTE)
	case '_':
		lex.scanner.ScanRune()
		return lex.emitText(token.DISCARD)
	case '^':
		lex.scanner.ScanRune()
		return lex.emitText(token.LEGACY_META)
	case '"':
		lex.scanner.ScanRune()
		return lex.readString(token.REGEX)
	case '!':
		lex.scanner.AcceptSeq(func(c rune) bool { return c != '\n' })
		return lex.emitText(token.COMMENT)
	case '?':
		lex.scanner.ScanRune()
		if lex.scanner.AcceptRune('@') {
			return lex.emitText(token.READER_COND_SPLICE)
		}
		return lex.emitText(token.READER_COND)
	case ':':
		lex.scanner.ScanRune()
		lex.scanner.AcceptRune(':')
		lex.scanner.AcceptSeq(isWord)
		return lex.emitText(token.NAMESPACED_MAP)
	case '#':
		lex.scanner.ScanRune()
		lex.scanner.AcceptSeq(isWord)
		return lex.emitText(token.SYMBOLIC)
	default:
		if unicode.IsLetter(c) || c == '=' {
			lex.scanner.AcceptSeq(isWord)
			return lex.emitText(token.TAG)
		}
		lex.scanner.ScanRune()
		return lex.errorf("invalid dispatch macro character %q", c)
	}
}

func (lex *Lexer) readString(typ token.Type) []*token.Token {
	for {
		if err := lex.scanner.ScanRune(); err != nil {
			if err == io.EOF {
				return lex.errorf("unterminated string literal")
			}
			return lex.emitError(err, false)
		}
		switch lex.scanner.Rune() {
		case '\\':
			if err := lex.scanner.ScanRune(); err != nil {
				return lex.errorf("unterminated string literal")
			}
		case '"':
			return lex.emitText(typ)
		}
	}
}

// readChar reads a character literal such as \a, \newline or Ω.
func (lex *Lexer) readChar() []*token.Token {
	if err := lex.scanner.ScanRune(); err != nil {
		return lex.errorf("unterminated character literal")
	}
	if unicode.IsLetter(lex.scanner.Rune()) {
		lex.scanner.AcceptSeq(func(c rune) bool { return unicode.IsLetter(c) || isDigit(c) })
	}
	return lex.emitText(token.CHAR)
}

func (lex *Lexer) readSymbol() []*token.Token {
	lex.scanner.AcceptSeq(isWord)
	return lex.emitText(token.SYMBOL)
}

// readNumber accepts the whole numeric word.  Radix, ratio, BigInt and
// BigDecimal suffixes are kept in the token text unvalidated.
func (lex *Lexer) readNumber() []*token.Token {
	lex.scanner.AcceptSeq(isWord)
	return lex.emitText(token.NUMBER)
}

func (lex *Lexer) emit(typ token.Type, text string) []*token.Token {
	tok := []*token.Token{{
		Type:   typ,
		Text:   text,
		Source: lex.scanner.LocStart(),
	}}
	lex.scanner.Ignore()
	return tok
}

func (lex *Lexer) emitText(typ token.Type) []*token.Token {
	return []*token.Token{lex.scanner.EmitToken(typ)}
}

func (lex *Lexer) emitError(err error, expectEOF bool) []*token.Token {
	if err == io.EOF {
		if expectEOF {
			return lex.emit(token.EOF, "")
		}
		return lex.emit(token.ERROR, "unexpected EOF")
	}
	return lex.emit(token.ERROR, err.Error())
}

func (lex *Lexer) errorf(format string, v ...interface{}) []*token.Token {
	return lex.emitError(fmt.Errorf(format, v...), false)
}

func (lex *Lexer) skipWhitespace() {
	for {
		if lex.scanner.AcceptSeqSpace() > 0 {
			lex.scanner.Ignore()
			continue
		}
		return
	}
}

func (lex *Lexer) peekRune() rune {
	r, _ := lex.scanner.Peek()
	return r
}

func isWord(c rune) bool {
	return !unicode.IsSpace(c) && !strings.ContainsRune(delimiters, c)
}

func isDigit(c rune) bool {
	return '0' <= c && c <= '9'
}
