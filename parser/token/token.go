// Copyright © 2024 The ELPS authors

package token

import "fmt"

// Source is an abstract stream of tokens which allows one token lookahead.
type Source interface {
	// Token returns the current token.  Token returns nil if Scan has not been
	// called.
	Token() *Token
	// Peek returns the next token in the stream.  At the end of the stream
	// Peek should return a value to indicate the lack of a token (EOF).
	Peek() *Token
	// Scan advances the token stream if possible.  If there are no tokens
	// remaining Scan returns false.
	Scan() bool
}

type Token struct {
	Type   Type
	Text   string
	Source *Location
}

// End returns the byte offset just past the token text.
func (tok *Token) End() int {
	return tok.Source.Pos + len(tok.Text)
}

type Type uint

// Type constants produced by the Clojure lexer.
const (
	INVALID Type = iota
	ERROR
	EOF

	COMMENT

	// Atoms
	SYMBOL
	KEYWORD
	NUMBER
	STRING
	CHAR
	REGEX
	SYMBOLIC // ##Inf ##-Inf ##NaN

	// Reader macros
	QUOTE               // '
	SYNTAX_QUOTE        // `
	UNQUOTE             // ~
	UNQUOTE_SPLICING    // ~@
	DEREF               // @
	META                // ^
	LEGACY_META         // #^
	VAR_QUOTE           // #'
	DISCARD             // #_
	READER_COND         // #?
	READER_COND_SPLICE  // #?@
	NAMESPACED_MAP      // #:ns #::
	TAG                 // #inst

	// Delimiters
	PAREN_L
	PAREN_R
	BRACKET_L
	BRACKET_R
	BRACE_L
	BRACE_R
	SET_L // #{
	FN_L  // #(

	numTokenTypes
)

func (typ Type) String() string {
	typeStrings := [numTokenTypes]string{
		INVALID:            "invalid",
		ERROR:              "error",
		EOF:                "EOF",
		COMMENT:            ";",
		SYMBOL:             "symbol",
		KEYWORD:            "keyword",
		NUMBER:             "number",
		STRING:             "string",
		CHAR:               "char",
		REGEX:              "regex",
		SYMBOLIC:           "##",
		QUOTE:              "'",
		SYNTAX_QUOTE:       "`",
		UNQUOTE:            "~",
		UNQUOTE_SPLICING:   "~@",
		DEREF:              "@",
		META:               "^",
		LEGACY_META:        "#^",
		VAR_QUOTE:          "#'",
		DISCARD:            "#_",
		READER_COND:        "#?",
		READER_COND_SPLICE: "#?@",
		NAMESPACED_MAP:     "#:",
		TAG:                "#tag",
		PAREN_L:            "(",
		PAREN_R:            ")",
		BRACKET_L:          "[",
		BRACKET_R:          "]",
		BRACE_L:            "{",
		BRACE_R:            "}",
		SET_L:              "#{",
		FN_L:               "#(",
	}
	if typ >= numTokenTypes {
		return typeStrings[INVALID]
	}
	return typeStrings[typ]
}

// IsOpen reports whether typ opens a collection.
func (typ Type) IsOpen() bool {
	switch typ {
	case PAREN_L, BRACKET_L, BRACE_L, SET_L, FN_L:
		return true
	}
	return false
}

// IsClose reports whether typ closes a collection.
func (typ Type) IsClose() bool {
	return typ == PAREN_R || typ == BRACKET_R || typ == BRACE_R
}

type Location struct {
	File string // a name representing the source stream
	Path string // a physical location which may differ from File
	Pos  int    // byte offset
	Line int    // line number (starting at 1 when tracked)
	Col  int    // line column number (starting at 1 when tracked)
}

func (loc *Location) String() string {
	switch {
	case loc.Pos < 0:
		return loc.File
	case loc.Line == 0:
		return fmt.Sprintf("%s[%d]", loc.File, loc.Pos)
	case loc.Col == 0:
		return fmt.Sprintf("%s:%d", loc.File, loc.Line)
	default:
		return fmt.Sprintf("%s:%d:%d", loc.File, loc.Line, loc.Col)
	}
}

type LocationError struct {
	Err    error
	Source *Location
}

func (err *LocationError) Error() string {
	return fmt.Sprintf("%s: %s", err.Source, err.Err)
}

func (err *LocationError) Unwrap() error {
	return err.Err
}
