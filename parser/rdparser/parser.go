// Copyright © 2024 The ELPS authors

// Package rdparser is a recursive descent reader for Clojure source.  The
// reader never gives up on malformed input: unbalanced delimiters are closed
// at EOF and every problem is reported alongside a usable tree.
package rdparser

import (
	"fmt"

	"github.com/luthersystems/cljsym/form"
	"github.com/luthersystems/cljsym/parser/token"
)

// Parser reads forms from a token stream.
type Parser struct {
	src  *TokenSource
	errs []error
}

// NewFromSource initializes and returns a Parser that reads tokens from src.
func NewFromSource(src *TokenSource) *Parser {
	return &Parser{
		src: src,
	}
}

// New initializes and returns a new Parser that reads tokens from scanner.
func New(scanner *token.Scanner) *Parser {
	return NewFromSource(NewTokenSource(scanner))
}

// Errors returns the problems encountered so far.
func (p *Parser) Errors() []error {
	return p.errs
}

// ParseProgram reads every top-level form until EOF.
func (p *Parser) ParseProgram() []*form.Node {
	var forms []*form.Node
	for {
		p.ignoreComments()
		if p.src.IsEOF() {
			return forms
		}
		if p.PeekType().IsClose() {
			tok := p.ReadToken()
			p.errorf(tok, "unmatched %s", tok.Text)
			continue
		}
		if f := p.ParseForm(); f != nil {
			forms = append(forms, f)
		}
	}
}

// ParseForm parses a single form along with any reader macros and metadata
// preceding it.  ParseForm returns nil when no form could be read, as at EOF
// or before a closing delimiter.
func (p *Parser) ParseForm() *form.Node {
	var prefixes []*form.Prefix
	for {
		p.ignoreComments()
		tok := p.src.Peek()
		kind, ok := prefixKind(tok.Type)
		if !ok {
			break
		}
		p.ReadToken()
		pre := &form.Prefix{
			Kind:  kind,
			Range: form.Range{Start: tok.Source.Pos, End: tok.End()},
		}
		switch tok.Type {
		case token.META, token.LEGACY_META:
			pre.Meta = p.ParseForm()
			if pre.Meta == nil {
				p.errorf(tok, "missing metadata after %s", tok.Text)
				return nil
			}
		case token.NAMESPACED_MAP, token.TAG:
			pre.Tag = tok.Text[1:]
		}
		prefixes = append(prefixes, pre)
	}

	n := p.parseBare()
	if n == nil {
		if len(prefixes) > 0 {
			p.errorf(p.src.Peek(), "missing form after %s", prefixes[len(prefixes)-1].Kind)
		}
		return nil
	}
	n.Prefixes = append(prefixes, n.Prefixes...)
	return n
}

func (p *Parser) parseBare() *form.Node {
	p.ignoreComments()
	tok := p.src.Peek()
	switch tok.Type {
	case token.SYMBOL:
		p.ReadToken()
		return p.symbol(tok)
	case token.KEYWORD:
		p.ReadToken()
		return p.atom(tok, form.Keyword, form.LitNone)
	case token.NUMBER:
		p.ReadToken()
		return p.atom(tok, form.Literal, form.LitNumber)
	case token.STRING:
		p.ReadToken()
		return p.atom(tok, form.Literal, form.LitString)
	case token.CHAR:
		p.ReadToken()
		return p.atom(tok, form.Literal, form.LitChar)
	case token.REGEX:
		p.ReadToken()
		return p.atom(tok, form.Literal, form.LitRegex)
	case token.SYMBOLIC:
		p.ReadToken()
		return p.atom(tok, form.Literal, form.LitSymbolic)
	case token.PAREN_L:
		return p.ParseColl(form.List, token.PAREN_R)
	case token.BRACKET_L:
		return p.ParseColl(form.Vector, token.BRACKET_R)
	case token.BRACE_L:
		return p.ParseColl(form.Map, token.BRACE_R)
	case token.SET_L:
		return p.ParseColl(form.Set, token.BRACE_R)
	case token.FN_L:
		n := p.ParseColl(form.List, token.PAREN_R)
		n.Prefixes = append(n.Prefixes, &form.Prefix{
			Kind:  form.PrefixAnonFn,
			Range: form.Range{Start: tok.Source.Pos, End: tok.Source.Pos + 1},
		})
		n.Range.Start++
		return n
	case token.ERROR, token.INVALID:
		p.ReadToken()
		p.errorf(tok, "%s", tok.Text)
		return nil
	default:
		return nil
	}
}

// ParseColl reads a delimited collection.  A mismatched closing delimiter
// ends the collection and is reported.  EOF closes every open collection.
func (p *Parser) ParseColl(kind form.Kind, closer token.Type) *form.Node {
	open := p.ReadToken()
	n := &form.Node{
		Kind:  kind,
		Range: form.Range{Start: open.Source.Pos},
	}
	for {
		p.ignoreComments()
		tok := p.src.Peek()
		switch {
		case tok.Type == token.EOF:
			p.errorf(open, "unmatched %s", open.Text)
			n.Range.End = tok.Source.Pos
			return n
		case tok.Type == closer:
			p.ReadToken()
			n.Range.End = tok.End()
			return n
		case tok.Type.IsClose():
			p.ReadToken()
			p.errorf(tok, "mismatched %s closing %s", tok.Text, open.Text)
			n.Range.End = tok.End()
			return n
		}
		if c := p.ParseForm(); c != nil {
			n.Children = append(n.Children, c)
		}
	}
}

func (p *Parser) symbol(tok *token.Token) *form.Node {
	switch tok.Text {
	case "nil":
		return p.atom(tok, form.Literal, form.LitNil)
	case "true", "false":
		return p.atom(tok, form.Literal, form.LitBool)
	}
	return p.atom(tok, form.Symbol, form.LitNone)
}

func (p *Parser) atom(tok *token.Token, kind form.Kind, lit form.LiteralType) *form.Node {
	return &form.Node{
		Kind:  kind,
		Lit:   lit,
		Text:  tok.Text,
		Range: form.Range{Start: tok.Source.Pos, End: tok.End()},
	}
}

func prefixKind(typ token.Type) (form.PrefixKind, bool) {
	switch typ {
	case token.QUOTE:
		return form.PrefixQuote, true
	case token.SYNTAX_QUOTE:
		return form.PrefixSyntaxQuote, true
	case token.UNQUOTE:
		return form.PrefixUnquote, true
	case token.UNQUOTE_SPLICING:
		return form.PrefixUnquoteSplicing, true
	case token.DEREF:
		return form.PrefixDeref, true
	case token.VAR_QUOTE:
		return form.PrefixVar, true
	case token.DISCARD:
		return form.PrefixDiscard, true
	case token.READER_COND:
		return form.PrefixReaderCond, true
	case token.READER_COND_SPLICE:
		return form.PrefixReaderCondSplicing, true
	case token.META:
		return form.PrefixMeta, true
	case token.LEGACY_META:
		return form.PrefixLegacyMeta, true
	case token.NAMESPACED_MAP:
		return form.PrefixNamespacedMap, true
	case token.TAG:
		return form.PrefixTagged, true
	}
	return 0, false
}

func (p *Parser) ignoreComments() {
	for p.src.AcceptType(token.COMMENT) {
	}
}

func (p *Parser) ReadToken() *token.Token {
	p.src.Scan()
	return p.src.Token
}

func (p *Parser) PeekType() token.Type {
	return p.src.Peek().Type
}

func (p *Parser) errorf(tok *token.Token, format string, v ...interface{}) {
	p.errs = append(p.errs, &token.LocationError{
		Err:    fmt.Errorf(format, v...),
		Source: tok.Source,
	})
}
