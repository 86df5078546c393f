// Copyright © 2024 The ELPS authors

package lexer

import (
	"reflect"
	"testing"

	"github.com/luthersystems/cljsym/parser/token"
)

func TestLexer(t *testing.T) {
	tests := []struct {
		input  string
		tokens []*token.Token
	}{
		{``, []*token.Token{
			testToken(token.EOF, ""),
		}},
		{`abc`, []*token.Token{
			testToken(token.SYMBOL, "abc"),
			testToken(token.EOF, ""),
		}},
		{`(a/b [c]{:d ::e/f})`, []*token.Token{
			testToken(token.PAREN_L, "("),
			testToken(token.SYMBOL, "a/b"),
			testToken(token.BRACKET_L, "["),
			testToken(token.SYMBOL, "c"),
			testToken(token.BRACKET_R, "]"),
			testToken(token.BRACE_L, "{"),
			testToken(token.KEYWORD, ":d"),
			testToken(token.KEYWORD, "::e/f"),
			testToken(token.BRACE_R, "}"),
			testToken(token.PAREN_R, ")"),
			testToken(token.EOF, ""),
		}},
		{"'x `y ~z ~@w @v ^T #'f #_g #^h", []*token.Token{
			testToken(token.QUOTE, "'"),
			testToken(token.SYMBOL, "x"),
			testToken(token.SYNTAX_QUOTE, "`"),
			testToken(token.SYMBOL, "y"),
			testToken(token.UNQUOTE, "~"),
			testToken(token.SYMBOL, "z"),
			testToken(token.UNQUOTE_SPLICING, "~@"),
			testToken(token.SYMBOL, "w"),
			testToken(token.DEREF, "@"),
			testToken(token.SYMBOL, "v"),
			testToken(token.META, "^"),
			testToken(token.SYMBOL, "T"),
			testToken(token.VAR_QUOTE, "#'"),
			testToken(token.SYMBOL, "f"),
			testToken(token.DISCARD, "#_"),
			testToken(token.SYMBOL, "g"),
			testToken(token.LEGACY_META, "#^"),
			testToken(token.SYMBOL, "h"),
			testToken(token.EOF, ""),
		}},
		{`#?(:clj 1) #?@(:cljs [2]) #{} #(%) #:a{} #::{} #inst "x" ##Inf #"re"`, []*token.Token{
			testToken(token.READER_COND, "#?"),
			testToken(token.PAREN_L, "("),
			testToken(token.KEYWORD, ":clj"),
			testToken(token.NUMBER, "1"),
			testToken(token.PAREN_R, ")"),
			testToken(token.READER_COND_SPLICE, "#?@"),
			testToken(token.PAREN_L, "("),
			testToken(token.KEYWORD, ":cljs"),
			testToken(token.BRACKET_L, "["),
			testToken(token.NUMBER, "2"),
			testToken(token.BRACKET_R, "]"),
			testToken(token.PAREN_R, ")"),
			testToken(token.SET_L, "#{"),
			testToken(token.BRACE_R, "}"),
			testToken(token.FN_L, "#("),
			testToken(token.SYMBOL, "%"),
			testToken(token.PAREN_R, ")"),
			testToken(token.NAMESPACED_MAP, "#:a"),
			testToken(token.BRACE_L, "{"),
			testToken(token.BRACE_R, "}"),
			testToken(token.NAMESPACED_MAP, "#::"),
			testToken(token.BRACE_L, "{"),
			testToken(token.BRACE_R, "}"),
			testToken(token.TAG, "#inst"),
			testToken(token.STRING, `"x"`),
			testToken(token.SYMBOLIC, "##Inf"),
			testToken(token.REGEX, `#"re"`),
			testToken(token.EOF, ""),
		}},
		{`10 -5 1.5M 2r101 1/2 - -x`, []*token.Token{
			testToken(token.NUMBER, "10"),
			testToken(token.NUMBER, "-5"),
			testToken(token.NUMBER, "1.5M"),
			testToken(token.NUMBER, "2r101"),
			testToken(token.NUMBER, "1/2"),
			testToken(token.SYMBOL, "-"),
			testToken(token.SYMBOL, "-x"),
			testToken(token.EOF, ""),
		}},
		{"\"a\\\"b\" \\a \\newline ; done\n,x", []*token.Token{
			testToken(token.STRING, `"a\"b"`),
			testToken(token.CHAR, `\a`),
			testToken(token.CHAR, `\newline`),
			testToken(token.COMMENT, "; done"),
			testToken(token.SYMBOL, "x"),
			testToken(token.EOF, ""),
		}},
		{`"open`, []*token.Token{
			testToken(token.ERROR, "unterminated string literal"),
		}},
	}
testloop:
	for i, test := range tests {
		lex := New(token.NewScanner("", test.input))
		var tokens []*token.Token
		numToken := 0
		for {
			toks := lex.ReadToken()
			if len(toks) != 1 {
				t.Fatalf("test %d: lexer returned %d tokens", i, len(toks))
			}
			tok := toks[0]
			tok.Source = nil
			tokens = append(tokens, tok)
			if tok.Type == token.EOF || tok.Type == token.ERROR {
				break
			}
			numToken++
			if numToken > 100000 {
				t.Errorf("test %d: apparent infinite scanning loop", i)
				continue testloop
			}
		}
		if !reflect.DeepEqual(tokens, test.tokens) {
			t.Errorf("test %d: unexpected tokens for input", i)
			t.Logf("source:\n\t%s", test.input)
			t.Logf("tokens:")
			for _, tok := range tokens {
				t.Logf("\t%v", tok)
			}
		}
	}
}

func testToken(typ token.Type, text string) *token.Token {
	return &token.Token{
		Type: typ,
		Text: text,
	}
}
