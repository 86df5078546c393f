// Copyright © 2018 The ELPS authors

package token

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypeString(t *testing.T) {
	used := make(map[string]Type)
	for tok := Type(0); tok < numTokenTypes; tok++ {
		str := tok.String()
		if !assert.NotEmpty(t, str, "token type %d", tok) {
			continue
		}
		if prev, ok := used[str]; ok {
			t.Errorf("token types %d and %d share the string %q", prev, tok, str)
		}
		used[str] = tok
	}
	assert.Equal(t, "invalid", numTokenTypes.String())
}

func TestTypeDelimiters(t *testing.T) {
	for tok := Type(0); tok < numTokenTypes; tok++ {
		assert.False(t, tok.IsOpen() && tok.IsClose(), tok.String())
	}
	assert.True(t, SET_L.IsOpen(), "#{ closes with }")
	assert.True(t, FN_L.IsOpen(), "#( closes with )")
	assert.False(t, READER_COND.IsOpen(), "#? is a prefix of the list that follows")
	assert.True(t, BRACE_R.IsClose())
}

func TestLocation(t *testing.T) {
	tests := []struct {
		loc  Location
		want string
	}{
		{Location{File: "a.clj", Pos: -1}, "a.clj"},
		{Location{File: "a.clj", Pos: 12}, "a.clj[12]"},
		{Location{File: "a.clj", Pos: 12, Line: 2}, "a.clj:2"},
		{Location{File: "a.clj", Pos: 12, Line: 2, Col: 5}, "a.clj:2:5"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, tc.loc.String())
	}

	cause := errors.New("unmatched (")
	err := &LocationError{Err: cause, Source: &Location{File: "a.clj", Pos: 0, Line: 1, Col: 1}}
	assert.EqualError(t, err, "a.clj:1:1: unmatched (")
	assert.ErrorIs(t, err, cause)

	tok := &Token{Type: SYMBOL, Text: "defn", Source: &Location{Pos: 3}}
	assert.Equal(t, 7, tok.End())
}
