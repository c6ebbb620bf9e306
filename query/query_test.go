package query

import (
	"testing"

	"github.com/stvp/assert"
)

func TestText(t *testing.T) {
	q := Text("hello world", OperatorAnd)
	assert.Equal(t, q.Terms, []string{"hello", "world"})
	assert.Equal(t, q.Operator, OperatorAnd)

	// unknown operators fall back to the default
	q = Text("hello", "xor")
	assert.Equal(t, q.Operator, OperatorOr)
}

func TestSplitTerms(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want []string
	}{
		{"hello world", []string{"hello", "world"}},
		{"  hello \t world \n", []string{"hello", "world"}},
		{`"hello world" go`, []string{"hello world", "go"}},
		{`'one two' "three four"`, []string{"one two", "three four"}},
		{"", []string{}},
		{"   ", []string{}},
		{`""`, []string{}},
		{"*", []string{"*"}},
	} {
		assert.Equal(t, splitTerms(tc.in), tc.want)
	}
}
