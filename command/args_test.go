package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		tokens []string
		schema []ArgDef
		want   Args
	}{
		{
			name:   "valueless-flag-consumes-only-itself",
			tokens: []string{"$roll", "-m", "50", "extra"},
			schema: []ArgDef{
				{Name: "min", Aliases: []string{"m"}, Arity: ArityNone},
			},
			want: Args{
				"min":   {Triggered: true, Value: nil},
				MainArg: {Triggered: true, Value: "50 extra"},
			},
		},
		{
			name:   "valued-flag-consumes-following-token",
			tokens: []string{"$roll", "-m", "50", "extra"},
			schema: []ArgDef{
				{Name: "min", Aliases: []string{"m"}, Arity: ArityNumber},
			},
			want: Args{
				"min":   {Triggered: true, Value: 50},
				MainArg: {Triggered: true, Value: "extra"},
			},
		},
		{
			name:   "missing-flag",
			tokens: []string{"$roll", "100"},
			schema: []ArgDef{
				{Name: "min", Aliases: []string{"m", "min"}, Arity: ArityNumber},
			},
			want: Args{
				"min":   {Triggered: false, Value: nil},
				MainArg: {Triggered: true, Value: "100"},
			},
		},
		{
			name:   "coercion-failure-keeps-triggered",
			tokens: []string{"$roll", "-m", "fifty"},
			schema: []ArgDef{
				{Name: "min", Aliases: []string{"m"}, Arity: ArityNumber},
			},
			want: Args{
				"min":   {Triggered: true, Value: nil},
				MainArg: {Triggered: false, Value: nil},
			},
		},
		{
			name:   "string-flag",
			tokens: []string{"$quote", "-u", "znx", "hello"},
			schema: []ArgDef{
				{Name: "user", Aliases: []string{"u", "user"}, Arity: ArityString},
			},
			want: Args{
				"user":  {Triggered: true, Value: "znx"},
				MainArg: {Triggered: true, Value: "hello"},
			},
		},
		{
			name:   "valued-flag-at-end-has-no-value",
			tokens: []string{"$roll", "-m"},
			schema: []ArgDef{
				{Name: "min", Aliases: []string{"m"}, Arity: ArityNumber},
			},
			want: Args{
				"min":   {Triggered: true, Value: nil},
				MainArg: {Triggered: false, Value: nil},
			},
		},
		{
			name:   "earlier-flag-consumes-token-before-later-flag",
			tokens: []string{"$cmd", "-a", "-b", "tail"},
			schema: []ArgDef{
				{Name: "first", Aliases: []string{"a"}, Arity: ArityString},
				{Name: "second", Aliases: []string{"b"}, Arity: ArityNone},
			},
			want: Args{
				"first":  {Triggered: true, Value: "-b"},
				"second": {Triggered: false, Value: nil},
				MainArg:  {Triggered: true, Value: "tail"},
			},
		},
		{
			name:   "no-flags-declared",
			tokens: []string{"$hey"},
			schema: nil,
			want: Args{
				MainArg: {Triggered: false, Value: nil},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ExtractArgs(tt.tokens, tt.schema))
		})
	}
}

func TestExtractArgs_DoesNotMutateTokens(t *testing.T) {
	t.Parallel()

	tokens := []string{"$roll", "-m", "50", "extra"}
	ExtractArgs(tokens, []ArgDef{{Name: "min", Aliases: []string{"m"}, Arity: ArityNumber}})

	assert.Equal(t, []string{"$roll", "-m", "50", "extra"}, tokens)
}
