package ident_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/griotdb/griot/internal/ident"
)

func TestSplit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "bare table",
			input: "accounts",
			want:  []string{"accounts"},
		},
		{
			name:  "schema qualified",
			input: "billing.accounts",
			want:  []string{"billing", "accounts"},
		},
		{
			name:  "unquoted folds to lower case",
			input: "Billing.Accounts",
			want:  []string{"billing", "accounts"},
		},
		{
			name:  "quoted keeps case",
			input: `"Billing"."Accounts"`,
			want:  []string{"Billing", "Accounts"},
		},
		{
			name:  "quoted part may contain a dot",
			input: `public."weird.name"`,
			want:  []string{"public", "weird.name"},
		},
		{
			name:  "doubled quote escapes",
			input: `"say ""hi"""`,
			want:  []string{`say "hi"`},
		},
		{
			name:  "mixed quoting",
			input: `PUBLIC."MiXeD"`,
			want:  []string{"public", "MiXeD"},
		},
		{
			name:  "surrounding whitespace",
			input: "  public.accounts  ",
			want:  []string{"public", "accounts"},
		},
		{
			name:  "empty string",
			input: "",
			want:  nil,
		},
		{
			name:  "blank string",
			input: "   ",
			want:  nil,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ident.Split(tt.input))
		})
	}
}

func TestQuote(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `"accounts"`, ident.Quote("accounts"))
	assert.Equal(t, `"Order-ID"`, ident.Quote("Order-ID"))
	assert.Equal(t, `"say ""hi"""`, ident.Quote(`say "hi"`))
}

func TestQuoteQualified(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `"accounts"`, ident.QuoteQualified("accounts"))
	assert.Equal(t, `"public"."accounts"`, ident.QuoteQualified("public", "accounts"))
	assert.Equal(t, `"Public"."O""Brien"`, ident.QuoteQualified("Public", `O"Brien`))
	assert.Equal(t, "", ident.QuoteQualified())
}
