package corpus

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/supportiq/internal/domain"
	"github.com/cloo-solutions/supportiq/internal/index"
)

const sample = `
faqs:
  - category: account
    question: How do I reset my password?
    answer: Use the "Forgot password" link on the sign-in page.
  - category: BILLING
    question: Where are my invoices?
    answer: |
      Invoices are under Settings > Billing.
`

func TestParse(t *testing.T) {
	entries, err := Parse([]byte(sample))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "ACCOUNT", entries[0].Category)
	assert.Equal(t, "Invoices are under Settings > Billing.", entries[1].Answer)

	assert.Equal(t, []string{
		`ACCOUNT - How do I reset my password? - Use the "Forgot password" link on the sign-in page.`,
		"BILLING - Where are my invoices? - Invoices are under Settings > Billing.",
	}, Texts(entries))
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]string{
		"malformed yaml":   "faqs: [",
		"missing answer":   "faqs:\n  - category: GENERAL\n    question: Hi?\n",
		"blank category":   "faqs:\n  - category: ' '\n    question: Hi?\n    answer: Hello\n",
		"wrong field type": "faqs: 3",
	}

	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(input))
			assert.Error(t, err)
		})
	}
}

func TestParse_Empty(t *testing.T) {
	entries, err := Parse([]byte("faqs: []"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileSource_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faqs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	var src index.CorpusSource = NewFileSource(path)
	texts, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, texts, 2)
}

func TestFileSource_Load_MissingFile(t *testing.T) {
	_, err := NewFileSource(filepath.Join(t.TempDir(), "nope.yaml")).Load(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFileSource_EmptyCorpusFailsBuild(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faqs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("faqs: []\n"), 0o644))

	texts, err := NewFileSource(path).Load(context.Background())
	require.NoError(t, err)

	_, err = index.Build(context.Background(), nil, texts)
	assert.ErrorIs(t, err, domain.ErrEmptyCorpus)
}
