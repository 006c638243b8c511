package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Dark":            "dark",
		"  Milk & Nuts ":  "milk-nuts",
		"Cacao 100%":      "cacao-100",
		"":                "other",
		"***":             "other",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), "input %q", in)
	}
}

func TestRandomToken(t *testing.T) {
	a, err := RandomToken(16)
	require.NoError(t, err)
	b, err := RandomToken(16)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 22)
}
