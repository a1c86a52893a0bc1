package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMaskEmail(t *testing.T) {
	cases := map[string]string{
		"":                     "",
		"bob@example.com":      "b…@e….com",
		" Ana@Gmail.com ":      "a…@g….com",
		"x@y.org":              "x@y.org",
		"abc":                  "***",
		"nobody":               "n…y",
		"a@b@mail.example.com": "a…@m….example.com",
	}
	for in, want := range cases {
		require.Equal(t, want, MaskEmail(in), in)
	}
}
