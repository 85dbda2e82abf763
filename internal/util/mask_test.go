package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskEmail(t *testing.T) {
	cases := map[string]string{
		"foo@example.com":  "f…@e….com",
		"FOO@Example.COM":  "f…@e….com",
		" a@b.co ":         "a@b.co",
		"":                 "",
		"abc":              "***",
		"sin-arroba-larga": "s…a",
	}
	for in, want := range cases {
		assert.Equal(t, want, MaskEmail(in), "input %q", in)
	}
}
