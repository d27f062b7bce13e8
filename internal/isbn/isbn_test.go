package isbn

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTo13(t *testing.T) {
	assert.Equal(t, "9780306406157", To13("0306406152"))
	assert.Equal(t, "9780140449112", To13("0140449116"))
	assert.Equal(t, "9780201616224", To13("020161622X"))
	assert.Equal(t, "", To13(""))
	assert.Equal(t, "", To13("123"))
	assert.Equal(t, "", To13("abcdefghij"))
}

func TestTo10(t *testing.T) {
	assert.Equal(t, "0306406152", To10("9780306406157"))
	assert.Equal(t, "020161622X", To10("9780201616224"))
	assert.Equal(t, "", To10("9790000000000"))
	assert.Equal(t, "", To10("978abcdefghi"))
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"hyphenated isbn13", "978-0-306-40615-7", "9780306406157"},
		{"isbn10 converted", "0-306-40615-2", "9780306406157"},
		{"lowercase x", "020161622x", "9780201616224"},
		{"labelled", "ISBN: 9780140449112", "9780140449112"},
		{"goodreads export quoting", `="0140449116"`, "9780140449112"},
		{"isbn10 checksum not enforced", "0306406153", "9780306406157"},
		{"isbn10 x in the middle", "03064X6152", ""},
		{"isbn13 checksum not enforced", "9780000000001", "9780000000001"},
		{"too short", "12345", ""},
		{"letters", "97803064061AB", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("9780306406157"))
	assert.True(t, Valid("020161622X"))
	assert.False(t, Valid("9780000000001"))
	assert.False(t, Valid("0306406153"))
	assert.False(t, Valid(""))
}

func TestRoundTrip(t *testing.T) {
	for _, s := range []string{"0306406152", "0140449116", "020161622X"} {
		assert.Equal(t, s, To10(To13(s)))
		assert.Equal(t, To13(s), Normalize(s))
	}
}
