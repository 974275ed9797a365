package ident

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestISBNTo13(t *testing.T) {
	assert.Equal(t, "9780306406157", ISBNTo13("0306406152"))
	assert.Equal(t, "9780140449112", ISBNTo13("0140449116"))
	assert.Equal(t, "9780201616224", ISBNTo13("020161622X"))
	assert.Equal(t, "", ISBNTo13(""))
	assert.Equal(t, "", ISBNTo13("123"))
	assert.Equal(t, "", ISBNTo13("abcdefghij"))
}

func TestISBNTo10(t *testing.T) {
	assert.Equal(t, "0306406152", ISBNTo10("9780306406157"))
	assert.Equal(t, "0140449116", ISBNTo10("9780140449112"))
	assert.Equal(t, "020161622X", ISBNTo10("9780201616224"))
	assert.Equal(t, "", ISBNTo10(""))
	assert.Equal(t, "", ISBNTo10("123"))
	assert.Equal(t, "", ISBNTo10("9790000000000"))
	assert.Equal(t, "", ISBNTo10("978abcdefghi"))
}

func TestValidISSN(t *testing.T) {
	assert.True(t, ValidISSN("0317-8471"))
	assert.True(t, ValidISSN("1050-124X"))
	assert.False(t, ValidISSN("1050-1241"))
	assert.False(t, ValidISSN("12345678"))
	assert.False(t, ValidISSN(""))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "9780306406157", Normalize("isbn", "0-306-40615-2"))
	assert.Equal(t, "9780306406157", Normalize("isbn", "9780306406157"))
	assert.Equal(t, "0317-8471", Normalize("issn", " 0317-8471 "))
	assert.Equal(t, "uuid:1234", Normalize("uuid", "uuid:1234"))
}

func TestRoundTrip(t *testing.T) {
	assert.Equal(t, "0306406152", ISBNTo10(ISBNTo13("0306406152")))
	assert.Equal(t, "0140449116", ISBNTo10(ISBNTo13("0140449116")))
	assert.Equal(t, "020161622X", ISBNTo10(ISBNTo13("020161622X")))
}
