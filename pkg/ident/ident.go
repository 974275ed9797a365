// Package ident normalizes bibliographic identifiers attached to MODS
// records (ISBN, ISSN, uuid, urn:nbn).
package ident

import (
	"strconv"
	"strings"
)

// ISBNTo13 converts an ISBN-10 to ISBN-13 by prepending 978 and computing the
// check digit. Returns an empty string if the input is not a valid ISBN-10.
func ISBNTo13(isbn10 string) string {
	if len(isbn10) != 10 {
		return ""
	}
	base := "978" + isbn10[:9]
	sum := 0
	for i, c := range base {
		d, err := strconv.Atoi(string(c))
		if err != nil {
			return ""
		}
		if i%2 == 0 {
			sum += d
		} else {
			sum += d * 3
		}
	}
	check := (10 - sum%10) % 10
	return base + strconv.Itoa(check)
}

// ISBNTo10 converts a 978-prefixed ISBN-13 to ISBN-10.
// Returns an empty string if the input is not a convertible ISBN-13.
func ISBNTo10(isbn13 string) string {
	if len(isbn13) != 13 || !strings.HasPrefix(isbn13, "978") {
		return ""
	}
	base := isbn13[3:12]
	sum := 0
	for i, c := range base {
		d, err := strconv.Atoi(string(c))
		if err != nil {
			return ""
		}
		sum += d * (10 - i)
	}
	check := (11 - sum%11) % 11
	if check == 10 {
		return base + "X"
	}
	return base + strconv.Itoa(check)
}

// ValidISSN reports whether the value is a well-formed ISSN (NNNN-NNNC with a
// valid check character). Periodical records carry these.
func ValidISSN(issn string) bool {
	issn = strings.ToUpper(strings.TrimSpace(issn))
	if len(issn) != 9 || issn[4] != '-' {
		return false
	}
	digits := issn[:4] + issn[5:8]
	sum := 0
	for i, c := range digits {
		d, err := strconv.Atoi(string(c))
		if err != nil {
			return false
		}
		sum += d * (8 - i)
	}
	check := (11 - sum%11) % 11
	want := byte('0' + check)
	if check == 10 {
		want = 'X'
	}
	return issn[8] == want
}

// Normalize returns the canonical form of an identifier value for the given
// type. ISBNs are upgraded to their 13-digit form when possible; everything
// else is passed through trimmed.
func Normalize(idType, value string) string {
	value = strings.TrimSpace(value)
	if strings.EqualFold(idType, "isbn") {
		compact := strings.ReplaceAll(value, "-", "")
		if v := ISBNTo13(compact); v != "" {
			return v
		}
	}
	return value
}
