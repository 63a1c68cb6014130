//go:build gofuzz
// +build gofuzz

package fuzz

import "github.com/tdewolff/varfont"

// Fuzz is a fuzz test.
func Fuzz(data []byte) int {
	_, _ = varfont.ParseWOFF2(data)
	return 1
}
