package segment

import (
	"regexp"
	"strings"
)

var fractions = map[rune]string{
	'½': "1/2", '⅓': "1/3", '⅔': "2/3", '¼': "1/4", '¾': "3/4",
	'⅕': "1/5", '⅖': "2/5", '⅗': "3/5", '⅘': "4/5", '⅙': "1/6",
	'⅚': "5/6", '⅛': "1/8", '⅜': "3/8", '⅝': "5/8", '⅞': "7/8",
}

var bulletLine = regexp.MustCompile(`(?m)^[ \t]*[•◦▪‣·●○■□►▸–—][ \t]*`)

// Normalize canonicalizes layout: line breaks, bullet glyphs, vulgar
// fractions, dash variants and non-breaking spaces
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = bulletLine.ReplaceAllString(text, "")

	var b strings.Builder
	b.Grow(len(text))
	var prev rune
	for _, r := range text {
		if f, ok := fractions[r]; ok {
			if prev >= '0' && prev <= '9' {
				b.WriteByte(' ')
			}
			b.WriteString(f)
			prev = '/'
			continue
		}
		switch r {
		case '\u2013', '\u2012', '\u2212', '\u2010', '\u2011':
			r = '-'
		case '\u2015':
			r = '\u2014'
		case '\u00a0', '\u2009', '\u202f', '\t':
			r = ' '
		case '\u2018', '\u2019':
			r = '\''
		case '\u201c', '\u201d':
			r = '"'
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}
