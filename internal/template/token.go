package template

import (
	"regexp"
	"strings"
)

// tagPattern matches {{type args}} and {{end type}}. "end" only closes when
// followed by a space, so {{endpoint}} is a tag of type endpoint.
var tagPattern = regexp.MustCompile(`\{\{(?:(end) )?(.+?)\}\}`)

// Token is one tag occurrence in resolved markup.
type Token struct {
	Type      string
	Arguments string
	Closing   bool
	// Raw is the exact tag text, Line is 1-based, Start and End are byte
	// offsets of Raw in the markup.
	Raw   string
	Line  int
	Start int
	End   int
}

// Tokenize scans markup line by line and returns its tags in document order.
// Tags never span lines.
func Tokenize(markup string) []Token {
	var tokens []Token

	offset := 0
	for i, line := range strings.Split(markup, "\n") {
		for _, m := range tagPattern.FindAllStringSubmatchIndex(line, -1) {
			typ, rest, _ := strings.Cut(line[m[4]:m[5]], " ")
			tokens = append(tokens, Token{
				Type:      typ,
				Arguments: rest,
				Closing:   m[2] >= 0,
				Raw:       line[m[0]:m[1]],
				Line:      i + 1,
				Start:     offset + m[0],
				End:       offset + m[1],
			})
		}
		offset += len(line) + 1
	}

	return tokens
}
