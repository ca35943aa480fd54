package template

import (
	"regexp"
	"strings"
)

var (
	htmlCommentPattern = regexp.MustCompile(`(?s)<!--.*?-->`)
	whitespacePattern  = regexp.MustCompile(`\s+`)
	betweenTagsPattern = regexp.MustCompile(`>\s+<`)
)

// segment is a piece of generated output: markup copied from the page
// (literal) or code produced for a tag.
type segment struct {
	text    string
	literal bool
}

// Minify applies the minification passes to template code. The baseline pass
// drops whitespace-only gaps that contain a newline between two actions. The
// aggressive pass, when enabled, also strips HTML comments and collapses
// whitespace in the text outside actions.
func Minify(code string, aggressive bool) string {
	return minifySegments(splitActions(code), aggressive)
}

func minifySegments(segments []segment, aggressive bool) string {
	var b strings.Builder

	for i, seg := range segments {
		if !seg.literal {
			b.WriteString(seg.text)
			continue
		}

		text := seg.text
		if i > 0 && i < len(segments)-1 && !segments[i-1].literal && !segments[i+1].literal &&
			strings.TrimSpace(text) == "" && strings.Contains(text, "\n") {
			continue
		}

		if aggressive {
			text = htmlCommentPattern.ReplaceAllString(text, "")
			text = whitespacePattern.ReplaceAllString(text, " ")
			text = betweenTagsPattern.ReplaceAllString(text, "><")
		}
		b.WriteString(text)
	}

	return b.String()
}

// splitActions cuts code into literal text and {{...}} actions. Quoted
// strings inside actions may contain "}}".
func splitActions(code string) []segment {
	var segments []segment

	for len(code) > 0 {
		start := strings.Index(code, "{{")
		if start < 0 {
			segments = append(segments, segment{text: code, literal: true})
			break
		}
		if start > 0 {
			segments = append(segments, segment{text: code[:start], literal: true})
		}

		end := len(code)
		for i := start + 2; i < len(code); i++ {
			switch code[i] {
			case '"', '`', '\'':
				i = skipQuoted(code, i) - 1
				continue
			}
			if strings.HasPrefix(code[i:], "}}") {
				end = i + 2
				break
			}
		}

		segments = append(segments, segment{text: code[start:end]})
		code = code[end:]
	}

	return segments
}
