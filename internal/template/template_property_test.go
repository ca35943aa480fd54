//go:build property

package template

import (
	"context"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestCompilerProperties validates invariants of the tokenizer, generator and minifier
func TestCompilerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1234) // For reproducible results
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	// Property: tokens come out in document order and point at their own text
	properties.Property("tokenizer preserves order and offsets", prop.ForAll(
		func(words []string, separator string) bool {
			markup := textTags(words, separator)
			tokens := Tokenize(markup)
			if len(tokens) != len(words) {
				return false
			}
			for i, tok := range tokens {
				if tok.Type != "text" || tok.Arguments != words[i] || markup[tok.Start:tok.End] != tok.Raw {
					return false
				}
				if i > 0 && tok.Start < tokens[i-1].End {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Identifier()),
		gen.OneConstOf(" ", "\n", "<br>", "\n\t", ""),
	))

	// Property: identical source always yields identical code
	properties.Property("generation is deterministic", prop.ForAll(
		func(words []string, minify bool) bool {
			markup := "<ul>\n" + textTags(words, "\n") + "\n</ul>"
			registry := NewDefaultRegistry("")
			first, err1 := Generate("p.tpl", markup, registry, minify)
			second, err2 := Generate("p.tpl", markup, registry, minify)
			return err1 == nil && err2 == nil && first == second
		},
		gen.SliceOf(gen.AlphaString()),
		gen.Bool(),
	))

	// Property: minifying twice changes nothing more
	properties.Property("minify is idempotent", prop.ForAll(
		func(words []string, aggressive bool) bool {
			code := strings.Join(words, " \n\t {{$.x}}\n <p> </p> ")
			once := Minify(code, aggressive)
			return Minify(once, aggressive) == once
		},
		gen.SliceOf(gen.AlphaString()),
		gen.Bool(),
	))

	// Property: literal text tags render to their arguments
	properties.Property("literal text round trips through rendering", prop.ForAll(
		func(words []string) bool {
			code, err := Generate("p.tpl", textTags(words, "|"), NewDefaultRegistry(""), false)
			if err != nil {
				return false
			}
			out, err := NewRenderer(false).Render(context.Background(), &Artifact{Page: "p.tpl", Code: code}, nil)
			return err == nil && out == strings.Join(words, "|")
		},
		gen.SliceOf(gen.Identifier()),
	))

	// Property: seq covers every integer between its bounds
	properties.Property("seq is inclusive", prop.ForAll(
		func(start, end int) bool {
			out, err := seq(start, end)
			if err != nil {
				return false
			}
			n := end - start
			if n < 0 {
				n = -n
			}
			return len(out) == n+1 && out[0] == start && out[len(out)-1] == end
		},
		gen.IntRange(-500, 500),
		gen.IntRange(-500, 500),
	))

	properties.TestingRun(t)
}

func textTags(words []string, separator string) string {
	tags := make([]string, len(words))
	for i, w := range words {
		tags[i] = "{{text " + w + "}}"
	}
	return strings.Join(tags, separator)
}
