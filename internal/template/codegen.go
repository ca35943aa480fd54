package template

import (
	"strings"
)

const endCode = "{{end}}"

// Generate translates resolved markup into template code: tokenize, build the
// tree, run the generators in pre-order, substitute end tags, then minify.
// Replacement is positional, so identical tags at different places never
// collide.
func Generate(page, markup string, registry *Registry, minify bool) (string, error) {
	tokens := Tokenize(markup)

	tree, err := BuildTree(page, tokens, registry.IsCapturing)
	if err != nil {
		return "", err
	}

	replacements := make([]string, len(tokens))
	locals := make([][]string, len(tree.Nodes))

	err = tree.Walk(func(id, _ int) error {
		node := &tree.Nodes[id]
		inScope := locals[node.Parent]

		out, err := registry.Invoke(GenContext{
			Page:      page,
			Type:      node.Token.Type,
			Tag:       node.Token.Raw,
			Arguments: node.Token.Arguments,
			Line:      node.Token.Line,
			Locals:    inScope,
		})
		if err != nil {
			return err
		}

		replacements[node.TokenIndex] = out.Code
		if node.Close >= 0 {
			replacements[node.Close] = endCode
			if out.Close != "" {
				replacements[node.Close] = out.Close
			}
		}

		locals[id] = inScope
		if len(out.Locals) > 0 {
			locals[id] = append(append([]string{}, inScope...), out.Locals...)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	segments := make([]segment, 0, 2*len(tokens)+1)
	last := 0
	for i, tok := range tokens {
		segments = append(segments,
			segment{text: escapeDelims(markup[last:tok.Start]), literal: true},
			segment{text: replacements[i]},
		)
		last = tok.End
	}
	segments = append(segments, segment{text: escapeDelims(markup[last:]), literal: true})

	return minifySegments(segments, minify), nil
}

// escapeDelims keeps stray "{{" in markup from opening a template action.
func escapeDelims(text string) string {
	if !strings.Contains(text, "{{") {
		return text
	}
	return strings.ReplaceAll(text, "{{", `{{"{{"}}`)
}
