package template

import (
	"context"
	goerrors "errors"
	"regexp"
	"slices"
	"strings"

	"github.com/conneroisu/tplc/internal/errors"
)

// Source supplies raw markup for pages and fragments.
type Source interface {
	Page(ctx context.Context, name string) (string, error)
	Fragment(ctx context.Context, name string) (string, error)
}

var blockPattern = regexp.MustCompile(`\{\{block=(.+?)\}\}`)

// Includes lists the fragment names that markup includes directly, in order
// of first appearance.
func Includes(markup string) []string {
	var names []string
	for _, m := range blockPattern.FindAllStringSubmatch(markup, -1) {
		name := strings.TrimSpace(m[1])
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	return names
}

// Resolved is a page with every block directive substituted.
type Resolved struct {
	Page   string
	Markup string
	// Dependencies lists included fragments in first-inclusion order.
	Dependencies []string
}

// Resolver substitutes {{block=name}} directives with fragment contents.
type Resolver struct {
	source Source
}

func NewResolver(source Source) *Resolver {
	return &Resolver{source: source}
}

// Resolve loads page and inlines its fragments depth first. A fragment that
// appears twice on one inclusion path is a BlockRecursion error; the same
// fragment included by two siblings is fine.
func (r *Resolver) Resolve(ctx context.Context, page string) (*Resolved, error) {
	raw, err := r.source.Page(ctx, page)
	if err != nil {
		return nil, errors.Locate(err, page, 0)
	}

	res := &Resolved{Page: page}
	markup, err := r.resolve(ctx, raw, nil, res)
	if err != nil {
		return nil, errors.Locate(err, page, 0)
	}

	res.Markup = markup
	return res, nil
}

// resolve expands the directives in text. chain holds the fragment names on
// the current inclusion path, outermost first; each level receives its own copy.
func (r *Resolver) resolve(ctx context.Context, text string, chain []string, res *Resolved) (string, error) {
	matches := blockPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text, nil
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		name := strings.TrimSpace(text[m[2]:m[3]])

		if slices.Contains(chain, name) {
			return "", errors.BlockRecursion(name, chain)
		}

		content, err := r.source.Fragment(ctx, name)
		if err != nil {
			includer := "page"
			if len(chain) > 0 {
				includer = chain[len(chain)-1]
			}
			var e *errors.Error
			if goerrors.As(err, &e) {
				e.WithContext("included_from", includer)
			}
			return "", err
		}

		if !slices.Contains(res.Dependencies, name) {
			res.Dependencies = append(res.Dependencies, name)
		}

		child := append(slices.Clip(chain), name)
		expanded, err := r.resolve(ctx, content, child, res)
		if err != nil {
			return "", err
		}

		b.WriteString(text[last:m[0]])
		b.WriteString(expanded)
		last = m[1]
	}
	b.WriteString(text[last:])

	return b.String(), nil
}
