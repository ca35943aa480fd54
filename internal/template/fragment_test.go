package template

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/tplc/internal/errors"
)

func TestResolver_Resolve(t *testing.T) {
	tests := []struct {
		name     string
		files    map[string]string
		expected string
		deps     []string
	}{
		{
			name:     "no directives",
			files:    map[string]string{"index.tpl": "<p>plain</p>"},
			expected: "<p>plain</p>",
		},
		{
			name: "single fragment",
			files: map[string]string{
				"index.tpl":  "<body>{{block=header}}</body>",
				"header.tpl": "<h1>Title</h1>",
			},
			expected: "<body><h1>Title</h1></body>",
			deps:     []string{"header"},
		},
		{
			name: "nested fragments resolve depth first",
			files: map[string]string{
				"index.tpl":  "[{{block=layout}}]",
				"layout.tpl": "<{{block=nav}}|{{block=footer}}>",
				"nav.tpl":    "nav",
				"footer.tpl": "foot",
			},
			expected: "[<nav|foot>]",
			deps:     []string{"layout", "nav", "footer"},
		},
		{
			name: "several directives on one line",
			files: map[string]string{
				"index.tpl": "{{block=a}}-{{block=b}}-{{block=a}}",
				"a.tpl":     "A",
				"b.tpl":     "B",
			},
			expected: "A-B-A",
			deps:     []string{"a", "b"},
		},
		{
			name: "siblings may include the same fragment",
			files: map[string]string{
				"index.tpl": "{{block=left}}{{block=right}}",
				"left.tpl":  "({{block=icon}})",
				"right.tpl": "[{{block=icon}}]",
				"icon.tpl":  "*",
			},
			expected: "(*)[*]",
			deps:     []string{"left", "icon", "right"},
		},
		{
			name: "fragments in sub directories",
			files: map[string]string{
				"users/list.tpl":   "{{block=partials/row}}",
				"partials/row.tpl": "<tr></tr>",
			},
			expected: "<tr></tr>",
			deps:     []string{"partials/row"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := "index.tpl"
			if _, ok := tt.files[page]; !ok {
				page = "users/list.tpl"
			}

			res, err := NewResolver(mapSource(tt.files)).Resolve(context.Background(), page)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, res.Markup)
			assert.Equal(t, tt.deps, res.Dependencies)
			assert.NotContains(t, res.Markup, "{{block=")
		})
	}
}

func TestResolver_Recursion(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		chain []string
	}{
		{
			name: "direct self inclusion",
			files: map[string]string{
				"index.tpl": "{{block=a}}",
				"a.tpl":     "again {{block=a}}",
			},
			chain: []string{"a", "a"},
		},
		{
			name: "mutual inclusion",
			files: map[string]string{
				"index.tpl": "{{block=a}}",
				"a.tpl":     "{{block=b}}",
				"b.tpl":     "{{block=a}}",
			},
			chain: []string{"a", "b", "a"},
		},
		{
			name: "indirect through three fragments",
			files: map[string]string{
				"index.tpl": "{{block=a}}",
				"a.tpl":     "{{block=b}}",
				"b.tpl":     "{{block=c}}",
				"c.tpl":     "{{block=a}}",
			},
			chain: []string{"a", "b", "c", "a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewResolver(mapSource(tt.files)).Resolve(context.Background(), "index.tpl")
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrBlockRecursion)

			var e *errors.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, "index.tpl", e.Page)
			assert.Equal(t, tt.chain, e.Context["chain"])
		})
	}
}

func TestResolver_MissingFragment(t *testing.T) {
	files := map[string]string{
		"index.tpl":  "{{block=layout}}",
		"layout.tpl": "{{block=missing}}",
	}

	_, err := NewResolver(mapSource(files)).Resolve(context.Background(), "index.tpl")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrFragmentNotFound)

	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "index.tpl", e.Page)
	assert.Equal(t, "layout", e.Context["included_from"])
}

func TestResolver_MissingPage(t *testing.T) {
	_, err := NewResolver(mapSource(map[string]string{})).Resolve(context.Background(), "nope.tpl")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestIncludes(t *testing.T) {
	assert.Equal(t, []string{"header", "nav/main"},
		Includes("{{block=header}}<p>{{text x}}</p>{{block= nav/main }}{{block=header}}"))
	assert.Empty(t, Includes("<p>no blocks</p>"))
}
