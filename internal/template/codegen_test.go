package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/tplc/internal/errors"
)

func TestGenerate(t *testing.T) {
	tests := []struct {
		name     string
		markup   string
		expected string
	}{
		{
			name:     "plain markup",
			markup:   "<p>nothing here</p>",
			expected: "<p>nothing here</p>",
		},
		{
			name:     "closing constructs nest inner first",
			markup:   "{{if $cond}}A{{foreach items}}B{{end foreach}}C{{end if}}",
			expected: "{{if $.cond}}A{{range $key, $value := $.items}}B{{end}}C{{end}}",
		},
		{
			name:     "loop variables scoped to their block",
			markup:   "{{foreach users}}{{text $value.name}}{{end foreach}}{{text $value.name}}",
			expected: "{{range $key, $value := $.users}}{{$value.GetName}}{{end}}{{$.value.GetName}}",
		},
		{
			name:     "identical tags translate by position",
			markup:   "{{text $value.name}}{{foreach items}}{{text $value.name}}{{end foreach}}",
			expected: "{{$.value.GetName}}{{range $key, $value := $.items}}{{$value.GetName}}{{end}}",
		},
		{
			name:     "nested loops see outer variables",
			markup:   "{{foreach rows, value=row}}{{foreach row.cells, value=cell}}{{text $row.id}}{{text $cell.label}}{{end foreach}}{{end foreach}}",
			expected: "{{range $key, $row := $.rows}}{{range $key, $cell := $row.GetCells}}{{$row.GetId}}{{$cell.GetLabel}}{{end}}{{end}}",
		},
		{
			name:     "if else",
			markup:   "{{if $admin}}yes{{else}}no{{end if}}",
			expected: "{{if $.admin}}yes{{else}}no{{end}}",
		},
		{
			name:     "range",
			markup:   "<ol>{{range 1,3}}<li>{{text $i}}</li>{{end range}}</ol>",
			expected: "<ol>{{range $i := seq 1 3}}<li>{{$i}}</li>{{end}}</ol>",
		},
		{
			name:     "js marker",
			markup:   `<script src="/{{js}}"></script>`,
			expected: `<script src="/cache/JavaScript/javascript.min.js"></script>`,
		},
		{
			name:     "baseline minify joins adjacent actions across lines",
			markup:   "{{if $a}}\n    {{text x}}\n{{end if}}\n",
			expected: "{{if $.a}}{{\"x\"}}{{end}}\n",
		},
		{
			name:     "baseline minify keeps spaces on one line",
			markup:   "{{text a}} {{text b}}",
			expected: `{{"a"}} {{"b"}}`,
		},
		{
			name:     "stray delimiters are escaped",
			markup:   "a {{ b\nc }}",
			expected: "a {{\"{{\"}} b\nc }}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := generate(t, tt.markup)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, code)
		})
	}
}

func TestGenerate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		target error
	}{
		{"lone end", "{{end if}}", errors.ErrUnbalancedBlock},
		{"unclosed foreach", "{{foreach x}}", errors.ErrUnclosedBlock},
		{"unknown tag", "{{widget x}}", errors.ErrUnregisteredToken},
		{"foreach arity", "{{foreach items, a, b, c}}{{end foreach}}", errors.ErrTokenArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := generate(t, tt.markup)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
		})
	}
}

func TestGenerate_CustomCloseConstruct(t *testing.T) {
	r := NewDefaultRegistry("")
	require.NoError(t, r.Register("with", GeneratorFunc(func(c GenContext) (Output, error) {
		return Output{Code: "{{with $." + c.Arguments + "}}", Close: "{{end}}<!-- with -->"}, nil
	}), Capturing()))

	code, err := Generate("test.tpl", "{{with user}}x{{end with}}", r, false)
	require.NoError(t, err)
	assert.Equal(t, "{{with $.user}}x{{end}}<!-- with -->", code)
}

func TestGenerate_AggressiveMinify(t *testing.T) {
	markup := "<div>\n\t<p>{{text Hi}}</p>  <!-- note -->\n</div>\n"

	code, err := Generate("test.tpl", markup, NewDefaultRegistry(""), true)
	require.NoError(t, err)
	assert.Equal(t, `<div><p>{{"Hi"}}</p></div> `, code)
}

func TestMinify(t *testing.T) {
	code := "<ul>\n  {{range $i := seq 1 2}}\n  {{\"a }} b\"}}\n  {{end}}\n</ul>"

	assert.Equal(t, "<ul>\n  {{range $i := seq 1 2}}{{\"a }} b\"}}{{end}}\n</ul>", Minify(code, false))
	assert.Equal(t, "<ul> {{range $i := seq 1 2}}{{\"a }} b\"}}{{end}} </ul>", Minify(code, true))
}

func TestSplitActions(t *testing.T) {
	segments := splitActions(`x{{"}}"}}y{{$.a}}`)
	require.Len(t, segments, 4)
	assert.Equal(t, segment{text: "x", literal: true}, segments[0])
	assert.Equal(t, segment{text: `{{"}}"}}`}, segments[1])
	assert.Equal(t, segment{text: "y", literal: true}, segments[2])
	assert.Equal(t, segment{text: "{{$.a}}"}, segments[3])
}
