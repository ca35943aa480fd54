package template

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/conneroisu/tplc/internal/errors"
)

// DefaultBundlePath is where the js tag points when no bundle path is configured.
const DefaultBundlePath = "cache/JavaScript/javascript.min.js"

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// NewDefaultRegistry returns a registry holding the built-in generators.
func NewDefaultRegistry(bundlePath string) *Registry {
	r := NewRegistry()
	// A fresh registry is never frozen.
	_ = RegisterBuiltins(r, bundlePath)
	return r
}

// RegisterBuiltins registers text, foreach, range, if, else and js under their
// dmsf.* canonical names together with the short aliases.
func RegisterBuiltins(r *Registry, bundlePath string) error {
	if bundlePath == "" {
		bundlePath = DefaultBundlePath
	}

	builtins := []struct {
		name      string
		gen       GeneratorFunc
		capturing bool
		aliases   [][2]string
	}{
		{"dmsf.text", generateText, false, [][2]string{{"dmsf.text", "text"}, {"text", "t"}}},
		{"dmsf.foreach", generateForeach, true, [][2]string{{"dmsf.foreach", "foreach"}}},
		{"dmsf.range", generateRange, true, [][2]string{{"dmsf.range", "range"}}},
		{"dmsf.if", generateIf, true, [][2]string{{"dmsf.if", "if"}}},
		{"dmsf.else", generateElse, false, [][2]string{{"dmsf.else", "else"}}},
		{"dmsf.js", jsGenerator(bundlePath), false, [][2]string{{"dmsf.js", "js"}}},
	}

	for _, b := range builtins {
		var opts []RegisterOption
		if b.capturing {
			opts = append(opts, Capturing())
		}
		if err := r.Register(b.name, b.gen, opts...); err != nil {
			return err
		}
		for _, alias := range b.aliases {
			if err := r.RegisterAlias(alias[0], alias[1]); err != nil {
				return err
			}
		}
	}

	return nil
}

// generateText echoes a literal, or an accessor chain when the arguments
// carry the $ marker.
func generateText(c GenContext) (Output, error) {
	if !strings.Contains(c.Arguments, "$") {
		return Output{Code: "{{" + strconv.Quote(c.Arguments) + "}}"}, nil
	}

	expr, err := accessorPath(c, strings.TrimSpace(c.Arguments))
	if err != nil {
		return Output{}, err
	}
	return Output{Code: "{{" + expr + "}}"}, nil
}

// generateForeach accepts "coll", "coll, key=K", "coll, value=V" and
// "coll, key=K, value=V".
func generateForeach(c GenContext) (Output, error) {
	parts := strings.Split(c.Arguments, ",")
	if len(parts) > 3 {
		return Output{}, errors.TokenArgument(c.Type,
			fmt.Sprintf("wrong amount of arguments, expected 1 - 3, got %d", len(parts)))
	}

	collection := strings.TrimSpace(parts[0])
	if collection == "" {
		return Output{}, errors.TokenArgument(c.Type,
			"wrong amount of arguments, expected 1 - 3, got 0")
	}

	names := map[string]string{"key": "key", "value": "value"}
	seen := make(map[string]bool, 2)
	for _, part := range parts[1:] {
		label, name, ok := strings.Cut(part, "=")
		label = strings.TrimSpace(label)
		name = strings.TrimPrefix(strings.TrimSpace(name), "$")
		if !ok || (label != "key" && label != "value") {
			return Output{}, errors.TokenArgument(c.Type,
				fmt.Sprintf("expected key=NAME or value=NAME, got %q", strings.TrimSpace(part)))
		}
		if seen[label] {
			return Output{}, errors.TokenArgument(c.Type, fmt.Sprintf("%s given twice", label))
		}
		if !identPattern.MatchString(name) {
			return Output{}, errors.TokenArgument(c.Type, fmt.Sprintf("invalid %s name %q", label, name))
		}
		seen[label] = true
		names[label] = name
	}
	if names["key"] == names["value"] {
		return Output{}, errors.TokenArgument(c.Type, "key and value must differ")
	}

	expr, err := accessorPath(c, collection)
	if err != nil {
		return Output{}, err
	}

	return Output{
		Code:   fmt.Sprintf("{{range $%s, $%s := %s}}", names["key"], names["value"], expr),
		Locals: []string{names["key"], names["value"]},
	}, nil
}

// generateRange counts the index variable i from start to end inclusive.
func generateRange(c GenContext) (Output, error) {
	parts := strings.Split(c.Arguments, ",")
	if len(parts) != 2 {
		return Output{}, errors.TokenArgument(c.Type,
			fmt.Sprintf("expected start,end, got %d arguments", len(parts)))
	}

	bounds := make([]string, 2)
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return Output{}, errors.TokenArgument(c.Type, "empty bound")
		}
		if _, err := strconv.Atoi(part); err == nil {
			bounds[i] = part
			continue
		}
		expr, err := accessorPath(c, part)
		if err != nil {
			return Output{}, err
		}
		bounds[i] = expr
	}

	return Output{
		Code:   fmt.Sprintf("{{range $i := seq %s %s}}", bounds[0], bounds[1]),
		Locals: []string{"i"},
	}, nil
}

// generateIf guards a block with the condition, resolving $name against the
// bindings unless a loop variable of that name is in scope.
func generateIf(c GenContext) (Output, error) {
	cond := strings.TrimSpace(c.Arguments)
	if cond == "" {
		return Output{}, errors.TokenArgument(c.Type, "missing condition")
	}
	return Output{Code: "{{if " + rewriteVariables(c, cond) + "}}"}, nil
}

func generateElse(GenContext) (Output, error) {
	return Output{Code: "{{else}}"}, nil
}

func jsGenerator(bundlePath string) GeneratorFunc {
	return func(GenContext) (Output, error) {
		return Output{Code: bundlePath}, nil
	}
}

// accessorPath turns root.prop1.prop2 into a template expression calling
// GetProp1 then GetProp2 on the root value. The root may carry the $ marker.
func accessorPath(c GenContext, path string) (string, error) {
	segments := strings.Split(path, ".")

	root := strings.TrimPrefix(segments[0], "$")
	if !identPattern.MatchString(root) {
		return "", errors.TokenArgument(c.Type, fmt.Sprintf("invalid variable path %q", path))
	}

	var b strings.Builder
	if c.IsLocal(root) {
		b.WriteString("$" + root)
	} else {
		b.WriteString("$." + root)
	}

	for _, segment := range segments[1:] {
		if !identPattern.MatchString(segment) {
			return "", errors.TokenArgument(c.Type, fmt.Sprintf("invalid variable path %q", path))
		}
		b.WriteString(".Get")
		b.WriteString(capitalize(segment))
	}

	return b.String(), nil
}

// capitalize lower-cases s and upper-cases its first letter: firstName -> Firstname.
func capitalize(s string) string {
	lower := cases.Lower(language.Und).String(s)
	r, size := utf8.DecodeRuneInString(lower)
	return cases.Upper(language.Und).String(string(r)) + lower[size:]
}

// rewriteVariables maps $name to $.name outside string literals, leaving loop
// variables, $ alone and $.path untouched.
func rewriteVariables(c GenContext, expr string) string {
	var b strings.Builder
	b.Grow(len(expr) + 8)

	for i := 0; i < len(expr); {
		ch := expr[i]
		switch {
		case ch == '"' || ch == '`' || ch == '\'':
			end := skipQuoted(expr, i)
			b.WriteString(expr[i:end])
			i = end
		case ch == '$':
			j := i + 1
			for j < len(expr) && isIdentByte(expr[j], j == i+1) {
				j++
			}
			name := expr[i+1 : j]
			if name != "" && !c.IsLocal(name) {
				b.WriteString("$." + name)
			} else {
				b.WriteString(expr[i:j])
			}
			i = j
		default:
			b.WriteByte(ch)
			i++
		}
	}

	return b.String()
}

// skipQuoted returns the offset just past the literal starting at s[start].
func skipQuoted(s string, start int) int {
	quote := s[start]
	for i := start + 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if quote != '`' {
				i++
			}
		case quote:
			return i + 1
		}
	}
	return len(s)
}

func isIdentByte(b byte, first bool) bool {
	switch {
	case b == '_', b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z':
		return true
	case b >= '0' && b <= '9':
		return !first
	}
	return false
}
