package template

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"io"
	"math"
	"strconv"
	"sync"
	texttemplate "text/template"

	"github.com/conneroisu/tplc/internal/cache"
	"github.com/conneroisu/tplc/internal/errors"
)

// maxSeq bounds the length of a seq result.
const maxSeq = 1 << 20

// FuncMap returns the functions generated code may call.
func FuncMap() map[string]any {
	return map[string]any{
		"seq": seq,
	}
}

// seq returns the integers from start to end inclusive. It is empty when end
// is below start.
func seq(start, end any) ([]int, error) {
	from, err := toInt(start)
	if err != nil {
		return nil, fmt.Errorf("seq start: %w", err)
	}
	to, err := toInt(end)
	if err != nil {
		return nil, fmt.Errorf("seq end: %w", err)
	}

	if to < from {
		return []int{}, nil
	}
	// The span is measured in uint64 so extreme bounds cannot wrap.
	if span := uint64(to) - uint64(from); span >= maxSeq {
		return nil, fmt.Errorf("seq from %d to %d exceeds limit of %d elements", from, to, maxSeq)
	}

	out := make([]int, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out, nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int8:
		return int(n), nil
	case int16:
		return int(n), nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case uint:
		return int(n), nil
	case uint8:
		return int(n), nil
	case uint16:
		return int(n), nil
	case uint32:
		return int(n), nil
	case uint64:
		if n > math.MaxInt {
			return 0, fmt.Errorf("%d overflows int", n)
		}
		return int(n), nil
	case float32:
		return int(n), nil
	case float64:
		return int(n), nil
	case string:
		return strconv.Atoi(n)
	default:
		return 0, fmt.Errorf("cannot use %T as a bound", v)
	}
}

// executor is satisfied by both text/template and html/template.
type executor interface {
	Execute(w io.Writer, data any) error
}

// parse compiles code with the runtime the renderer is configured for.
func parse(page, code string, htmlEscape bool) (executor, error) {
	if htmlEscape {
		return htmltemplate.New(page).Funcs(FuncMap()).Parse(code)
	}
	return texttemplate.New(page).Funcs(FuncMap()).Parse(code)
}

type parsed struct {
	hash string
	tmpl executor
}

// Renderer executes artifacts. Parsed templates are memoized per page until
// the artifact's source hash changes.
type Renderer struct {
	htmlEscape bool

	mu     sync.Mutex
	parsed map[string]parsed
}

// NewRenderer returns a renderer using html/template when htmlEscape is set
// and text/template otherwise.
func NewRenderer(htmlEscape bool) *Renderer {
	return &Renderer{
		htmlEscape: htmlEscape,
		parsed:     make(map[string]parsed),
	}
}

// Render executes the artifact with bindings as the root data.
func (r *Renderer) Render(ctx context.Context, artifact *cache.Artifact, bindings map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := r.execute(ctx, &buf, artifact, bindings); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderTo writes the output to w only once execution succeeded.
func (r *Renderer) RenderTo(ctx context.Context, w io.Writer, artifact *cache.Artifact, bindings map[string]any) error {
	var buf bytes.Buffer
	if err := r.execute(ctx, &buf, artifact, bindings); err != nil {
		return err
	}
	if _, err := buf.WriteTo(w); err != nil {
		return errors.WrapRender(err, artifact.Page)
	}
	return nil
}

func (r *Renderer) execute(ctx context.Context, w io.Writer, artifact *cache.Artifact, bindings map[string]any) error {
	if err := ctx.Err(); err != nil {
		return errors.WrapRender(err, artifact.Page)
	}

	tmpl, err := r.template(artifact)
	if err != nil {
		return err
	}

	if bindings == nil {
		bindings = map[string]any{}
	}
	if err := tmpl.Execute(w, bindings); err != nil {
		return errors.WrapRender(err, artifact.Page)
	}
	return nil
}

func (r *Renderer) template(artifact *cache.Artifact) (executor, error) {
	key := artifact.SourceHash + "\x00" + artifact.CompiledAt.String()

	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.parsed[artifact.Page]; ok && p.hash == key {
		return p.tmpl, nil
	}

	tmpl, err := parse(artifact.Page, artifact.Code, r.htmlEscape)
	if err != nil {
		return nil, errors.WrapRender(err, artifact.Page)
	}
	r.parsed[artifact.Page] = parsed{hash: key, tmpl: tmpl}
	return tmpl, nil
}

// Forget drops the memoized template of a page.
func (r *Renderer) Forget(page string) {
	r.mu.Lock()
	delete(r.parsed, page)
	r.mu.Unlock()
}

// Bindings prepares plain decoded data, such as a YAML or JSON document, for
// rendering. Generated accessor chains call Get<Field> on every nested value,
// so each nested map also answers under the Get<Field> form of its keys.
// Top-level names are left as they are.
func Bindings(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for name, value := range values {
		out[name] = withAccessors(value)
	}
	return out
}

func withAccessors(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, 2*len(v))
		for key, item := range v {
			item = withAccessors(item)
			out[key] = item
			if identPattern.MatchString(key) {
				out["Get"+capitalize(key)] = item
			}
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = withAccessors(item)
		}
		return out
	default:
		return value
	}
}
