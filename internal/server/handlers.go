package server

import (
	"bytes"
	"context"
	"encoding/json"
	goerrors "errors"
	"html"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/a-h/templ"

	"github.com/conneroisu/tplc/internal/cache"
	"github.com/conneroisu/tplc/internal/config"
	"github.com/conneroisu/tplc/internal/errors"
	"github.com/conneroisu/tplc/internal/template"
	"github.com/conneroisu/tplc/internal/version"
)

// handlePage compiles and renders the requested page with the query string
// as bindings.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	page := strings.TrimPrefix(r.URL.Path, "/")
	if page == "" || strings.HasSuffix(page, "/") {
		page += s.config.Server.IndexPage
	}

	view := template.NewView(s.engine, s.renderer).SetPage(page)
	for name, value := range queryBindings(r.URL.Query()) {
		view.RegisterVar(name, value)
	}

	body, err := view.HTML(r.Context())
	if err != nil {
		if goerrors.Is(err, errors.ErrTemplateNotFound) {
			s.notFound(w, r, page)
			return
		}
		s.errors.Handle(r.Context(), err)
		s.renderError(w, r, http.StatusInternalServerError, err)
		return
	}

	s.writeHTML(w, http.StatusOK, body)
}

// notFound renders the configured not-found page with the lost path bound
// as lostPage.
func (s *Server) notFound(w http.ResponseWriter, r *http.Request, lost string) {
	if lost == s.config.Server.NotFoundPage {
		http.NotFound(w, r)
		return
	}

	body, err := template.NewView(s.engine, s.renderer).
		SetPage(s.config.Server.NotFoundPage).
		RegisterVar("lostPage", s.lostPage(lost)).
		HTML(r.Context())
	if err != nil {
		if goerrors.Is(err, errors.ErrTemplateNotFound) {
			http.NotFound(w, r)
			return
		}
		s.errors.Handle(r.Context(), err)
		s.renderError(w, r, http.StatusInternalServerError, err)
		return
	}

	s.writeHTML(w, http.StatusNotFound, body)
}

// lostPage escapes the path unless the renderer escapes output itself.
func (s *Server) lostPage(lost string) string {
	if s.config.Compiler.HTMLEscape {
		return lost
	}
	return html.EscapeString(lost)
}

func (s *Server) writeHTML(w http.ResponseWriter, status int, body string) {
	out := []byte(body)
	if s.config.Server.LiveReload {
		out = injectReloadScript(out)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(out)
}

// errorPage renders a compile or render failure.
func errorPage(status int, err error) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var e *errors.Error
		code, page, line := "", "", 0
		if goerrors.As(err, &e) {
			code, page, line = e.Code, e.Page, e.Line
		}

		var b strings.Builder
		b.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>")
		b.WriteString(templ.EscapeString(http.StatusText(status)))
		b.WriteString("</title></head><body><h1>")
		b.WriteString(templ.EscapeString(http.StatusText(status)))
		b.WriteString("</h1>")
		if code != "" {
			b.WriteString("<p><code>")
			b.WriteString(templ.EscapeString(code))
			b.WriteString("</code></p>")
		}
		if page != "" {
			b.WriteString("<p>in <code>")
			b.WriteString(templ.EscapeString(page))
			if line > 0 {
				b.WriteString(":")
				b.WriteString(strconv.Itoa(line))
			}
			b.WriteString("</code></p>")
		}
		b.WriteString("<pre>")
		b.WriteString(templ.EscapeString(err.Error()))
		b.WriteString("</pre></body></html>\n")

		_, werr := io.WriteString(w, b.String())
		return werr
	})
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, err error) {
	var buf bytes.Buffer
	if rerr := errorPage(status, err).Render(r.Context(), &buf); rerr != nil {
		http.Error(w, http.StatusText(status), status)
		return
	}
	s.writeHTML(w, status, buf.String())
}

func (s *Server) handleBundle(w http.ResponseWriter, r *http.Request) {
	if _, err := s.bundler.Ensure(r.Context()); err != nil {
		s.errors.Handle(r.Context(), err)
		http.Error(w, "bundle unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	http.ServeFile(w, r, s.bundler.Output())
}

// handleHealth returns the server health status for health checks
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.engine.Stats()
	health := map[string]interface{}{
		"status":      "healthy",
		"timestamp":   time.Now().UTC(),
		"uptime":      time.Since(s.started).Round(time.Second).String(),
		"version":     version.GetShortVersion(),
		"environment": s.config.Environment,
		"checks": map[string]interface{}{
			"engine": map[string]interface{}{
				"compiles": stats.Compiles,
				"hits":     stats.Hits,
				"failures": stats.Failures,
			},
			"live_reload": map[string]interface{}{
				"enabled": s.config.Server.LiveReload,
				"clients": s.hub.count(),
			},
		},
	}
	writeJSON(w, http.StatusOK, health)
}

// cacheReport is the body of GET /api/cache.
type cacheReport struct {
	Engine    template.Stats   `json:"engine"`
	Memory    *cache.Stats     `json:"memory,omitempty"`
	Artifacts []artifactReport `json:"artifacts"`
}

type artifactReport struct {
	*cache.Artifact
	Bytes int `json:"bytes"`
}

// handleCache reports engine counters and the cached artifacts.
func (s *Server) handleCache(w http.ResponseWriter, r *http.Request) {
	report := cacheReport{Engine: s.engine.Stats(), Artifacts: []artifactReport{}}

	if tiered, ok := s.store.(interface{ Memory() *cache.Memory }); ok && tiered.Memory() != nil {
		stats := tiered.Memory().Stats()
		report.Memory = &stats
	}

	if s.store != nil {
		artifacts, err := s.store.List(r.Context())
		if err != nil {
			s.errors.Handle(r.Context(), err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		for _, artifact := range artifacts {
			report.Artifacts = append(report.Artifacts, artifactReport{Artifact: artifact, Bytes: len(artifact.Code)})
		}
	}

	writeJSON(w, http.StatusOK, report)
}

// handleCacheClear clears one cache namespace, Templates unless
// ?namespace= says otherwise.
func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if s.caches == nil {
		http.Error(w, "cache management unavailable", http.StatusNotImplemented)
		return
	}

	namespace := r.URL.Query().Get("namespace")
	if namespace == "" {
		namespace = config.NamespaceTemplates
	}
	if err := s.caches.Clear(r.Context(), namespace); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "Cache cleared successfully",
		"namespace": namespace,
		"timestamp": time.Now().Unix(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// queryBindings turns query parameters into bindings; repeated keys become
// string slices.
func queryBindings(query url.Values) map[string]any {
	bindings := make(map[string]any, len(query))
	for name, values := range query {
		if name == "" {
			continue
		}
		if len(values) == 1 {
			bindings[name] = values[0]
		} else {
			bindings[name] = append([]string(nil), values...)
		}
	}
	return bindings
}
