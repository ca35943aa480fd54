// Package assets builds the JavaScript bundle the js tag points at.
//
// The bundle is the concatenation of the configured built-in scripts
// (assets.source_dir/builtin/...) followed by the custom ones
// (assets.source_dir/custom/...), written once into the JavaScript cache
// namespace. Clearing that namespace makes the next Ensure rebuild it.
package assets

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	goerrors "errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/conneroisu/tplc/internal/cache"
	"github.com/conneroisu/tplc/internal/config"
	"github.com/conneroisu/tplc/internal/errors"
	"github.com/conneroisu/tplc/internal/logging"
)

// Bundler concatenates scripts into the bundle file.
type Bundler struct {
	sourceDir string
	builtin   []string
	custom    []string
	output    string
	logger    logging.Logger
}

// Result describes a written bundle.
type Result struct {
	Path    string   `json:"path" yaml:"path"`
	Files   []string `json:"files" yaml:"files"`
	Missing []string `json:"missing,omitempty" yaml:"missing,omitempty"`
	Bytes   int      `json:"bytes" yaml:"bytes"`
	Hash    string   `json:"hash" yaml:"hash"`
}

func NewBundler(cfg *config.Config, logger logging.Logger) *Bundler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Bundler{
		sourceDir: cfg.Assets.SourceDir,
		builtin:   cfg.Assets.Builtin,
		custom:    cfg.Assets.Custom,
		output:    filepath.Join(cfg.Cache.Dir, config.NamespaceJavaScript, cfg.Assets.BundleName),
		logger:    logger.WithComponent("assets"),
	}
}

// Output returns the bundle file path.
func (b *Bundler) Output() string {
	return b.output
}

// Files lists the scripts in bundle order, relative to the source directory.
func (b *Bundler) Files() []string {
	files := make([]string, 0, len(b.builtin)+len(b.custom))
	for _, f := range b.builtin {
		files = append(files, filepath.ToSlash(filepath.Join("builtin", f)))
	}
	for _, f := range b.custom {
		files = append(files, filepath.ToSlash(filepath.Join("custom", f)))
	}
	return files
}

// Ensure builds the bundle unless it already exists. built reports whether
// a new bundle was written.
func (b *Bundler) Ensure(ctx context.Context) (built bool, err error) {
	if _, err := os.Stat(b.output); err == nil {
		return false, nil
	} else if !goerrors.Is(err, fs.ErrNotExist) {
		return false, errors.WrapIO(err, errors.ErrCodeCacheIO, "checking bundle")
	}

	if _, err := b.Build(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Build writes the bundle, replacing any existing one. Scripts that do not
// exist are skipped and reported in Result.Missing.
func (b *Bundler) Build(ctx context.Context) (*Result, error) {
	op := logging.StartOperation(b.logger, "bundle")

	result := &Result{Path: b.output}
	var buf bytes.Buffer

	for _, file := range b.Files() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := os.ReadFile(filepath.Join(b.sourceDir, filepath.FromSlash(file)))
		if err != nil {
			if goerrors.Is(err, fs.ErrNotExist) {
				b.logger.Warn(ctx, err, "Script missing from bundle", "file", file)
				result.Missing = append(result.Missing, file)
				continue
			}
			op.EndWithError(ctx, err)
			return nil, errors.WrapIO(err, errors.ErrCodeSourceIO, "reading script "+file)
		}

		buf.Write(data)
		if len(data) > 0 && data[len(data)-1] != '\n' {
			buf.WriteByte('\n')
		}
		result.Files = append(result.Files, file)
	}

	if err := os.MkdirAll(filepath.Dir(b.output), 0o774); err != nil {
		op.EndWithError(ctx, err)
		return nil, errors.WrapIO(err, errors.ErrCodeCacheIO, "creating bundle directory")
	}
	if err := cache.WriteAtomic(b.output, buf.Bytes()); err != nil {
		op.EndWithError(ctx, err)
		return nil, errors.WrapIO(err, errors.ErrCodeCacheIO, "writing bundle")
	}

	sum := sha256.Sum256(buf.Bytes())
	result.Bytes = buf.Len()
	result.Hash = hex.EncodeToString(sum[:])

	op.End(ctx, "path", b.output, "files", len(result.Files), "bytes", result.Bytes)
	return result, nil
}
