// Package source loads page and fragment markup from a templates directory.
//
// Pages are addressed by their slash-separated path including the extension
// ("index.tpl", "users/list.tpl"). Fragments named by block directives are
// addressed without extension; the configured fragment extension is appended
// ("header" reads "header.tpl").
package source

import (
	"context"
	goerrors "errors"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/conneroisu/tplc/internal/errors"
)

// Dir serves markup from a file system rooted at the templates directory.
type Dir struct {
	fsys        fs.FS
	fragmentExt string
}

// NewDir returns a Dir reading from the templates directory at root.
func NewDir(root, fragmentExt string) *Dir {
	return NewFS(os.DirFS(root), fragmentExt)
}

// NewFS returns a Dir over an arbitrary file system, used by tests with fstest.MapFS.
func NewFS(fsys fs.FS, fragmentExt string) *Dir {
	if fragmentExt == "" {
		fragmentExt = ".tpl"
	}
	return &Dir{fsys: fsys, fragmentExt: fragmentExt}
}

// Page returns the raw markup of a page.
func (d *Dir) Page(ctx context.Context, name string) (string, error) {
	p, err := clean(name)
	if err != nil {
		return "", errors.TemplateNotFound(name, err)
	}

	data, err := d.read(ctx, p)
	if err != nil {
		if goerrors.Is(err, fs.ErrNotExist) {
			return "", errors.TemplateNotFound(name, nil)
		}
		return "", errors.WrapIO(err, errors.ErrCodeSourceIO, "reading page "+name).WithPage(name)
	}

	return data, nil
}

// Fragment returns the raw markup of the fragment a block directive names.
func (d *Dir) Fragment(ctx context.Context, name string) (string, error) {
	p, err := clean(name + d.fragmentExt)
	if err != nil {
		return "", errors.FragmentNotFound(name).WithContext("reason", err.Error())
	}

	data, err := d.read(ctx, p)
	if err != nil {
		if goerrors.Is(err, fs.ErrNotExist) {
			return "", errors.FragmentNotFound(name)
		}
		return "", errors.WrapIO(err, errors.ErrCodeSourceIO, "reading fragment "+name)
	}

	return data, nil
}

// Exists reports whether a page is present.
func (d *Dir) Exists(name string) bool {
	p, err := clean(name)
	if err != nil {
		return false
	}
	info, err := fs.Stat(d.fsys, p)
	return err == nil && !info.IsDir()
}

// FragmentName maps a templates-relative file path back to the fragment name
// block directives use for it. ok is false for files without the fragment extension.
func (d *Dir) FragmentName(rel string) (name string, ok bool) {
	rel = path.Clean(strings.ReplaceAll(rel, "\\", "/"))
	if !strings.HasSuffix(rel, d.fragmentExt) {
		return "", false
	}
	return strings.TrimSuffix(rel, d.fragmentExt), true
}

// Pages lists every markup file under the templates directory.
func (d *Dir) Pages() ([]string, error) {
	var pages []string
	err := fs.WalkDir(d.fsys, ".", func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			if p != "." && strings.HasPrefix(entry.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(p, d.fragmentExt) {
			pages = append(pages, p)
		}
		return nil
	})
	if err != nil {
		return nil, errors.WrapIO(err, errors.ErrCodeSourceIO, "listing pages")
	}
	return pages, nil
}

func (d *Dir) read(ctx context.Context, p string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := fs.ReadFile(d.fsys, p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// clean turns a logical name into an fs.FS path, rejecting escapes from the root.
func clean(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	p := path.Clean(strings.TrimPrefix(name, "/"))
	if !fs.ValidPath(p) || p == "." {
		return "", goerrors.New("invalid template name " + name)
	}
	return p, nil
}
