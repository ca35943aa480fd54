package cache

import (
	"context"
	goerrors "errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/conneroisu/tplc/internal/errors"
)

const (
	// ArtifactExt is appended to the page name to form the artifact file name.
	ArtifactExt = ".gotmpl"
	metaExt     = ".meta.yaml"

	dirPerm  = 0o774
	filePerm = 0o664
)

// Disk stores artifacts as files below one namespace directory.
type Disk struct {
	root string
}

// NewDisk returns a store rooted at <cacheDir>/<namespace>.
func NewDisk(cacheDir, namespace string) *Disk {
	return &Disk{root: filepath.Join(cacheDir, namespace)}
}

// Root returns the namespace directory.
func (d *Disk) Root() string {
	return d.root
}

// Path returns the artifact file path for a page.
func (d *Disk) Path(page string) (string, error) {
	rel, err := pagePath(page)
	if err != nil {
		return "", err
	}
	return filepath.Join(d.root, filepath.FromSlash(rel)+ArtifactExt), nil
}

func (d *Disk) Get(ctx context.Context, page string) (*Artifact, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	file, err := d.Path(page)
	if err != nil {
		return nil, false, err
	}

	code, err := os.ReadFile(file)
	if err != nil {
		if goerrors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, errors.WrapIO(err, errors.ErrCodeCacheIO, "reading artifact").WithPage(page)
	}

	artifact := &Artifact{Page: page}
	meta, err := os.ReadFile(file + metaExt)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(meta, artifact); err != nil {
			return nil, false, errors.WrapIO(err, errors.ErrCodeCacheIO, "decoding artifact metadata").WithPage(page)
		}
	case goerrors.Is(err, fs.ErrNotExist):
		// Artifacts written without a sidecar fall back to the file time.
		if info, statErr := os.Stat(file); statErr == nil {
			artifact.CompiledAt = info.ModTime()
		}
	default:
		return nil, false, errors.WrapIO(err, errors.ErrCodeCacheIO, "reading artifact metadata").WithPage(page)
	}

	artifact.Page = page
	artifact.Code = string(code)
	return artifact, true, nil
}

func (d *Disk) Put(ctx context.Context, artifact *Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	file, err := d.Path(artifact.Page)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(file), dirPerm); err != nil {
		return errors.WrapIO(err, errors.ErrCodeCacheIO, "creating cache directory").WithPage(artifact.Page)
	}

	meta, err := yaml.Marshal(artifact)
	if err != nil {
		return errors.WrapIO(err, errors.ErrCodeCacheIO, "encoding artifact metadata").WithPage(artifact.Page)
	}

	if err := WriteAtomic(file+metaExt, meta); err != nil {
		return errors.WrapIO(err, errors.ErrCodeCacheIO, "writing artifact metadata").WithPage(artifact.Page)
	}
	if err := WriteAtomic(file, []byte(artifact.Code)); err != nil {
		return errors.WrapIO(err, errors.ErrCodeCacheIO, "writing artifact").WithPage(artifact.Page)
	}

	return nil
}

func (d *Disk) Delete(ctx context.Context, page string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	file, err := d.Path(page)
	if err != nil {
		return err
	}

	for _, p := range []string{file, file + metaExt} {
		if err := os.Remove(p); err != nil && !goerrors.Is(err, fs.ErrNotExist) {
			return errors.WrapIO(err, errors.ErrCodeCacheIO, "removing artifact").WithPage(page)
		}
	}
	return nil
}

// List returns every artifact in the namespace ordered by page name.
func (d *Disk) List(ctx context.Context) ([]*Artifact, error) {
	var pages []string
	err := filepath.WalkDir(d.root, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			if goerrors.Is(err, fs.ErrNotExist) && p == d.root {
				return fs.SkipAll
			}
			return err
		}
		if entry.IsDir() || !strings.HasSuffix(p, ArtifactExt) {
			return nil
		}
		rel, err := filepath.Rel(d.root, p)
		if err != nil {
			return err
		}
		pages = append(pages, strings.TrimSuffix(filepath.ToSlash(rel), ArtifactExt))
		return nil
	})
	if err != nil {
		return nil, errors.WrapIO(err, errors.ErrCodeCacheIO, "listing artifacts")
	}

	sort.Strings(pages)
	artifacts := make([]*Artifact, 0, len(pages))
	for _, page := range pages {
		artifact, ok, err := d.Get(ctx, page)
		if err != nil {
			return nil, err
		}
		if ok {
			artifacts = append(artifacts, artifact)
		}
	}
	return artifacts, nil
}

// WriteAtomic writes data to a temporary file in the target directory and
// renames it into place so readers never observe a partial artifact.
func WriteAtomic(file string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(file), ".tmp-"+filepath.Base(file)+"-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, filePerm); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, file); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// pagePath validates a page name and returns it as a clean relative slash path.
func pagePath(page string) (string, error) {
	p := path.Clean(strings.TrimPrefix(strings.ReplaceAll(page, "\\", "/"), "/"))
	if page == "" || !fs.ValidPath(p) || p == "." {
		return "", errors.WrapIO(goerrors.New("invalid page name"), errors.ErrCodeCacheIO, "resolving artifact path").
			WithContext("page", page)
	}
	return p, nil
}
