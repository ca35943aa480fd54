package cache

import (
	"context"
	goerrors "errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/conneroisu/tplc/internal/errors"
	"github.com/conneroisu/tplc/internal/logging"
)

// Manager operates on whole cache namespaces below the cache directory.
type Manager struct {
	dir    string
	purge  map[string]func()
	logger logging.Logger
}

// Usage summarizes one namespace on disk.
type Usage struct {
	Namespace string `json:"namespace" yaml:"namespace"`
	Files     int    `json:"files" yaml:"files"`
	Bytes     int64  `json:"bytes" yaml:"bytes"`
}

func NewManager(dir string, logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Manager{
		dir:    dir,
		purge:  make(map[string]func()),
		logger: logger.WithComponent("cache"),
	}
}

// OnClear registers fn to run after namespace is cleared, used to drop the
// in-memory tier together with the files backing it.
func (m *Manager) OnClear(namespace string, fn func()) {
	m.purge[namespace] = fn
}

// Clear removes everything stored under the namespace. Clearing a namespace
// that does not exist is not an error.
func (m *Manager) Clear(ctx context.Context, namespace string) error {
	dir, err := m.namespaceDir(namespace)
	if err != nil {
		return err
	}

	if err := os.RemoveAll(dir); err != nil {
		return errors.WrapIO(err, errors.ErrCodeCacheIO, "clearing namespace "+namespace)
	}
	if fn, ok := m.purge[namespace]; ok {
		fn()
	}

	m.logger.Info(ctx, "Cache namespace cleared", "namespace", namespace, "dir", dir)
	return nil
}

// Namespaces lists the namespace directories currently present.
func (m *Manager) Namespaces() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if goerrors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.WrapIO(err, errors.ErrCodeCacheIO, "reading cache directory")
	}

	var namespaces []string
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			namespaces = append(namespaces, entry.Name())
		}
	}
	sort.Strings(namespaces)
	return namespaces, nil
}

// Usage counts the files and bytes stored in a namespace.
func (m *Manager) Usage(namespace string) (Usage, error) {
	usage := Usage{Namespace: namespace}

	dir, err := m.namespaceDir(namespace)
	if err != nil {
		return usage, err
	}

	err = filepath.WalkDir(dir, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			if goerrors.Is(err, fs.ErrNotExist) && p == dir {
				return fs.SkipAll
			}
			return err
		}
		if entry.IsDir() {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		usage.Files++
		usage.Bytes += info.Size()
		return nil
	})
	if err != nil {
		return usage, errors.WrapIO(err, errors.ErrCodeCacheIO, "measuring namespace "+namespace)
	}
	return usage, nil
}

func (m *Manager) namespaceDir(namespace string) (string, error) {
	if namespace == "" || namespace == "." || strings.ContainsAny(namespace, `/\`) || strings.Contains(namespace, "..") {
		return "", errors.WrapIO(goerrors.New("invalid namespace"), errors.ErrCodeCacheIO, "resolving namespace").
			WithContext("namespace", namespace)
	}
	return filepath.Join(m.dir, namespace), nil
}
