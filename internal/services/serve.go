package services

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/conneroisu/tplc/internal/errors"
	"github.com/conneroisu/tplc/internal/server"
	"github.com/conneroisu/tplc/internal/watcher"
)

// ServeService runs the development server.
type ServeService struct {
	container *Container
}

// NewServeService creates a serve service.
func NewServeService(container *Container) *ServeService {
	return &ServeService{container: container}
}

// ServeOptions contains options for the serve process
type ServeOptions struct {
	// Watch invalidates artifacts when templates change. Live reload
	// notifications are only sent when it is on.
	Watch bool
	// Debounce groups rapid edits into one invalidation round.
	Debounce time.Duration
	// Listener overrides the configured host and port.
	Listener net.Listener
}

// Serve starts the server and blocks until ctx is canceled or the process
// receives SIGINT or SIGTERM.
func (s *ServeService) Serve(ctx context.Context, opts ServeOptions) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := s.container.Config()
	logger := s.container.Logger()

	srv, err := server.New(cfg, server.Deps{
		Engine:   s.container.Engine(),
		Renderer: s.container.Renderer(),
		Store:    s.container.Store(),
		Bundler:  s.container.Bundler(),
		Caches:   s.container.Caches(),
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	if built, err := s.container.Bundler().Ensure(ctx); err != nil {
		logger.Warn(ctx, err, "JavaScript bundle unavailable")
	} else if built {
		logger.Info(ctx, "JavaScript bundle built", "path", s.container.Bundler().Output())
	}

	if opts.Watch {
		fw, err := s.watch(ctx, srv, opts.Debounce)
		if err != nil {
			return err
		}
		defer fw.Stop()
	}

	if opts.Listener != nil {
		return srv.Serve(ctx, opts.Listener)
	}
	return srv.Start(ctx)
}

func (s *ServeService) watch(ctx context.Context, srv *server.Server, debounce time.Duration) (*watcher.FileWatcher, error) {
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}
	cfg := s.container.Config()

	fw, err := watcher.NewFileWatcher(debounce, s.container.Logger())
	if err != nil {
		return nil, errors.WrapIO(err, errors.ErrCodeSourceIO, "creating file watcher")
	}

	fw.AddFilter(watcher.ExtensionFilter(cfg.Templates.FragmentExt))
	fw.AddFilter(watcher.NoHiddenFilter)
	fw.AddFilter(watcher.NoBackupFilter)

	invalidator := watcher.NewInvalidator(
		cfg.Templates.Dir,
		s.container.Source(),
		s.container.Engine(),
		s.container.Renderer(),
		s.container.Logger(),
	)
	invalidator.OnReload(func(_ context.Context, reload watcher.Reload) {
		srv.Reload(reload.Changed)
	})
	fw.AddHandler(invalidator.Handle)

	if err := fw.AddRecursive(cfg.Templates.Dir); err != nil {
		fw.Stop()
		return nil, errors.WrapIO(err, errors.ErrCodeSourceIO, "watching "+cfg.Templates.Dir)
	}
	if err := fw.Start(ctx); err != nil {
		fw.Stop()
		return nil, err
	}
	return fw, nil
}
