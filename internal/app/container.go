// Package app wires repositories, services and HTTP handlers from Env.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sourcegraph/conc"

	server "github.com/kazz187/sprintguild/internal"
	"github.com/kazz187/sprintguild/internal/archive"
	"github.com/kazz187/sprintguild/internal/autotag"
	"github.com/kazz187/sprintguild/internal/board"
	"github.com/kazz187/sprintguild/internal/config"
	"github.com/kazz187/sprintguild/internal/eventbus"
	"github.com/kazz187/sprintguild/internal/eventjournal"
	"github.com/kazz187/sprintguild/internal/eventstream"
	"github.com/kazz187/sprintguild/internal/execution"
	"github.com/kazz187/sprintguild/internal/executionlog"
	logrepo "github.com/kazz187/sprintguild/internal/executionlog/repositoryimpl"
	"github.com/kazz187/sprintguild/internal/pushnotification"
	pushsubrepo "github.com/kazz187/sprintguild/internal/pushsubscription/repositoryimpl"
	"github.com/kazz187/sprintguild/internal/sprint"
	sprintrepo "github.com/kazz187/sprintguild/internal/sprint/repositoryimpl"
	"github.com/kazz187/sprintguild/internal/task"
	taskrepo "github.com/kazz187/sprintguild/internal/task/repositoryimpl"
	"github.com/kazz187/sprintguild/internal/taskimage"
	imagerepo "github.com/kazz187/sprintguild/internal/taskimage/repositoryimpl"
	"github.com/kazz187/sprintguild/pkg/panicerr"
	"github.com/kazz187/sprintguild/pkg/storage"
)

type Container struct {
	Env *config.Env

	Store   storage.Storage
	Blobs   *storage.BlobStore
	Sprints sprint.Repository
	Tasks   task.Repository
	Logs    executionlog.Repository

	Bus     *eventbus.Bus
	Journal *eventjournal.Journal
	Queue   *board.Queue
	Tagger  *autotag.Tagger

	Engine    *board.Engine
	Archive   *archive.Service
	Execution *execution.Service
	Images    *taskimage.Service

	PushSender     *pushnotification.Sender
	PushDispatcher *pushnotification.Dispatcher

	httpServer *server.Server
	closers    []func() error
}

func New(ctx context.Context, env *config.Env) (*Container, error) {
	c := &Container{Env: env}

	var err error
	switch env.StorageEnv.Type {
	case "s3":
		c.Store, err = storage.NewS3Storage(ctx, env.S3Bucket, env.S3Prefix, env.S3Region)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 storage: %w", err)
		}
	default:
		c.Store, err = storage.NewLocalStorage(env.BaseDir)
		if err != nil {
			return nil, fmt.Errorf("failed to create local storage: %w", err)
		}
	}

	switch env.TaskStore {
	case "sqlite":
		repo, err := taskrepo.OpenSQLite(ctx, env.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open task database: %w", err)
		}
		c.closers = append(c.closers, repo.Close)
		c.Tasks = repo
	default:
		c.Tasks = taskrepo.NewYAMLRepository(c.Store)
	}
	c.Sprints = sprintrepo.NewYAMLRepository(c.Store)
	c.Logs = logrepo.NewYAMLRepository(c.Store)
	imageRepo := imagerepo.NewYAMLRepository(c.Store)
	pushSubRepo := pushsubrepo.NewYAMLRepository(c.Store)

	rules := autotag.DefaultRules
	if env.RulesFile != "" {
		rules, err = autotag.LoadRules(env.RulesFile)
		if err != nil {
			c.Close()
			return nil, err
		}
	}
	c.Tagger = autotag.NewTagger(rules)

	c.Bus = eventbus.New()
	c.Journal = eventjournal.New(c.Store)
	c.Queue = board.NewQueue()
	c.Blobs = storage.NewBlobStore(c.Store, env.BlobEnv.BaseURL, env.BlobEnv.Prefix)
	c.Images = taskimage.NewService(imageRepo, c.Tasks, c.Blobs, env.MaxImageBytes, c.Bus)
	c.Engine = board.NewEngine(c.Sprints, c.Tasks, c.Tagger, c.Images, c.Queue, c.Bus)
	c.Archive = archive.NewService(c.Tasks, c.Images, c.Queue, c.Bus)

	var generator execution.Generator
	if env.ClaudeEnabled {
		generator = execution.NewClaudeGenerator(env.WorkDir, env.GeneratorEnv.Timeout)
	}
	c.Execution = execution.NewService(c.Sprints, c.Tasks, c.Logs, generator, env.Model, c.Queue, c.Bus)

	c.PushSender = pushnotification.NewSender(&env.VAPIDEnv, pushSubRepo)
	c.PushDispatcher = pushnotification.NewDispatcher(c.Bus, c.PushSender)

	c.httpServer = server.NewServer(
		env,
		c.Blobs,
		board.NewServer(c.Engine),
		archive.NewServer(c.Archive),
		execution.NewServer(c.Execution),
		autotag.NewServer(c.Tagger),
		taskimage.NewServer(c.Images),
		pushnotification.NewServer(&env.VAPIDEnv, pushSubRepo, c.PushSender),
		eventstream.NewServer(c.Bus),
		eventjournal.NewServer(c.Journal),
	)
	return c, nil
}

func (c *Container) Server() *server.Server {
	return c.httpServer
}

// RunBackground starts the bus consumers and the optional tag rule watcher.
// Wait on the returned group after cancelling ctx.
func (c *Container) RunBackground(ctx context.Context) *conc.WaitGroup {
	var wg conc.WaitGroup
	wg.Go(func() {
		err := panicerr.SafeContext(ctx, func(ctx context.Context) error {
			c.Journal.Start(ctx, c.Bus)
			return nil
		})
		if err != nil {
			slog.ErrorContext(ctx, "event journal stopped", "error", err)
		}
	})
	wg.Go(func() {
		err := panicerr.SafeContext(ctx, func(ctx context.Context) error {
			c.PushDispatcher.Start(ctx)
			return nil
		})
		if err != nil {
			slog.ErrorContext(ctx, "push dispatcher stopped", "error", err)
		}
	})
	if c.Env.RulesFile != "" {
		wg.Go(func() {
			if err := panicerr.SafeContext(ctx, func(ctx context.Context) error {
				return c.Tagger.Watch(ctx, c.Env.RulesFile)
			}); err != nil {
				slog.ErrorContext(ctx, "tag rule watcher stopped", "error", err)
			}
		})
	}
	return &wg
}

const shutdownTimeout = 10 * time.Second

// Serve runs the HTTP server and background workers until ctx is cancelled,
// then shuts the server down gracefully.
func (c *Container) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := c.RunBackground(ctx)
	defer workers.Wait()

	srv := c.Server()
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serveErr:
	}
	cancel()
	slog.Info("shutting down server")

	// Give active connections time to finish after stream contexts are cancelled.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	return runErr
}

func (c *Container) Close() error {
	var firstErr error
	for _, closer := range c.closers {
		if err := closer(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.closers = nil
	return firstErr
}
