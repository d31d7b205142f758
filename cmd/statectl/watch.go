package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	store "github.com/ssadedin/go-statestore"
	"github.com/ssadedin/go-statestore/internal/config"
	"github.com/ssadedin/go-statestore/pkg/activity"
	"github.com/ssadedin/go-statestore/pkg/storage"
)

var watchTimeout time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow changes to persisted slices written by other processes",
	Long: `Rehydrates a store from the file backend and prints the persisted slices as
one JSON line every time another writer changes them. Requires backend.kind=file.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Backend.Kind != config.BackendFile {
		return fmt.Errorf("watch requires the file backend, got %q", cfg.Backend.Kind)
	}
	fs, err := storage.NewFileStore(cfg.Backend.Path)
	if err != nil {
		return err
	}
	keys, err := cfg.KeySet()
	if err != nil {
		return err
	}

	ctx := contextOf(cmd)
	if watchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, watchTimeout)
		defer cancel()
	}

	log := currentLogger()
	opts := []store.Option{
		store.WithKeySet(keys),
		store.WithBackend(fs),
		store.WithOrigin(cfg.Origin),
		store.WithLogger(log),
		store.WithContext(ctx),
		store.WithMiddleware(store.LoggingMiddleware(log)),
	}
	if cfg.Activity.Enabled {
		opts = append(opts,
			store.WithActivityHooks(activity.Hooks{logHook(log)}, cfg.Activity.Channel),
			store.WithActivityVerbs(cfg.Activity.Verbs...),
		)
	}
	s, err := store.Configure(nil, nil, opts...)
	if err != nil {
		return err
	}
	if err := s.Rehydration().Err(); err != nil {
		log.Warn("some records could not be rehydrated", zap.Error(err))
	}

	out := cmd.OutOrStdout()
	show := func() {
		line, err := json.Marshal(s.GetState())
		if err != nil {
			log.Warn("encode state", zap.Error(err))
			return
		}
		fmt.Fprintln(out, string(line))
	}
	show()
	unsubscribe := s.Subscribe(show)
	defer unsubscribe()

	watcher, err := fs.Watch(ctx, s.Origin())
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := s.Sync(ctx, watcher); err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// logHook reports store diagnostics through the CLI logger.
func logHook(log *zap.Logger) activity.HookFunc {
	return func(_ context.Context, event activity.Event) error {
		log.Info("store activity",
			zap.String("verb", event.Verb),
			zap.String("key", event.ObjectID),
			zap.String("channel", event.Channel),
			zap.Any("metadata", event.Metadata))
		return nil
	}
}
