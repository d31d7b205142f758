package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	store "github.com/ssadedin/go-statestore"
	"github.com/ssadedin/go-statestore/internal/config"
	"github.com/ssadedin/go-statestore/pkg/persist"
	"github.com/ssadedin/go-statestore/pkg/storage"
)

var dumpFormat string

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List persisted slices and whether a record exists for each",
	Args:  cobra.NoArgs,
	RunE:  runKeys,
}

var getCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print one persisted slice as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print every persisted slice",
	Args:  cobra.NoArgs,
	RunE:  runDump,
}

var setCmd = &cobra.Command{
	Use:   "set [key] [json]",
	Short: "Replace one persisted slice with a JSON value",
	Long: `Writes a record the store will rehydrate on its next start. The key must be
one of the configured slices.

Example:
  statectl set variantSearchDisplay '{"sort":"xpos","page":1}'`,
	Args: cobra.ExactArgs(2),
	RunE: runSet,
}

var clearCmd = &cobra.Command{
	Use:   "clear [key...]",
	Short: "Delete persisted records (all configured slices when no key is given)",
	RunE:  runClear,
}

// session bundles what every record command needs.
type session struct {
	cfg     *config.Config
	keys    *persist.KeySet
	backend storage.Backend
	close   func() error
}

func openSession() (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	keys, err := cfg.KeySet()
	if err != nil {
		return nil, err
	}
	backend, closeFn, err := cfg.OpenBackend()
	if err != nil {
		return nil, err
	}
	currentLogger().Debug("opened backend",
		zap.String("kind", cfg.Backend.Kind),
		zap.String("origin", cfg.Origin))
	return &session{cfg: cfg, keys: keys, backend: backend, close: closeFn}, nil
}

func (s *session) ref(key string) storage.Ref {
	return storage.Ref{Origin: s.cfg.Origin, Key: key}
}

func (s *session) lookup(name string) (persist.Key, error) {
	key, ok := s.keys.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown key %q (configured: %s)", name, strings.Join(s.keys.Names(), ", "))
	}
	return key, nil
}

// read returns the decoded slice, whether a usable record exists, and any
// load or decode error.
func (s *session) read(ctx context.Context, key persist.Key) (any, bool, error) {
	raw, found, err := s.backend.Load(ctx, s.ref(key.Name()))
	if err != nil || !found {
		return nil, false, err
	}
	return key.Decode(raw)
}

func runKeys(cmd *cobra.Command, args []string) error {
	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.close()

	ctx := contextOf(cmd)
	out := cmd.OutOrStdout()
	for _, key := range sess.keys.Keys() {
		_, ok, err := sess.read(ctx, key)
		status := "absent"
		switch {
		case err != nil:
			status = "unreadable: " + err.Error()
		case ok:
			status = "stored"
		}
		fmt.Fprintf(out, "%s\t%s\n", key.Name(), status)
	}

	lister, ok := sess.backend.(storage.Lister)
	if !ok {
		return nil
	}
	stored, err := lister.List(ctx, sess.cfg.Origin)
	if err != nil {
		return err
	}
	for _, name := range stored {
		if !sess.keys.Contains(name) {
			fmt.Fprintf(out, "%s\tunmanaged\n", name)
		}
	}
	return nil
}

func runGet(cmd *cobra.Command, args []string) error {
	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.close()

	key, err := sess.lookup(args[0])
	if err != nil {
		return err
	}
	value, _, err := sess.read(contextOf(cmd), key)
	if err != nil {
		return err
	}
	return writeJSON(cmd, value)
}

func runDump(cmd *cobra.Command, args []string) error {
	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.close()

	ctx := contextOf(cmd)
	state := make(map[string]any, sess.keys.Len())
	for _, key := range sess.keys.Keys() {
		value, ok, err := sess.read(ctx, key)
		if err != nil {
			currentLogger().Warn("skipping unreadable record", zap.String("key", key.Name()), zap.Error(err))
			continue
		}
		if ok {
			state[key.Name()] = value
		}
	}

	switch strings.ToLower(dumpFormat) {
	case "json", "":
		return writeJSON(cmd, state)
	case "yaml", "yml":
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(state); err != nil {
			return err
		}
		return enc.Close()
	case "fields":
		out := cmd.OutOrStdout()
		for _, field := range store.DescribeState(state) {
			fmt.Fprintf(out, "%s\t%s\n", field.Path, field.Type)
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q (json, yaml or fields)", dumpFormat)
	}
}

func runSet(cmd *cobra.Command, args []string) error {
	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.close()

	key, err := sess.lookup(args[0])
	if err != nil {
		return err
	}
	var value any
	if err := json.Unmarshal([]byte(args[1]), &value); err != nil {
		return fmt.Errorf("parse value: %w", err)
	}
	raw, err := key.Encode(value)
	if err != nil {
		return err
	}
	if err := sess.backend.Save(contextOf(cmd), sess.ref(key.Name()), raw); err != nil {
		return err
	}
	currentLogger().Info("record written", zap.String("key", key.Name()), zap.Int("bytes", len(raw)))
	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.close()

	deleter, ok := sess.backend.(storage.Deleter)
	if !ok {
		return fmt.Errorf("backend %q does not support delete", sess.cfg.Backend.Kind)
	}
	names := args
	if len(names) == 0 {
		names = sess.keys.Names()
	}
	ctx := contextOf(cmd)
	for _, name := range names {
		if _, err := sess.lookup(name); err != nil {
			return err
		}
		if err := deleter.Delete(ctx, sess.ref(name)); err != nil {
			return fmt.Errorf("delete %q: %w", name, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", name)
	}
	return nil
}

func writeJSON(cmd *cobra.Command, value any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
