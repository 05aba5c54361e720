package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"conversation-feed-service/internal/observability/logging"
)

// PolicyCallback receives the new policy value on every reload.
type PolicyCallback func(policy string)

// WatchPolicyFile watches a one-line policy file ("freeze" or "drop") and
// invokes cb whenever its content changes. Blocks until ctx is cancelled;
// run it in its own goroutine.
func WatchPolicyFile(ctx context.Context, path string, cb PolicyCallback) error {
	logger := logging.WithComponent("policy-watcher")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory: editors replace files on save, which would
	// otherwise drop the watch on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	logger.Info().Str("path", path).Msg("Watching policy file")

	if policy, ok := readPolicyFile(path); ok {
		cb(policy)
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Policy watcher stopping")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if policy, ok := readPolicyFile(path); ok {
				logger.Info().Str("policy", policy).Msg("Policy file reloaded")
				cb(policy)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error().Err(err).Msg("Policy watcher error")
		}
	}
}

func readPolicyFile(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	policy := strings.TrimSpace(string(data))
	if policy == "" {
		return "", false
	}
	return policy, true
}
