package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads path whenever it is written or re-created and calls onChange
// with the previous and the new Config. current is the config already in
// effect. Watch blocks until ctx is cancelled.
//
// A reload that fails to parse or validate is logged and skipped; the last
// good config stays current.
func Watch(ctx context.Context, path string, current *Config, onChange func(prev, next *Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watch: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("config watch %q: %w", path, err)
	}
	slog.Info("config: watching for changes", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}

			next, err := Load(path)
			if err != nil {
				slog.Error("config: reload failed, keeping previous config", "path", path, "err", err)
				continue
			}
			onChange(current, next)
			current = next

			// An atomic save replaces the inode; watch the new file.
			_ = watcher.Add(path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}

// RestartRequired lists the settings that differ between prev and next but
// only take effect at startup. LogLevel is applied live and never listed.
func RestartRequired(prev, next *Config) []string {
	a, b := prev.Server, next.Server
	var out []string
	if a.HTTPPort != b.HTTPPort {
		out = append(out, "http_port")
	}
	if a.GRPCPort != b.GRPCPort {
		out = append(out, "grpc_port")
	}
	if a.FrontendAddr != b.FrontendAddr {
		out = append(out, "frontend_addr")
	}
	if a.WS != b.WS {
		out = append(out, "ws")
	}
	if a.Countdown != b.Countdown {
		out = append(out, "countdown")
	}
	if a.Ledger != b.Ledger {
		out = append(out, "ledger")
	}
	return out
}
