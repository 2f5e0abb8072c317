// Package config loads the server configuration from the `server:` section
// of config.yaml.
//
// Config fields:
//   - HTTPPort:      REST API, /metrics and WebSocket endpoints (default 8000)
//   - GRPCPort:      gRPC health probe, 0 disables it (default 50051)
//   - FrontendAddr:  origin allowed by CORS on /api routes
//   - LogLevel:      debug | info | warn | error (default info)
//   - WS.*:          send_buffer, write_timeout, pong_wait, read_limit,
//     inbound_rate, inbound_burst
//   - Countdown.*:   tick (default 1s), max_duration (default 300)
//   - Ledger.StartingBalance: balance credited to new wallets (default 100)
//
// Load(path) applies defaults, unmarshals the YAML file, then applies
// AICEBREAKER_* environment overrides (AICEBREAKER_HTTP_PORT,
// AICEBREAKER_WS_PONG_WAIT, ...) with caarlos0/env, then validates.
//
// Watch(ctx, path, current, onChange) uses fsnotify to reload the file on
// change and calls onChange with the previous and new Config. A failed reload
// keeps the previous config active. RestartRequired lists the changed fields
// that only take effect after a restart; log_level applies immediately.
package config
