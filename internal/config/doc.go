// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and validates the chat client configuration.
//
// # Configuration Precedence
//
// Highest first:
//   - Environment variables (CHAT_*, with N8N_* fallbacks)
//   - .env in the working directory
//   - ~/.chatn8n/config.toml (or the --config path)
//   - Built-in defaults
//
// # Sections
//
//   - backend: webhook_url, history_url, timeout_secs
//   - stream: boundary (strict|naive), read_size
//   - state: backend (file|sqlite), dir, variant (multi|single)
//   - history: cache_ttl_secs
//   - ui: theme (auto|dark|light), sample, width
//   - logging: file, level, max_size_mb, max_backups, max_age_days, console
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    return err
//	}
//	if cfg.Backend.WebhookURL == "" {
//	    // sends will report a configuration error
//	}
package config
