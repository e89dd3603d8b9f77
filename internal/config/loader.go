// SPDX-License-Identifier: MIT

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jesopo/lykos/internal/errs"
	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence ENV > File > Defaults.
type Loader struct {
	configPath      string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader. An empty path loads defaults
// and environment only.
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath:      configPath,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Path returns the configuration file path, if any.
func (l *Loader) Path() string {
	return l.configPath
}

// Load builds a Snapshot: defaults, then the strict-parsed file, then the
// environment, then validation.
func (l *Loader) Load() (*Snapshot, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnvConfig(&cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return NewSnapshot(cfg)
}

func (l *Loader) loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envList(key string, defaultVal []string) []string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseList(key, defaultVal)
}

func (l *Loader) mergeEnvConfig(cfg *Config) {
	cfg.Bot.Nick = l.envString("LYKOS_NICK", cfg.Bot.Nick)
	cfg.Bot.MainChannel = l.envString("LYKOS_MAIN_CHANNEL", cfg.Bot.MainChannel)
	cfg.Bot.DevChannel = l.envString("LYKOS_DEV_CHANNEL", cfg.Bot.DevChannel)
	cfg.Bot.DebugMode = l.envBool("LYKOS_DEBUG", cfg.Bot.DebugMode)
	cfg.Bot.Owners = l.envList("LYKOS_OWNERS", cfg.Bot.Owners)
	cfg.Bot.OwnerAccounts = l.envList("LYKOS_OWNER_ACCOUNTS", cfg.Bot.OwnerAccounts)

	cfg.Game.MinPlayers = l.envInt("LYKOS_MIN_PLAYERS", cfg.Game.MinPlayers)
	cfg.Game.MaxPlayers = l.envInt("LYKOS_MAX_PLAYERS", cfg.Game.MaxPlayers)

	cfg.Errors.TracebackVerbosity = l.envInt("LYKOS_TRACEBACK_VERBOSITY", cfg.Errors.TracebackVerbosity)
	cfg.Errors.PasteEnabled = l.envBool("LYKOS_PASTE_ENABLED", cfg.Errors.PasteEnabled)
	cfg.Errors.PasteURL = l.envString("LYKOS_PASTE_URL", cfg.Errors.PasteURL)
	cfg.Errors.PasteTimeout = l.envDuration("LYKOS_PASTE_TIMEOUT", cfg.Errors.PasteTimeout)

	cfg.Transport.Burst = l.envInt("LYKOS_TRANSPORT_BURST", cfg.Transport.Burst)
	cfg.Transport.Delay = l.envDuration("LYKOS_TRANSPORT_DELAY", cfg.Transport.Delay)

	cfg.Logging.Level = l.envString("LYKOS_LOG_LEVEL", cfg.Logging.Level)
	cfg.Storage.Path = l.envString("LYKOS_STORAGE_PATH", cfg.Storage.Path)
	cfg.Metrics.Listen = l.envString("LYKOS_METRICS_LISTEN", cfg.Metrics.Listen)
	cfg.Telemetry.Enabled = l.envBool("LYKOS_TELEMETRY_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Endpoint = l.envString("LYKOS_TELEMETRY_ENDPOINT", cfg.Telemetry.Endpoint)
}

// Validate checks invariants the rest of the bot relies on.
func Validate(cfg Config) error {
	var problems []string
	if strings.TrimSpace(cfg.Bot.MainChannel) == "" {
		problems = append(problems, "bot.main_channel is required")
	}
	if cfg.Errors.TracebackVerbosity < 0 || cfg.Errors.TracebackVerbosity > 2 {
		problems = append(problems, fmt.Sprintf("errors.traceback_verbosity must be 0, 1 or 2 (got %d)", cfg.Errors.TracebackVerbosity))
	}
	if cfg.Game.MinPlayers < 1 {
		problems = append(problems, "game.min_players must be positive")
	}
	if cfg.Game.MaxPlayers < cfg.Game.MinPlayers {
		problems = append(problems, fmt.Sprintf("game.max_players (%d) is below game.min_players (%d)", cfg.Game.MaxPlayers, cfg.Game.MinPlayers))
	}
	if cfg.Errors.PasteEnabled && cfg.Errors.PasteURL == "" {
		problems = append(problems, "errors.paste_url is required when paste reporting is enabled")
	}
	if cfg.Transport.Burst < 1 {
		problems = append(problems, "transport.burst must be positive")
	}
	if len(problems) > 0 {
		return errs.Configuration("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
