// SPDX-License-Identifier: MIT

package config

import "time"

// Config is the fully merged bot configuration.
type Config struct {
	Bot       BotConfig       `yaml:"bot"`
	Game      GameConfig      `yaml:"game"`
	Timers    TimersConfig    `yaml:"timers"`
	Errors    ErrorsConfig    `yaml:"errors"`
	Logging   LoggingConfig   `yaml:"logging"`
	Storage   StorageConfig   `yaml:"storage"`
	Logs      LogFilesConfig  `yaml:"logs"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Transport TransportConfig `yaml:"transport"`
	Messages  string          `yaml:"messages"`
}

// BotConfig carries identity, channels and access control.
type BotConfig struct {
	Nick          string `yaml:"nick"`
	MainChannel   string `yaml:"main_channel"`
	DevChannel    string `yaml:"dev_channel"`
	DevPrefix     string `yaml:"dev_prefix"`
	CommandPrefix string `yaml:"command_prefix"`
	DebugMode     bool   `yaml:"debug_mode"`

	Owners        []string `yaml:"owners"`
	OwnerAccounts []string `yaml:"owner_accounts"`
	Admins        []string `yaml:"admins"`
	AdminAccounts []string `yaml:"admin_accounts"`

	DisabledCommands   []string `yaml:"disabled_commands"`
	AltChannelCommands []string `yaml:"alt_channel_commands"`
	OwnersOnlyCommands []string `yaml:"owners_only_commands"`
}

// GameConfig bounds the roster.
type GameConfig struct {
	MinPlayers  int    `yaml:"min_players"`
	MaxPlayers  int    `yaml:"max_players"`
	DefaultMode string `yaml:"default_mode"`
}

// PhaseTimer holds a phase limit and the warning point, in seconds. Zero disables.
type PhaseTimer struct {
	Limit int `yaml:"limit"`
	Warn  int `yaml:"warn"`
}

// TimersConfig is the last tier consulted by the game's timer settings.
type TimersConfig struct {
	Day      PhaseTimer `yaml:"day"`
	ShortDay PhaseTimer `yaml:"shortday"`
	Night    PhaseTimer `yaml:"night"`
}

// ErrorsConfig drives the failure boundary.
type ErrorsConfig struct {
	TracebackVerbosity int           `yaml:"traceback_verbosity"`
	PasteEnabled       bool          `yaml:"paste_enabled"`
	PasteURL           string        `yaml:"paste_url"`
	PasteTimeout       time.Duration `yaml:"paste_timeout"`
}

// LoggingConfig configures the zerolog base logger.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
}

// StorageConfig locates the access-control database.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// LogFilesConfig locates the append-only audit and error logs.
type LogFilesConfig struct {
	Audit  string `yaml:"audit"`
	Errors string `yaml:"errors"`
}

// MetricsConfig enables the Prometheus endpoint when Listen is set.
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	Environment  string  `yaml:"environment"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// TransportConfig is the outbound token bucket: Burst messages, refilled one
// per Delay.
type TransportConfig struct {
	Burst int           `yaml:"burst"`
	Delay time.Duration `yaml:"delay"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Bot: BotConfig{
			Nick:          "lykos",
			MainChannel:   "#werewolf",
			CommandPrefix: "!",
		},
		Game: GameConfig{
			MinPlayers:  6,
			MaxPlayers:  24,
			DefaultMode: "default",
		},
		Timers: TimersConfig{
			Day:      PhaseTimer{Limit: 600, Warn: 540},
			ShortDay: PhaseTimer{Limit: 520, Warn: 400},
			Night:    PhaseTimer{Limit: 120, Warn: 90},
		},
		Errors: ErrorsConfig{
			TracebackVerbosity: 2,
			PasteURL:           "https://ptpb.pw",
			PasteTimeout:       10 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", Service: "lykos"},
		Storage: StorageConfig{Path: "lykos.db"},
		Logs:    LogFilesConfig{Audit: "audit.log", Errors: "errors.log"},
		Telemetry: TelemetryConfig{
			Exporter:     "http",
			Environment:  "development",
			SamplingRate: 1.0,
		},
		Transport: TransportConfig{Burst: 23, Delay: 1730 * time.Millisecond},
	}
}
