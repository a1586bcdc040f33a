package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultConfigPath  = "config.toml"
	DefaultHTTPAddr    = ":8080"
	DefaultWebhookPath = "/lark/webhook"
)

type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Channels ChannelsConfig `toml:"channels"`
}

type LogConfig struct {
	Level  string `toml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `toml:"format" validate:"omitempty,oneof=text json"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type ChannelsConfig struct {
	Lark LarkConfig `toml:"lark"`
}

// LarkAccountSettings holds the per-account Lark channel settings. The base
// channel section carries the same fields and acts as the default account;
// entries under [channels.lark.accounts.<id>] override it field by field.
type LarkAccountSettings struct {
	Name              string   `toml:"name"`
	Enabled           *bool    `toml:"enabled"`
	AppID             string   `toml:"app_id"`
	AppSecret         string   `toml:"app_secret"`
	EncryptKey        string   `toml:"encrypt_key"`
	VerificationToken string   `toml:"verification_token"`
	Region            string   `toml:"region" validate:"omitempty,oneof=feishu lark"`
	BaseURL           string   `toml:"base_url" validate:"omitempty,url"`
	InboundMode       string   `toml:"inbound_mode" validate:"omitempty,oneof=webhook websocket"`
	WebhookPath       string   `toml:"webhook_path"`
	BotNames          []string `toml:"bot_names"`
	ThinkingThreshold int      `toml:"thinking_threshold_ms" validate:"omitempty,min=0"`
	TextChunkLimit    int      `toml:"text_chunk_limit" validate:"omitempty,min=0"`
}

type LarkConfig struct {
	LarkAccountSettings
	DefaultAccount string                         `toml:"default_account"`
	Accounts       map[string]LarkAccountSettings `toml:"accounts"`
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks the structural constraints declared on the config types.
func Validate(cfg Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	for id, account := range cfg.Channels.Lark.Accounts {
		if err := v.Struct(account); err != nil {
			return fmt.Errorf("invalid config for account %s: %w", id, err)
		}
	}
	return nil
}
