package helpers

import (
	"fmt"
	"log/slog"

	"github.com/zinc-sig/easysweep/cmd/config"
	"github.com/zinc-sig/easysweep/internal/kvconfig"
	"github.com/zinc-sig/easysweep/internal/webhook"
)

// BuildWebhookConfig builds webhook configuration from all sources.
// Precedence: env < file < json < kv < direct flags.
func BuildWebhookConfig(cfg *config.WebhookConfig) (map[string]any, error) {
	webhookConf, err := kvconfig.Build(kvconfig.Sources{
		EnvPrefix: kvconfig.WebhookEnvPrefix,
		File:      cfg.ConfigFile,
		JSON:      cfg.Config,
		KV:        cfg.ConfigKV,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build webhook config: %w", err)
	}

	// Flags left at their defaults do not override other sources.
	if cfg.URL != "" {
		webhookConf["url"] = cfg.URL
	}
	if cfg.Method != "" && cfg.Method != "POST" {
		webhookConf["method"] = cfg.Method
	}
	if cfg.AuthType != "" && cfg.AuthType != "none" {
		webhookConf["auth_type"] = cfg.AuthType
	}
	if cfg.AuthToken != "" {
		webhookConf["auth_token"] = cfg.AuthToken
	}
	if cfg.Timeout != "" && cfg.Timeout != "30s" {
		webhookConf["timeout"] = cfg.Timeout
	}
	if cfg.Retries != 3 {
		webhookConf["retries"] = cfg.Retries
	}
	if cfg.RetryDelay != "" && cfg.RetryDelay != "1s" {
		webhookConf["retry_delay"] = cfg.RetryDelay
	}

	return webhookConf, nil
}

// NewWebhookClient returns nil when no webhook URL is configured.
func NewWebhookClient(cfg *config.WebhookConfig, logger *slog.Logger) (*webhook.Client, error) {
	m, err := BuildWebhookConfig(cfg)
	if err != nil {
		return nil, err
	}
	webhookConfig, retryConfig, err := webhook.FromMap(m)
	if err != nil {
		return nil, err
	}
	if webhookConfig == nil {
		return nil, nil
	}
	return webhook.NewClient(webhookConfig, retryConfig, logger), nil
}
