package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	// Archive
	out.Archive = cfg.Archive
	redact(&out.Archive.AccessKey)
	redact(&out.Archive.SecretKey)

	// Webhooks. Webhook URLs embed their authentication token, so each one is
	// redacted wholesale.
	out.Webhooks = cfg.Webhooks
	redact(&out.Webhooks.DiscordURL)
	redact(&out.Webhooks.TelegramToken)
	if cfg.Webhooks.URLs != nil {
		out.Webhooks.URLs = make([]string, len(cfg.Webhooks.URLs))
		copy(out.Webhooks.URLs, cfg.Webhooks.URLs)
		for i := range out.Webhooks.URLs {
			redact(&out.Webhooks.URLs[i])
		}
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
