package config

import (
	"time"

	"github.com/pitabwire/frame/config"
)

// AssistantConfig holds configuration for the assistant service.
type AssistantConfig struct {
	config.ConfigurationDefault

	SchemaDir  string `envDefault:"./schemas" env:"INTENT_SCHEMA_DIR"`
	SchemaName string `envDefault:"drivemail" env:"INTENT_SCHEMA_NAME"`

	GeminiAPIKey  string `envDefault:""                                                 env:"GEMINI_API_KEY"`
	GeminiBaseURL string `envDefault:"https://generativelanguage.googleapis.com/v1beta" env:"GEMINI_BASE_URL"`
	GeminiModel   string `envDefault:"gemini-2.0-flash"                                 env:"GEMINI_MODEL"`

	GmailBaseURL string `envDefault:"https://gmail.googleapis.com/gmail/v1" env:"GMAIL_BASE_URL"`

	TurnTimeoutSec   int `envDefault:"30" env:"TURN_TIMEOUT_SEC"`
	ReadDefaultLimit int `envDefault:"5"  env:"READ_DEFAULT_LIMIT"`
	SummaryLimit     int `envDefault:"3"  env:"SUMMARY_DEFAULT_LIMIT"`
	MailContextLimit int `envDefault:"3"  env:"MAIL_CONTEXT_LIMIT"`
}

// TurnTimeout returns the per-turn deadline for classifier and handler calls.
func (c *AssistantConfig) TurnTimeout() time.Duration {
	if c.TurnTimeoutSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TurnTimeoutSec) * time.Second
}
