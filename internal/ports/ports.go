// Package ports defines the interfaces between the decision engine and its
// external collaborators.
//
// Following the ports and adapters pattern, the orchestrator depends only on
// these abstractions; concrete implementations (HTTP translation client,
// regex safety classifier, stdin prompter) live in the infrastructure layer.
package ports

import (
	"context"

	"github.com/doeshing/aicmd-go/internal/domain"
)

// ConfigProvider loads the latest configuration from persistent storage.
// Implementations typically read from ~/.aicmd/config.yaml.
type ConfigProvider interface {
	Load(context.Context) (domain.Config, error)
}

// Translator turns a natural-language query into a shell command. It is only
// invoked on Translate decisions; its failures are the one error class that
// may surface to the user.
type Translator interface {
	Name() string
	Translate(ctx context.Context, query string) (string, error)
}

// SafetyClassifier flags destructive commands before they are auto-used.
type SafetyClassifier interface {
	Classify(command string) domain.RiskAssessment
}

// ConfirmationPrompter asks the user whether a cached or translated command
// should be used. A timed-out prompt is a distinct outcome: the orchestrator
// records no feedback for it.
type ConfirmationPrompter interface {
	Confirm(command, source string, confidence, similarity float64) (domain.ConfirmationResult, error)
	Enabled() bool
}

// Clipboard provides cross-platform clipboard integration for copying commands.
type Clipboard interface {
	Copy(text string) error
	Enabled() bool
}

// Logger provides structured logging abstraction for the application layer.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, err error, fields map[string]interface{})
}
