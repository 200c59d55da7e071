package webtool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"lexgate/internal/domain/models"
)

// Executor serves navigate_web function calls for one turn, bound to the
// tenant's web-navigation config.
type Executor struct {
	nav    *Navigator
	cfg    models.WebNavigationConfig
	logger *slog.Logger
}

func NewExecutor(nav *Navigator, cfg models.WebNavigationConfig, logger *slog.Logger) *Executor {
	return &Executor{nav: nav, cfg: cfg, logger: logger}
}

// Execute runs the named tool and returns its JSON output. Unknown tools and
// malformed arguments come back as error objects so the model can recover.
func (e *Executor) Execute(ctx context.Context, name string, arguments json.RawMessage) string {
	if name != "navigate_web" {
		return encodeResult(Result{Error: fmt.Sprintf("unknown tool: %s", name)})
	}

	var args struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(arguments, &args); err != nil || args.URL == "" {
		return encodeResult(Result{Error: "invalid arguments: expected {\"url\": \"...\"}"})
	}

	result := e.nav.Navigate(ctx, args.URL, e.cfg)
	if result.Error != "" {
		e.logger.Warn("navigate_web failed", "url", args.URL, "error", result.Error)
	}
	return encodeResult(result)
}

func encodeResult(r Result) string {
	data, err := json.Marshal(r)
	if err != nil {
		return `{"error":"result encoding failed"}`
	}
	return string(data)
}
