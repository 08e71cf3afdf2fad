// Package coach answers chat messages about a user's finances.
package coach

import (
	"context"
	"log/slog"
	"strings"

	"finwise/internal/finance"
)

// Fallback tries the remote provider once and answers from the rules when it
// is unavailable or fails.
type Fallback struct {
	remote *Remote
	rules  Rules
	log    *slog.Logger
}

func NewFallback(remote *Remote, logger *slog.Logger) *Fallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{remote: remote, log: logger}
}

func (f *Fallback) Reply(ctx context.Context, message string, st finance.AppState) string {
	if f.remote.Configured() {
		reply, err := f.remote.Complete(ctx, message)
		if err == nil && strings.TrimSpace(reply) != "" {
			return reply
		}
		f.log.Warn("remote coach failed, using rules", "err", err)
	}
	return f.rules.Reply(ctx, message, st)
}

var _ finance.Responder = (*Fallback)(nil)
var _ finance.Responder = Rules{}
