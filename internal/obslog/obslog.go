// Package obslog centralizes structured logger construction so
// cmd/director and cmd/shard configure zap identically. Grounded in
// orbas1-Synnergy's use of go.uber.org/zap throughout synnergy-network/core,
// replacing the teacher's log.Printf call sites one for one (same events:
// startup, registration, shutdown, dispatch errors) with structured fields.
package obslog

import "go.uber.org/zap"

// New builds a *zap.SugaredLogger suited to the given role ("director" or
// "shard") and rank. Production encoding is used unless debug is set, in
// which case a more verbose development encoder is used instead.
func New(role string, rank int, debug bool) *zap.SugaredLogger {
	var base *zap.Logger
	var err error
	if debug {
		base, err = zap.NewDevelopment()
	} else {
		base, err = zap.NewProduction()
	}
	if err != nil {
		// zap's constructors only fail on broken sink configuration, which
		// cannot happen with the default config used here.
		base = zap.NewNop()
	}
	return base.Sugar().With("role", role, "rank", rank)
}
