package pipeline

import "github.com/rs/zerolog"

// BestEffort runs a side-channel operation (status write, telemetry,
// notification, counter bump) that must never fail the job. Errors and
// panics are logged and swallowed. Using this combinator at every
// side-channel call site makes the "never fail the job for this" rule
// structural instead of conventional.
func BestEffort(logger zerolog.Logger, op string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn().Interface("panic", r).Str("op", op).Msg("side channel panicked")
		}
	}()
	if err := fn(); err != nil {
		logger.Warn().Err(err).Str("op", op).Msg("side channel failed")
	}
}
