// Package uxios is a promise style HTTP client core with pluggable transports:
//
//   - Immutable request Configs derived with BasedOn and ConfigOption overrides
//   - Request and response interceptor chains ordered by priority
//   - Transports selected by URL scheme through a per-client Registry
//   - Expected types that decode the body into text, bytes or JSON values
//   - A typed Error hierarchy matched with errors.Is
//   - Cancellation through context, CancelToken and a heartbeat driven AbortController
//   - Prometheus metrics and slog based logging
//
// Every dispatch is asynchronous: Request returns a Call that settles exactly
// once, Do and the verb helpers wait for it.
//
// Typical usage:
//
//	client := uxios.New(
//	    uxios.WithDefaultConfig(uxios.WithBaseURL("https://api.example.com/v1/")),
//	    uxios.WithRetry(uxios.NewDefaultRetryPolicy(3, 100*time.Millisecond, 2*time.Second, 2, 0.1)),
//	    uxios.WithRateLimiter(10, 1),
//	)
//	user, _, err := uxios.GetAs[User](ctx, client, "users/{id}", uxios.WithParam("id", "42"))
//
// Transports for other schemes live in the transport sub-packages: memory for
// tests, h2c for cleartext HTTP/2 and persistent for a local SQLite store.
package uxios
