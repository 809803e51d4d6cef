// Package shikimori is the HTTP client for the Shikimori REST API.
//
// Every request passes through a shared ratelimit.Limiter. Idempotent GETs are
// retried on transient failures; a 401 triggers a single refresh-token
// exchange followed by one replay of the request. Errors are tagged with the
// services sentinel markers so callers can classify them with errors.Is.
package shikimori
