// Package httputil holds shared HTTP client plumbing.
package httputil

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

type RoundTripperFunc func(req *http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// LoggingRoundTrip tags outbound requests with the bot's User-Agent and
// logs method, URL, duration and status of every request.
type LoggingRoundTrip struct {
	rt      http.RoundTripper
	logger  zerolog.Logger
	version string
}

func NewLoggingRoundTrip(rt http.RoundTripper, logger zerolog.Logger, userAgentVersion string) *LoggingRoundTrip {
	return &LoggingRoundTrip{
		rt:      rt,
		logger:  logger,
		version: userAgentVersion,
	}
}

func (t *LoggingRoundTrip) RoundTrip(req *http.Request) (*http.Response, error) {
	rt := t.rt

	if rt == nil {
		rt = http.DefaultTransport
	}

	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", fmt.Sprintf("mechbot/%s", t.version))

	now := time.Now()
	resp, err := rt.RoundTrip(req)
	if err != nil {
		t.logger.Error().Err(err).Msg("error while making request")
		return nil, err
	}

	dur := time.Since(now)
	t.logger.Info().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Dur("took", dur).
		Int("status", resp.StatusCode).Msg("request made")

	return resp, nil
}
