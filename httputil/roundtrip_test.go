package httputil

import (
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggingRoundTrip_SetsUserAgent(t *testing.T) {
	t.Parallel()

	var gotAgent string
	inner := RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		gotAgent = req.Header.Get("User-Agent")
		return &http.Response{StatusCode: http.StatusOK}, nil
	})

	rt := NewLoggingRoundTrip(inner, zerolog.Nop(), "1.2.3")

	req, err := http.NewRequest(http.MethodGet, "https://example.com", nil)
	require.NoError(t, err)

	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "mechbot/1.2.3", gotAgent)
}

func TestLoggingRoundTrip_DoesNotMutateOriginalRequest(t *testing.T) {
	t.Parallel()

	inner := RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusOK}, nil
	})

	rt := NewLoggingRoundTrip(inner, zerolog.Nop(), "dev")

	req, err := http.NewRequest(http.MethodGet, "https://example.com", nil)
	require.NoError(t, err)

	_, err = rt.RoundTrip(req)
	require.NoError(t, err)
	assert.Empty(t, req.Header.Get("User-Agent"))
}
