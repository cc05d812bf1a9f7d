// Package twitch is a minimal Helix API client authenticated with an app
// access token.
package twitch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"resenje.org/singleflight"
)

var (
	ErrNoClientSecret     = errors.New("no client secret was provided")
	ErrAppTokenStatusCode = errors.New("invalid status code response while creating app access token")
	ErrUserNotFound       = errors.New("twitch: user not found")
)

const (
	defaultBaseURL = "https://api.twitch.tv/helix"
	defaultAuthURL = "https://id.twitch.tv/oauth2/token"
)

type APIOptionFunc func(api *API) error

func WithHTTPClient(client *http.Client) APIOptionFunc {
	return func(api *API) error {
		api.client = client
		return nil
	}
}

func WithClientSecret(secret string) APIOptionFunc {
	return func(api *API) error {
		api.clientSecret = secret
		return nil
	}
}

// WithBaseURL overrides the Helix endpoint, used in tests.
func WithBaseURL(baseURL string) APIOptionFunc {
	return func(api *API) error {
		api.baseURL = strings.TrimSuffix(baseURL, "/")
		return nil
	}
}

// WithAuthURL overrides the token endpoint, used in tests.
func WithAuthURL(authURL string) APIOptionFunc {
	return func(api *API) error {
		api.authURL = authURL
		return nil
	}
}

type API struct {
	logger zerolog.Logger
	client *http.Client

	baseURL string
	authURL string

	m *sync.Mutex

	// Collapses concurrent token refreshes and identical stream lookups
	// into one upstream request.
	singleToken  *singleflight.Group[string, string]
	singleStream *singleflight.Group[string, GetStreamsResponse]

	appAccessToken string

	clientID     string
	clientSecret string
}

func NewAPI(logger zerolog.Logger, clientID string, opts ...APIOptionFunc) (*API, error) {
	api := &API{
		logger:       logger.With().Str("component", "twitch-api").Logger(),
		clientID:     clientID,
		baseURL:      defaultBaseURL,
		authURL:      defaultAuthURL,
		m:            &sync.Mutex{},
		singleToken:  &singleflight.Group[string, string]{},
		singleStream: &singleflight.Group[string, GetStreamsResponse]{},
	}

	for _, f := range opts {
		if err := f(api); err != nil {
			return nil, err
		}
	}

	if api.client == nil {
		api.client = http.DefaultClient
	}

	return api, nil
}

func (a *API) GetUsers(ctx context.Context, logins []string, ids []string) (UserResponse, error) {
	values := url.Values{}
	for _, login := range logins {
		values.Add("login", login)
	}

	for _, id := range ids {
		values.Add("id", id)
	}

	url := fmt.Sprintf("/users?%s", values.Encode())

	resp, err := doAuthenticatedAppRequest[UserResponse](ctx, a, http.MethodGet, url, nil)
	if err != nil {
		return UserResponse{}, err
	}

	return resp, nil
}

// ResolveUserByLogin looks up the account behind a login name.
func (a *API) ResolveUserByLogin(ctx context.Context, login string) (UserData, error) {
	resp, err := a.GetUsers(ctx, []string{strings.ToLower(login)}, nil)
	if err != nil {
		return UserData{}, err
	}

	if len(resp.Data) == 0 {
		return UserData{}, fmt.Errorf("%w: %s", ErrUserNotFound, login)
	}

	return resp.Data[0], nil
}

// ResolveUserByID looks up the account behind a numeric user ID.
func (a *API) ResolveUserByID(ctx context.Context, id string) (UserData, error) {
	resp, err := a.GetUsers(ctx, nil, []string{id})
	if err != nil {
		return UserData{}, err
	}

	if len(resp.Data) == 0 {
		return UserData{}, fmt.Errorf("%w: id %s", ErrUserNotFound, id)
	}

	return resp.Data[0], nil
}

func (a *API) GetStreams(ctx context.Context, broadcastIDs []string) (GetStreamsResponse, error) {
	values := url.Values{}
	for _, id := range broadcastIDs {
		values.Add("user_id", id)
	}

	values.Add("type", "live")

	url := fmt.Sprintf("/streams?%s", values.Encode())

	resp, _, err := a.singleStream.Do(ctx, url, func(ctx context.Context) (GetStreamsResponse, error) {
		return doAuthenticatedAppRequest[GetStreamsResponse](ctx, a, http.MethodGet, url, nil)
	})
	if err != nil {
		return GetStreamsResponse{}, err
	}

	return resp, nil
}

// IsChannelLive reports whether the broadcaster currently has a live stream.
func (a *API) IsChannelLive(ctx context.Context, broadcastID string) (bool, error) {
	resp, err := a.GetStreams(ctx, []string{broadcastID})
	if err != nil {
		return false, err
	}

	return len(resp.Data) > 0, nil
}

func (a *API) createAppAccessToken(ctx context.Context) (string, error) {
	if a.clientSecret == "" {
		return "", ErrNoClientSecret
	}

	formVal := url.Values{}
	formVal.Set("client_id", a.clientID)
	formVal.Set("client_secret", a.clientSecret)
	formVal.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.authURL, strings.NewReader(formVal.Encode()))
	if err != nil {
		return "", err
	}

	req.Header.Add("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", err
	}

	defer resp.Body.Close()

	type tokenResp struct {
		AccessToken string `json:"access_token"`
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var token tokenResp
	if err := json.Unmarshal(bodyBytes, &token); err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", ErrAppTokenStatusCode
	}

	return token.AccessToken, nil
}

func doAuthenticatedAppRequest[T any](ctx context.Context, api *API, method, url string, body []byte) (T, error) {
	api.m.Lock()
	defer api.m.Unlock()

	if api.clientSecret == "" {
		var d T
		return d, ErrNoClientSecret
	}

	resp, err := doAuthenticatedRequest[T](ctx, api, api.appAccessToken, method, url, body)
	if err != nil {
		apiErr := APIError{}
		// Unauthorized - the access token may be missing or expired
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			// Single flight so parallel requests trigger one refresh and
			// share the new token.
			token, shared, err := api.singleToken.Do(ctx, "app-token", func(ctx context.Context) (string, error) {
				api.logger.Info().Msg("refreshing app access token")
				return api.createAppAccessToken(ctx)
			})
			if err != nil {
				api.logger.Err(err).Bool("shared", shared).Msg("could not create app access token")
				api.singleToken.Forget("app-token")
				return resp, err
			}

			api.appAccessToken = token

			// retry request
			return doAuthenticatedRequest[T](ctx, api, token, method, url, body)
		}

		return resp, err
	}

	return resp, nil
}

func doAuthenticatedRequest[T any](ctx context.Context, api *API, token, method, endpoint string, body []byte) (T, error) {
	var data T

	url := fmt.Sprintf("%s%s", api.baseURL, endpoint)
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return data, err
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	req.Header.Set("Client-Id", api.clientID)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := api.client.Do(req)
	if err != nil {
		return data, err
	}

	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return data, nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return data, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Is rate-limit reached?
		// Then wait until the reset point and try again
		if resp.StatusCode == http.StatusTooManyRequests && resp.Header.Get("Ratelimit-Reset") != "" {
			waitUntil, err := strconv.Atoi(resp.Header.Get("Ratelimit-Reset"))
			if err != nil {
				return data, err
			}

			diff := time.Until(time.Unix(int64(waitUntil), 0)) + time.Second*1
			timer := time.NewTimer(diff)
			defer timer.Stop()

			select {
			case <-timer.C:
				return doAuthenticatedRequest[T](ctx, api, token, method, endpoint, body)
			case <-ctx.Done():
				return data, ctx.Err()
			}
		}

		var errResp APIError
		if err := json.Unmarshal(respBody, &errResp); err != nil {
			return data, err
		}

		return data, errResp
	}

	if err := json.Unmarshal(respBody, &data); err != nil {
		return data, err
	}

	return data, nil
}
