package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Madachii/giffolders/internal/errs"
	"github.com/Madachii/giffolders/internal/frecency"
)

// settingsPath addresses the proto settings document that carries favorites.
const settingsPath = "/users/@me/settings-proto/2"

// Client implements Settings over the REST transport: the blob travels
// base64-encoded inside a small JSON envelope.
type Client struct {
	http  *http.Client
	base  string
	token string
	log   *zap.Logger
}

// NewClient constructs a client for the given API base URL and auth token.
func NewClient(baseURL, token string, log *zap.Logger) *Client {
	return &Client{
		http:  &http.Client{Timeout: 30 * time.Second},
		base:  baseURL,
		token: token,
		log:   log,
	}
}

type settingsEnvelope struct {
	Settings string `json:"settings"`
}

// Fetch reads and decodes the current settings blob.
func (c *Client) Fetch(ctx context.Context) (*frecency.Settings, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+settingsPath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: fetch status %d", errs.ErrRemoteUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrRemoteUnavailable, err)
	}
	var env settingsEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: decode envelope: %v", errs.ErrRemoteUnavailable, err)
	}
	raw, err := base64.StdEncoding.DecodeString(env.Settings)
	if err != nil {
		return nil, fmt.Errorf("%w: decode base64: %v", errs.ErrRemoteUnavailable, err)
	}
	s, err := frecency.Unmarshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: decode proto: %v", errs.ErrRemoteUnavailable, err)
	}
	return s, nil
}

// Update performs a read-modify-write against the live blob. The delay hint
// is honored as a pre-push wait, matching the host's debounce parameter.
func (c *Client) Update(ctx context.Context, mutate func(*frecency.Settings), delay time.Duration) error {
	s, err := c.Fetch(ctx)
	if err != nil {
		return err
	}
	mutate(s)

	if delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	env := settingsEnvelope{Settings: base64.StdEncoding.EncodeToString(s.Marshal())}
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.base+settingsPath, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("%w: update status %d", errs.ErrRemoteUnavailable, resp.StatusCode)
	}
	c.log.Debug("settings updated", zap.Int("bytes", len(body)))
	return nil
}
