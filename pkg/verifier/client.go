// Package verifier calls the companion web application to validate session
// credentials and to answer the test probes.
package verifier

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/codeready-toolchain/notifyd/pkg/push"
)

// Client provides HTTP access to the companion app's push endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a verifier client for the companion app at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// VerifyCredentials asks the companion app to resolve a username/password
// pair into a user id. The forwarded-for chain is passed along so the app
// sees the real client address for brute-force protection. Any non-200
// response means the credentials are invalid.
func (c *Client) VerifyCredentials(ctx context.Context, username, password string, forwardedFor []string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/push/uid", nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(username, password)
	if len(forwardedFor) > 0 {
		req.Header.Set("X-Forwarded-For", strings.Join(forwardedFor, ", "))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach credential verifier: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", push.ErrInvalidCredentials
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read verifier response: %w", err)
	}
	return string(body), nil
}

// TestCookie fetches the companion app's current test cookie.
func (c *Client) TestCookie(ctx context.Context) (uint32, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/push/cookie", nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch test cookie: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("companion app returned HTTP %d for test cookie", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read test cookie response: %w", err)
	}
	cookie, err := strconv.ParseUint(strings.TrimSpace(string(body)), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parse test cookie %q: %w", string(body), err)
	}
	return uint32(cookie), nil
}

// SetRemote sends the given address in X-Forwarded-For and returns the remote
// the companion app attributed to the request, verifying that its reverse
// proxy headers are configured correctly.
func (c *Client) SetRemote(ctx context.Context, ip string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/push/remote", nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Forwarded-For", ip)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch remote: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("companion app returned HTTP %d for remote test", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read remote response: %w", err)
	}
	return string(body), nil
}
