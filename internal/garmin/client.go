// Package garmin is a narrow client for Garmin Connect: session login with
// a reusable persisted token, and FIT file upload.
package garmin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	defaultSSOURL = "https://sso.garmin.com"
	defaultAPIURL = "https://connectapi.garmin.com"

	tokenFileName = "oauth2_token.json"
)

// sessionState is the persisted session identity. It survives process
// restarts so routine syncs skip credential login entirely.
type sessionState struct {
	Token    *oauth2.Token `json:"token"`
	Username string        `json:"username"`
}

// Client talks to Garmin Connect. The base URLs are overridable for tests.
type Client struct {
	SSOURL string
	APIURL string

	HTTPClient *http.Client

	tokenDir string
	session  *sessionState
}

// NewClient creates a client persisting session state under tokenDir.
func NewClient(tokenDir string) *Client {
	return &Client{
		SSOURL:     defaultSSOURL,
		APIURL:     defaultAPIURL,
		HTTPClient: &http.Client{},
		tokenDir:   tokenDir,
	}
}

func (c *Client) tokenPath() string {
	return filepath.Join(c.tokenDir, tokenFileName)
}

// Resume loads the persisted session and verifies it with an identity
// query. It does not fall back to credential login.
func (c *Client) Resume(ctx context.Context) error {
	data, err := os.ReadFile(c.tokenPath())
	if err != nil {
		return fmt.Errorf("no persisted garmin session: %w", err)
	}

	var state sessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("corrupt garmin session file: %w", err)
	}
	if state.Token == nil || !state.Token.Valid() {
		return fmt.Errorf("persisted garmin session expired")
	}

	c.session = &state
	if _, err := c.ProfileName(ctx); err != nil {
		c.session = nil
		return fmt.Errorf("persisted garmin session rejected: %w", err)
	}
	return nil
}

// Login authenticates with credentials and persists the new session.
func (c *Client) Login(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return fmt.Errorf("garmin credentials are not configured")
	}

	form := url.Values{
		"username":   {email},
		"password":   {password},
		"grant_type": {"password"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.SSOURL+"/api/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("garmin login request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("garmin login returned status %d", resp.StatusCode)
	}

	var tokenResp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		TokenType    string `json:"token_type"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return fmt.Errorf("garmin login response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return fmt.Errorf("garmin login returned no access token")
	}

	c.session = &sessionState{
		Token: &oauth2.Token{
			AccessToken:  tokenResp.AccessToken,
			RefreshToken: tokenResp.RefreshToken,
			TokenType:    tokenResp.TokenType,
			Expiry:       time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second),
		},
		Username: email,
	}
	return c.save()
}

func (c *Client) save() error {
	if err := os.MkdirAll(c.tokenDir, 0o700); err != nil {
		return fmt.Errorf("create garmin token dir: %w", err)
	}
	data, err := json.MarshalIndent(c.session, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(c.tokenPath(), data, 0o600); err != nil {
		return fmt.Errorf("persist garmin session: %w", err)
	}
	return nil
}

// EnsureSession makes the client usable: resume the persisted session, and
// when that fails, log in with the configured credentials. There is no
// interactive fallback here; an unattended expiry fails fast so the next
// trigger can report it.
func (c *Client) EnsureSession(ctx context.Context, email, password string) error {
	if err := c.Resume(ctx); err == nil {
		return nil
	}
	return c.Login(ctx, email, password)
}

func (c *Client) authorize(req *http.Request) error {
	if c.session == nil || c.session.Token == nil {
		return fmt.Errorf("no active garmin session")
	}
	c.session.Token.SetAuthHeader(req)
	return nil
}

// ProfileName runs the identity query used to validate a session.
func (c *Client) ProfileName(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.APIURL+"/userprofile-service/socialProfile", nil)
	if err != nil {
		return "", err
	}
	if err := c.authorize(req); err != nil {
		return "", err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("garmin profile request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("garmin profile returned status %d", resp.StatusCode)
	}

	var profile struct {
		DisplayName string `json:"displayName"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return "", fmt.Errorf("garmin profile response: %w", err)
	}
	return profile.DisplayName, nil
}

// Upload sends a FIT payload to the Garmin upload service.
func (c *Client) Upload(ctx context.Context, payload []byte, filename string) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	if _, err := part.Write(payload); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.APIURL+"/upload-service/upload/.fit", &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if err := c.authorize(req); err != nil {
		return err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("garmin upload request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("garmin upload returned status %d", resp.StatusCode)
	}
	return nil
}
