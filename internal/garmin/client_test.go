package garmin

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// garminStub serves the SSO token endpoint, the profile endpoint, and the
// upload endpoint from one server so a single base URL covers them all.
type garminStub struct {
	*httptest.Server

	loginStatus  int
	uploadStatus int

	logins        int
	profileCalls  int
	uploadedBytes []byte
	uploadedName  string
}

func newGarminStub(t *testing.T) *garminStub {
	t.Helper()
	stub := &garminStub{loginStatus: http.StatusOK, uploadStatus: http.StatusOK}

	stub.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/oauth/token":
			stub.logins++
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "password", r.FormValue("grant_type"))
			if stub.loginStatus != http.StatusOK {
				w.WriteHeader(stub.loginStatus)
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token":  "at-123",
				"refresh_token": "rt-456",
				"token_type":    "Bearer",
				"expires_in":    3600,
			})
		case "/userprofile-service/socialProfile":
			stub.profileCalls++
			assert.Equal(t, "Bearer at-123", r.Header.Get("Authorization"))
			json.NewEncoder(w).Encode(map[string]string{"displayName": "runner"})
		case "/upload-service/upload/.fit":
			if stub.uploadStatus != http.StatusOK {
				w.WriteHeader(stub.uploadStatus)
				return
			}
			file, header, err := r.FormFile("file")
			require.NoError(t, err)
			defer file.Close()
			stub.uploadedName = header.Filename
			stub.uploadedBytes, err = io.ReadAll(file)
			require.NoError(t, err)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(stub.Server.Close)
	return stub
}

func newStubClient(t *testing.T, stub *garminStub) *Client {
	t.Helper()
	c := NewClient(t.TempDir())
	c.SSOURL = stub.URL
	c.APIURL = stub.URL
	return c
}

func TestClient_LoginPersistsSession(t *testing.T) {
	stub := newGarminStub(t)
	c := newStubClient(t, stub)

	require.NoError(t, c.Login(context.Background(), "user@example.com", "pw"))

	data, err := os.ReadFile(filepath.Join(c.tokenDir, tokenFileName))
	require.NoError(t, err)

	var state sessionState
	require.NoError(t, json.Unmarshal(data, &state))
	require.NotNil(t, state.Token)
	assert.Equal(t, "at-123", state.Token.AccessToken)
	assert.Equal(t, "user@example.com", state.Username)
	assert.True(t, state.Token.Valid())
}

func TestClient_LoginFailures(t *testing.T) {
	t.Run("missing credentials", func(t *testing.T) {
		stub := newGarminStub(t)
		c := newStubClient(t, stub)

		assert.Error(t, c.Login(context.Background(), "", ""))
		assert.Zero(t, stub.logins)
	})

	t.Run("rejected credentials", func(t *testing.T) {
		stub := newGarminStub(t)
		stub.loginStatus = http.StatusUnauthorized
		c := newStubClient(t, stub)

		err := c.Login(context.Background(), "user@example.com", "wrong")
		assert.ErrorContains(t, err, "401")
		assert.NoFileExists(t, filepath.Join(c.tokenDir, tokenFileName))
	})
}

func TestClient_Resume(t *testing.T) {
	t.Run("resumes a persisted session without logging in", func(t *testing.T) {
		stub := newGarminStub(t)
		first := newStubClient(t, stub)
		require.NoError(t, first.Login(context.Background(), "user@example.com", "pw"))

		second := NewClient(first.tokenDir)
		second.SSOURL = stub.URL
		second.APIURL = stub.URL

		require.NoError(t, second.Resume(context.Background()))
		assert.Equal(t, 1, stub.logins, "resume must not hit the login endpoint")
		assert.Equal(t, 1, stub.profileCalls, "resume validates with an identity query")
	})

	t.Run("fails without a persisted session", func(t *testing.T) {
		stub := newGarminStub(t)
		c := newStubClient(t, stub)

		assert.Error(t, c.Resume(context.Background()))
	})

	t.Run("rejects an expired session", func(t *testing.T) {
		stub := newGarminStub(t)
		c := newStubClient(t, stub)
		c.session = &sessionState{
			Token: &oauth2.Token{
				AccessToken: "at-123",
				Expiry:      time.Now().Add(-time.Hour),
			},
			Username: "user@example.com",
		}
		require.NoError(t, c.save())

		err := c.Resume(context.Background())
		assert.ErrorContains(t, err, "expired")
	})

	t.Run("rejects a corrupt session file", func(t *testing.T) {
		stub := newGarminStub(t)
		c := newStubClient(t, stub)
		require.NoError(t, os.MkdirAll(c.tokenDir, 0o700))
		require.NoError(t, os.WriteFile(filepath.Join(c.tokenDir, tokenFileName), []byte("{broken"), 0o600))

		err := c.Resume(context.Background())
		assert.ErrorContains(t, err, "corrupt")
	})
}

func TestClient_EnsureSession(t *testing.T) {
	t.Run("prefers the persisted session", func(t *testing.T) {
		stub := newGarminStub(t)
		c := newStubClient(t, stub)
		require.NoError(t, c.Login(context.Background(), "user@example.com", "pw"))

		fresh := NewClient(c.tokenDir)
		fresh.SSOURL = stub.URL
		fresh.APIURL = stub.URL

		require.NoError(t, fresh.EnsureSession(context.Background(), "user@example.com", "pw"))
		assert.Equal(t, 1, stub.logins)
	})

	t.Run("falls back to credential login", func(t *testing.T) {
		stub := newGarminStub(t)
		c := newStubClient(t, stub)

		require.NoError(t, c.EnsureSession(context.Background(), "user@example.com", "pw"))
		assert.Equal(t, 1, stub.logins)
	})

	t.Run("fails fast when both paths fail", func(t *testing.T) {
		stub := newGarminStub(t)
		stub.loginStatus = http.StatusUnauthorized
		c := newStubClient(t, stub)

		assert.Error(t, c.EnsureSession(context.Background(), "user@example.com", "pw"))
	})
}

func TestClient_Upload(t *testing.T) {
	t.Run("sends the payload as a multipart file", func(t *testing.T) {
		stub := newGarminStub(t)
		c := newStubClient(t, stub)
		require.NoError(t, c.Login(context.Background(), "user@example.com", "pw"))

		payload := []byte{0x0E, 0x10, 0x6C, 0x00}
		require.NoError(t, c.Upload(context.Background(), payload, "wyze_scale.fit"))

		assert.Equal(t, "wyze_scale.fit", stub.uploadedName)
		assert.Equal(t, payload, stub.uploadedBytes)
	})

	t.Run("fails without an active session", func(t *testing.T) {
		stub := newGarminStub(t)
		c := newStubClient(t, stub)

		err := c.Upload(context.Background(), []byte{0x01}, "wyze_scale.fit")
		assert.ErrorContains(t, err, "no active garmin session")
	})

	t.Run("fails on a non-2xx response", func(t *testing.T) {
		stub := newGarminStub(t)
		stub.uploadStatus = http.StatusConflict
		c := newStubClient(t, stub)
		require.NoError(t, c.Login(context.Background(), "user@example.com", "pw"))

		err := c.Upload(context.Background(), []byte{0x01}, "wyze_scale.fit")
		assert.ErrorContains(t, err, "409")
	})
}
