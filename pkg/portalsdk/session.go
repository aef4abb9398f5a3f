package portalsdk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// expiryBuffer refreshes the access token this long before it expires.
const expiryBuffer = 30 * time.Second

var ErrNoRefreshToken = errors.New("portalsdk: access token expired and no refresh token available")

// Session is an authenticated mobile session. Methods refresh the access
// token transparently. It is safe for concurrent use.
type Session struct {
	client *Client

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

func newSession(client *Client, tokens *TokenResponse) *Session {
	s := &Session{client: client}
	s.store(tokens)
	return s
}

func (s *Session) store(tokens *TokenResponse) {
	s.accessToken = tokens.AccessToken
	s.refreshToken = tokens.RefreshToken
	s.expiresAt = time.Now().Add(time.Duration(tokens.ExpiresIn)*time.Second - expiryBuffer)
}

// getValidToken returns a valid access token, refreshing if needed.
func (s *Session) getValidToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	if time.Now().Before(s.expiresAt) {
		token := s.accessToken
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another goroutine may have refreshed while we waited.
	if time.Now().Before(s.expiresAt) {
		return s.accessToken, nil
	}

	if s.refreshToken == "" {
		return "", ErrNoRefreshToken
	}

	tokens, err := s.client.Refresh(ctx, s.refreshToken)
	if err != nil {
		// A rejected token can never succeed again.
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			s.refreshToken = ""
		}
		return "", fmt.Errorf("failed to refresh token: %w", err)
	}

	s.store(tokens)
	return s.accessToken, nil
}

// AccessToken returns the current access token without checking expiration.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// RefreshToken returns the current refresh token, for persisting between
// app launches.
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

// Logout revokes this sign-in's token family.
func (s *Session) Logout(ctx context.Context) error {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/mobile/logout", nil, nil)
	if err != nil {
		return err
	}
	if err := checkStatusNoContent(resp); err != nil {
		return err
	}

	s.mu.Lock()
	s.refreshToken = ""
	s.expiresAt = time.Time{}
	s.mu.Unlock()
	return nil
}

// LogoutAll revokes every refresh token of the signed-in user and reports
// how many were revoked.
func (s *Session) LogoutAll(ctx context.Context) (int64, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/mobile/logout-all", nil, nil)
	if err != nil {
		return 0, err
	}

	var out LogoutAllResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.refreshToken = ""
	s.expiresAt = time.Time{}
	s.mu.Unlock()
	return out.Revoked, nil
}

// ListDocuments lists documents visible to the signed-in user.
func (s *Session) ListDocuments(ctx context.Context, q DocumentQuery) ([]DocumentResponse, error) {
	v := url.Values{}
	if q.OwnerID != "" {
		v.Set("owner_id", q.OwnerID)
	}
	if q.FolderID != "" {
		v.Set("folder_id", q.FolderID)
	}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}

	path := "/v1/documents"
	if len(v) > 0 {
		path += "?" + v.Encode()
	}

	resp, err := s.doAuthRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}

	var out DocumentListResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Documents, nil
}

// DownloadDocument fetches the decrypted content of a document. The caller
// must close the returned reader.
func (s *Session) DownloadDocument(ctx context.Context, id string) (io.ReadCloser, string, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/v1/documents/"+url.PathEscape(id)+"/content", nil, nil)
	if err != nil {
		return nil, "", err
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, "", parseErrorResponse(resp, body)
	}

	return resp.Body, resp.Header.Get("Content-Type"), nil
}
