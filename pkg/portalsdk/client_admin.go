package portalsdk

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
)

// Bootstrap creates the first administrator using the server's bootstrap
// token.
func (c *Client) Bootstrap(ctx context.Context, token string, req BootstrapRequest) (*UserResponse, error) {
	body, err := jsonBody(req)
	if err != nil {
		return nil, err
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/bootstrap", body, map[string]string{
		"Content-Type":      "application/json",
		"X-Bootstrap-Token": token,
	})
	if err != nil {
		return nil, err
	}

	var out UserResponse
	if err := decodeJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateUser creates a portal account. Requires an ADMIN session.
func (s *Session) CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error) {
	body, err := jsonBody(req)
	if err != nil {
		return nil, err
	}

	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/users", body, map[string]string{"Content-Type": "application/json"})
	if err != nil {
		return nil, err
	}

	var out UserResponse
	if err := decodeJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadRequest describes a document upload.
type UploadRequest struct {
	Title       string
	Category    string
	FolderID    string
	OwnerID     string
	Filename    string
	ContentType string
	Body        io.Reader
}

// UploadDocument sends a document as multipart form data. The server
// checks the content itself, ContentType is only a hint.
func (s *Session) UploadDocument(ctx context.Context, req UploadRequest) (*DocumentResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := map[string]string{
		"title":     req.Title,
		"category":  req.Category,
		"folder_id": req.FolderID,
		"owner_id":  req.OwnerID,
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("failed to encode upload: %w", err)
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, req.Filename))
	if req.ContentType != "" {
		h.Set("Content-Type", req.ContentType)
	}
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to encode upload: %w", err)
	}
	if _, err := io.Copy(part, req.Body); err != nil {
		return nil, fmt.Errorf("failed to encode upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode upload: %w", err)
	}

	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/documents", &buf, map[string]string{"Content-Type": mw.FormDataContentType()})
	if err != nil {
		return nil, err
	}

	var out DocumentResponse
	if err := decodeJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}
