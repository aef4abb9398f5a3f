package portalsdk

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBootstrap(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/bootstrap", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Bootstrap-Token") != "boot" {
			NewAPIError(http.StatusUnauthorized, "unauthorized_bootstrap", "").WriteError(w)
			return
		}
		var req BootstrapRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(UserResponse{ID: "u1", Email: req.Email, Role: "ADMIN", Active: true})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL)

	u, err := c.Bootstrap(t.Context(), "boot", BootstrapRequest{Email: "admin@firm.example", Password: "pw"})
	require.NoError(t, err)
	require.Equal(t, "ADMIN", u.Role)

	_, err = c.Bootstrap(t.Context(), "wrong", BootstrapRequest{Email: "admin@firm.example"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	require.Equal(t, "unauthorized_bootstrap", apiErr.Code)
}

func TestUploadDocument(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/documents", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer access", r.Header.Get("Authorization"))
		file, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)

		require.Equal(t, "return.pdf", hdr.Filename)
		require.Equal(t, "application/pdf", hdr.Header.Get("Content-Type"))
		require.Empty(t, r.FormValue("folder_id"))

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(DocumentResponse{
			ID:        "doc-1",
			Title:     r.FormValue("title"),
			Category:  r.FormValue("category"),
			SizeBytes: int64(len(data)),
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	s := NewClient(srv.URL).NewSessionFromTokens("access", "refresh", 900)

	doc, err := s.UploadDocument(t.Context(), UploadRequest{
		Title:       "FY24",
		Category:    "tax_return",
		Filename:    "return.pdf",
		ContentType: "application/pdf",
		Body:        strings.NewReader("%PDF-1.7"),
	})
	require.NoError(t, err)
	require.Equal(t, "FY24", doc.Title)
	require.Equal(t, "tax_return", doc.Category)
	require.EqualValues(t, 8, doc.SizeBytes)
}
