package portal_test

import (
	"bytes"
	"io"
	"net/http"
	"testing"

	"github.com/aussiebroadwan/ledgerdesk/pkg/portalsdk"
	"github.com/stretchr/testify/require"
)

var pdfBody = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

func TestDocumentRoundTrip(t *testing.T) {
	baseURL, cleanup := setupPortalContainer(t, nil)
	defer cleanup()

	client := portalsdk.NewClient(baseURL)
	admin := bootstrapAdmin(t, client)
	alice, aliceSession := createClient(t, client, admin, "alice@example.com")
	_, bobSession := createClient(t, client, admin, "bob@example.com")

	doc, err := aliceSession.UploadDocument(t.Context(), portalsdk.UploadRequest{
		Title:       "FY24 return",
		Category:    "tax_return",
		Filename:    "return.pdf",
		ContentType: "application/pdf",
		Body:        bytes.NewReader(pdfBody),
	})
	require.NoError(t, err)
	require.Equal(t, alice.ID, doc.OwnerID)
	require.Equal(t, "application/pdf", doc.MIMEType)

	rc, contentType, err := aliceSession.DownloadDocument(t.Context(), doc.ID)
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, pdfBody, got)
	require.Equal(t, "application/pdf", contentType)

	_, _, err = bobSession.DownloadDocument(t.Context(), doc.ID)
	assertAPIError(t, err, http.StatusForbidden, portalsdk.ErrorCodeForbidden)

	docs, err := bobSession.ListDocuments(t.Context(), portalsdk.DocumentQuery{})
	require.NoError(t, err)
	require.Empty(t, docs)

	docs, err = admin.ListDocuments(t.Context(), portalsdk.DocumentQuery{OwnerID: alice.ID})
	require.NoError(t, err)
	require.Len(t, docs, 1)
}

func TestUploadRejectsExecutable(t *testing.T) {
	baseURL, cleanup := setupPortalContainer(t, nil)
	defer cleanup()

	client := portalsdk.NewClient(baseURL)
	admin := bootstrapAdmin(t, client)
	_, session := createClient(t, client, admin, "carol@example.com")

	exe := append([]byte("MZ\x90\x00\x03\x00\x00\x00"), bytes.Repeat([]byte{0}, 120)...)
	_, err := session.UploadDocument(t.Context(), portalsdk.UploadRequest{
		Title:       "not a pdf",
		Filename:    "invoice.pdf",
		ContentType: "application/pdf",
		Body:        bytes.NewReader(exe),
	})
	assertAPIError(t, err, http.StatusUnsupportedMediaType, portalsdk.ErrorCodeUnsupportedMediaType)
}
