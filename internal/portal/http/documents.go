package http

import (
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/aussiebroadwan/ledgerdesk/internal/portal/domain"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/service"
	"github.com/aussiebroadwan/ledgerdesk/pkg/httpx"
	"github.com/aussiebroadwan/ledgerdesk/pkg/portalsdk"
)

// multipartMemory is held in memory before ParseMultipartForm spills to disk.
const multipartMemory = 8 << 20

type DocumentsHandler struct {
	DocumentService *service.DocumentService
}

// HandleUpload
//
//	@Summary		Upload a document
//	@Description	Encrypts and stores a file. Clients upload to themselves; staff and admins may set owner_id.
//	@Tags			Documents
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file		formData	file	true	"Document"
//	@Param			title		formData	string	true	"Title"
//	@Param			category	formData	string	false	"Category"
//	@Param			folder_id	formData	string	false	"Folder of the owner"
//	@Param			owner_id	formData	string	false	"Owner, defaults to the caller"
//	@Success		201			{object}	portalsdk.DocumentResponse
//	@Failure		400			{object}	portalsdk.ErrorResponse
//	@Failure		403			{object}	portalsdk.ErrorResponse
//	@Failure		413			{object}	portalsdk.ErrorResponse
//	@Failure		415			{object}	portalsdk.ErrorResponse
//	@Failure		500			{object}	portalsdk.ErrorResponse	"server_misconfigured when no document key is set"
//	@Security		BearerAuth
//	@Router			/v1/documents [post].
func (h *DocumentsHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	limit := h.DocumentService.MaxUploadBytes
	if limit <= 0 {
		limit = service.DefaultMaxUploadBytes
	}
	// Leave room for the multipart framing and text fields.
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, r, service.ErrUploadTooLarge)
			return
		}
		badRequest(w, "request must be multipart/form-data with a file field")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		badRequest(w, "file is required")
		return
	}
	defer file.Close()

	doc, err := h.DocumentService.Upload(r.Context(), actor(r), service.UploadInput{
		OwnerID:      r.FormValue("owner_id"),
		Title:        r.FormValue("title"),
		Category:     r.FormValue("category"),
		FolderID:     r.FormValue("folder_id"),
		DeclaredMIME: header.Header.Get("Content-Type"),
		Body:         file,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toDocument(doc))
}

// HandleList
//
//	@Summary		List documents
//	@Description	Clients only ever see their own documents; owner_id is honoured for staff and admins.
//	@Tags			Documents
//	@Produce		json
//	@Param			owner_id	query		string	false	"Owner"
//	@Param			folder_id	query		string	false	"Folder"
//	@Param			category	query		string	false	"Category"
//	@Param			limit		query		int		false	"Page size"
//	@Param			offset		query		int		false	"Page offset"
//	@Success		200			{object}	portalsdk.DocumentListResponse
//	@Security		BearerAuth
//	@Router			/v1/documents [get].
func (h *DocumentsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, ok1 := queryInt(r, "limit")
	offset, ok2 := queryInt(r, "offset")
	if !ok1 || !ok2 {
		badRequest(w, "limit and offset must be non-negative integers")
		return
	}

	q := r.URL.Query()
	docs, err := h.DocumentService.List(r.Context(), actor(r), domain.DocumentFilter{
		OwnerID:  q.Get("owner_id"),
		FolderID: q.Get("folder_id"),
		Category: q.Get("category"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := portalsdk.DocumentListResponse{Documents: make([]portalsdk.DocumentResponse, len(docs))}
	for i, d := range docs {
		resp.Documents[i] = toDocument(d)
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleGet
//
//	@Summary		Document metadata
//	@Tags			Documents
//	@Produce		json
//	@Param			id	path		string	true	"Document ID"
//	@Success		200	{object}	portalsdk.DocumentResponse
//	@Failure		403	{object}	portalsdk.ErrorResponse
//	@Failure		404	{object}	portalsdk.ErrorResponse
//	@Security		BearerAuth
//	@Router			/v1/documents/{id} [get].
func (h *DocumentsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	doc, err := h.DocumentService.Get(r.Context(), actor(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toDocument(doc))
}

// HandleContent
//
//	@Summary		Download a document
//	@Description	Returns the decrypted file. Access is checked before storage is touched.
//	@Tags			Documents
//	@Produce		application/octet-stream
//	@Param			id	path	string	true	"Document ID"
//	@Success		200	{file}	binary
//	@Failure		400	{object}	portalsdk.ErrorResponse	"invalid_path"
//	@Failure		403	{object}	portalsdk.ErrorResponse
//	@Failure		404	{object}	portalsdk.ErrorResponse
//	@Failure		422	{object}	portalsdk.ErrorResponse	"document_integrity_failure"
//	@Failure		500	{object}	portalsdk.ErrorResponse	"server_misconfigured"
//	@Security		BearerAuth
//	@Router			/v1/documents/{id}/content [get].
func (h *DocumentsHandler) HandleContent(w http.ResponseWriter, r *http.Request) {
	doc, plain, err := h.DocumentService.Download(r.Context(), actor(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeFile(w, doc.Title, doc.MIMEType, plain)
}

// HandlePatch
//
//	@Summary		Edit document metadata
//	@Tags			Documents
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string							true	"Document ID"
//	@Param			request	body		portalsdk.DocumentPatchRequest	true	"Fields to change"
//	@Success		200		{object}	portalsdk.DocumentResponse
//	@Failure		403		{object}	portalsdk.ErrorResponse
//	@Failure		404		{object}	portalsdk.ErrorResponse
//	@Security		BearerAuth
//	@Router			/v1/documents/{id} [patch].
func (h *DocumentsHandler) HandlePatch(w http.ResponseWriter, r *http.Request) {
	var req portalsdk.DocumentPatchRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	doc, err := h.DocumentService.UpdateMetadata(r.Context(), actor(r), r.PathValue("id"), domain.DocumentPatch{
		Title:    req.Title,
		Category: req.Category,
		FolderID: req.FolderID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toDocument(doc))
}

// HandleDelete
//
//	@Summary		Delete a document
//	@Description	Removes the record and the stored blob.
//	@Tags			Documents
//	@Param			id	path	string	true	"Document ID"
//	@Success		204
//	@Failure		403	{object}	portalsdk.ErrorResponse
//	@Failure		404	{object}	portalsdk.ErrorResponse
//	@Security		BearerAuth
//	@Router			/v1/documents/{id} [delete].
func (h *DocumentsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.DocumentService.Delete(r.Context(), actor(r), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleCreateFolder
//
//	@Summary		Create a folder
//	@Tags			Folders
//	@Accept			json
//	@Produce		json
//	@Param			request	body		portalsdk.FolderRequest	true	"Folder"
//	@Success		201		{object}	portalsdk.FolderResponse
//	@Failure		403		{object}	portalsdk.ErrorResponse
//	@Failure		409		{object}	portalsdk.ErrorResponse
//	@Security		BearerAuth
//	@Router			/v1/folders [post].
func (h *DocumentsHandler) HandleCreateFolder(w http.ResponseWriter, r *http.Request) {
	var req portalsdk.FolderRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	a := actor(r)
	owner := req.OwnerID
	if owner == "" {
		owner = a.UserID
	}
	f, err := h.DocumentService.CreateFolder(r.Context(), a, owner, req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toFolder(f))
}

// HandleListFolders
//
//	@Summary		List folders
//	@Tags			Folders
//	@Produce		json
//	@Param			owner_id	query		string	false	"Owner, defaults to the caller"
//	@Success		200			{object}	portalsdk.FolderListResponse
//	@Failure		403			{object}	portalsdk.ErrorResponse
//	@Security		BearerAuth
//	@Router			/v1/folders [get].
func (h *DocumentsHandler) HandleListFolders(w http.ResponseWriter, r *http.Request) {
	a := actor(r)
	owner := r.URL.Query().Get("owner_id")
	if owner == "" {
		owner = a.UserID
	}

	folders, err := h.DocumentService.ListFolders(r.Context(), a, owner)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := portalsdk.FolderListResponse{Folders: make([]portalsdk.FolderResponse, len(folders))}
	for i, f := range folders {
		resp.Folders[i] = toFolder(f)
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleDeleteFolder
//
//	@Summary		Delete an empty folder
//	@Tags			Folders
//	@Param			id	path	string	true	"Folder ID"
//	@Success		204
//	@Failure		403	{object}	portalsdk.ErrorResponse
//	@Failure		404	{object}	portalsdk.ErrorResponse
//	@Failure		409	{object}	portalsdk.ErrorResponse	"folder_not_empty"
//	@Security		BearerAuth
//	@Router			/v1/folders/{id} [delete].
func (h *DocumentsHandler) HandleDeleteFolder(w http.ResponseWriter, r *http.Request) {
	if err := h.DocumentService.DeleteFolder(r.Context(), actor(r), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeFile sends body as an attachment. The stored MIME type is trusted
// because uploads are classified by content.
func writeFile(w http.ResponseWriter, name, contentType string, body []byte) {
	httpx.NoCache(w)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if cd := mime.FormatMediaType("attachment", map[string]string{"filename": name}); cd != "" {
		w.Header().Set("Content-Disposition", cd)
	} else {
		w.Header().Set("Content-Disposition", "attachment")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
