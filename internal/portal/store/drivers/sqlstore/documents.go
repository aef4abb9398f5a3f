package sqlstore

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/aussiebroadwan/ledgerdesk/internal/portal/domain"
)

type documentRow struct {
	ID           string         `db:"id"`
	Title        string         `db:"title"`
	StoragePath  string         `db:"storage_path"`
	MIMEType     string         `db:"mime_type"`
	OwnerID      string         `db:"owner_id"`
	UploaderRole string         `db:"uploader_role"`
	UploadedBy   string         `db:"uploaded_by"`
	SizeBytes    int64          `db:"size_bytes"`
	Category     string         `db:"category"`
	FolderID     sql.NullString `db:"folder_id"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func mapDocument(row documentRow) domain.Document {
	return domain.Document{
		ID:           row.ID,
		Title:        row.Title,
		StoragePath:  row.StoragePath,
		MIMEType:     row.MIMEType,
		OwnerID:      row.OwnerID,
		UploaderRole: domain.Role(row.UploaderRole),
		UploadedBy:   row.UploadedBy,
		SizeBytes:    row.SizeBytes,
		Category:     row.Category,
		FolderID:     mapNullStringPtr(row.FolderID),
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
}

const documentColumns = `id, title, storage_path, mime_type, owner_id, uploader_role, uploaded_by,
	size_bytes, category, folder_id, created_at, updated_at`

type documentsRepo struct {
	conn
}

func (r *documentsRepo) CreateDocument(ctx context.Context, d domain.Document) error {
	_, err := r.exec(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Title, d.StoragePath, d.MIMEType, d.OwnerID, string(d.UploaderRole), d.UploadedBy,
		d.SizeBytes, d.Category, mapOptionalString(d.FolderID), utc(d.CreatedAt), utc(d.UpdatedAt),
	)
	return err
}

func (r *documentsRepo) GetDocument(ctx context.Context, id string) (domain.Document, error) {
	var row documentRow
	if err := r.get(ctx, &row, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id); err != nil {
		return domain.Document{}, err
	}
	return mapDocument(row), nil
}

func (r *documentsRepo) ListDocuments(ctx context.Context, f domain.DocumentFilter) ([]domain.Document, error) {
	var (
		where []string
		args  []any
	)
	if f.OwnerID != "" {
		where = append(where, "owner_id = ?")
		args = append(args, f.OwnerID)
	}
	if f.FolderID != "" {
		where = append(where, "folder_id = ?")
		args = append(args, f.FolderID)
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}

	q := `SELECT ` + documentColumns + ` FROM documents`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	limit, offset := pageArgs(f.Limit, f.Offset)
	q += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	var rows []documentRow
	if err := r.list(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	docs := make([]domain.Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, mapDocument(row))
	}
	return docs, nil
}

func (r *documentsRepo) UpdateDocumentMetadata(ctx context.Context, d domain.Document) error {
	return r.execOne(ctx, `
		UPDATE documents SET title = ?, category = ?, folder_id = ?, updated_at = ?
		WHERE id = ?`,
		d.Title, d.Category, mapOptionalString(d.FolderID), utc(d.UpdatedAt), d.ID,
	)
}

func (r *documentsRepo) DeleteDocument(ctx context.Context, id string) error {
	return r.execOne(ctx, `DELETE FROM documents WHERE id = ?`, id)
}

func (r *documentsRepo) CountFolderDocuments(ctx context.Context, folderID string) (int, error) {
	var n int
	err := r.get(ctx, &n, `SELECT COUNT(*) FROM documents WHERE folder_id = ?`, folderID)
	return n, err
}

type folderRow struct {
	ID        string    `db:"id"`
	OwnerID   string    `db:"owner_id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
}

func mapFolder(row folderRow) domain.Folder {
	return domain.Folder{
		ID:        row.ID,
		OwnerID:   row.OwnerID,
		Name:      row.Name,
		CreatedAt: row.CreatedAt.UTC(),
	}
}

type foldersRepo struct {
	conn
}

func (r *foldersRepo) CreateFolder(ctx context.Context, f domain.Folder) error {
	_, err := r.exec(ctx, `INSERT INTO folders (id, owner_id, name, created_at) VALUES (?, ?, ?, ?)`,
		f.ID, f.OwnerID, f.Name, utc(f.CreatedAt))
	return err
}

func (r *foldersRepo) GetFolder(ctx context.Context, id string) (domain.Folder, error) {
	var row folderRow
	if err := r.get(ctx, &row, `SELECT id, owner_id, name, created_at FROM folders WHERE id = ?`, id); err != nil {
		return domain.Folder{}, err
	}
	return mapFolder(row), nil
}

func (r *foldersRepo) ListFolders(ctx context.Context, ownerID string) ([]domain.Folder, error) {
	var rows []folderRow
	err := r.list(ctx, &rows, `SELECT id, owner_id, name, created_at FROM folders WHERE owner_id = ? ORDER BY name`, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Folder, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapFolder(row))
	}
	return out, nil
}

func (r *foldersRepo) DeleteFolder(ctx context.Context, id string) error {
	return r.execOne(ctx, `DELETE FROM folders WHERE id = ?`, id)
}
