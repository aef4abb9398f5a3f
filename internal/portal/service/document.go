package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"slices"
	"time"

	"github.com/aussiebroadwan/ledgerdesk/internal/portal/blob"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/domain"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/metrics"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/policy"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/store"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/tasks"
	"github.com/aussiebroadwan/ledgerdesk/pkg/cryptox"
	"github.com/aussiebroadwan/ledgerdesk/pkg/idx"
	"github.com/aussiebroadwan/ledgerdesk/pkg/slogx"
	"github.com/gabriel-vasile/mimetype"
)

const DefaultMaxUploadBytes = 25 << 20

// AllowedMIMETypes are the document types the portal accepts. Detection
// walks the sniffed type's parents, so an .xlsx matches through zip only if
// zip itself is listed.
var AllowedMIMETypes = []string{
	"application/pdf",
	"image/png",
	"image/jpeg",
	"application/msword",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"text/csv",
	"text/plain",
	"application/zip",
}

type DocumentService struct {
	Store          store.Store
	Blobs          blob.Store
	Sealer         *cryptox.Sealer
	Tasks          Enqueuer
	Inbox          Inbox
	MaxUploadBytes int64
	Now            func() time.Time
}

type UploadInput struct {
	OwnerID      string
	Title        string
	Category     string
	FolderID     string
	DeclaredMIME string
	Body         io.Reader
}

func (s *DocumentService) maxBytes() int64 {
	if s.MaxUploadBytes <= 0 {
		return DefaultMaxUploadBytes
	}
	return s.MaxUploadBytes
}

// Upload validates, encrypts and stores a document. Nothing is written
// when encryption fails, and the blob is removed again if the row cannot
// be inserted.
func (s *DocumentService) Upload(ctx context.Context, actor policy.Actor, in UploadInput) (domain.Document, error) {
	l := slogx.FromContext(ctx)

	// 1. Authorize
	if in.OwnerID == "" {
		in.OwnerID = actor.UserID
	}
	if !policy.CanUploadFor(actor, in.OwnerID) {
		return domain.Document{}, ErrForbidden
	}

	// 2. Validate metadata
	title, err := requireText("title", in.Title, 200)
	if err != nil {
		return domain.Document{}, err
	}
	category, err := validCategory(in.Category)
	if err != nil {
		return domain.Document{}, err
	}
	owner, err := s.Store.Users().GetUserByID(ctx, in.OwnerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Document{}, ErrUserNotFound
		}
		return domain.Document{}, err
	}
	folderID, err := s.ownedFolder(ctx, in.FolderID, owner.ID)
	if err != nil {
		return domain.Document{}, err
	}

	// 3. Read and classify the body
	if in.Body == nil {
		return domain.Document{}, invalid("file is required")
	}
	body, err := io.ReadAll(io.LimitReader(in.Body, s.maxBytes()+1))
	if err != nil {
		return domain.Document{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(body)) > s.maxBytes() {
		return domain.Document{}, ErrUploadTooLarge
	}
	if len(body) == 0 {
		return domain.Document{}, invalid("file is empty")
	}
	mimeType, err := classify(body, in.DeclaredMIME)
	if err != nil {
		l.Info("upload rejected", slog.String("declared", in.DeclaredMIME), slog.Any("error", err))
		return domain.Document{}, err
	}

	// 4. Encrypt, then store
	sealed, err := s.Sealer.Seal(body)
	if err != nil {
		return domain.Document{}, err
	}

	now := clock(s.Now).now()
	doc := domain.Document{
		ID:           idx.NewString(),
		Title:        title,
		StoragePath:  blob.NewKey(owner.ID),
		MIMEType:     mimeType,
		OwnerID:      owner.ID,
		UploaderRole: actor.Role,
		UploadedBy:   actor.UserID,
		SizeBytes:    int64(len(body)),
		Category:     category,
		FolderID:     folderID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.Blobs.Put(ctx, doc.StoragePath, sealed); err != nil {
		return domain.Document{}, fmt.Errorf("store blob: %w", err)
	}
	if err := s.Store.Documents().CreateDocument(ctx, doc); err != nil {
		if derr := s.Blobs.Delete(ctx, doc.StoragePath); derr != nil && !errors.Is(derr, blob.ErrNotFound) {
			l.Error("failed to remove orphaned blob", slog.String("key", doc.StoragePath), slog.Any("error", derr))
		}
		return domain.Document{}, err
	}

	metrics.DocumentUploadsTotal.WithLabelValues(actor.Role.String()).Inc()
	l.Info("document uploaded",
		slog.String("document_id", doc.ID),
		slog.String("owner_id", doc.OwnerID),
		slog.String("mime", doc.MIMEType),
		slog.Int64("size", doc.SizeBytes),
	)

	s.notifyUpload(ctx, actor, owner, doc)
	return doc, nil
}

func (s *DocumentService) notifyUpload(ctx context.Context, actor policy.Actor, owner domain.User, doc domain.Document) {
	if actor.UserID == owner.ID {
		notifyFirm(ctx, s.Tasks, s.Inbox, tasks.Email{
			Subject: "New client document: " + doc.Title,
			Body: fmt.Sprintf("%s uploaded %q (%s, %d bytes).\nDocument ID: %s\n",
				owner.Email, doc.Title, doc.Category, doc.SizeBytes, doc.ID),
		})
		return
	}
	sendEmail(ctx, s.Tasks, tasks.Email{
		To:      []string{owner.Email},
		Subject: "A new document is available in your portal",
		Body:    fmt.Sprintf("Your accountant has shared %q with you. Sign in to the client portal to view it.\n", doc.Title),
	})
}

// classify sniffs body and decides which MIME type to record. The sniffed
// type must be allowed. A declared type is kept only when it is allowed and
// consistent with what was sniffed.
func classify(body []byte, declared string) (string, error) {
	detected := mimetype.Detect(body)
	if !allowedMIME(detected) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, detected.String())
	}

	if declared != "" {
		if mt, _, err := mime.ParseMediaType(declared); err == nil && slices.Contains(AllowedMIMETypes, mt) {
			for m := detected; m != nil; m = m.Parent() {
				if m.Is(mt) {
					return mt, nil
				}
			}
		}
	}
	mt, _, err := mime.ParseMediaType(detected.String())
	if err != nil {
		return detected.String(), nil
	}
	return mt, nil
}

func allowedMIME(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		for _, a := range AllowedMIMETypes {
			if m.Is(a) {
				return true
			}
		}
	}
	return false
}

func validCategory(c string) (string, error) {
	if c == "" {
		return "other", nil
	}
	if !slices.Contains(domain.DocumentCategories, c) {
		return "", invalid("unknown category %q", c)
	}
	return c, nil
}

// ownedFolder checks that folderID (if set) belongs to ownerID.
func (s *DocumentService) ownedFolder(ctx context.Context, folderID, ownerID string) (*string, error) {
	if folderID == "" {
		return nil, nil
	}
	f, err := s.Store.Folders().GetFolder(ctx, folderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrFolderNotFound
		}
		return nil, err
	}
	if f.OwnerID != ownerID {
		return nil, ErrFolderNotFound
	}
	return &f.ID, nil
}

// Download returns a document and its decrypted contents. Access is
// decided before the storage key is ever resolved.
func (s *DocumentService) Download(ctx context.Context, actor policy.Actor, id string) (domain.Document, []byte, error) {
	l := slogx.FromContext(ctx)

	doc, err := s.get(ctx, id)
	if err != nil {
		return domain.Document{}, nil, err
	}
	if !policy.CanAccessDocument(actor, doc) {
		l.Info("document access denied", slog.String("document_id", id), slog.String("user_id", actor.UserID))
		return domain.Document{}, nil, ErrForbidden
	}

	sealed, err := s.Blobs.Get(ctx, doc.StoragePath)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			l.Error("document blob missing", slog.String("document_id", id))
			return domain.Document{}, nil, ErrDocumentNotFound
		}
		return domain.Document{}, nil, err
	}

	plain, err := s.Sealer.Open(sealed)
	if err != nil {
		if errors.Is(err, cryptox.ErrIntegrity) {
			metrics.IntegrityFailuresTotal.Inc()
			l.Error("document integrity check failed", slog.String("document_id", id), slog.Any("error", err))
			s.integrityAlert(ctx, tasks.IntegrityEvent{
				DocumentID: doc.ID,
				OwnerID:    doc.OwnerID,
				ActorID:    actor.UserID,
				At:         clock(s.Now).now().Format(time.RFC3339),
			})
		}
		return domain.Document{}, nil, err
	}

	metrics.DocumentDownloadsTotal.Inc()
	l.Info("document downloaded", slog.String("document_id", id), slog.String("user_id", actor.UserID))
	return doc, plain, nil
}

func (s *DocumentService) integrityAlert(ctx context.Context, ev tasks.IntegrityEvent) {
	if s.Tasks == nil {
		return
	}
	if err := s.Tasks.Enqueue(ctx, tasks.KindIntegrityFailure, ev); err != nil {
		slogx.FromContext(ctx).Warn("failed to enqueue integrity alert", slog.Any("error", err))
	}
}

func (s *DocumentService) get(ctx context.Context, id string) (domain.Document, error) {
	doc, err := s.Store.Documents().GetDocument(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Document{}, ErrDocumentNotFound
		}
		return domain.Document{}, err
	}
	return doc, nil
}

// Get returns document metadata.
func (s *DocumentService) Get(ctx context.Context, actor policy.Actor, id string) (domain.Document, error) {
	doc, err := s.get(ctx, id)
	if err != nil {
		return domain.Document{}, err
	}
	if !policy.CanAccessDocument(actor, doc) {
		return domain.Document{}, ErrForbidden
	}
	return doc, nil
}

// List scopes clients to their own documents whatever the filter says.
func (s *DocumentService) List(ctx context.Context, actor policy.Actor, f domain.DocumentFilter) ([]domain.Document, error) {
	if actor.UserID == "" {
		return nil, ErrForbidden
	}
	if !actor.Can(policy.DocumentsReadAny) {
		f.OwnerID = actor.UserID
	}
	if f.Category != "" {
		if _, err := validCategory(f.Category); err != nil {
			return nil, err
		}
	}
	return s.Store.Documents().ListDocuments(ctx, f)
}

func (s *DocumentService) UpdateMetadata(ctx context.Context, actor policy.Actor, id string, p domain.DocumentPatch) (domain.Document, error) {
	if !actor.Can(policy.DocumentsWriteAny) {
		return domain.Document{}, ErrForbidden
	}
	doc, err := s.get(ctx, id)
	if err != nil {
		return domain.Document{}, err
	}

	if p.Title != nil {
		if doc.Title, err = requireText("title", *p.Title, 200); err != nil {
			return domain.Document{}, err
		}
	}
	if p.Category != nil {
		if doc.Category, err = validCategory(*p.Category); err != nil {
			return domain.Document{}, err
		}
	}
	if p.FolderID != nil {
		if doc.FolderID, err = s.ownedFolder(ctx, *p.FolderID, doc.OwnerID); err != nil {
			return domain.Document{}, err
		}
	}
	doc.UpdatedAt = clock(s.Now).now()

	if err := s.Store.Documents().UpdateDocumentMetadata(ctx, doc); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Document{}, ErrDocumentNotFound
		}
		return domain.Document{}, err
	}
	slogx.FromContext(ctx).Info("document metadata updated", slog.String("document_id", id), slog.String("by", actor.UserID))
	return doc, nil
}

// Delete removes the row, then the blob. A blob that is already gone is
// not an error.
func (s *DocumentService) Delete(ctx context.Context, actor policy.Actor, id string) error {
	l := slogx.FromContext(ctx)

	var key string
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		doc, err := tx.Documents().GetDocument(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrDocumentNotFound
			}
			return err
		}
		if !policy.CanDeleteDocument(actor, doc) {
			return ErrForbidden
		}
		key = doc.StoragePath
		return tx.Documents().DeleteDocument(ctx, id)
	})
	if err != nil {
		return err
	}

	if err := s.Blobs.Delete(ctx, key); err != nil && !errors.Is(err, blob.ErrNotFound) {
		l.Error("failed to delete document blob", slog.String("document_id", id), slog.Any("error", err))
	}
	l.Info("document deleted", slog.String("document_id", id), slog.String("by", actor.UserID))
	return nil
}

func (s *DocumentService) CreateFolder(ctx context.Context, actor policy.Actor, ownerID, name string) (domain.Folder, error) {
	if ownerID == "" {
		ownerID = actor.UserID
	}
	f := domain.Folder{OwnerID: ownerID}
	if !policy.CanManageFolder(actor, f) {
		return domain.Folder{}, ErrForbidden
	}
	var err error
	if f.Name, err = requireText("name", name, 100); err != nil {
		return domain.Folder{}, err
	}
	if _, err := s.Store.Users().GetUserByID(ctx, ownerID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Folder{}, ErrUserNotFound
		}
		return domain.Folder{}, err
	}

	f.ID = idx.NewString()
	f.CreatedAt = clock(s.Now).now()
	if err := s.Store.Folders().CreateFolder(ctx, f); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Folder{}, ErrFolderExists
		}
		return domain.Folder{}, err
	}
	return f, nil
}

func (s *DocumentService) ListFolders(ctx context.Context, actor policy.Actor, ownerID string) ([]domain.Folder, error) {
	if ownerID == "" || !actor.Can(policy.FoldersManage) {
		ownerID = actor.UserID
	}
	if ownerID == "" {
		return nil, ErrForbidden
	}
	return s.Store.Folders().ListFolders(ctx, ownerID)
}

// DeleteFolder refuses folders that still hold documents.
func (s *DocumentService) DeleteFolder(ctx context.Context, actor policy.Actor, id string) error {
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		f, err := tx.Folders().GetFolder(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrFolderNotFound
			}
			return err
		}
		if !policy.CanManageFolder(actor, f) {
			return ErrForbidden
		}
		n, err := tx.Documents().CountFolderDocuments(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrFolderNotEmpty
		}
		return tx.Folders().DeleteFolder(ctx, id)
	})
}
