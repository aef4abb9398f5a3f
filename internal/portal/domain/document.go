package domain

import "time"

// Document is the metadata row for one encrypted file.
type Document struct {
	ID           string
	Title        string
	StoragePath  string // blob key, relative to the storage root
	MIMEType     string
	OwnerID      string
	UploaderRole Role // ADMIN or CLIENT
	UploadedBy   string
	SizeBytes    int64 // plaintext size
	Category     string
	FolderID     *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Document categories used by the portal UI. Unknown values are rejected.
var DocumentCategories = []string{
	"tax_return",
	"financial_statement",
	"payroll",
	"bas",
	"invoice",
	"identification",
	"correspondence",
	"other",
}

// DocumentFilter narrows List results. Empty fields match everything.
type DocumentFilter struct {
	OwnerID  string
	FolderID string
	Category string
	Limit    int
	Offset   int
}

// DocumentPatch carries admin edits. Nil fields are left unchanged.
type DocumentPatch struct {
	Title    *string
	Category *string
	FolderID *string // empty string clears the folder
}

type Folder struct {
	ID        string
	OwnerID   string
	Name      string
	CreatedAt time.Time
}
