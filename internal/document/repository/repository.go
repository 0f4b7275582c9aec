package repository

import (
	"context"
	"errors"

	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/document"
)

var (
	ErrNotFound = errors.New("document not found")
	// ErrDuplicateName means another document in the workspace has the name.
	ErrDuplicateName = errors.New("a document with this name already exists in the workspace")
	// ErrConflict means the stored rev moved since the caller read it.
	ErrConflict = errors.New("document was modified concurrently")
)

// DeletedFilter selects documents by their recycle state.
type DeletedFilter string

const (
	ExcludeDeleted DeletedFilter = "exclude"
	IncludeDeleted DeletedFilter = "include"
	OnlyDeleted    DeletedFilter = "only"
)

// SortFields are the fields List can order by.
var SortFields = map[string]bool{
	"name":      true,
	"createdAt": true,
	"updatedAt": true,
	"type":      true,
	"version":   true,
}

// Filter narrows List. Empty WorkspaceID searches every workspace; Metadata is
// a case-insensitive substring; every tag in Tags must be present.
type Filter struct {
	WorkspaceID string
	Deleted     DeletedFilter
	Metadata    string
	Tags        []string
	SortBy      string
	Desc        bool
	Limit       int
	Offset      int
}

// Repository persists documents. Update and Delete are compare-and-swaps on
// Rev; a successful Update stores expectedRev+1.
type Repository interface {
	Create(ctx context.Context, doc *document.Document) error
	Get(ctx context.Context, id string) (*document.Document, error)
	Update(ctx context.Context, doc *document.Document, expectedRev int64) error
	Delete(ctx context.Context, id string, expectedRev int64) error
	List(ctx context.Context, f Filter) ([]*document.Document, error)
	CountByWorkspaces(ctx context.Context, workspaceIDs []string) (active, recycled int64, err error)
}
