package repository

import (
	"context"
	"errors"

	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/workspace"
)

var (
	ErrNotFound      = errors.New("workspace not found")
	ErrDuplicateName = errors.New("a workspace with this name already exists")
	// ErrConflict means the stored rev moved since the caller read it.
	ErrConflict = errors.New("workspace was modified concurrently")
)

// Repository persists workspaces. Update is a compare-and-swap on Rev: it
// succeeds only when the stored rev equals expectedRev and then stores
// expectedRev+1.
type Repository interface {
	Create(ctx context.Context, ws *workspace.Workspace) error
	Get(ctx context.Context, id string) (*workspace.Workspace, error)
	Update(ctx context.Context, ws *workspace.Workspace, expectedRev int64) error
	// ListForUser returns live workspaces owned by or shared with userID.
	ListForUser(ctx context.Context, userID string) ([]*workspace.Workspace, error)
}
