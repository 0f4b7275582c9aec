package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/apperr"
	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/rbac"
	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/workspace"
	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/workspace/repository"
	"go.uber.org/zap"
)

// maxAttempts bounds the read-check-write loop on a lost compare-and-swap.
const maxAttempts = 3

// DocumentCounter reports document totals per workspace for Stats.
type DocumentCounter interface {
	CountByWorkspaces(ctx context.Context, workspaceIDs []string) (active, recycled int64, err error)
}

// UserDirectory confirms a collaborator id refers to a known user.
type UserDirectory interface {
	Exists(ctx context.Context, userID string) (bool, error)
}

type Service struct {
	repo  repository.Repository
	docs  DocumentCounter
	users UserDirectory
	log   *zap.Logger
}

type Option func(*Service)

func WithDocumentCounter(c DocumentCounter) Option { return func(s *Service) { s.docs = c } }
func WithUserDirectory(u UserDirectory) Option     { return func(s *Service) { s.users = u } }
func WithLogger(l *zap.Logger) Option              { return func(s *Service) { s.log = l } }

func New(repo repository.Repository, opts ...Option) *Service {
	s := &Service{repo: repo, log: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// NewMemoryService returns a Service backed by the in-memory repository.
func NewMemoryService(opts ...Option) *Service {
	return New(repository.NewMemoryRepo(), opts...)
}

type CreateInput struct {
	Name        string
	Description string
	Visibility  workspace.Visibility
}

type UpdateInput struct {
	Name        *string
	Description *string
	Visibility  *workspace.Visibility
}

func (s *Service) Create(ctx context.Context, caller string, in CreateInput) (*workspace.Workspace, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.NewValidation("invalid_name", "workspace name is required")
	}
	if in.Visibility == "" {
		in.Visibility = workspace.Private
	}
	if !in.Visibility.Valid() {
		return nil, apperr.NewValidation("invalid_visibility", "visibility must be private or public")
	}
	ws := &workspace.Workspace{
		Name:          name,
		Description:   in.Description,
		OwnerID:       caller,
		Visibility:    in.Visibility,
		Collaborators: []workspace.Collaborator{},
	}
	if err := s.repo.Create(ctx, ws); err != nil {
		return nil, s.translate(err)
	}
	s.log.Info("workspace created", zap.String("workspaceId", ws.ID), zap.String("ownerId", caller))
	return ws, nil
}

// Get returns a live workspace the caller can see: owner, collaborator, or public.
func (s *Service) Get(ctx context.Context, id, caller string) (*workspace.Workspace, error) {
	ws, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if ws.RoleOf(caller) == rbac.RoleNone && ws.Visibility != workspace.Public {
		return nil, apperr.NewPermission("forbidden", "no access to this workspace")
	}
	return ws, nil
}

func (s *Service) ListForUser(ctx context.Context, caller string) ([]*workspace.Workspace, error) {
	list, err := s.repo.ListForUser(ctx, caller)
	if err != nil {
		return nil, s.translate(err)
	}
	return list, nil
}

func (s *Service) Update(ctx context.Context, id, caller string, in UpdateInput) (*workspace.Workspace, error) {
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return nil, apperr.NewValidation("invalid_name", "workspace name is required")
	}
	if in.Visibility != nil && !in.Visibility.Valid() {
		return nil, apperr.NewValidation("invalid_visibility", "visibility must be private or public")
	}
	return s.mutate(ctx, id, func(ws *workspace.Workspace) (bool, error) {
		if !rbac.CanManageMembers(ws.RoleOf(caller)) {
			return false, apperr.NewPermission("forbidden", "only the owner or an admin can update the workspace")
		}
		if in.Name != nil {
			ws.Name = strings.TrimSpace(*in.Name)
		}
		if in.Description != nil {
			ws.Description = *in.Description
		}
		if in.Visibility != nil {
			ws.Visibility = *in.Visibility
		}
		return true, nil
	})
}

// AddCollaborator adds collaboratorID with role, or changes the role of an
// existing collaborator.
func (s *Service) AddCollaborator(ctx context.Context, id, caller, collaboratorID string, role rbac.Role) (*workspace.Workspace, error) {
	if collaboratorID == "" {
		return nil, apperr.NewValidation("invalid_collaborator", "collaboratorId is required")
	}
	if _, ok := rbac.ParseRole(string(role)); !ok {
		return nil, apperr.NewValidation("invalid_role", "role must be Viewer, Editor or Admin")
	}
	role, _ = rbac.ParseRole(string(role))
	if s.users != nil {
		ok, err := s.users.Exists(ctx, collaboratorID)
		if err != nil {
			return nil, apperr.NewStorage("persistence_unavailable", "user directory unavailable", fmt.Errorf("lookup collaborator: %w", err))
		}
		if !ok {
			return nil, apperr.NewNotFound("user_not_found", "collaborator does not exist")
		}
	}
	return s.mutate(ctx, id, func(ws *workspace.Workspace) (bool, error) {
		if !rbac.CanManageMembers(ws.RoleOf(caller)) {
			return false, apperr.NewPermission("forbidden", "only the owner or an admin can add collaborators")
		}
		if collaboratorID == ws.OwnerID {
			return false, apperr.NewValidation("owner_not_collaborator", "the owner cannot be added as a collaborator")
		}
		if ws.RoleOf(collaboratorID) == role {
			return false, nil
		}
		ws.SetCollaborator(collaboratorID, role)
		return true, nil
	})
}

func (s *Service) RemoveCollaborator(ctx context.Context, id, caller, collaboratorID string) (*workspace.Workspace, error) {
	return s.mutate(ctx, id, func(ws *workspace.Workspace) (bool, error) {
		if !rbac.CanManageMembers(ws.RoleOf(caller)) {
			return false, apperr.NewPermission("forbidden", "only the owner or an admin can remove collaborators")
		}
		if !ws.RemoveCollaborator(collaboratorID) {
			return false, apperr.NewNotFound("collaborator_not_found", "user is not a collaborator")
		}
		return true, nil
	})
}

// SoftDelete hides the workspace. Its documents are left as they are.
func (s *Service) SoftDelete(ctx context.Context, id, caller string) error {
	_, err := s.mutate(ctx, id, func(ws *workspace.Workspace) (bool, error) {
		if ws.OwnerID != caller {
			return false, apperr.NewPermission("forbidden", "only the owner can delete the workspace")
		}
		ws.Deleted = true
		return true, nil
	})
	if err == nil {
		s.log.Info("workspace soft-deleted", zap.String("workspaceId", id), zap.String("by", caller))
	}
	return err
}

// ResolveRole returns the caller's role, or RoleNone when the workspace is
// missing or deleted.
func (s *Service) ResolveRole(ctx context.Context, id, userID string) (rbac.Role, error) {
	a, err := s.Access(ctx, id, userID)
	if err != nil {
		return rbac.RoleNone, err
	}
	return a.Role, nil
}

// Access is the membership view the document engine consults.
func (s *Service) Access(ctx context.Context, id, userID string) (workspace.Access, error) {
	ws, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return workspace.Access{}, nil
		}
		return workspace.Access{}, apperr.NewStorage("persistence_unavailable", "workspace store unavailable", fmt.Errorf("load workspace %s: %w", id, err))
	}
	if ws.Deleted {
		return workspace.Access{}, nil
	}
	return workspace.Access{Found: true, Role: ws.RoleOf(userID), Public: ws.Visibility == workspace.Public}, nil
}

// Stats summarises the caller's workspaces and the documents in the ones they own.
func (s *Service) Stats(ctx context.Context, caller string) (workspace.Stats, error) {
	list, err := s.repo.ListForUser(ctx, caller)
	if err != nil {
		return workspace.Stats{}, s.translate(err)
	}
	var st workspace.Stats
	owned := []string{}
	people := map[string]struct{}{}
	for _, ws := range list {
		if ws.OwnerID != caller {
			st.CollaboratingIn++
			continue
		}
		st.OwnedWorkspaces++
		owned = append(owned, ws.ID)
		for _, c := range ws.Collaborators {
			people[c.UserID] = struct{}{}
		}
	}
	st.DistinctCollaborators = len(people)
	if s.docs != nil && len(owned) > 0 {
		st.ActiveDocuments, st.RecycledDocuments, err = s.docs.CountByWorkspaces(ctx, owned)
		if err != nil {
			return workspace.Stats{}, apperr.NewStorage("persistence_unavailable", "document store unavailable", fmt.Errorf("count documents: %w", err))
		}
	}
	return st, nil
}

func (s *Service) load(ctx context.Context, id string) (*workspace.Workspace, error) {
	ws, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, s.translate(err)
	}
	if ws.Deleted {
		return nil, apperr.NewNotFound("workspace_not_found", "workspace not found")
	}
	return ws, nil
}

// mutate re-reads the workspace, applies fn and writes it back with a rev
// check, retrying when another writer got in first. fn returning false skips
// the write.
func (s *Service) mutate(ctx context.Context, id string, fn func(ws *workspace.Workspace) (bool, error)) (*workspace.Workspace, error) {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ws, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		rev := ws.Rev
		changed, err := fn(ws)
		if err != nil {
			return nil, err
		}
		if !changed {
			return ws, nil
		}
		err = s.repo.Update(ctx, ws, rev)
		if err == nil {
			return ws, nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return nil, s.translate(err)
		}
		s.log.Debug("workspace update lost race", zap.String("workspaceId", id), zap.Int("attempt", attempt))
	}
	return nil, apperr.NewConflict("concurrent_update", "workspace was modified concurrently, retry", repository.ErrConflict)
}

func (s *Service) translate(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NewNotFound("workspace_not_found", "workspace not found")
	case errors.Is(err, repository.ErrDuplicateName):
		return apperr.NewConflict("duplicate_name", "a workspace with this name already exists", err)
	case errors.Is(err, repository.ErrConflict):
		return apperr.NewConflict("concurrent_update", "workspace was modified concurrently, retry", err)
	}
	return apperr.NewStorage("persistence_unavailable", "workspace store unavailable", err)
}
