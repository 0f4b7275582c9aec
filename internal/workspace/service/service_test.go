package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/apperr"
	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/rbac"
	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/workspace"
	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/workspace/repository"
	"github.com/stretchr/testify/require"
)

func TestCreate_DuplicateNameConflicts(t *testing.T) {
	ctx := context.Background()
	svc := NewMemoryService()

	_, err := svc.Create(ctx, "alice", CreateInput{Name: "Engineering"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, "bob", CreateInput{Name: "Engineering"})
	require.ErrorIs(t, err, apperr.Conflict)
	require.Equal(t, "duplicate_name", apperr.Body(err)["error"])
}

func TestCreate_Validation(t *testing.T) {
	ctx := context.Background()
	svc := NewMemoryService()

	_, err := svc.Create(ctx, "alice", CreateInput{Name: "  "})
	require.ErrorIs(t, err, apperr.Validation)

	_, err = svc.Create(ctx, "alice", CreateInput{Name: "x", Visibility: "secret"})
	require.ErrorIs(t, err, apperr.Validation)

	ws, err := svc.Create(ctx, "alice", CreateInput{Name: "x"})
	require.NoError(t, err)
	require.Equal(t, workspace.Private, ws.Visibility)
}

func TestCollaboratorManagement(t *testing.T) {
	ctx := context.Background()
	svc := NewMemoryService()
	ws, err := svc.Create(ctx, "alice", CreateInput{Name: "Design"})
	require.NoError(t, err)

	_, err = svc.AddCollaborator(ctx, ws.ID, "alice", "bob", rbac.RoleViewer)
	require.NoError(t, err)

	// a viewer cannot manage members
	_, err = svc.AddCollaborator(ctx, ws.ID, "bob", "carol", rbac.RoleEditor)
	require.ErrorIs(t, err, apperr.Permission)

	// an admin can
	_, err = svc.AddCollaborator(ctx, ws.ID, "alice", "dave", "admin")
	require.NoError(t, err)
	_, err = svc.AddCollaborator(ctx, ws.ID, "dave", "carol", rbac.RoleEditor)
	require.NoError(t, err)

	role, err := svc.ResolveRole(ctx, ws.ID, "carol")
	require.NoError(t, err)
	require.Equal(t, rbac.RoleEditor, role)

	_, err = svc.AddCollaborator(ctx, ws.ID, "alice", "alice", rbac.RoleEditor)
	require.ErrorIs(t, err, apperr.Validation)
	_, err = svc.AddCollaborator(ctx, ws.ID, "alice", "erin", "Owner")
	require.ErrorIs(t, err, apperr.Validation)

	got, err := svc.RemoveCollaborator(ctx, ws.ID, "dave", "carol")
	require.NoError(t, err)
	require.Equal(t, rbac.RoleNone, got.RoleOf("carol"))

	_, err = svc.RemoveCollaborator(ctx, ws.ID, "alice", "carol")
	require.ErrorIs(t, err, apperr.NotFound)
}

type knownUsers map[string]bool

func (k knownUsers) Exists(ctx context.Context, id string) (bool, error) { return k[id], nil }

func TestAddCollaborator_UnknownUser(t *testing.T) {
	ctx := context.Background()
	svc := NewMemoryService(WithUserDirectory(knownUsers{"bob": true}))
	ws, _ := svc.Create(ctx, "alice", CreateInput{Name: "Ops"})

	_, err := svc.AddCollaborator(ctx, ws.ID, "alice", "ghost", rbac.RoleViewer)
	require.ErrorIs(t, err, apperr.NotFound)
	_, err = svc.AddCollaborator(ctx, ws.ID, "alice", "bob", rbac.RoleViewer)
	require.NoError(t, err)
}

func TestSoftDelete_OwnerOnlyAndResolveRoleNone(t *testing.T) {
	ctx := context.Background()
	svc := NewMemoryService()
	ws, _ := svc.Create(ctx, "alice", CreateInput{Name: "Legal"})
	_, err := svc.AddCollaborator(ctx, ws.ID, "alice", "bob", rbac.RoleAdmin)
	require.NoError(t, err)

	require.ErrorIs(t, svc.SoftDelete(ctx, ws.ID, "bob"), apperr.Permission)
	require.NoError(t, svc.SoftDelete(ctx, ws.ID, "alice"))

	role, err := svc.ResolveRole(ctx, ws.ID, "alice")
	require.NoError(t, err)
	require.Equal(t, rbac.RoleNone, role)

	_, err = svc.Get(ctx, ws.ID, "alice")
	require.ErrorIs(t, err, apperr.NotFound)

	role, err = svc.ResolveRole(ctx, "nope", "alice")
	require.NoError(t, err)
	require.Equal(t, rbac.RoleNone, role)
}

func TestGet_PublicVisibleToAnyone(t *testing.T) {
	ctx := context.Background()
	svc := NewMemoryService()
	priv, _ := svc.Create(ctx, "alice", CreateInput{Name: "Private"})
	pub, _ := svc.Create(ctx, "alice", CreateInput{Name: "Public", Visibility: workspace.Public})

	_, err := svc.Get(ctx, priv.ID, "mallory")
	require.ErrorIs(t, err, apperr.Permission)
	_, err = svc.Get(ctx, pub.ID, "mallory")
	require.NoError(t, err)

	a, err := svc.Access(ctx, pub.ID, "mallory")
	require.NoError(t, err)
	require.True(t, a.Found)
	require.True(t, a.Public)
	require.Equal(t, rbac.RoleNone, a.Role)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	svc := NewMemoryService()
	ws, _ := svc.Create(ctx, "alice", CreateInput{Name: "Old"})
	_, _ = svc.Create(ctx, "alice", CreateInput{Name: "Taken"})

	name := "New"
	desc := "renamed"
	got, err := svc.Update(ctx, ws.ID, "alice", UpdateInput{Name: &name, Description: &desc})
	require.NoError(t, err)
	require.Equal(t, "New", got.Name)
	require.Equal(t, "renamed", got.Description)

	taken := "Taken"
	_, err = svc.Update(ctx, ws.ID, "alice", UpdateInput{Name: &taken})
	require.ErrorIs(t, err, apperr.Conflict)

	_, err = svc.Update(ctx, ws.ID, "mallory", UpdateInput{Description: &desc})
	require.ErrorIs(t, err, apperr.Permission)
}

// racyRepo fails the first n updates as if another writer won.
type racyRepo struct {
	*repository.MemoryRepo
	n int
}

func (r *racyRepo) Update(ctx context.Context, ws *workspace.Workspace, rev int64) error {
	if r.n > 0 {
		r.n--
		return repository.ErrConflict
	}
	return r.MemoryRepo.Update(ctx, ws, rev)
}

func TestMutate_RetriesThenConflicts(t *testing.T) {
	ctx := context.Background()
	repo := &racyRepo{MemoryRepo: repository.NewMemoryRepo()}
	svc := New(repo)
	ws, _ := svc.Create(ctx, "alice", CreateInput{Name: "Race"})

	repo.n = 2
	_, err := svc.AddCollaborator(ctx, ws.ID, "alice", "bob", rbac.RoleEditor)
	require.NoError(t, err)

	repo.n = maxAttempts
	_, err = svc.AddCollaborator(ctx, ws.ID, "alice", "carol", rbac.RoleEditor)
	require.ErrorIs(t, err, apperr.Conflict)
	require.Equal(t, "concurrent_update", apperr.Body(err)["error"])
}

type fixedCounter struct{ active, recycled int64 }

func (f fixedCounter) CountByWorkspaces(ctx context.Context, ids []string) (int64, int64, error) {
	return f.active * int64(len(ids)), f.recycled * int64(len(ids)), nil
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	svc := NewMemoryService(WithDocumentCounter(fixedCounter{active: 3, recycled: 1}))
	a, _ := svc.Create(ctx, "alice", CreateInput{Name: "A"})
	b, _ := svc.Create(ctx, "alice", CreateInput{Name: "B"})
	c, _ := svc.Create(ctx, "bob", CreateInput{Name: "C"})
	_, _ = svc.AddCollaborator(ctx, a.ID, "alice", "bob", rbac.RoleEditor)
	_, _ = svc.AddCollaborator(ctx, b.ID, "alice", "bob", rbac.RoleViewer)
	_, _ = svc.AddCollaborator(ctx, b.ID, "alice", "carol", rbac.RoleViewer)
	_, _ = svc.AddCollaborator(ctx, c.ID, "bob", "alice", rbac.RoleViewer)

	st, err := svc.Stats(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, 2, st.OwnedWorkspaces)
	require.Equal(t, 1, st.CollaboratingIn)
	require.Equal(t, int64(6), st.ActiveDocuments)
	require.Equal(t, int64(2), st.RecycledDocuments)
	require.Equal(t, 2, st.DistinctCollaborators)
}

type brokenRepo struct{ *repository.MemoryRepo }

func (brokenRepo) Get(ctx context.Context, id string) (*workspace.Workspace, error) {
	return nil, errors.New("connection reset by peer")
}

func (brokenRepo) ListForUser(ctx context.Context, userID string) ([]*workspace.Workspace, error) {
	return nil, errors.New("connection reset by peer")
}

type brokenCounter struct{}

func (brokenCounter) CountByWorkspaces(ctx context.Context, ids []string) (int64, int64, error) {
	return 0, 0, errors.New("server selection timeout")
}

type brokenDirectory struct{}

func (brokenDirectory) Exists(ctx context.Context, userID string) (bool, error) {
	return false, errors.New("server selection timeout")
}

func TestBackendFailuresAreStorageErrors(t *testing.T) {
	ctx := context.Background()
	svc := New(brokenRepo{repository.NewMemoryRepo()})

	_, err := svc.Access(ctx, "w1", "alice")
	require.ErrorIs(t, err, apperr.Storage)
	require.Equal(t, http.StatusBadGateway, apperr.HTTPStatus(err))

	_, err = svc.Get(ctx, "w1", "alice")
	require.ErrorIs(t, err, apperr.Storage)
	require.Equal(t, "persistence_unavailable", apperr.Body(err)["error"])

	_, err = svc.Stats(ctx, "alice")
	require.ErrorIs(t, err, apperr.Storage)

	counted := NewMemoryService(WithDocumentCounter(brokenCounter{}), WithUserDirectory(brokenDirectory{}))
	ws, err := counted.Create(ctx, "alice", CreateInput{Name: "Ops"})
	require.NoError(t, err)
	_, err = counted.Stats(ctx, "alice")
	require.ErrorIs(t, err, apperr.Storage)
	_, err = counted.AddCollaborator(ctx, ws.ID, "alice", "bob", rbac.RoleViewer)
	require.ErrorIs(t, err, apperr.Storage)
}
