package service

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/apperr"
	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/document"
	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/document/repository"
	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/rbac"
	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/storage"
	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/workspace"
	wsservice "github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/workspace/service"
	"github.com/stretchr/testify/require"
)

var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n%%EOF")

type fixture struct {
	svc   *Service
	ws    *wsservice.Service
	repo  *repository.MemoryRepo
	blobs *storage.MemoryStore
	wsID  string
}

// newFixture creates workspace W owned by alice with bob=Viewer,
// carol=Editor and dave=Admin. mallory is an outsider.
func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()
	ws := wsservice.NewMemoryService()
	w, err := ws.Create(ctx, "alice", wsservice.CreateInput{Name: "W"})
	require.NoError(t, err)
	for user, role := range map[string]rbac.Role{"bob": rbac.RoleViewer, "carol": rbac.RoleEditor, "dave": rbac.RoleAdmin} {
		_, err := ws.AddCollaborator(ctx, w.ID, "alice", user, role)
		require.NoError(t, err)
	}
	f := &fixture{ws: ws, repo: repository.NewMemoryRepo(), blobs: storage.NewMemoryStore(), wsID: w.ID}
	f.svc = New(f.repo, f.blobs, ws, opts...)
	return f
}

func (f *fixture) upload(t *testing.T, name string, data []byte, mime string) *document.Document {
	t.Helper()
	d, err := f.svc.Upload(context.Background(), "alice", UploadInput{WorkspaceID: f.wsID, Name: name, MimeType: mime, Data: data})
	require.NoError(t, err)
	return d
}

func requireInvariant(t *testing.T, f *fixture, id string) {
	t.Helper()
	d, err := f.repo.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, len(d.VersionHistory)+1, d.Version)
}

func TestScenarioA_FullLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	d := f.upload(t, "report.pdf", pdfBytes, "application/pdf")
	require.Equal(t, 1, d.Version)
	require.False(t, d.Deleted)
	require.True(t, f.blobs.Has(d.ContentKey))

	d, err := f.svc.SoftDelete(ctx, d.ID, "alice")
	require.NoError(t, err)
	require.True(t, d.Deleted)
	require.Equal(t, 1, d.Version)

	d, err = f.svc.Restore(ctx, d.ID, "alice")
	require.NoError(t, err)
	require.False(t, d.Deleted)

	_, err = f.svc.SoftDelete(ctx, d.ID, "alice")
	require.NoError(t, err)
	require.NoError(t, f.svc.PermanentlyDelete(ctx, d.ID, "alice"))
	require.False(t, f.blobs.Has(d.ContentKey))

	_, err = f.svc.Download(ctx, d.ID, "alice")
	require.ErrorIs(t, err, apperr.NotFound)
	_, err = f.repo.Get(ctx, d.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPermanentDeleteRequiresRecycled(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.upload(t, "a.pdf", pdfBytes, "application/pdf")

	err := f.svc.PermanentlyDelete(ctx, d.ID, "alice")
	require.ErrorIs(t, err, apperr.InvalidState)
	require.True(t, f.blobs.Has(d.ContentKey))
	_, err = f.repo.Get(ctx, d.ID)
	require.NoError(t, err)
}

func TestSoftDeleteTwiceIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.upload(t, "a.pdf", pdfBytes, "application/pdf")

	_, err := f.svc.SoftDelete(ctx, d.ID, "alice")
	require.NoError(t, err)
	again, err := f.svc.SoftDelete(ctx, d.ID, "alice")
	require.NoError(t, err)
	require.True(t, again.Deleted)
	require.Empty(t, again.VersionHistory)
	require.Equal(t, 1, again.Version)
}

func TestRestoreActiveDocumentFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.upload(t, "a.pdf", pdfBytes, "application/pdf")

	_, err := f.svc.Restore(ctx, d.ID, "alice")
	require.ErrorIs(t, err, apperr.InvalidState)

	_, err = f.svc.Restore(ctx, "missing", "alice")
	require.ErrorIs(t, err, apperr.NotFound)
}

func TestOutsiderRejectedOnMutations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.upload(t, "a.pdf", pdfBytes, "application/pdf")
	meta := "x"

	_, err := f.svc.UpdateMetadata(ctx, d.ID, "mallory", MetadataInput{Metadata: &meta})
	require.ErrorIs(t, err, apperr.Permission)
	_, err = f.svc.SoftDelete(ctx, d.ID, "mallory")
	require.ErrorIs(t, err, apperr.Permission)

	_, err = f.svc.SoftDelete(ctx, d.ID, "alice")
	require.NoError(t, err)
	_, err = f.svc.Restore(ctx, d.ID, "mallory")
	require.ErrorIs(t, err, apperr.Permission)
	require.ErrorIs(t, f.svc.PermanentlyDelete(ctx, d.ID, "mallory"), apperr.Permission)
}

func TestLifecycleRequiresAdminTier(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.upload(t, "a.pdf", pdfBytes, "application/pdf")

	// an Editor can write but not recycle
	_, err := f.svc.SoftDelete(ctx, d.ID, "carol")
	require.ErrorIs(t, err, apperr.Permission)

	// a workspace Admin can
	_, err = f.svc.SoftDelete(ctx, d.ID, "dave")
	require.NoError(t, err)
	_, err = f.svc.Restore(ctx, d.ID, "dave")
	require.NoError(t, err)
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	payload := make([]byte, 4096)
	for i := range payload {
		payload[i] = byte(i * 7)
	}
	d := f.upload(t, "blob.bin", payload, "application/octet-stream")

	dl, err := f.svc.Download(ctx, d.ID, "bob")
	require.NoError(t, err)
	require.True(t, bytes.Equal(payload, dl.Data))
	require.Equal(t, "blob.bin", dl.Name)
}

func TestScenarioC_ViewerVersusEditor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.upload(t, "a.pdf", pdfBytes, "application/pdf")
	meta := "reviewed"

	_, err := f.svc.UpdateMetadata(ctx, d.ID, "bob", MetadataInput{Metadata: &meta})
	require.ErrorIs(t, err, apperr.Permission)

	got, err := f.svc.UpdateMetadata(ctx, d.ID, "carol", MetadataInput{Metadata: &meta})
	require.NoError(t, err)
	require.Equal(t, 2, got.Version)
	require.Len(t, got.VersionHistory, 1)
	require.Equal(t, "carol", got.VersionHistory[0].ModifiedBy)
	requireInvariant(t, f, d.ID)

	// same value again is not a content change
	got, err = f.svc.UpdateMetadata(ctx, d.ID, "carol", MetadataInput{Metadata: &meta})
	require.NoError(t, err)
	require.Equal(t, 2, got.Version)
}

func TestUploadValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WithMaxUploadBytes(8))

	_, err := f.svc.Upload(ctx, "alice", UploadInput{WorkspaceID: f.wsID, Name: "a"})
	require.ErrorIs(t, err, apperr.Validation)
	_, err = f.svc.Upload(ctx, "alice", UploadInput{Name: "a", Data: []byte("x")})
	require.ErrorIs(t, err, apperr.Validation)
	_, err = f.svc.Upload(ctx, "alice", UploadInput{WorkspaceID: f.wsID, Name: "a", Data: []byte("123456789")})
	require.ErrorIs(t, err, apperr.Validation)
	_, err = f.svc.Upload(ctx, "alice", UploadInput{WorkspaceID: "nope", Name: "a", Data: []byte("x")})
	require.ErrorIs(t, err, apperr.NotFound)
	_, err = f.svc.Upload(ctx, "bob", UploadInput{WorkspaceID: f.wsID, Name: "a", Data: []byte("x")})
	require.ErrorIs(t, err, apperr.Permission)

	require.NoError(t, f.ws.SoftDelete(ctx, f.wsID, "alice"))
	_, err = f.svc.Upload(ctx, "alice", UploadInput{WorkspaceID: f.wsID, Name: "a", Data: []byte("x")})
	require.ErrorIs(t, err, apperr.NotFound)
	require.Zero(t, f.blobs.Len())
}

func TestUploadSniffsMissingMime(t *testing.T) {
	f := newFixture(t)
	d := f.upload(t, "doc", pdfBytes, "")
	require.Equal(t, "application/pdf", d.MimeType)
}

func TestUploadDuplicateNameCleansBlob(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.upload(t, "a.pdf", pdfBytes, "application/pdf")

	_, err := f.svc.Upload(ctx, "carol", UploadInput{WorkspaceID: f.wsID, Name: "a.pdf", MimeType: "application/pdf", Data: pdfBytes})
	require.ErrorIs(t, err, apperr.Conflict)
	require.Equal(t, 1, f.blobs.Len())
}

type failingCreate struct {
	*repository.MemoryRepo
}

func (failingCreate) Create(ctx context.Context, d *document.Document) error {
	return errors.New("connection reset")
}

func TestUploadInsertFailureRemovesBlob(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := New(failingCreate{f.repo}, f.blobs, f.ws)

	_, err := svc.Upload(ctx, "alice", UploadInput{WorkspaceID: f.wsID, Name: "a.pdf", Data: pdfBytes})
	require.Error(t, err)
	require.ErrorIs(t, err, apperr.Storage)
	require.Equal(t, "persistence_unavailable", apperr.Body(err)["error"])
	require.Zero(t, f.blobs.Len())
}

type failingDelete struct {
	*storage.MemoryStore
}

func (failingDelete) Delete(ctx context.Context, key string) error {
	return errors.New("minio: 503 service unavailable")
}

func TestPermanentDeleteBlobFailureKeepsRow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.upload(t, "a.pdf", pdfBytes, "application/pdf")
	_, err := f.svc.SoftDelete(ctx, d.ID, "alice")
	require.NoError(t, err)

	svc := New(f.repo, failingDelete{f.blobs}, f.ws)
	err = svc.PermanentlyDelete(ctx, d.ID, "alice")
	require.ErrorIs(t, err, apperr.Storage)

	got, err := f.repo.Get(ctx, d.ID)
	require.NoError(t, err, "row must survive a failed blob delete")
	require.False(t, got.Purging)

	_, err = f.svc.Restore(ctx, d.ID, "alice")
	require.NoError(t, err)
}

func TestPermanentDeleteRemovesEveryVersionBlob(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.upload(t, "notes.txt", []byte("v1"), "text/plain")
	first := d.ContentKey

	d, err := f.svc.ReplaceContent(ctx, d.ID, "carol", []byte("v2"), "text/plain")
	require.NoError(t, err)
	require.Equal(t, 2, d.Version)
	require.NotEqual(t, first, d.ContentKey)
	require.Equal(t, 2, f.blobs.Len())

	_, err = f.svc.SoftDelete(ctx, d.ID, "alice")
	require.NoError(t, err)
	require.NoError(t, f.svc.PermanentlyDelete(ctx, d.ID, "alice"))
	require.Zero(t, f.blobs.Len())
}

func TestReplaceContentRecordsPriorContent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.upload(t, "notes.txt", []byte("v1"), "text/plain")
	first := d.ContentKey

	_, err := f.svc.ReplaceContent(ctx, d.ID, "bob", []byte("nope"), "text/plain")
	require.ErrorIs(t, err, apperr.Permission)
	require.Equal(t, 1, f.blobs.Len())

	d, err = f.svc.ReplaceContent(ctx, d.ID, "carol", []byte("v2"), "text/plain")
	require.NoError(t, err)
	require.Len(t, d.VersionHistory, 1)
	rec := d.VersionHistory[0]
	require.Equal(t, 1, rec.VersionNumber)
	require.Equal(t, first, rec.Snapshot.ContentKey)
	require.Equal(t, []string{document.FieldContent}, rec.Changed)
	require.Equal(t, "carol", rec.ModifiedBy)
	requireInvariant(t, f, d.ID)

	out, err := f.svc.Download(ctx, d.ID, "bob")
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), out.Data)

	d, err = f.svc.RestoreVersion(ctx, d.ID, "carol", 1)
	require.NoError(t, err)
	require.Equal(t, first, d.ContentKey)
	out, err = f.svc.Download(ctx, d.ID, "bob")
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), out.Data)

	_, err = f.svc.SoftDelete(ctx, d.ID, "alice")
	require.NoError(t, err)
	_, err = f.svc.ReplaceContent(ctx, d.ID, "carol", []byte("v3"), "text/plain")
	require.ErrorIs(t, err, apperr.InvalidState)
	require.Equal(t, 2, f.blobs.Len())
}

func TestPermanentDeleteToleratesMissingBlob(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.upload(t, "a.pdf", pdfBytes, "application/pdf")
	require.NoError(t, f.blobs.Delete(ctx, d.ContentKey))
	_, err := f.svc.SoftDelete(ctx, d.ID, "alice")
	require.NoError(t, err)

	require.NoError(t, f.svc.PermanentlyDelete(ctx, d.ID, "alice"))
}

func TestDownloadMissingBlobIsDistinct(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.upload(t, "a.pdf", pdfBytes, "application/pdf")
	require.NoError(t, f.blobs.Delete(ctx, d.ContentKey))

	_, err := f.svc.Download(ctx, d.ID, "alice")
	require.ErrorIs(t, err, apperr.NotFound)
	require.Equal(t, "blob_not_found", apperr.Body(err)["error"])

	_, err = f.svc.Download(ctx, "missing", "alice")
	require.Equal(t, "document_not_found", apperr.Body(err)["error"])

	_, err = f.svc.Preview(ctx, d.ID, "alice")
	require.Equal(t, "blob_not_found", apperr.Body(err)["error"])
}

func TestRecycledDocumentIsNotDownloadable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.upload(t, "a.pdf", pdfBytes, "application/pdf")
	_, err := f.svc.SoftDelete(ctx, d.ID, "alice")
	require.NoError(t, err)

	_, err = f.svc.Download(ctx, d.ID, "alice")
	require.ErrorIs(t, err, apperr.NotFound)
	_, err = f.svc.Preview(ctx, d.ID, "alice")
	require.ErrorIs(t, err, apperr.NotFound)
}

func TestPreviewVariants(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pdf := f.upload(t, "a.pdf", pdfBytes, "application/pdf")
	page := f.upload(t, "page.html", []byte(`<h1>Hi</h1><script>x()</script>`), "text/html")
	zip := f.upload(t, "a.zip", []byte("PK\x03\x04rest"), "application/zip")

	p, err := f.svc.Preview(ctx, pdf.ID, "bob")
	require.NoError(t, err)
	in, ok := p.(document.Inline)
	require.True(t, ok)
	require.Equal(t, pdfBytes, in.Data)

	p, err = f.svc.Preview(ctx, page.ID, "bob")
	require.NoError(t, err)
	r, ok := p.(document.Rendered)
	require.True(t, ok)
	require.NotContains(t, r.HTML, "script")

	p, err = f.svc.Preview(ctx, zip.ID, "bob")
	require.NoError(t, err)
	u, ok := p.(document.Unsupported)
	require.True(t, ok)
	require.False(t, u.Supported())
	require.Equal(t, "/api/documents/"+zip.ID+"/download", u.DownloadURL)

	_, err = f.svc.Preview(ctx, pdf.ID, "mallory")
	require.ErrorIs(t, err, apperr.Permission)
}

type blockingGet struct {
	*storage.MemoryStore
}

func (blockingGet) Get(ctx context.Context, key string) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestBlobTimeoutIsStorageError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.upload(t, "a.pdf", pdfBytes, "application/pdf")

	slow := storage.NewTimed(blockingGet{f.blobs}, 20*time.Millisecond, nil)
	svc := New(f.repo, slow, f.ws)
	_, err := svc.Download(ctx, d.ID, "alice")
	require.ErrorIs(t, err, apperr.Storage)
	require.Equal(t, "blob_timeout", apperr.Body(err)["error"])
}

func TestAccessGrants(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.upload(t, "a.pdf", pdfBytes, "application/pdf")
	meta := "by grant"

	_, err := f.svc.GrantAccess(ctx, d.ID, "carol", "mallory", rbac.PermWrite)
	require.ErrorIs(t, err, apperr.Permission, "editors cannot share")

	_, err = f.svc.GrantAccess(ctx, d.ID, "alice", "mallory", rbac.PermWrite)
	require.NoError(t, err)
	got, err := f.svc.UpdateMetadata(ctx, d.ID, "mallory", MetadataInput{Metadata: &meta})
	require.NoError(t, err)
	require.Equal(t, 2, got.Version, "grant changes are not versioned, the metadata change is")

	// a read grant overrides a broader workspace role
	_, err = f.svc.GrantAccess(ctx, d.ID, "alice", "carol", rbac.PermRead)
	require.NoError(t, err)
	_, err = f.svc.UpdateMetadata(ctx, d.ID, "carol", MetadataInput{Metadata: &meta})
	require.ErrorIs(t, err, apperr.Permission)

	_, err = f.svc.RevokeAccess(ctx, d.ID, "alice", "carol")
	require.NoError(t, err)
	_, err = f.svc.RevokeAccess(ctx, d.ID, "alice", "carol")
	require.ErrorIs(t, err, apperr.NotFound)

	_, err = f.svc.GrantAccess(ctx, d.ID, "alice", "alice", rbac.PermRead)
	require.ErrorIs(t, err, apperr.Validation)
	requireInvariant(t, f, d.ID)
}

func TestRestoreVersion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.upload(t, "a.pdf", pdfBytes, "application/pdf")

	meta := "draft 2"
	_, err := f.svc.UpdateMetadata(ctx, d.ID, "carol", MetadataInput{Metadata: &meta, Tags: []string{"draft"}})
	require.NoError(t, err)
	_, err = f.svc.Rename(ctx, d.ID, "carol", "b.pdf")
	require.NoError(t, err)

	got, err := f.svc.RestoreVersion(ctx, d.ID, "carol", 1)
	require.NoError(t, err)
	require.Equal(t, "a.pdf", got.Name)
	require.Equal(t, "", got.Metadata)
	require.Empty(t, got.Tags)
	require.Equal(t, 4, got.Version)
	requireInvariant(t, f, d.ID)

	hist, err := f.svc.History(ctx, d.ID, "bob")
	require.NoError(t, err)
	require.Len(t, hist, 3)
	require.Equal(t, 1, hist[2].RestoredFrom)

	_, err = f.svc.RestoreVersion(ctx, d.ID, "carol", 99)
	require.ErrorIs(t, err, apperr.NotFound)
	_, err = f.svc.RestoreVersion(ctx, d.ID, "bob", 1)
	require.ErrorIs(t, err, apperr.Permission)
}

func TestRenameConflictAndRecycledEdits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.upload(t, "a.pdf", pdfBytes, "application/pdf")
	f.upload(t, "b.pdf", pdfBytes, "application/pdf")

	_, err := f.svc.Rename(ctx, a.ID, "alice", "b.pdf")
	require.ErrorIs(t, err, apperr.Conflict)
	requireInvariant(t, f, a.ID)

	_, err = f.svc.SoftDelete(ctx, a.ID, "alice")
	require.NoError(t, err)
	_, err = f.svc.UpdateTags(ctx, a.ID, "alice", []string{"x"})
	require.ErrorIs(t, err, apperr.InvalidState)
}

func TestListAndRecycleBin(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, WithClock(func() time.Time { clock = clock.Add(time.Second); return clock }))
	c := f.upload(t, "c.txt", []byte("c"), "text/plain")
	f.upload(t, "a.txt", []byte("a"), "text/plain")
	f.upload(t, "b.txt", []byte("b"), "text/plain")
	_, err := f.svc.SoftDelete(ctx, c.ID, "alice")
	require.NoError(t, err)

	list, err := f.svc.ListByWorkspace(ctx, f.wsID, "bob", ListOptions{SortBy: "name", Order: "asc"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "a.txt", list[0].Name)

	list, err = f.svc.ListByWorkspace(ctx, f.wsID, "bob", ListOptions{})
	require.NoError(t, err)
	require.Equal(t, "b.txt", list[0].Name, "default is newest first")

	list, err = f.svc.ListByWorkspace(ctx, f.wsID, "bob", ListOptions{Deleted: repository.IncludeDeleted})
	require.NoError(t, err)
	require.Len(t, list, 3)

	bin, err := f.svc.RecycleBin(ctx, f.wsID, "bob", ListOptions{})
	require.NoError(t, err)
	require.Len(t, bin, 1)
	require.Equal(t, c.ID, bin[0].ID)

	_, err = f.svc.ListByWorkspace(ctx, f.wsID, "bob", ListOptions{SortBy: "ownerId"})
	require.ErrorIs(t, err, apperr.Validation)
	_, err = f.svc.ListByWorkspace(ctx, f.wsID, "mallory", ListOptions{})
	require.ErrorIs(t, err, apperr.Permission)
	_, err = f.svc.ListByWorkspace(ctx, "nope", "alice", ListOptions{})
	require.ErrorIs(t, err, apperr.NotFound)
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.upload(t, "a.txt", []byte("a"), "text/plain")
	b := f.upload(t, "b.txt", []byte("b"), "text/plain")
	meta := "Invoice March"
	_, err := f.svc.UpdateMetadata(ctx, a.ID, "alice", MetadataInput{Metadata: &meta, Tags: []string{"finance", "2024"}})
	require.NoError(t, err)
	_, err = f.svc.UpdateTags(ctx, b.ID, "alice", []string{"finance"})
	require.NoError(t, err)

	found, err := f.svc.Search(ctx, "bob", SearchInput{Tags: []string{"finance"}})
	require.NoError(t, err)
	require.Len(t, found, 2)

	found, err = f.svc.Search(ctx, "bob", SearchInput{Metadata: "invoice", Tags: []string{"finance"}})
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, a.ID, found[0].ID)

	_, err = f.svc.Search(ctx, "mallory", SearchInput{Tags: []string{"finance"}})
	require.ErrorIs(t, err, apperr.NotFound)

	_, err = f.svc.GrantAccess(ctx, b.ID, "alice", "mallory", rbac.PermRead)
	require.NoError(t, err)
	found, err = f.svc.Search(ctx, "mallory", SearchInput{Tags: []string{"finance"}})
	require.NoError(t, err)
	require.Len(t, found, 1)

	_, err = f.svc.Search(ctx, "bob", SearchInput{})
	require.ErrorIs(t, err, apperr.Validation)
}

func TestPublicWorkspaceGrantsReadOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pub := workspace.Public
	_, err := f.ws.Update(ctx, f.wsID, "alice", wsservice.UpdateInput{Visibility: &pub})
	require.NoError(t, err)
	d := f.upload(t, "a.txt", []byte("hi"), "text/plain")

	_, err = f.svc.Get(ctx, d.ID, "mallory")
	require.NoError(t, err)
	_, err = f.svc.UpdateTags(ctx, d.ID, "mallory", []string{"x"})
	require.ErrorIs(t, err, apperr.Permission)
}

func TestWorkspaceDeleteDoesNotCascade(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.upload(t, "a.txt", []byte("hi"), "text/plain")
	require.NoError(t, f.ws.SoftDelete(ctx, f.wsID, "alice"))

	got, err := f.svc.Get(ctx, d.ID, "alice")
	require.NoError(t, err)
	require.False(t, got.Deleted)

	// collaborators lose access once the workspace is gone
	_, err = f.svc.Get(ctx, d.ID, "carol")
	require.ErrorIs(t, err, apperr.Permission)
}

// racyRepo fails the first n updates as if another writer won.
type racyRepo struct {
	*repository.MemoryRepo
	mu sync.Mutex
	n  int
}

func (r *racyRepo) Update(ctx context.Context, d *document.Document, rev int64) error {
	r.mu.Lock()
	if r.n > 0 {
		r.n--
		r.mu.Unlock()
		return repository.ErrConflict
	}
	r.mu.Unlock()
	return r.MemoryRepo.Update(ctx, d, rev)
}

func TestLostRaceIsRetriedThenReported(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	repo := &racyRepo{MemoryRepo: f.repo}
	svc := New(repo, f.blobs, f.ws)
	d := f.upload(t, "a.txt", []byte("hi"), "text/plain")

	repo.n = maxAttempts - 1
	_, err := svc.SoftDelete(ctx, d.ID, "alice")
	require.NoError(t, err)

	repo.n = maxAttempts
	_, err = svc.Restore(ctx, d.ID, "alice")
	require.ErrorIs(t, err, apperr.Conflict)
	got, _ := f.repo.Get(ctx, d.ID)
	require.True(t, got.Deleted, "a lost restore must not be half applied")
}

func TestConcurrentUpdatesNeverLoseVersions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.upload(t, "a.txt", []byte("hi"), "text/plain")

	const writers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			meta := string(rune('a' + i))
			_, err := f.svc.UpdateMetadata(ctx, d.ID, "carol", MetadataInput{Metadata: &meta})
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
				return
			}
			if !errors.Is(err, apperr.Conflict) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	got, err := f.repo.Get(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, 1+ok, got.Version)
	requireInvariant(t, f, d.ID)
}

// restoreDuringDelete runs a Restore right before the row delete, the
// interleaving a concurrent admin can produce.
type restoreDuringDelete struct {
	*repository.MemoryRepo
	svc        *Service
	restoreErr error
}

func (r *restoreDuringDelete) Delete(ctx context.Context, id string, rev int64) error {
	_, r.restoreErr = r.svc.Restore(ctx, id, "alice")
	return r.MemoryRepo.Delete(ctx, id, rev)
}

func TestPermanentDeleteWinsOverConcurrentRestore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	repo := &restoreDuringDelete{MemoryRepo: f.repo}
	repo.svc = New(repo, f.blobs, f.ws)
	d := f.upload(t, "a.pdf", pdfBytes, "application/pdf")
	_, err := repo.svc.SoftDelete(ctx, d.ID, "alice")
	require.NoError(t, err)

	require.NoError(t, repo.svc.PermanentlyDelete(ctx, d.ID, "alice"))
	require.ErrorIs(t, repo.restoreErr, apperr.InvalidState)
	require.Equal(t, "document_purging", apperr.Body(repo.restoreErr)["error"])

	_, err = f.repo.Get(ctx, d.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)
	require.Zero(t, f.blobs.Len())
}

func TestInterruptedPurgeBlocksEditsAndCanBeFinished(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.upload(t, "a.txt", []byte("hi"), "text/plain")
	d, err := f.svc.SoftDelete(ctx, d.ID, "alice")
	require.NoError(t, err)

	d.Purging = true
	require.NoError(t, f.repo.Update(ctx, d, d.Rev))

	_, err = f.svc.Restore(ctx, d.ID, "alice")
	require.Equal(t, "document_purging", apperr.Body(err)["error"])
	_, err = f.svc.UpdateTags(ctx, d.ID, "alice", []string{"x"})
	require.ErrorIs(t, err, apperr.InvalidState)

	require.NoError(t, f.svc.PermanentlyDelete(ctx, d.ID, "alice"))
	_, err = f.svc.Get(ctx, d.ID, "alice")
	require.ErrorIs(t, err, apperr.NotFound)
}

func TestUnsupportedPreviewReportsMissingBlob(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.upload(t, "data.bin", []byte{1, 2, 3}, "application/x-custom")

	p, err := f.svc.Preview(ctx, d.ID, "bob")
	require.NoError(t, err)
	require.IsType(t, document.Unsupported{}, p)

	require.NoError(t, f.blobs.Delete(ctx, d.ContentKey))
	_, err = f.svc.Preview(ctx, d.ID, "bob")
	require.ErrorIs(t, err, apperr.NotFound)
	require.Equal(t, "blob_not_found", apperr.Body(err)["error"])
}

type brokenGet struct{ *repository.MemoryRepo }

func (brokenGet) Get(ctx context.Context, id string) (*document.Document, error) {
	return nil, errors.New("connection reset by peer")
}

func TestPersistenceFailuresAreStorageErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.upload(t, "a.txt", []byte("hi"), "text/plain")
	svc := New(brokenGet{f.repo}, f.blobs, f.ws)

	_, err := svc.Get(ctx, d.ID, "alice")
	require.ErrorIs(t, err, apperr.Storage)
	require.Equal(t, "persistence_unavailable", apperr.Body(err)["error"])
	require.Equal(t, http.StatusBadGateway, apperr.HTTPStatus(err))

	_, err = svc.SoftDelete(ctx, d.ID, "alice")
	require.ErrorIs(t, err, apperr.Storage)
}

type brokenWorkspaces struct{}

func (brokenWorkspaces) Access(ctx context.Context, workspaceID, userID string) (workspace.Access, error) {
	return workspace.Access{}, errors.New("server selection timeout")
}

func TestWorkspaceLookupFailureIsStorageError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.upload(t, "a.txt", []byte("hi"), "text/plain")
	svc := New(f.repo, f.blobs, brokenWorkspaces{})

	_, err := svc.Get(ctx, d.ID, "carol")
	require.ErrorIs(t, err, apperr.Storage)
	_, err = svc.Upload(ctx, "alice", UploadInput{WorkspaceID: f.wsID, Name: "b.txt", Data: []byte("x")})
	require.ErrorIs(t, err, apperr.Storage)
	_, err = svc.ListByWorkspace(ctx, f.wsID, "alice", ListOptions{})
	require.ErrorIs(t, err, apperr.Storage)
}
