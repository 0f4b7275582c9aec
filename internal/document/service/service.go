// Package service is the document lifecycle engine: uploads, the
// active/recycled/destroyed state machine, the version ledger and the
// three-tier access check every operation goes through.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/apperr"
	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/document"
	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/document/repository"
	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/rbac"
	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/storage"
	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/workspace"
	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/pkg/metrics"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxAttempts bounds the read-check-write loop on a lost compare-and-swap.
const maxAttempts = 3

// Workspaces resolves a caller's standing in a workspace.
type Workspaces interface {
	Access(ctx context.Context, workspaceID, userID string) (workspace.Access, error)
}

type Service struct {
	repo          repository.Repository
	blobs         storage.BlobStore
	workspaces    Workspaces
	log           *zap.Logger
	now           func() time.Time
	presignExpiry time.Duration
	maxUpload     int64
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.log = l } }

// WithClock replaces time.Now; tests use it for deterministic timestamps.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithPresignExpiry(d time.Duration) Option { return func(s *Service) { s.presignExpiry = d } }

// WithMaxUploadBytes rejects larger uploads; zero means no limit.
func WithMaxUploadBytes(n int64) Option { return func(s *Service) { s.maxUpload = n } }

// MaxUploadBytes is the per-file limit; 0 means unlimited.
func (s *Service) MaxUploadBytes() int64 { return s.maxUpload }

func New(repo repository.Repository, blobs storage.BlobStore, ws Workspaces, opts ...Option) *Service {
	s := &Service{
		repo:          repo,
		blobs:         blobs,
		workspaces:    ws,
		log:           zap.NewNop(),
		now:           func() time.Time { return time.Now().UTC() },
		presignExpiry: 15 * time.Minute,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type UploadInput struct {
	WorkspaceID string
	Name        string
	MimeType    string
	Data        []byte
}

type MetadataInput struct {
	Metadata *string
	// Tags replaces the tag list when non-nil.
	Tags []string
}

type ListOptions struct {
	SortBy  string
	Order   string
	Deleted repository.DeletedFilter
	Limit   int
	Offset  int
}

type SearchInput struct {
	Metadata string
	Tags     []string
}

// Download is a document's stored bytes with the name to save them under.
type Download struct {
	Name     string
	MimeType string
	Data     []byte
}

// Upload stores the bytes first and inserts the row second, so a visible row
// always resolves to stored content. If the insert fails the blob is removed.
func (s *Service) Upload(ctx context.Context, caller string, in UploadInput) (doc *document.Document, err error) {
	defer s.observe("upload", &err)

	if len(in.Data) == 0 {
		return nil, apperr.NewValidation("missing_file", "no file content provided")
	}
	if strings.TrimSpace(in.WorkspaceID) == "" {
		return nil, apperr.NewValidation("missing_workspace", "workspaceId is required")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.NewValidation("missing_name", "file name is required")
	}
	if s.maxUpload > 0 && int64(len(in.Data)) > s.maxUpload {
		return nil, apperr.NewValidation("file_too_large", fmt.Sprintf("file exceeds %d bytes", s.maxUpload))
	}

	access, err := s.workspaces.Access(ctx, in.WorkspaceID, caller)
	if err != nil {
		return nil, accessErr(err)
	}
	if !access.Found {
		return nil, apperr.NewNotFound("workspace_not_found", "workspace not found")
	}
	if !rbac.Can(rbac.Level(access.Role), rbac.PermWrite) {
		return nil, apperr.NewPermission("forbidden", "write access to the workspace is required")
	}

	mime := strings.TrimSpace(in.MimeType)
	if mime == "" || document.BaseMIME(mime) == "application/octet-stream" {
		mime = mimetype.Detect(in.Data).String()
	}

	now := s.now()
	key := storage.NewKey(in.WorkspaceID, name, now)
	if err := s.blobs.Put(ctx, key, in.Data, mime); err != nil {
		return nil, blobErr(err)
	}

	doc = &document.Document{
		ID:             uuid.NewString(),
		Name:           name,
		MimeType:       mime,
		ContentKey:     key,
		Size:           int64(len(in.Data)),
		OwnerID:        caller,
		WorkspaceID:    in.WorkspaceID,
		Tags:           []string{},
		Grants:         []document.AccessGrant{},
		Version:        1,
		VersionHistory: []document.VersionRecord{},
		CreatedAt:      now,
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		if derr := s.blobs.Delete(context.WithoutCancel(ctx), key); derr != nil && !errors.Is(derr, storage.ErrNotFound) {
			s.log.Error("orphaned blob after failed insert", zap.String("key", key), zap.Error(derr))
		}
		return nil, translate(err)
	}
	s.log.Info("document uploaded",
		zap.String("documentId", doc.ID),
		zap.String("workspaceId", doc.WorkspaceID),
		zap.String("ownerId", caller),
		zap.Int64("size", doc.Size))
	return doc, nil
}

func (s *Service) Get(ctx context.Context, id, caller string) (doc *document.Document, err error) {
	defer s.observe("get", &err)
	return s.loadFor(ctx, id, caller, rbac.PermRead)
}

// SoftDelete moves the document to the recycle bin. Recycling an already
// recycled document succeeds without changing it.
func (s *Service) SoftDelete(ctx context.Context, id, caller string) (doc *document.Document, err error) {
	defer s.observe("soft_delete", &err)
	return s.mutate(ctx, id, caller, rbac.PermAdmin, func(d *document.Document) (bool, error) {
		if d.Deleted {
			return false, nil
		}
		d.Deleted = true
		d.UpdatedAt = s.now()
		return true, nil
	})
}

func (s *Service) Restore(ctx context.Context, id, caller string) (doc *document.Document, err error) {
	defer s.observe("restore", &err)
	return s.mutate(ctx, id, caller, rbac.PermAdmin, func(d *document.Document) (bool, error) {
		if !d.Deleted {
			return false, apperr.NewInvalidState("not_in_recycle_bin", "document is not in the recycle bin")
		}
		d.Deleted = false
		d.UpdatedAt = s.now()
		return true, nil
	})
}

// PermanentlyDelete destroys a recycled document. The row is claimed first
// (Purging, with a rev bump) so no concurrent restore or edit can succeed
// while blobs go away; then every referenced blob is removed and finally the
// row at the claimed rev. A blob failure releases the claim and keeps the row.
func (s *Service) PermanentlyDelete(ctx context.Context, id, caller string) (err error) {
	defer s.observe("permanent_delete", &err)
	d, err := s.claimPurge(ctx, id, caller)
	if err != nil {
		return err
	}
	for _, key := range d.BlobKeys() {
		if err := s.blobs.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.log.Error("blob delete failed", zap.String("documentId", id), zap.String("key", key), zap.Error(err))
			s.releasePurge(context.WithoutCancel(ctx), d)
			return blobErr(err)
		}
	}
	if err := s.repo.Delete(ctx, id, d.Rev); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NewNotFound("document_not_found", "document not found")
		}
		return translate(err)
	}
	s.log.Info("document destroyed", zap.String("documentId", id), zap.String("by", caller))
	return nil
}

// claimPurge marks a recycled document as being purged. A document left
// Purging by an interrupted delete can be claimed again.
func (s *Service) claimPurge(ctx context.Context, id, caller string) (*document.Document, error) {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		d, err := s.loadFor(ctx, id, caller, rbac.PermAdmin)
		if err != nil {
			return nil, err
		}
		if !d.Deleted {
			return nil, apperr.NewInvalidState("document_active", "document must be in the recycle bin before permanent deletion")
		}
		rev := d.Rev
		d.Purging = true
		err = s.repo.Update(ctx, d, rev)
		if err == nil {
			return d, nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return nil, translate(err)
		}
		s.log.Debug("purge claim lost race", zap.String("documentId", id), zap.Int("attempt", attempt))
	}
	return nil, apperr.NewConflict("concurrent_update", "document was modified concurrently, retry", repository.ErrConflict)
}

// releasePurge clears the claim after a failed purge. Only the claimed rev is
// released; a failure leaves the claim for the next permanent delete to retake.
func (s *Service) releasePurge(ctx context.Context, d *document.Document) {
	d.Purging = false
	if err := s.repo.Update(ctx, d, d.Rev); err != nil {
		s.log.Warn("failed to release purge claim", zap.String("documentId", d.ID), zap.Error(err))
	}
}

// ReplaceContent stores new bytes under a fresh key and points the document at
// them as a new version. Earlier content stays reachable through the history.
func (s *Service) ReplaceContent(ctx context.Context, id, caller string, data []byte, mime string) (doc *document.Document, err error) {
	defer s.observe("replace_content", &err)
	if len(data) == 0 {
		return nil, apperr.NewValidation("missing_file", "no file content provided")
	}
	if s.maxUpload > 0 && int64(len(data)) > s.maxUpload {
		return nil, apperr.NewValidation("file_too_large", fmt.Sprintf("file exceeds %d bytes", s.maxUpload))
	}
	cur, err := s.loadFor(ctx, id, caller, rbac.PermWrite)
	if err != nil {
		return nil, err
	}
	if cur.Deleted {
		return nil, apperr.NewInvalidState("document_recycled", "restore the document before editing it")
	}
	mime = strings.TrimSpace(mime)
	if mime == "" || document.BaseMIME(mime) == "application/octet-stream" {
		mime = mimetype.Detect(data).String()
	}
	key := storage.NewKey(cur.WorkspaceID, cur.Name, s.now())
	if err := s.blobs.Put(ctx, key, data, mime); err != nil {
		return nil, blobErr(err)
	}
	doc, err = s.mutate(ctx, id, caller, rbac.PermWrite, func(d *document.Document) (bool, error) {
		if d.Deleted {
			return false, apperr.NewInvalidState("document_recycled", "restore the document before editing it")
		}
		next := d.Content()
		next.ContentKey, next.MimeType, next.Size = key, mime, int64(len(data))
		return d.ApplyContent(next, caller, s.now()), nil
	})
	if err != nil {
		if derr := s.blobs.Delete(context.WithoutCancel(ctx), key); derr != nil && !errors.Is(derr, storage.ErrNotFound) {
			s.log.Error("orphaned blob after failed content update", zap.String("key", key), zap.Error(derr))
		}
		return nil, err
	}
	return doc, nil
}

// UpdateMetadata changes metadata and/or tags. A real change appends one
// version record.
func (s *Service) UpdateMetadata(ctx context.Context, id, caller string, in MetadataInput) (doc *document.Document, err error) {
	defer s.observe("update_metadata", &err)
	if in.Metadata == nil && in.Tags == nil {
		return nil, apperr.NewValidation("empty_update", "metadata or tags must be provided")
	}
	return s.mutate(ctx, id, caller, rbac.PermWrite, func(d *document.Document) (bool, error) {
		if d.Deleted {
			return false, apperr.NewInvalidState("document_recycled", "restore the document before editing it")
		}
		next := d.Content()
		if in.Metadata != nil {
			next.Metadata = *in.Metadata
		}
		if in.Tags != nil {
			next.Tags = document.NormalizeTags(in.Tags)
		}
		return d.ApplyContent(next, caller, s.now()), nil
	})
}

func (s *Service) UpdateTags(ctx context.Context, id, caller string, tags []string) (*document.Document, error) {
	if tags == nil {
		tags = []string{}
	}
	return s.UpdateMetadata(ctx, id, caller, MetadataInput{Tags: tags})
}

func (s *Service) Rename(ctx context.Context, id, caller, name string) (doc *document.Document, err error) {
	defer s.observe("rename", &err)
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.NewValidation("missing_name", "name is required")
	}
	return s.mutate(ctx, id, caller, rbac.PermWrite, func(d *document.Document) (bool, error) {
		if d.Deleted {
			return false, apperr.NewInvalidState("document_recycled", "restore the document before editing it")
		}
		next := d.Content()
		next.Name = name
		return d.ApplyContent(next, caller, s.now()), nil
	})
}

func (s *Service) History(ctx context.Context, id, caller string) (records []document.VersionRecord, err error) {
	defer s.observe("history", &err)
	d, err := s.loadFor(ctx, id, caller, rbac.PermRead)
	if err != nil {
		return nil, err
	}
	return d.VersionHistory, nil
}

// RestoreVersion makes version n the live content. History only grows: the
// restore itself is a new version.
func (s *Service) RestoreVersion(ctx context.Context, id, caller string, n int) (doc *document.Document, err error) {
	defer s.observe("restore_version", &err)
	return s.mutate(ctx, id, caller, rbac.PermWrite, func(d *document.Document) (bool, error) {
		if d.Deleted {
			return false, apperr.NewInvalidState("document_recycled", "restore the document before editing it")
		}
		if !d.RestoreVersion(n, caller, s.now()) {
			return false, apperr.NewNotFound("version_not_found", fmt.Sprintf("version %d does not exist", n))
		}
		return true, nil
	})
}

func (s *Service) GrantAccess(ctx context.Context, id, caller, userID string, perm rbac.Permission) (doc *document.Document, err error) {
	defer s.observe("grant", &err)
	if userID == "" {
		return nil, apperr.NewValidation("missing_user", "userId is required")
	}
	if perm == rbac.PermNone {
		return nil, apperr.NewValidation("invalid_permission", "permission must be read, write or admin")
	}
	return s.mutate(ctx, id, caller, rbac.PermAdmin, func(d *document.Document) (bool, error) {
		if userID == d.OwnerID {
			return false, apperr.NewValidation("owner_grant", "the owner already has full access")
		}
		if p, ok := d.GrantFor(userID); ok && p == perm {
			return false, nil
		}
		d.SetGrant(userID, perm)
		d.UpdatedAt = s.now()
		return true, nil
	})
}

func (s *Service) RevokeAccess(ctx context.Context, id, caller, userID string) (doc *document.Document, err error) {
	defer s.observe("revoke", &err)
	return s.mutate(ctx, id, caller, rbac.PermAdmin, func(d *document.Document) (bool, error) {
		if !d.RemoveGrant(userID) {
			return false, apperr.NewNotFound("grant_not_found", "user has no grant on this document")
		}
		d.UpdatedAt = s.now()
		return true, nil
	})
}

// loadFor reads the document and checks caller holds need on it.
func (s *Service) loadFor(ctx context.Context, id, caller string, need rbac.Permission) (*document.Document, error) {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	if err := s.authorize(ctx, d, caller, need); err != nil {
		return nil, err
	}
	return d, nil
}

// authorize applies document owner, then access grant, then workspace role.
func (s *Service) authorize(ctx context.Context, d *document.Document, caller string, need rbac.Permission) error {
	have, err := s.permission(ctx, d, caller)
	if err != nil {
		return err
	}
	if !rbac.Can(have, need) {
		return apperr.NewPermission("forbidden", fmt.Sprintf("%s access to the document is required", need))
	}
	return nil
}

func (s *Service) permission(ctx context.Context, d *document.Document, caller string) (rbac.Permission, error) {
	subj := rbac.Subject{Caller: caller, DocOwner: d.OwnerID}
	subj.Grant, subj.HasGrant = d.GrantFor(caller)
	if caller != d.OwnerID && !subj.HasGrant {
		access, err := s.workspaces.Access(ctx, d.WorkspaceID, caller)
		if err != nil {
			return rbac.PermNone, accessErr(err)
		}
		subj.WorkspaceRole = access.Role
		subj.Public = access.Public
	}
	return rbac.Effective(subj), nil
}

// mutate re-reads the document, re-checks access and guards via fn, and
// writes it back with a rev check, retrying when another writer got in first.
// fn returning false skips the write. The returned document is the stored state.
func (s *Service) mutate(ctx context.Context, id, caller string, need rbac.Permission, fn func(d *document.Document) (bool, error)) (*document.Document, error) {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		d, err := s.loadFor(ctx, id, caller, need)
		if err != nil {
			return nil, err
		}
		if d.Purging {
			return nil, apperr.NewInvalidState("document_purging", "document is being permanently deleted")
		}
		rev, version := d.Rev, d.Version
		changed, err := fn(d)
		if err != nil {
			return nil, err
		}
		if !changed {
			return d, nil
		}
		err = s.repo.Update(ctx, d, rev)
		if err == nil {
			if d.Version > version {
				metrics.VersionRecords.Add(float64(d.Version - version))
			}
			return d, nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return nil, translate(err)
		}
		s.log.Debug("document update lost race", zap.String("documentId", id), zap.Int("attempt", attempt))
	}
	return nil, apperr.NewConflict("concurrent_update", "document was modified concurrently, retry", repository.ErrConflict)
}

func (s *Service) observe(op string, err *error) {
	outcome := "ok"
	if *err != nil {
		outcome = string(apperr.KindOf(*err))
		if outcome == "" {
			outcome = "internal"
			s.log.Error("document operation failed", zap.String("op", op), zap.Error(*err))
		}
	}
	metrics.DocumentOps.WithLabelValues(op, outcome).Inc()
}

func translate(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NewNotFound("document_not_found", "document not found")
	case errors.Is(err, repository.ErrDuplicateName):
		return apperr.NewConflict("duplicate_name", "a document with this name already exists in the workspace", err)
	case errors.Is(err, repository.ErrConflict):
		return apperr.NewConflict("concurrent_update", "document was modified concurrently, retry", err)
	}
	return apperr.NewStorage("persistence_unavailable", "document store unavailable", err)
}

// accessErr classifies a failure to resolve workspace standing.
func accessErr(err error) error {
	if apperr.KindOf(err) != "" {
		return err
	}
	return apperr.NewStorage("persistence_unavailable", "workspace store unavailable", fmt.Errorf("resolve workspace access: %w", err))
}

func blobErr(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return apperr.NewNotFound("blob_not_found", "stored content for this document is missing")
	case errors.Is(err, storage.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return apperr.NewStorage("blob_timeout", "blob store did not respond in time", err)
	}
	return apperr.NewStorage("blob_unavailable", "blob store unavailable", err)
}
