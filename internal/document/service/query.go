package service

import (
	"context"
	"errors"
	"strings"

	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/apperr"
	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/document"
	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/document/repository"
	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/rbac"
	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/storage"
	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/workspace"
	"go.uber.org/zap"
)

// Preview returns an Inline, Rendered or Unsupported variant. Unsupported
// types are a normal result carrying a download URL.
func (s *Service) Preview(ctx context.Context, id, caller string) (p document.Preview, err error) {
	defer s.observe("preview", &err)
	d, err := s.loadLive(ctx, id, caller)
	if err != nil {
		return nil, err
	}
	if document.PreviewKind(d.MimeType) == "unsupported" {
		if _, err := s.blobs.Stat(ctx, d.ContentKey); err != nil {
			return nil, blobErr(err)
		}
		return document.NewPreview(d.Name, d.MimeType, nil, s.downloadURL(ctx, d)), nil
	}
	data, err := s.blobs.Get(ctx, d.ContentKey)
	if err != nil {
		return nil, blobErr(err)
	}
	return document.NewPreview(d.Name, d.MimeType, data, ""), nil
}

// Download returns the stored bytes. A row whose blob is gone reports
// blob_not_found, distinct from document_not_found.
func (s *Service) Download(ctx context.Context, id, caller string) (out *Download, err error) {
	defer s.observe("download", &err)
	d, err := s.loadLive(ctx, id, caller)
	if err != nil {
		return nil, err
	}
	data, err := s.blobs.Get(ctx, d.ContentKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.log.Warn("document references missing blob", zap.String("documentId", id), zap.String("key", d.ContentKey))
		}
		return nil, blobErr(err)
	}
	return &Download{Name: d.Name, MimeType: d.MimeType, Data: data}, nil
}

// ListByWorkspace lists a workspace's documents. Recycled documents are
// excluded unless opts.Deleted says otherwise.
func (s *Service) ListByWorkspace(ctx context.Context, workspaceID, caller string, opts ListOptions) (docs []*document.Document, err error) {
	defer s.observe("list", &err)
	f, err := listFilter(opts)
	if err != nil {
		return nil, err
	}
	access, err := s.workspaces.Access(ctx, workspaceID, caller)
	if err != nil {
		return nil, accessErr(err)
	}
	if !access.Found {
		return nil, apperr.NewNotFound("workspace_not_found", "workspace not found")
	}
	if !rbac.Can(rbac.Level(access.Role), rbac.PermRead) && !access.Public {
		return nil, apperr.NewPermission("forbidden", "read access to the workspace is required")
	}
	f.WorkspaceID = workspaceID
	docs, err = s.repo.List(ctx, f)
	if err != nil {
		return nil, translate(err)
	}
	return docs, nil
}

// RecycleBin is ListByWorkspace restricted to recycled documents.
func (s *Service) RecycleBin(ctx context.Context, workspaceID, caller string, opts ListOptions) ([]*document.Document, error) {
	opts.Deleted = repository.OnlyDeleted
	return s.ListByWorkspace(ctx, workspaceID, caller, opts)
}

// Search finds live documents the caller can read whose metadata contains
// in.Metadata and that carry every tag in in.Tags. No match is NotFound.
func (s *Service) Search(ctx context.Context, caller string, in SearchInput) (docs []*document.Document, err error) {
	defer s.observe("search", &err)
	meta := strings.TrimSpace(in.Metadata)
	tags := document.NormalizeTags(in.Tags)
	if meta == "" && len(tags) == 0 {
		return nil, apperr.NewValidation("missing_query", "metadata or tags must be provided")
	}
	found, err := s.repo.List(ctx, repository.Filter{Metadata: meta, Tags: tags, Deleted: repository.ExcludeDeleted, SortBy: "updatedAt", Desc: true})
	if err != nil {
		return nil, translate(err)
	}

	cache := map[string]workspace.Access{}
	docs = []*document.Document{}
	for _, d := range found {
		subj := rbac.Subject{Caller: caller, DocOwner: d.OwnerID}
		subj.Grant, subj.HasGrant = d.GrantFor(caller)
		if caller != d.OwnerID && !subj.HasGrant {
			a, ok := cache[d.WorkspaceID]
			if !ok {
				a, err = s.workspaces.Access(ctx, d.WorkspaceID, caller)
				if err != nil {
					return nil, accessErr(err)
				}
				cache[d.WorkspaceID] = a
			}
			subj.WorkspaceRole, subj.Public = a.Role, a.Public
		}
		if rbac.Can(rbac.Effective(subj), rbac.PermRead) {
			docs = append(docs, d)
		}
	}
	if len(docs) == 0 {
		return nil, apperr.NewNotFound("no_documents", "no documents match the search")
	}
	return docs, nil
}

// loadLive is loadFor(read) that also hides recycled documents.
func (s *Service) loadLive(ctx context.Context, id, caller string) (*document.Document, error) {
	d, err := s.loadFor(ctx, id, caller, rbac.PermRead)
	if err != nil {
		return nil, err
	}
	if d.Deleted {
		return nil, apperr.NewNotFound("document_not_found", "document is in the recycle bin")
	}
	return d, nil
}

// downloadURL prefers a presigned blob URL and falls back to the API route.
func (s *Service) downloadURL(ctx context.Context, d *document.Document) string {
	u, err := s.blobs.PresignedURL(ctx, d.ContentKey, s.presignExpiry)
	if err == nil && u != "" {
		return u
	}
	if err != nil && !errors.Is(err, storage.ErrPresignUnsupported) {
		s.log.Debug("presign failed, using api download", zap.String("documentId", d.ID), zap.Error(err))
	}
	return "/api/documents/" + d.ID + "/download"
}

func listFilter(opts ListOptions) (repository.Filter, error) {
	f := repository.Filter{SortBy: opts.SortBy, Limit: opts.Limit, Offset: opts.Offset}
	if f.SortBy == "" {
		f.SortBy = "createdAt"
	}
	if !repository.SortFields[f.SortBy] {
		return f, apperr.NewValidation("invalid_sort", "sortBy must be one of name, createdAt, updatedAt, type, version")
	}
	switch strings.ToLower(opts.Order) {
	case "", "desc":
		f.Desc = true
	case "asc":
	default:
		return f, apperr.NewValidation("invalid_order", "order must be asc or desc")
	}
	switch opts.Deleted {
	case "", repository.ExcludeDeleted:
		f.Deleted = repository.ExcludeDeleted
	case repository.IncludeDeleted, repository.OnlyDeleted:
		f.Deleted = opts.Deleted
	default:
		return f, apperr.NewValidation("invalid_deleted_filter", "includeDeleted must be true, false or only")
	}
	if opts.Limit < 0 || opts.Offset < 0 {
		return f, apperr.NewValidation("invalid_paging", "limit and offset must not be negative")
	}
	return f, nil
}
