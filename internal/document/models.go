package document

import (
	"strings"
	"time"

	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/rbac"
)

// Fields that count as content. A change to any of them appends a version record.
const (
	FieldContent  = "content"
	FieldName     = "name"
	FieldMetadata = "metadata"
	FieldTags     = "tags"
)

// Snapshot is the content-bearing state of a document at one version.
// MimeType and Size travel with ContentKey.
type Snapshot struct {
	ContentKey string   `json:"contentKey" bson:"contentKey"`
	MimeType   string   `json:"type" bson:"type"`
	Size       int64    `json:"size" bson:"size"`
	Name       string   `json:"name" bson:"name"`
	Metadata   string   `json:"metadata" bson:"metadata"`
	Tags       []string `json:"tags" bson:"tags"`
}

// VersionRecord is one entry of the append-only history. Snapshot holds the
// state the document had at VersionNumber, before the change was applied.
type VersionRecord struct {
	VersionNumber int       `json:"versionNumber" bson:"versionNumber"`
	Snapshot      Snapshot  `json:"snapshot" bson:"snapshot"`
	Changed       []string  `json:"changed" bson:"changed"`
	Timestamp     time.Time `json:"timestamp" bson:"timestamp"`
	ModifiedBy    string    `json:"modifiedBy" bson:"modifiedBy"`
	RestoredFrom  int       `json:"restoredFrom,omitempty" bson:"restoredFrom,omitempty"`
}

type AccessGrant struct {
	UserID     string `json:"userId" bson:"userId"`
	Permission string `json:"permission" bson:"permission"`
}

// Document is a stored file plus its lifecycle and version state.
// Invariant: Version == len(VersionHistory)+1.
type Document struct {
	ID             string          `json:"id" bson:"_id"`
	Name           string          `json:"name" bson:"name"`
	MimeType       string          `json:"type" bson:"type"`
	ContentKey     string          `json:"contentKey" bson:"contentKey"`
	Size           int64           `json:"size" bson:"size"`
	OwnerID        string          `json:"ownerId" bson:"ownerId"`
	WorkspaceID    string          `json:"workspaceId" bson:"workspaceId"`
	Tags           []string        `json:"tags" bson:"tags"`
	Metadata       string          `json:"metadata" bson:"metadata"`
	Grants         []AccessGrant   `json:"grants" bson:"grants"`
	Deleted        bool            `json:"deleted" bson:"deleted"`
	// Purging is set while a permanent delete removes the blobs.
	Purging        bool            `json:"-" bson:"purging,omitempty"`
	Version        int             `json:"version" bson:"version"`
	VersionHistory []VersionRecord `json:"versionHistory" bson:"versionHistory"`
	CreatedAt      time.Time       `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt" bson:"updatedAt"`
	Rev            int64           `json:"-" bson:"rev"`
}

// Content returns the current content-bearing state.
func (d *Document) Content() Snapshot {
	return Snapshot{
		ContentKey: d.ContentKey,
		MimeType:   d.MimeType,
		Size:       d.Size,
		Name:       d.Name,
		Metadata:   d.Metadata,
		Tags:       append([]string{}, d.Tags...),
	}
}

// Diff lists the content fields that differ between a and b.
func Diff(a, b Snapshot) []string {
	var out []string
	if a.ContentKey != b.ContentKey {
		out = append(out, FieldContent)
	}
	if a.Name != b.Name {
		out = append(out, FieldName)
	}
	if a.Metadata != b.Metadata {
		out = append(out, FieldMetadata)
	}
	if !equalTags(a.Tags, b.Tags) {
		out = append(out, FieldTags)
	}
	return out
}

// ApplyContent moves the document to next. If any content field changes, the
// prior state is appended to the history and Version is incremented; it
// reports whether that happened.
func (d *Document) ApplyContent(next Snapshot, by string, now time.Time) bool {
	changed := Diff(d.Content(), next)
	if len(changed) == 0 {
		return false
	}
	d.record(next, changed, by, now, 0)
	return true
}

// RestoreVersion copies the snapshot of version n back into the live fields.
// It always appends a record, even when the content is already identical.
func (d *Document) RestoreVersion(n int, by string, now time.Time) bool {
	snap, ok := d.SnapshotAt(n)
	if !ok {
		return false
	}
	d.record(snap, Diff(d.Content(), snap), by, now, n)
	return true
}

// SnapshotAt returns the content the document had at version n.
func (d *Document) SnapshotAt(n int) (Snapshot, bool) {
	if n == d.Version {
		return d.Content(), true
	}
	for _, r := range d.VersionHistory {
		if r.VersionNumber == n {
			return r.Snapshot, true
		}
	}
	return Snapshot{}, false
}

func (d *Document) record(next Snapshot, changed []string, by string, now time.Time, restoredFrom int) {
	if changed == nil {
		changed = []string{}
	}
	d.VersionHistory = append(d.VersionHistory, VersionRecord{
		VersionNumber: d.Version,
		Snapshot:      d.Content(),
		Changed:       changed,
		Timestamp:     now,
		ModifiedBy:    by,
		RestoredFrom:  restoredFrom,
	})
	d.Version++
	d.ContentKey = next.ContentKey
	d.MimeType = next.MimeType
	d.Size = next.Size
	d.Name = next.Name
	d.Metadata = next.Metadata
	d.Tags = append([]string{}, next.Tags...)
	d.UpdatedAt = now
}

// GrantFor returns the document-level permission held by userID, if any.
func (d *Document) GrantFor(userID string) (rbac.Permission, bool) {
	for _, g := range d.Grants {
		if g.UserID == userID {
			p, ok := rbac.ParsePermission(g.Permission)
			return p, ok
		}
	}
	return rbac.PermNone, false
}

// SetGrant adds or replaces userID's grant.
func (d *Document) SetGrant(userID string, p rbac.Permission) {
	for i := range d.Grants {
		if d.Grants[i].UserID == userID {
			d.Grants[i].Permission = p.String()
			return
		}
	}
	d.Grants = append(d.Grants, AccessGrant{UserID: userID, Permission: p.String()})
}

func (d *Document) RemoveGrant(userID string) bool {
	for i := range d.Grants {
		if d.Grants[i].UserID == userID {
			d.Grants = append(d.Grants[:i], d.Grants[i+1:]...)
			return true
		}
	}
	return false
}

// BlobKeys returns every distinct content key the document references,
// current first, then history in order.
func (d *Document) BlobKeys() []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(k string) {
		if k == "" {
			return
		}
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	add(d.ContentKey)
	for _, r := range d.VersionHistory {
		add(r.Snapshot.ContentKey)
	}
	return out
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	cp := *d
	cp.Tags = append([]string{}, d.Tags...)
	cp.Grants = append([]AccessGrant{}, d.Grants...)
	cp.VersionHistory = make([]VersionRecord, len(d.VersionHistory))
	for i, r := range d.VersionHistory {
		r.Changed = append([]string{}, r.Changed...)
		r.Snapshot.Tags = append([]string{}, r.Snapshot.Tags...)
		cp.VersionHistory[i] = r
	}
	return &cp
}

// NormalizeTags trims tags, drops empties and duplicates, keeping order.
func NormalizeTags(tags []string) []string {
	out := []string{}
	seen := map[string]struct{}{}
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func equalTags(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
