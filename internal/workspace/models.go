package workspace

import (
	"time"

	"github.com/MohamedBoghdaddy/Atos-Task-document-management-system/internal/rbac"
)

type Visibility string

const (
	Private Visibility = "private"
	Public  Visibility = "public"
)

// Valid reports whether v is a known visibility.
func (v Visibility) Valid() bool {
	return v == Private || v == Public
}

type Collaborator struct {
	UserID string    `json:"collaboratorId" bson:"collaboratorId"`
	Role   rbac.Role `json:"role" bson:"role"`
}

// Workspace groups documents under one owner and a collaborator list. Rev is
// bumped on every persisted write and guards concurrent updates.
type Workspace struct {
	ID            string         `json:"id" bson:"_id"`
	Name          string         `json:"name" bson:"name"`
	Description   string         `json:"description" bson:"description"`
	OwnerID       string         `json:"ownerId" bson:"ownerId"`
	Visibility    Visibility     `json:"visibility" bson:"visibility"`
	Collaborators []Collaborator `json:"collaborators" bson:"collaborators"`
	Deleted       bool           `json:"deleted" bson:"deleted"`
	CreatedAt     time.Time      `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt" bson:"updatedAt"`
	Rev           int64          `json:"-" bson:"rev"`
}

// RoleOf returns userID's role: Owner for the owner, the collaborator role, or None.
func (w *Workspace) RoleOf(userID string) rbac.Role {
	if userID == "" {
		return rbac.RoleNone
	}
	if w.OwnerID == userID {
		return rbac.RoleOwner
	}
	for _, c := range w.Collaborators {
		if c.UserID == userID {
			return c.Role
		}
	}
	return rbac.RoleNone
}

// SetCollaborator adds userID or updates the role of an existing entry.
func (w *Workspace) SetCollaborator(userID string, role rbac.Role) {
	for i := range w.Collaborators {
		if w.Collaborators[i].UserID == userID {
			w.Collaborators[i].Role = role
			return
		}
	}
	w.Collaborators = append(w.Collaborators, Collaborator{UserID: userID, Role: role})
}

// RemoveCollaborator drops userID and reports whether it was present.
func (w *Workspace) RemoveCollaborator(userID string) bool {
	for i := range w.Collaborators {
		if w.Collaborators[i].UserID == userID {
			w.Collaborators = append(w.Collaborators[:i], w.Collaborators[i+1:]...)
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can mutate without touching stored state.
func (w *Workspace) Clone() *Workspace {
	cp := *w
	cp.Collaborators = make([]Collaborator, len(w.Collaborators))
	copy(cp.Collaborators, w.Collaborators)
	return &cp
}

// Access is what the document engine needs to know about a caller in a workspace.
type Access struct {
	Found  bool
	Role   rbac.Role
	Public bool
}

// Stats is the analytics summary for a user.
type Stats struct {
	OwnedWorkspaces       int   `json:"ownedWorkspaces"`
	CollaboratingIn       int   `json:"collaboratingIn"`
	ActiveDocuments       int64 `json:"activeDocuments"`
	RecycledDocuments     int64 `json:"recycledDocuments"`
	DistinctCollaborators int   `json:"distinctCollaborators"`
}
