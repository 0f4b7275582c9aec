package rbac

import "strings"

// Role is a caller's standing in a workspace.
type Role string

// Permission is an access level on a document. Levels are ordered.
type Permission int

const (
	RoleNone   Role = ""
	RoleViewer Role = "Viewer"
	RoleEditor Role = "Editor"
	RoleAdmin  Role = "Admin"
	RoleOwner  Role = "Owner"
)

const (
	PermNone Permission = iota
	PermRead
	PermWrite
	PermAdmin
)

func (p Permission) String() string {
	switch p {
	case PermRead:
		return "read"
	case PermWrite:
		return "write"
	case PermAdmin:
		return "admin"
	}
	return "none"
}

// ParsePermission accepts read, write or admin (case-insensitive).
func ParsePermission(s string) (Permission, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "read":
		return PermRead, true
	case "write":
		return PermWrite, true
	case "admin":
		return PermAdmin, true
	}
	return PermNone, false
}

// ParseRole accepts the collaborator roles Viewer, Editor and Admin. Owner is
// never assignable.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "viewer":
		return RoleViewer, true
	case "editor":
		return RoleEditor, true
	case "admin":
		return RoleAdmin, true
	}
	return RoleNone, false
}

// Level maps a workspace role onto a document permission.
func Level(role Role) Permission {
	switch role {
	case RoleOwner, RoleAdmin:
		return PermAdmin
	case RoleEditor:
		return PermWrite
	case RoleViewer:
		return PermRead
	}
	return PermNone
}

// Can reports whether have satisfies need.
func Can(have, need Permission) bool {
	return need > PermNone && have >= need
}

// CanManageMembers is true for the roles allowed to change a workspace's
// collaborators and settings.
func CanManageMembers(role Role) bool {
	return role == RoleOwner || role == RoleAdmin
}

// Subject is what a document access decision is made from.
type Subject struct {
	Caller        string
	DocOwner      string
	Grant         Permission
	HasGrant      bool
	WorkspaceRole Role
	Public        bool
}

// Effective applies the precedence document owner, then access grant, then
// workspace role. A present grant replaces the workspace tier for that user.
func Effective(s Subject) Permission {
	if s.Caller == "" {
		return PermNone
	}
	if s.Caller == s.DocOwner {
		return PermAdmin
	}
	if s.HasGrant {
		return s.Grant
	}
	if p := Level(s.WorkspaceRole); p > PermNone {
		return p
	}
	if s.Public {
		return PermRead
	}
	return PermNone
}
