package entity

type Role string

const (
	RoleAdmin  Role = "Admin"
	RoleEditor Role = "Editor"
	RoleViewer Role = "Viewer"
)

// Actor is the authenticated caller on whose behalf a use case runs.
type Actor struct {
	UserID   string
	TenantID string
	Role     Role
}

func (a Actor) CanUpload() bool {
	return a.Role == RoleAdmin || a.Role == RoleEditor
}

// CanManage reports whether the actor may view or delete the given video.
func (a Actor) CanManage(v *Video) bool {
	if a.Role == RoleAdmin && a.TenantID == v.TenantID {
		return true
	}
	return a.UserID == v.OwnerID
}
