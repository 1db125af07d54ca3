package auth

import "slices"

// Permission represents a named capability.
type Permission string

// Permission constants.
const (
	PermDeviceRead   Permission = "device:read"
	PermDeviceWrite  Permission = "device:write"
	PermDeviceDelete Permission = "device:delete"
	PermAuditRead    Permission = "audit:read"
)

// rolePermissions maps each role to its granted permissions.
var rolePermissions = map[Role][]Permission{
	RoleUser:  {PermDeviceRead, PermDeviceWrite},
	RoleAdmin: {PermDeviceRead, PermDeviceWrite, PermDeviceDelete, PermAuditRead},
}

// HasPermission returns true if the given role has the specified permission.
func HasPermission(role Role, perm Permission) bool {
	return slices.Contains(rolePermissions[role], perm)
}
