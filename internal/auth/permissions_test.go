package auth

import "testing"

func TestHasPermission(t *testing.T) {
	tests := []struct {
		role Role
		perm Permission
		want bool
	}{
		{RoleUser, PermDeviceRead, true},
		{RoleUser, PermDeviceWrite, true},
		{RoleUser, PermDeviceDelete, false},
		{RoleAdmin, PermDeviceDelete, true},
		{RoleUser, PermAuditRead, false},
		{RoleAdmin, PermAuditRead, true},
		{Role("owner"), PermDeviceRead, false},
	}

	for _, tt := range tests {
		if got := HasPermission(tt.role, tt.perm); got != tt.want {
			t.Errorf("HasPermission(%s, %s) = %v, want %v", tt.role, tt.perm, got, tt.want)
		}
	}
}
