package access

import (
	"sort"

	"github.com/clubforge/clubforge/internal/catalog"
	"github.com/clubforge/clubforge/internal/overrides"
	"github.com/clubforge/clubforge/internal/roles"
	"github.com/clubforge/clubforge/internal/users"
)

// Resolve computes a user's effective permission state. It is pure: no
// store access, no side effects, deterministic output (sorted name sets).
//
// Precedence per permission, each evaluated independently:
//
//	deny override > grant override > role membership
//
// A role id on the user that is missing from userRoles, or an override
// pointing at a permission absent from the catalog, yields an
// IntegrityError rather than an empty grant.
func Resolve(perms []catalog.Permission, user users.User, userRoles []roles.Role, userOverrides []overrides.PermissionOverride) (EffectivePermissions, error) {
	byRoleID := make(map[int64]roles.Role, len(userRoles))
	for _, role := range userRoles {
		byRoleID[role.ID] = role
	}
	for _, id := range user.RoleIDs {
		if _, ok := byRoleID[id]; !ok {
			return EffectivePermissions{}, &IntegrityError{Entity: "role", ID: id}
		}
	}

	byPermID := make(map[int64]catalog.Permission, len(perms))
	for _, p := range perms {
		byPermID[p.ID] = p
	}

	rolePerms := make(map[string]struct{})
	for _, id := range user.RoleIDs {
		for _, name := range byRoleID[id].PermissionNames {
			rolePerms[name] = struct{}{}
		}
	}

	denied := make(map[string]struct{})
	granted := make(map[string]struct{})
	views := make([]OverrideView, 0, len(userOverrides))
	for _, o := range userOverrides {
		perm, ok := byPermID[o.PermissionID]
		if !ok {
			return EffectivePermissions{}, &IntegrityError{Entity: "permission", ID: o.PermissionID}
		}
		switch o.Effect {
		case overrides.EffectDeny:
			denied[perm.Name] = struct{}{}
		case overrides.EffectGrant:
			granted[perm.Name] = struct{}{}
		}
		views = append(views, OverrideView{
			ID:             o.ID,
			PermissionID:   o.PermissionID,
			PermissionName: perm.Name,
			DisplayName:    perm.DisplayName,
			Effect:         o.Effect,
			AssignedBy:     o.AssignedBy,
			CreatedAt:      o.CreatedAt,
		})
	}

	effective := make([]string, 0, len(perms))
	for _, p := range perms {
		if _, ok := denied[p.Name]; ok {
			continue
		}
		if _, ok := granted[p.Name]; ok {
			effective = append(effective, p.Name)
			continue
		}
		if _, ok := rolePerms[p.Name]; ok {
			effective = append(effective, p.Name)
		}
	}
	sort.Strings(effective)

	return EffectivePermissions{
		UserID:              user.ID,
		RolePermissions:     sortedKeys(rolePerms),
		IndividualOverrides: views,
		Effective:           effective,
	}, nil
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
