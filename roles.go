package chemtrack

// UserRole is the reduced role label carried in session claims.
type UserRole = string

const (
	// RoleMember is a regular authenticated user.
	RoleMember UserRole = "member"
	// RoleAdmin may manage users, locations, and review assessments.
	RoleAdmin UserRole = "admin"
	// RoleOwner is the non-editable, non-deletable super-admin.
	RoleOwner UserRole = "owner"
)

// RouteRequirement is the declared minimum authorization level for a route.
type RouteRequirement string

const (
	// RequirementNone renders for everyone.
	RequirementNone RouteRequirement = "none"
	// RequirementAuthenticated requires any live session.
	RequirementAuthenticated RouteRequirement = "authenticated"
	// RequirementAdminOnly requires an admin or owner session.
	RequirementAdminOnly RouteRequirement = "admin-only"
)

// SatisfiedBy reports whether a profile meets the requirement. The reset
// gate is evaluated separately (and earlier) by Decide; this is the pure
// role predicate.
func (r RouteRequirement) SatisfiedBy(p *Profile) bool {
	switch r {
	case RequirementNone:
		return true
	case RequirementAuthenticated:
		return p != nil
	case RequirementAdminOnly:
		return p != nil && (p.IsAdmin || p.IsOwner)
	default:
		// unknown requirements fail closed
		return false
	}
}

// CanAdminister reports whether the profile may access admin-only routes.
func CanAdminister(p *Profile) bool {
	return RequirementAdminOnly.SatisfiedBy(p)
}

// CanManageProfile reports whether actor may edit or delete target. Owner
// profiles are immutable through every role-check path.
func CanManageProfile(actor, target *Profile) bool {
	if target == nil || target.IsOwner {
		return false
	}
	return CanAdminister(actor)
}
