package chemtrack

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ProfileStatus is the lifecycle status of a profile.
type ProfileStatus = string

const (
	// ProfileStatusActive allows sign-in and bootstrap.
	ProfileStatusActive ProfileStatus = "active"
	// ProfileStatusInactive blocks sign-in and fails bootstrap closed.
	ProfileStatusInactive ProfileStatus = "inactive"
)

// Profile is the application-level record of role and status for one auth
// identity. Exactly one profile exists per identity; it is created at
// provisioning time, before any sign-in link is issued.
type Profile struct {
	bun.BaseModel  `bun:"table:profiles,alias:prf"`
	ID             uuid.UUID     `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email          string        `bun:"email,notnull,unique" json:"email,omitempty"`
	FullName       string        `bun:"full_name" json:"full_name,omitempty"`
	Phone          string        `bun:"phone_number" json:"phone_number,omitempty"`
	PasswordHash   string        `bun:"password_hash" json:"-"`
	IsAdmin        bool          `bun:"is_admin,notnull,default:false" json:"is_admin"`
	IsOwner        bool          `bun:"is_owner,notnull,default:false" json:"is_owner"`
	Status         ProfileStatus `bun:"status,notnull,default:'active'" json:"status,omitempty"`
	ResetPassword  *bool         `bun:"has_reset_password" json:"has_reset_password,omitempty"`
	LoginAttempts  int           `bun:"login_attempts" json:"-"`
	LoginAttemptAt *time.Time    `bun:"login_attempt_at" json:"-"`
	LoggedInAt     *time.Time    `bun:"loggedin_at" json:"loggedin_at,omitempty"`
	CreatedAt      *time.Time    `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time    `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt      *time.Time    `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// HasResetPassword is the canonical null rule for the reset gate: a nil
// column reads as false, so both nil and false force the reset-password
// route. Every call site goes through here.
func (p *Profile) HasResetPassword() bool {
	return p != nil && p.ResetPassword != nil && *p.ResetPassword
}

// EnsureStatus normalizes a zero status to active.
func (p *Profile) EnsureStatus() {
	if p != nil && p.Status == "" {
		p.Status = ProfileStatusActive
	}
}

// IsActive reports whether the profile may hold a session.
func (p *Profile) IsActive() bool {
	if p == nil {
		return false
	}
	p.EnsureStatus()
	return p.Status == ProfileStatusActive
}

// Role reduces the admin/owner flags to a single label for token claims.
func (p *Profile) Role() string {
	switch {
	case p == nil:
		return RoleMember
	case p.IsOwner:
		return RoleOwner
	case p.IsAdmin:
		return RoleAdmin
	default:
		return RoleMember
	}
}

// MagicLinkType discriminates the one-time link flavors the exchange
// handler recognizes.
type MagicLinkType = string

const (
	// MagicLinkTypeSignIn is a passwordless sign-in link.
	MagicLinkTypeSignIn MagicLinkType = "magiclink"
	// MagicLinkTypeRecovery is a password-recovery link.
	MagicLinkTypeRecovery MagicLinkType = "recovery"
)

// MagicLink is a one-time code record. The raw code is never stored; only
// its SHA-256 hash is persisted, and ConsumedAt claims it exactly once.
type MagicLink struct {
	bun.BaseModel `bun:"table:magic_links,alias:mgl"`
	ID            uuid.UUID     `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	TokenHash     string        `bun:"token_hash,notnull,unique" json:"-"`
	Type          MagicLinkType `bun:"link_type,notnull" json:"link_type,omitempty"`
	ProfileID     uuid.UUID     `bun:"profile_id,notnull,type:uuid" json:"profile_id,omitempty"`
	Profile       *Profile      `bun:"rel:has-one,join:profile_id=id" json:"profile,omitempty"`
	Email         string        `bun:"email,notnull" json:"email,omitempty"`
	ExpiresAt     time.Time     `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	ConsumedAt    *time.Time    `bun:"consumed_at,nullzero" json:"consumed_at,omitempty"`
	CreatedAt     *time.Time    `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// IsConsumed reports whether the link was already exchanged.
func (l *MagicLink) IsConsumed() bool {
	return l != nil && l.ConsumedAt != nil
}

// IsExpired reports whether the link is past its expiry at the given time.
func (l *MagicLink) IsExpired(now time.Time) bool {
	return l == nil || !l.ExpiresAt.After(now)
}
