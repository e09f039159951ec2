package chemtrack

import (
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	// TextCodeNoSession identifies requests carrying no credential.
	TextCodeNoSession = "NO_SESSION"
	// TextCodeExchangeFailed identifies invalid, expired, or reused one-time codes.
	TextCodeExchangeFailed = "EXCHANGE_FAILED"
	// TextCodeProfileFetch identifies profile lookups that errored or timed out.
	TextCodeProfileFetch = "PROFILE_FETCH_ERROR"
	// TextCodeProfileMissing identifies authenticated identities without a profile row.
	TextCodeProfileMissing = "PROFILE_MISSING"
	// TextCodeRoleDenied identifies role-requirement failures.
	TextCodeRoleDenied = "ROLE_DENIED"
	// TextCodeOwnerImmutable identifies attempts to edit or delete an owner profile.
	TextCodeOwnerImmutable = "OWNER_IMMUTABLE"
	// TextCodeTokenExpired identifies expired session tokens.
	TextCodeTokenExpired = "TOKEN_EXPIRED"
	// TextCodeProfileInactive identifies disabled accounts.
	TextCodeProfileInactive = "PROFILE_INACTIVE"
)

// ErrNoSession means no credential was presented. Callers redirect to sign-in
// without surfacing an error to the user.
var ErrNoSession = errors.New("no session credential present", errors.CategoryAuth).
	WithTextCode(TextCodeNoSession).
	WithCode(errors.CodeUnauthorized)

// ErrExchangeFailed means a one-time code was invalid, expired, or already used.
var ErrExchangeFailed = errors.New("invalid or expired link", errors.CategoryAuth).
	WithTextCode(TextCodeExchangeFailed).
	WithCode(errors.CodeUnauthorized)

// ErrProfileFetch means the profile lookup errored or timed out. The guard
// fails closed: protected content is never rendered on uncertainty.
var ErrProfileFetch = errors.New("unable to load profile", errors.CategoryInternal).
	WithTextCode(TextCodeProfileFetch).
	WithCode(errors.CodeInternal)

// ErrProfileMissing means the credential authenticated but no profile row
// exists for the identity.
var ErrProfileMissing = errors.New("profile not found, contact support", errors.CategoryNotFound).
	WithTextCode(TextCodeProfileMissing).
	WithCode(errors.CodeNotFound)

// ErrRoleDenied is a normal authorization outcome, not a failure: the route
// requires a role the session does not carry.
var ErrRoleDenied = errors.New("route requires elevated role", errors.CategoryAuthz).
	WithTextCode(TextCodeRoleDenied).
	WithCode(errors.CodeForbidden)

// ErrOwnerImmutable guards the owner profile against edits and deletion.
var ErrOwnerImmutable = errors.New("owner profile cannot be modified or deleted", errors.CategoryAuthz).
	WithTextCode(TextCodeOwnerImmutable).
	WithCode(errors.CodeForbidden)

// ErrProfileInactive blocks sign-in and bootstrap for disabled accounts.
var ErrProfileInactive = errors.New("account is inactive", errors.CategoryAuth).
	WithTextCode(TextCodeProfileInactive).
	WithCode(errors.CodeForbidden)

// ErrTokenExpired is returned when a session token is past its expiry.
var ErrTokenExpired = errors.New("session token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed is returned when a session token cannot be decoded.
var ErrTokenMalformed = errors.New("session token is malformed", errors.CategoryAuth).
	WithTextCode("TOKEN_MALFORMED").
	WithCode(errors.CodeUnauthorized)

// ErrMismatchedHashAndPassword is returned on credential mismatch.
var ErrMismatchedHashAndPassword = errors.New("credentials do not match", errors.CategoryAuth).
	WithTextCode("CREDENTIAL_MISMATCH").
	WithCode(errors.CodeUnauthorized)

// ErrTooManyLoginAttempts enforces the sign-in cool down window.
var ErrTooManyLoginAttempts = errors.New("too many login attempts", errors.CategoryAuth).
	WithTextCode("TOO_MANY_ATTEMPTS").
	WithCode(errors.CodeUnauthorized)

// ErrNoEmptyString rejects empty passwords before hashing.
var ErrNoEmptyString = errors.New("value must not be empty", errors.CategoryBadInput).
	WithCode(errors.CodeBadRequest)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
