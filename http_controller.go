package chemtrack

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// AuthController owns the sign-in surface: the magic-link landing, password
// login, logout, the password-reset screen, and the dashboard redirector.
type AuthController struct {
	Logger    Logger
	Repo      RepositoryManager
	Auther    Authenticator
	Exchanger *MagicLinkExchanger

	cookieKey string
	cookieTTL time.Duration
	activity  ActivitySink
}

type AuthControllerOption func(*AuthController) *AuthController

func NewAuthController(repo RepositoryManager, auther Authenticator, exchanger *MagicLinkExchanger, cfg Config, opts ...AuthControllerOption) *AuthController {
	ttl := time.Duration(cfg.GetTokenExpiration()) * time.Hour

	c := &AuthController{
		Logger:    defLogger{},
		Repo:      repo,
		Auther:    auther,
		Exchanger: exchanger,
		cookieKey: cfg.GetContextKey(),
		cookieTTL: ttl,
		activity:  noopActivitySink{},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	return c
}

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithControllerActivitySink(sink ActivitySink) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.activity = normalizeActivitySink(sink)
		return c
	}
}

// RegisterAuthRoutes wires the controller and guard into the app. The /auth
// surface is unguarded; everything else declares its requirement.
func RegisterAuthRoutes(app *fiber.App, controller *AuthController, guard *RouteGuard) {
	app.Get(RouteSignIn, controller.AuthLanding).Name("sign-in.get")
	app.Post(RouteSignIn+"/login", controller.LoginPost).Name("sign-in.post")
	app.Get(RouteSignIn+"/logout", controller.LogOut).Name("sign-out.get")

	app.Get(RouteResetPassword,
		guard.Protect(RequirementAuthenticated),
		controller.ResetPasswordShow,
	).Name("pwd-reset.get")
	app.Post(RouteResetPassword,
		guard.Protect(RequirementAuthenticated),
		controller.ResetPasswordPost,
	).Name("pwd-reset.post")

	app.Get(RouteDashboard,
		guard.Protect(RequirementAuthenticated),
		controller.DashboardRedirect,
	).Name("dashboard.get")

	app.Get(RouteAdminDashboard,
		guard.Protect(RequirementAdminOnly),
		controller.AdminDashboard,
	).Name("admin-dashboard.get")
	app.Get(RouteAdminUsers,
		guard.Protect(RequirementAdminOnly),
		controller.AdminUsers,
	).Name("admin-users.get")
	app.Post(RouteAdminUsers,
		guard.Protect(RequirementAdminOnly),
		controller.AdminProvisionUser,
	).Name("admin-users.post")
	app.Post(RouteAdminUsers+"/:id/role",
		guard.Protect(RequirementAdminOnly),
		controller.AdminSetUserRole,
	).Name("admin-users-role.post")
	app.Post(RouteAdminUsers+"/:id/status",
		guard.Protect(RequirementAdminOnly),
		controller.AdminSetUserStatus,
	).Name("admin-users-status.post")
	app.Delete(RouteAdminUsers+"/:id",
		guard.Protect(RequirementAdminOnly),
		controller.AdminDeleteUser,
	).Name("admin-users.delete")

	app.Get(RouteUserDashboard,
		guard.Protect(RequirementAuthenticated),
		controller.UserDashboard,
	).Name("user-dashboard.get")
}

// AuthLanding serves GET /auth. With no link parameters it renders the
// sign-in landing. With link parameters it runs the exchange, and any session
// already present is terminated first so the link always wins, even when it
// belongs to a different account.
func (a *AuthController) AuthLanding(c *fiber.Ctx) error {
	params := ExchangeParams{
		Code:      c.Query("code"),
		Token:     c.Query("token"),
		TokenHash: c.Query("token_hash"),
		Type:      MagicLinkType(c.Query("type")),
		Email:     c.Query("email"),
		Temp:      c.Query("temp") == "true",
	}

	if params.Empty() {
		return c.JSON(fiber.Map{
			"page":   "sign-in",
			"notice": PopNotice(c),
		})
	}

	// terminate any current session before the exchange so a failed exchange
	// can never fall through to the previous account
	if existing := c.Cookies(a.cookieKey); existing != "" {
		a.signOut(c, existing)
	}

	token, profile, err := a.Exchanger.Exchange(c.UserContext(), params)
	if err != nil {
		return a.exchangeFailure(c, err)
	}

	a.setSessionCookie(c, token)

	if !profile.HasResetPassword() {
		return c.Redirect(RouteResetPassword, fiber.StatusFound)
	}

	return c.Redirect(DashboardFor(profile), fiber.StatusFound)
}

func (a *AuthController) exchangeFailure(c *fiber.Ctx, err error) error {
	clearCookie(c, a.cookieKey)

	notice := ErrExchangeFailed.Message
	if errors.Is(err, ErrProfileMissing) {
		notice = ErrProfileMissing.Message
	} else if !errors.Is(err, ErrExchangeFailed) {
		a.Logger.Error("magic link exchange error: %v", err)
		notice = ErrExchangeFailed.Message
	}

	SetNotice(c, notice)
	return c.Redirect(RouteSignIn, fiber.StatusFound)
}

// LoginRequest payload
type LoginRequest struct {
	Identifier string `form:"identifier" json:"identifier"`
	Password   string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Identifier,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

func (a *AuthController) LoginPost(c *fiber.Ctx) error {
	payload := new(LoginRequest)

	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "failed to parse payload",
		})
	}

	if err := payload.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"validation": err.Error(),
		})
	}

	token, err := a.Auther.Login(c.UserContext(), payload.Identifier, payload.Password)
	if err != nil {
		a.Logger.Warn("login failed for %s: %v", payload.Identifier, err)
		SetNotice(c, "Invalid email or password")
		return c.Redirect(RouteSignIn, fiber.StatusSeeOther)
	}

	a.setSessionCookie(c, token)

	profile, err := a.Repo.Profiles().GetByEmail(c.UserContext(), payload.Identifier)
	if err != nil {
		a.Logger.Error("post-login profile fetch failed: %v", err)
		return c.Redirect(RouteDashboard, fiber.StatusSeeOther)
	}

	if !profile.HasResetPassword() {
		return c.Redirect(RouteResetPassword, fiber.StatusSeeOther)
	}

	return c.Redirect(DashboardFor(profile), fiber.StatusSeeOther)
}

func (a *AuthController) LogOut(c *fiber.Ctx) error {
	if token := c.Cookies(a.cookieKey); token != "" {
		a.signOut(c, token)
	}
	return c.Redirect(RouteSignIn, fiber.StatusFound)
}

func (a *AuthController) ResetPasswordShow(c *fiber.Ctx) error {
	profile, _ := GuardedProfile(c)
	return c.JSON(fiber.Map{
		"page":   "reset-password",
		"email":  profileEmail(profile),
		"notice": PopNotice(c),
	})
}

// ResetPasswordRequestPayload holds values for the new password
type ResetPasswordRequestPayload struct {
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r ResetPasswordRequestPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Password, validation.Required, validation.Length(10, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(validateStringEquals(r.Password)),
		),
	)
}

func validateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return goerrors.New("passwords do not match", goerrors.CategoryValidation)
		}
		return nil
	}
}

func (a *AuthController) ResetPasswordPost(c *fiber.Ctx) error {
	profile, ok := GuardedProfile(c)
	if !ok {
		return c.Redirect(RouteSignIn, fiber.StatusSeeOther)
	}

	payload := new(ResetPasswordRequestPayload)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "failed to parse payload",
		})
	}

	if err := payload.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"validation": err.Error(),
		})
	}

	update := NewUpdatePasswordHandler(a.Repo).
		WithActivitySink(a.activity).
		WithLogger(a.Logger)

	if err := update.Execute(c.UserContext(), UpdatePasswordMessage{
		ProfileID: profile.ID,
		Password:  payload.Password,
	}); err != nil {
		a.Logger.Error("password update failed: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Redirect(DashboardFor(profile), fiber.StatusSeeOther)
}

// DashboardRedirect sends the profile to its role-appropriate dashboard.
func (a *AuthController) DashboardRedirect(c *fiber.Ctx) error {
	profile, ok := GuardedProfile(c)
	if !ok {
		return c.Redirect(RouteSignIn, fiber.StatusFound)
	}
	return c.Redirect(DashboardFor(profile), fiber.StatusFound)
}

func (a *AuthController) AdminDashboard(c *fiber.Ctx) error {
	profile, _ := GuardedProfile(c)
	return c.JSON(fiber.Map{
		"page":    "admin-dashboard",
		"email":   profileEmail(profile),
		"is_root": profile != nil && profile.IsOwner,
	})
}

func (a *AuthController) AdminUsers(c *fiber.Ctx) error {
	records, err := a.Repo.Profiles().ListAll(c.UserContext())
	if err != nil {
		a.Logger.Error("admin users listing failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list users",
		})
	}

	return c.JSON(fiber.Map{
		"page":  "admin-users",
		"users": records,
	})
}

// ProvisionUserRequestPayload is the admin create-user body.
type ProvisionUserRequestPayload struct {
	Email       string `form:"email" json:"email"`
	FullName    string `form:"full_name" json:"full_name"`
	Phone       string `form:"phone" json:"phone"`
	PhoneRegion string `form:"phone_region" json:"phone_region"`
	IsAdmin     bool   `form:"is_admin" json:"is_admin"`
}

// Validate will run validation rules
func (r ProvisionUserRequestPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.FullName, validation.Length(0, 200)),
	)
}

func (a *AuthController) AdminProvisionUser(c *fiber.Ctx) error {
	payload := new(ProvisionUserRequestPayload)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "failed to parse payload",
		})
	}

	if err := payload.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"validation": err.Error(),
		})
	}

	actor, _ := GuardedProfile(c)

	provision := NewProvisionUserHandler(a.Repo, a.Exchanger).
		WithActivitySink(a.activity).
		WithLogger(a.Logger)

	if err := provision.Execute(c.UserContext(), ProvisionUserMessage{
		Email:       payload.Email,
		FullName:    payload.FullName,
		Phone:       payload.Phone,
		PhoneRegion: payload.PhoneRegion,
		IsAdmin:     payload.IsAdmin,
		Actor:       actor,
	}); err != nil {
		return a.adminUpdateFailure(c, err, "failed to provision user")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"email": payload.Email,
	})
}

// UpdateUserRolePayload toggles the admin flag.
type UpdateUserRolePayload struct {
	IsAdmin bool `form:"is_admin" json:"is_admin"`
}

func (a *AuthController) AdminSetUserRole(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid profile id",
		})
	}

	payload := new(UpdateUserRolePayload)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "failed to parse payload",
		})
	}

	updated, err := a.Repo.Profiles().SetAdmin(c.UserContext(), id, payload.IsAdmin)
	if err != nil {
		return a.adminUpdateFailure(c, err, "failed to update role")
	}

	a.recordAccessChange(c, updated, map[string]any{
		"field":    "is_admin",
		"is_admin": payload.IsAdmin,
	})

	return c.JSON(updated)
}

// UpdateUserStatusPayload flips a profile between active and inactive.
type UpdateUserStatusPayload struct {
	Status string `form:"status" json:"status"`
}

// Validate will validate the payload
func (r UpdateUserStatusPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Status,
			validation.Required,
			validation.In(ProfileStatusActive, ProfileStatusInactive),
		),
	)
}

func (a *AuthController) AdminSetUserStatus(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid profile id",
		})
	}

	payload := new(UpdateUserStatusPayload)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "failed to parse payload",
		})
	}

	if err := payload.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"validation": err.Error(),
		})
	}

	updated, err := a.Repo.Profiles().SetStatus(c.UserContext(), id, payload.Status)
	if err != nil {
		return a.adminUpdateFailure(c, err, "failed to update status")
	}

	a.recordAccessChange(c, updated, map[string]any{
		"field":  "status",
		"status": payload.Status,
	})

	return c.JSON(updated)
}

func (a *AuthController) AdminDeleteUser(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid profile id",
		})
	}

	actor, _ := GuardedProfile(c)

	remove := NewDeleteUserHandler(a.Repo).
		WithActivitySink(a.activity).
		WithLogger(a.Logger)

	if err := remove.Execute(c.UserContext(), DeleteUserMessage{
		ProfileID: id,
		Actor:     actor,
	}); err != nil {
		return a.adminUpdateFailure(c, err, "failed to delete user")
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// adminUpdateFailure maps user-management errors onto the admin API surface.
// Owner immutability surfaces as forbidden, never as a silent success.
func (a *AuthController) adminUpdateFailure(c *fiber.Ctx, err error, msg string) error {
	if errors.Is(err, ErrOwnerImmutable) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": ErrOwnerImmutable.Message,
		})
	}

	if repository.IsRecordNotFound(err) || goerrors.IsNotFound(err) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "profile not found",
		})
	}

	var richErr *goerrors.Error
	if errors.As(err, &richErr) {
		switch richErr.Category {
		case goerrors.CategoryValidation, goerrors.CategoryBadInput:
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": richErr.Message,
			})
		case goerrors.CategoryConflict:
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": richErr.Message,
			})
		}
	}

	a.Logger.Error("%s: %v", msg, err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": msg,
	})
}

func (a *AuthController) recordAccessChange(c *fiber.Ctx, target *Profile, metadata map[string]any) {
	actor := ActorRef{Type: "system"}
	if profile, ok := GuardedProfile(c); ok {
		actor = ActorRef{ID: profile.ID.String(), Type: "user"}
	}

	event := ActivityEvent{
		EventType:  ActivityEventStatusChanged,
		Actor:      actor,
		ProfileID:  target.ID.String(),
		Metadata:   metadata,
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(a.activity).Record(c.UserContext(), event); err != nil {
		a.Logger.Warn("activity sink error during access change: %v", err)
	}
}

func (a *AuthController) UserDashboard(c *fiber.Ctx) error {
	profile, _ := GuardedProfile(c)
	return c.JSON(fiber.Map{
		"page":   "user-dashboard",
		"email":  profileEmail(profile),
		"notice": PopNotice(c),
	})
}

// signOut clears the session cookie and records the event. It completes
// inline, before whatever navigation triggered it continues.
func (a *AuthController) signOut(c *fiber.Ctx, token string) {
	clearCookie(c, a.cookieKey)

	profileID := ""
	if sess, err := a.Auther.SessionFromToken(token); err == nil {
		profileID = sess.GetUserID()
	}

	event := ActivityEvent{
		EventType:  ActivityEventSignOut,
		Actor:      ActorRef{ID: profileID, Type: "user"},
		ProfileID:  profileID,
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(a.activity).Record(c.UserContext(), event); err != nil {
		a.Logger.Warn("activity sink error during sign out: %v", err)
	}
}

func (a *AuthController) setSessionCookie(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     a.cookieKey,
		Value:    token,
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Expires:  time.Now().Add(a.cookieTTL),
	})
}

func profileEmail(p *Profile) string {
	if p == nil {
		return ""
	}
	return p.Email
}
