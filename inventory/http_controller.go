package inventory

import (
	"errors"
	"fmt"
	"time"

	chemtrack "github.com/chemtrackhq/chemtrack"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// Controller serves the inventory surface: chemicals, locations, categories,
// SDS revisions, and the risk-assessment workflow.
type Controller struct {
	Logger   chemtrack.Logger
	Repo     Manager
	Blobs    BlobStore
	Workflow AssessmentStateMachine
}

func NewController(repo Manager, blobs BlobStore, workflow AssessmentStateMachine, logger chemtrack.Logger) *Controller {
	if logger == nil {
		logger = noopLogger{}
	}

	return &Controller{
		Logger:   logger,
		Repo:     repo,
		Blobs:    blobs,
		Workflow: workflow,
	}
}

// RegisterRoutes wires the inventory routes behind the route guard. Browsing
// is open to any authenticated profile; mutations are admin only.
func RegisterRoutes(app *fiber.App, c *Controller, guard *chemtrack.RouteGuard) {
	authed := guard.Protect(chemtrack.RequirementAuthenticated)
	admin := guard.Protect(chemtrack.RequirementAdminOnly)

	app.Get(chemtrack.RouteUserChemicals, authed, c.ChemicalsPage).Name("user-chemicals.get")
	app.Get(chemtrack.RouteAdminLocations, admin, c.LocationsPage).Name("admin-locations.get")

	api := app.Group("/api", authed)

	api.Get("/chemicals", c.ListChemicals)
	api.Get("/chemicals/low-stock", c.LowStockChemicals)
	api.Get("/chemicals/expiring", c.ExpiringChemicals)
	api.Get("/chemicals/:id", c.GetChemical)
	api.Post("/chemicals", admin, c.CreateChemical)
	api.Put("/chemicals/:id", admin, c.UpdateChemical)
	api.Delete("/chemicals/:id", admin, c.DeleteChemical)

	api.Get("/categories", c.ListCategories)
	api.Post("/categories", admin, c.CreateCategory)

	api.Get("/locations", c.ListLocations)
	api.Get("/locations/:id/children", c.ListLocationChildren)
	api.Post("/locations", admin, c.CreateLocation)
	api.Post("/locations/:id/reparent", admin, c.ReparentLocation)

	api.Get("/chemicals/:id/sds", c.SDSHistory)
	api.Post("/chemicals/:id/sds", admin, c.UploadSDS)
	api.Get("/sds/:id/download", c.DownloadSDS)

	api.Get("/assessments", c.ListAssessments)
	api.Post("/assessments", c.CreateAssessment)
	api.Post("/assessments/:id/submit", c.SubmitAssessment)
	api.Post("/assessments/:id/approve", admin, c.ApproveAssessment)
	api.Post("/assessments/:id/reject", admin, c.RejectAssessment)
	api.Post("/assessments/:id/reopen", c.ReopenAssessment)
}

func (c *Controller) ChemicalsPage(ctx *fiber.Ctx) error {
	records, err := c.Repo.Chemicals().ListAll(ctx.UserContext())
	if err != nil {
		return c.fail(ctx, err, "failed to list chemicals")
	}

	return ctx.JSON(fiber.Map{
		"page":      "user-chemicals",
		"chemicals": records,
	})
}

func (c *Controller) LocationsPage(ctx *fiber.Ctx) error {
	roots, err := c.Repo.Locations().ListRoots(ctx.UserContext())
	if err != nil {
		return c.fail(ctx, err, "failed to list locations")
	}

	return ctx.JSON(fiber.Map{
		"page":      "admin-locations",
		"locations": roots,
	})
}

func (c *Controller) ListChemicals(ctx *fiber.Ctx) error {
	records, err := c.Repo.Chemicals().ListAll(ctx.UserContext())
	if err != nil {
		return c.fail(ctx, err, "failed to list chemicals")
	}
	return ctx.JSON(records)
}

// LowStockChemicals lists stock-tracked chemicals at or below reorder level.
func (c *Controller) LowStockChemicals(ctx *fiber.Ctx) error {
	records, err := c.Repo.Chemicals().ListLowStock(ctx.UserContext())
	if err != nil {
		return c.fail(ctx, err, "failed to list low stock chemicals")
	}
	return ctx.JSON(records)
}

// ExpiringChemicals lists chemicals expiring within the query window,
// defaulting to thirty days.
func (c *Controller) ExpiringChemicals(ctx *fiber.Ctx) error {
	window, err := time.ParseDuration(ctx.Query("within", "720h"))
	if err != nil || window <= 0 {
		return badRequest(ctx, "invalid expiry window")
	}

	records, err := c.Repo.Chemicals().ListExpiring(ctx.UserContext(), time.Now().Add(window))
	if err != nil {
		return c.fail(ctx, err, "failed to list expiring chemicals")
	}
	return ctx.JSON(records)
}

func (c *Controller) GetChemical(ctx *fiber.Ctx) error {
	record, err := c.Repo.Chemicals().GetByID(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return c.fail(ctx, err, "failed to load chemical")
	}
	return ctx.JSON(record)
}

// ChemicalPayload is the create/update body for a chemical.
type ChemicalPayload struct {
	Name         string     `form:"name" json:"name"`
	CASNumber    string     `form:"cas_number" json:"cas_number"`
	HazardClass  string     `form:"hazard_class" json:"hazard_class"`
	CategoryID   *uuid.UUID `form:"category_id" json:"category_id"`
	LocationID   *uuid.UUID `form:"location_id" json:"location_id"`
	Quantity     float64    `form:"quantity" json:"quantity"`
	Unit         string     `form:"unit" json:"unit"`
	ReorderLevel float64    `form:"reorder_level" json:"reorder_level"`
	ExpiresAt    *time.Time `form:"expires_at" json:"expires_at"`
}

// Validate will run validation rules
func (p ChemicalPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&p.CASNumber, validation.Length(0, 32)),
		validation.Field(&p.HazardClass, validation.Length(0, 64)),
		validation.Field(&p.Unit, validation.Required, validation.Length(1, 16)),
		validation.Field(&p.Quantity, validation.Min(0.0)),
		validation.Field(&p.ReorderLevel, validation.Min(0.0)),
	)
}

func (c *Controller) CreateChemical(ctx *fiber.Ctx) error {
	payload := new(ChemicalPayload)
	if err := ctx.BodyParser(payload); err != nil {
		return badRequest(ctx, "failed to parse payload")
	}
	if err := payload.Validate(); err != nil {
		return validationError(ctx, err)
	}

	now := time.Now()
	record := &Chemical{
		ID:           uuid.New(),
		Name:         payload.Name,
		CASNumber:    payload.CASNumber,
		HazardClass:  payload.HazardClass,
		CategoryID:   payload.CategoryID,
		LocationID:   payload.LocationID,
		Quantity:     payload.Quantity,
		Unit:         payload.Unit,
		ReorderLevel: payload.ReorderLevel,
		ExpiresAt:    payload.ExpiresAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	created, err := c.Repo.Chemicals().Create(ctx.UserContext(), record)
	if err != nil {
		return c.fail(ctx, err, "failed to create chemical")
	}

	return ctx.Status(fiber.StatusCreated).JSON(created)
}

func (c *Controller) UpdateChemical(ctx *fiber.Ctx) error {
	record, err := c.Repo.Chemicals().GetByID(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return c.fail(ctx, err, "failed to load chemical")
	}

	payload := new(ChemicalPayload)
	if err := ctx.BodyParser(payload); err != nil {
		return badRequest(ctx, "failed to parse payload")
	}
	if err := payload.Validate(); err != nil {
		return validationError(ctx, err)
	}

	record.Name = payload.Name
	record.CASNumber = payload.CASNumber
	record.HazardClass = payload.HazardClass
	record.CategoryID = payload.CategoryID
	record.LocationID = payload.LocationID
	record.Quantity = payload.Quantity
	record.Unit = payload.Unit
	record.ReorderLevel = payload.ReorderLevel
	record.ExpiresAt = payload.ExpiresAt
	record.UpdatedAt = time.Now()

	updated, err := c.Repo.Chemicals().Update(ctx.UserContext(), record)
	if err != nil {
		return c.fail(ctx, err, "failed to update chemical")
	}

	return ctx.JSON(updated)
}

func (c *Controller) DeleteChemical(ctx *fiber.Ctx) error {
	record, err := c.Repo.Chemicals().GetByID(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return c.fail(ctx, err, "failed to load chemical")
	}

	if err := c.Repo.Chemicals().Remove(ctx.UserContext(), record.ID); err != nil {
		return c.fail(ctx, err, "failed to delete chemical")
	}

	return ctx.SendStatus(fiber.StatusNoContent)
}

func (c *Controller) ListCategories(ctx *fiber.Ctx) error {
	records, err := c.Repo.Categories().ListAll(ctx.UserContext())
	if err != nil {
		return c.fail(ctx, err, "failed to list categories")
	}
	return ctx.JSON(records)
}

// CategoryPayload is the create body for a category.
type CategoryPayload struct {
	Name        string `form:"name" json:"name"`
	Description string `form:"description" json:"description"`
}

// Validate will run validation rules
func (p CategoryPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.Required, validation.Length(1, 120)),
	)
}

func (c *Controller) CreateCategory(ctx *fiber.Ctx) error {
	payload := new(CategoryPayload)
	if err := ctx.BodyParser(payload); err != nil {
		return badRequest(ctx, "failed to parse payload")
	}
	if err := payload.Validate(); err != nil {
		return validationError(ctx, err)
	}

	now := time.Now()
	created, err := c.Repo.Categories().Create(ctx.UserContext(), &Category{
		ID:          uuid.New(),
		Name:        payload.Name,
		Description: payload.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return c.fail(ctx, err, "failed to create category")
	}

	return ctx.Status(fiber.StatusCreated).JSON(created)
}

func (c *Controller) ListLocations(ctx *fiber.Ctx) error {
	records, err := c.Repo.Locations().ListRoots(ctx.UserContext())
	if err != nil {
		return c.fail(ctx, err, "failed to list locations")
	}
	return ctx.JSON(records)
}

func (c *Controller) ListLocationChildren(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return badRequest(ctx, "invalid location id")
	}

	records, err := c.Repo.Locations().ListChildren(ctx.UserContext(), id)
	if err != nil {
		return c.fail(ctx, err, "failed to list children")
	}
	return ctx.JSON(records)
}

// LocationPayload is the create body for a location.
type LocationPayload struct {
	Name     string     `form:"name" json:"name"`
	ParentID *uuid.UUID `form:"parent_id" json:"parent_id"`
}

// Validate will run validation rules
func (p LocationPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.Required, validation.Length(1, 120)),
	)
}

func (c *Controller) CreateLocation(ctx *fiber.Ctx) error {
	payload := new(LocationPayload)
	if err := ctx.BodyParser(payload); err != nil {
		return badRequest(ctx, "failed to parse payload")
	}
	if err := payload.Validate(); err != nil {
		return validationError(ctx, err)
	}

	now := time.Now()
	created, err := c.Repo.Locations().Create(ctx.UserContext(), &Location{
		ID:        uuid.New(),
		Name:      payload.Name,
		ParentID:  payload.ParentID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return c.fail(ctx, err, "failed to create location")
	}

	return ctx.Status(fiber.StatusCreated).JSON(created)
}

// ReparentPayload moves a location in the hierarchy.
type ReparentPayload struct {
	ParentID *uuid.UUID `form:"parent_id" json:"parent_id"`
}

func (c *Controller) ReparentLocation(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return badRequest(ctx, "invalid location id")
	}

	payload := new(ReparentPayload)
	if err := ctx.BodyParser(payload); err != nil {
		return badRequest(ctx, "failed to parse payload")
	}

	updated, err := c.Repo.Locations().Reparent(ctx.UserContext(), id, payload.ParentID)
	if err != nil {
		return c.fail(ctx, err, "failed to reparent location")
	}

	return ctx.JSON(updated)
}

func (c *Controller) SDSHistory(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return badRequest(ctx, "invalid chemical id")
	}

	records, err := c.Repo.SDSRevisions().History(ctx.UserContext(), id)
	if err != nil {
		return c.fail(ctx, err, "failed to load revision history")
	}

	return ctx.JSON(records)
}

// UploadSDS stores a new revision of the chemical's safety data sheet. The
// body goes to the blob store first; the revision row commits after, so a
// failed upload never leaves a dangling version number.
func (c *Controller) UploadSDS(ctx *fiber.Ctx) error {
	chemicalID, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return badRequest(ctx, "invalid chemical id")
	}

	if _, err := c.Repo.Chemicals().GetByID(ctx.UserContext(), chemicalID.String()); err != nil {
		return c.fail(ctx, err, "failed to load chemical")
	}

	file, err := ctx.FormFile("document")
	if err != nil {
		return badRequest(ctx, "document file is required")
	}

	version, err := c.Repo.SDSRevisions().NextVersion(ctx.UserContext(), chemicalID)
	if err != nil {
		return c.fail(ctx, err, "failed to determine revision version")
	}

	key := fmt.Sprintf("sds/%s/v%d.pdf", chemicalID, version)

	body, err := file.Open()
	if err != nil {
		return c.fail(ctx, err, "failed to read upload")
	}
	defer body.Close()

	if err := c.Blobs.Put(ctx.UserContext(), key, body); err != nil {
		return c.fail(ctx, err, "failed to store document")
	}

	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/pdf"
	}

	revision := &SDSRevision{
		ID:          uuid.New(),
		ChemicalID:  chemicalID,
		Version:     version,
		BlobKey:     key,
		ContentType: contentType,
		CreatedAt:   time.Now(),
	}

	if profile, ok := chemtrack.GuardedProfile(ctx); ok {
		revision.UploadedBy = &profile.ID
	}

	created, err := c.Repo.SDSRevisions().Create(ctx.UserContext(), revision)
	if err != nil {
		return c.fail(ctx, err, "failed to record revision")
	}

	return ctx.Status(fiber.StatusCreated).JSON(created)
}

func (c *Controller) DownloadSDS(ctx *fiber.Ctx) error {
	revision, err := c.Repo.SDSRevisions().GetByID(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return c.fail(ctx, err, "failed to load revision")
	}

	body, err := c.Blobs.Get(ctx.UserContext(), revision.BlobKey)
	if err != nil {
		return c.fail(ctx, err, "failed to open document")
	}

	ctx.Set(fiber.HeaderContentType, revision.ContentType)
	return ctx.SendStream(body)
}

func (c *Controller) ListAssessments(ctx *fiber.Ctx) error {
	status := AssessmentStatus(ctx.Query("status", string(AssessmentStatusSubmitted)))
	records, err := c.Repo.RiskAssessments().ListByStatus(ctx.UserContext(), status)
	if err != nil {
		return c.fail(ctx, err, "failed to list assessments")
	}
	return ctx.JSON(records)
}

// AssessmentPayload is the create body for a risk assessment.
type AssessmentPayload struct {
	ChemicalID uuid.UUID `form:"chemical_id" json:"chemical_id"`
	Title      string    `form:"title" json:"title"`
	Summary    string    `form:"summary" json:"summary"`
}

// Validate will run validation rules
func (p AssessmentPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Title, validation.Required, validation.Length(1, 200)),
	)
}

func (c *Controller) CreateAssessment(ctx *fiber.Ctx) error {
	payload := new(AssessmentPayload)
	if err := ctx.BodyParser(payload); err != nil {
		return badRequest(ctx, "failed to parse payload")
	}
	if err := payload.Validate(); err != nil {
		return validationError(ctx, err)
	}
	if payload.ChemicalID == uuid.Nil {
		return badRequest(ctx, "chemical_id is required")
	}

	now := time.Now()
	record := &RiskAssessment{
		ID:         uuid.New(),
		ChemicalID: payload.ChemicalID,
		Title:      payload.Title,
		Summary:    payload.Summary,
		Status:     AssessmentStatusDraft,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if profile, ok := chemtrack.GuardedProfile(ctx); ok {
		record.AuthorID = &profile.ID
	}

	created, err := c.Repo.RiskAssessments().Create(ctx.UserContext(), record)
	if err != nil {
		return c.fail(ctx, err, "failed to create assessment")
	}

	return ctx.Status(fiber.StatusCreated).JSON(created)
}

func (c *Controller) SubmitAssessment(ctx *fiber.Ctx) error {
	return c.transition(ctx, AssessmentStatusSubmitted, nil)
}

func (c *Controller) ApproveAssessment(ctx *fiber.Ctx) error {
	return c.transition(ctx, AssessmentStatusApproved, c.reviewerOpts(ctx))
}

func (c *Controller) RejectAssessment(ctx *fiber.Ctx) error {
	return c.transition(ctx, AssessmentStatusRejected, c.reviewerOpts(ctx))
}

func (c *Controller) ReopenAssessment(ctx *fiber.Ctx) error {
	return c.transition(ctx, AssessmentStatusDraft, nil)
}

func (c *Controller) reviewerOpts(ctx *fiber.Ctx) []TransitionOption {
	profile, ok := chemtrack.GuardedProfile(ctx)
	if !ok {
		return nil
	}
	return []TransitionOption{
		WithReviewer(chemtrack.ActorRef{ID: profile.ID.String(), Type: "user"}),
	}
}

func (c *Controller) transition(ctx *fiber.Ctx, target AssessmentStatus, opts []TransitionOption) error {
	record, err := c.Repo.RiskAssessments().GetByID(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return c.fail(ctx, err, "failed to load assessment")
	}

	actor := chemtrack.ActorRef{Type: "system"}
	if profile, ok := chemtrack.GuardedProfile(ctx); ok {
		actor = chemtrack.ActorRef{ID: profile.ID.String(), Type: "user"}
	}

	updated, err := c.Workflow.Transition(ctx.UserContext(), actor, record, target, opts...)
	if err != nil {
		return c.fail(ctx, err, "transition failed")
	}

	return ctx.JSON(updated)
}

func (c *Controller) fail(ctx *fiber.Ctx, err error, msg string) error {
	if repository.IsRecordNotFound(err) || goerrors.IsNotFound(err) {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	}

	var richErr *goerrors.Error
	if errors.As(err, &richErr) {
		switch richErr.Category {
		case goerrors.CategoryValidation, goerrors.CategoryBadInput:
			return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": richErr.Message})
		case goerrors.CategoryConflict:
			return ctx.Status(fiber.StatusConflict).JSON(fiber.Map{"error": richErr.Message})
		}
	}

	c.Logger.Error("%s: %v", msg, err)
	return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": msg})
}

func badRequest(ctx *fiber.Ctx, msg string) error {
	return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func validationError(ctx *fiber.Ctx, err error) error {
	return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"validation": err.Error()})
}
