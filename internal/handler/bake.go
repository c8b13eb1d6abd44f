package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/keyframestudio/stage/internal/domain"
	"github.com/keyframestudio/stage/internal/middleware"
	apperrors "github.com/keyframestudio/stage/internal/pkg/errors"
	"github.com/keyframestudio/stage/internal/validator"
)

// HeaderBakeRunID names the run recorded for a synchronous bake
const HeaderBakeRunID = "X-Bake-Run-ID"

// BakeService is the bake surface the handler needs
type BakeService interface {
	BakeAndPersist(ctx context.Context, req *domain.BakeRequest) (*domain.BakeResult, *domain.BakeRun, error)
	GetRun(ctx context.Context, id uuid.UUID) (*domain.BakeRun, error)
	ListRuns(ctx context.Context, sceneID string, limit int) ([]*domain.BakeRun, error)
	GetAnimation(ctx context.Context, sceneID, objectID string) (*domain.BakedAnimation, error)
	DeleteAnimation(ctx context.Context, sceneID, objectID string) error
}

// BakeEnqueuer queues bakes for the worker
type BakeEnqueuer interface {
	EnqueueBake(ctx context.Context, requestID string, req *domain.BakeRequest) (string, error)
}

// EnqueueResponse acknowledges a queued bake
type EnqueueResponse struct {
	TaskID    string `json:"task_id"`
	RequestID string `json:"request_id"`
}

// BakeHandler handles bake endpoints
type BakeHandler struct {
	logger   *zap.Logger
	bakes    BakeService
	enqueuer BakeEnqueuer
}

// NewBakeHandler creates a new bake handler. enqueuer may be nil when no
// worker queue is configured.
func NewBakeHandler(logger *zap.Logger, bakes BakeService, enqueuer BakeEnqueuer) *BakeHandler {
	return &BakeHandler{logger: logger, bakes: bakes, enqueuer: enqueuer}
}

// Bake handles POST /v1/bakes. Per-body failures still answer 200; the
// status map says which bodies baked.
func (h *BakeHandler) Bake(c *fiber.Ctx) error {
	var req domain.BakeRequest
	if err := parseBody(c, &req); err != nil {
		return handleError(c, h.logger, err)
	}

	res, run, err := h.bakes.BakeAndPersist(c.UserContext(), &req)
	if run != nil {
		c.Set(HeaderBakeRunID, run.ID.String())
	}
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return c.JSON(res)
}

// BakeAsync handles POST /v1/bakes/async
func (h *BakeHandler) BakeAsync(c *fiber.Ctx) error {
	if h.enqueuer == nil {
		return handleError(c, h.logger, apperrors.Unavailable("bake queue"))
	}

	var req domain.BakeRequest
	if err := parseBody(c, &req); err != nil {
		return handleError(c, h.logger, err)
	}
	if err := validator.ValidateApp(req); err != nil {
		return handleError(c, h.logger, err)
	}
	if _, err := req.Bindings(); err != nil {
		return handleError(c, h.logger, err)
	}

	requestID := middleware.GetRequestID(c)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	taskID, err := h.enqueuer.EnqueueBake(c.UserContext(), requestID, &req)
	if err != nil {
		return handleError(c, h.logger, apperrors.Unavailable("bake queue").WithError(err))
	}

	return c.Status(fiber.StatusAccepted).JSON(EnqueueResponse{TaskID: taskID, RequestID: requestID})
}

// GetRun handles GET /v1/bakes/:id
func (h *BakeHandler) GetRun(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return handleError(c, h.logger, apperrors.Validation("invalid bake run id"))
	}

	run, err := h.bakes.GetRun(c.UserContext(), id)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return c.JSON(run)
}

// ListRuns handles GET /v1/scenes/:scene/bakes
func (h *BakeHandler) ListRuns(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)
	runs, err := h.bakes.ListRuns(c.UserContext(), c.Params("scene"), limit)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	if runs == nil {
		runs = []*domain.BakeRun{}
	}
	return c.JSON(fiber.Map{"runs": runs})
}

// GetAnimation handles GET /v1/animations/:scene/:object
func (h *BakeHandler) GetAnimation(c *fiber.Ctx) error {
	anim, err := h.bakes.GetAnimation(c.UserContext(), c.Params("scene"), c.Params("object"))
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return c.JSON(anim)
}

// DeleteAnimation handles DELETE /v1/animations/:scene/:object
func (h *BakeHandler) DeleteAnimation(c *fiber.Ctx) error {
	if err := h.bakes.DeleteAnimation(c.UserContext(), c.Params("scene"), c.Params("object")); err != nil {
		return handleError(c, h.logger, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// RegisterRoutes registers bake routes
func (h *BakeHandler) RegisterRoutes(r fiber.Router) {
	r.Post("/bakes", h.Bake)
	r.Post("/bakes/async", h.BakeAsync)
	r.Get("/bakes/:id", h.GetRun)
	r.Get("/scenes/:scene/bakes", h.ListRuns)
	r.Get("/animations/:scene/:object", h.GetAnimation)
	r.Delete("/animations/:scene/:object", h.DeleteAnimation)
}
