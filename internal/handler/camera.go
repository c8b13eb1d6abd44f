package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/keyframestudio/stage/internal/camera"
	"github.com/keyframestudio/stage/internal/domain"
	apperrors "github.com/keyframestudio/stage/internal/pkg/errors"
	"github.com/keyframestudio/stage/internal/service"
	"github.com/keyframestudio/stage/internal/trajectory"
	"github.com/keyframestudio/stage/internal/validator"
)

// SceneInput describes the world a shot is evaluated against: a fixed
// snapshot, baked tracks, or both. Tracks win over the snapshot.
type SceneInput struct {
	World      domain.WorldSnapshot              `json:"world,omitempty"`
	Animations map[string]*domain.BakedAnimation `json:"animations,omitempty"`
}

func (s SceneInput) worldAt() camera.WorldAt {
	if len(s.Animations) == 0 {
		return camera.StaticWorld(s.World)
	}
	return trajectory.NewScene(s.Animations, s.World).At
}

// EvaluateRequest is the body of POST /v1/camera/evaluate
type EvaluateRequest struct {
	Shot       domain.ShotSpec    `json:"shot"`
	Time       float64            `json:"time"`
	ChaseState *camera.ChaseState `json:"chase_state,omitempty"`
	SceneInput
}

// SampleRequest is the body of POST /v1/camera/sample and /v1/camera/preview
type SampleRequest struct {
	Shot domain.ShotSpec `json:"shot"`
	FPS  int             `json:"fps,omitempty" validate:"gte=0,lte=240"`
	SceneInput
}

// SampleResponse carries sampled camera frames
type SampleResponse struct {
	ShotID string         `json:"shot_id"`
	FPS    int            `json:"fps"`
	Frames []camera.Frame `json:"frames"`
}

// CameraHandler handles camera endpoints
type CameraHandler struct {
	logger  *zap.Logger
	cameras *service.CameraService
}

// NewCameraHandler creates a new camera handler
func NewCameraHandler(logger *zap.Logger, cameras *service.CameraService) *CameraHandler {
	return &CameraHandler{logger: logger, cameras: cameras}
}

func decodeShot(spec domain.ShotSpec) (domain.Shot, error) {
	if err := validator.ValidateApp(spec); err != nil {
		return domain.Shot{}, err
	}
	return spec.Decode()
}

// Evaluate handles POST /v1/camera/evaluate. An inactive shot answers 200
// with active=false.
func (h *CameraHandler) Evaluate(c *fiber.Ctx) error {
	var req EvaluateRequest
	if err := parseBody(c, &req); err != nil {
		return handleError(c, h.logger, err)
	}
	shot, err := decodeShot(req.Shot)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	var chase camera.ChaseState
	if req.ChaseState != nil {
		chase = *req.ChaseState
	}
	out, err := h.cameras.Evaluate(shot, req.worldAt()(req.Time), req.Time, chase)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return c.JSON(out)
}

func (h *CameraHandler) parseSample(c *fiber.Ctx) (SampleRequest, domain.Shot, error) {
	var req SampleRequest
	if err := parseBody(c, &req); err != nil {
		return req, domain.Shot{}, err
	}
	if err := validator.ValidateApp(req); err != nil {
		return req, domain.Shot{}, err
	}
	if req.FPS == 0 {
		req.FPS = domain.DefaultFPS
	}
	shot, err := decodeShot(req.Shot)
	return req, shot, err
}

// Sample handles POST /v1/camera/sample
func (h *CameraHandler) Sample(c *fiber.Ctx) error {
	req, shot, err := h.parseSample(c)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	frames, err := h.cameras.Sample(shot, req.worldAt(), req.FPS)
	if err != nil {
		return handleError(c, h.logger, err)
	}
	return c.JSON(SampleResponse{ShotID: shot.ID, FPS: req.FPS, Frames: frames})
}

// Preview handles POST /v1/camera/preview. Frames stream as server-sent
// "frame" events paced at the requested fps, followed by "done" or "error".
func (h *CameraHandler) Preview(c *fiber.Ctx) error {
	req, shot, err := h.parseSample(c)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	worldAt := req.worldAt()
	fps := req.FPS
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sent := 0
		err := h.cameras.Preview(ctx, shot, worldAt, fps, func(f camera.Frame) error {
			if err := writeEvent(w, "frame", f); err != nil {
				return err
			}
			sent++
			return nil
		})
		if err != nil {
			h.logger.Debug("camera preview ended early", zap.String("shot_id", shot.ID), zap.Error(err))
			_ = writeEvent(w, "error", ErrorResponse{Code: apperrors.GetCode(err), Message: err.Error()})
			return
		}
		_ = writeEvent(w, "done", fiber.Map{"shot_id": shot.ID, "frames": sent})
	}))

	return nil
}

// writeEvent writes one SSE event and flushes it. A flush error means the
// client went away.
func writeEvent(w *bufio.Writer, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	return w.Flush()
}

// RegisterRoutes registers camera routes
func (h *CameraHandler) RegisterRoutes(r fiber.Router) {
	g := r.Group("/camera")
	g.Post("/evaluate", h.Evaluate)
	g.Post("/sample", h.Sample)
	g.Post("/preview", h.Preview)
}
