package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/keyframestudio/stage/internal/domain"
	apperrors "github.com/keyframestudio/stage/internal/pkg/errors"
)

// TypeBakeSimulation is the task type for asynchronous bakes
const TypeBakeSimulation = "bake:simulation"

// BakePayload is the payload for bake tasks
type BakePayload struct {
	RequestID string             `json:"request_id"`
	Request   domain.BakeRequest `json:"request"`
}

// Baker runs a bake and persists its output
type Baker interface {
	BakeAndPersist(ctx context.Context, req *domain.BakeRequest) (*domain.BakeResult, *domain.BakeRun, error)
}

// NewBakeTask creates a bake task. The task id is the payload's request id,
// so enqueueing the same request twice is rejected by asynq.
func NewBakeTask(payload *BakePayload, maxRetry int, timeout time.Duration) (*asynq.Task, error) {
	if payload.RequestID == "" {
		payload.RequestID = uuid.NewString()
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal bake payload: %w", err)
	}
	return asynq.NewTask(TypeBakeSimulation, data,
		asynq.TaskID(payload.RequestID),
		asynq.MaxRetry(maxRetry),
		asynq.Timeout(timeout),
	), nil
}

// BakeWorker handles bake tasks
type BakeWorker struct {
	logger *zap.Logger
	baker  Baker
}

// NewBakeWorker creates a new bake worker
func NewBakeWorker(logger *zap.Logger, baker Baker) *BakeWorker {
	return &BakeWorker{logger: logger, baker: baker}
}

// ProcessTask processes a bake task. Held bake slots and transient fetch
// failures are returned for asynq to retry; everything else is final.
func (w *BakeWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload BakePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal bake payload: %v: %w", err, asynq.SkipRetry)
	}

	log := w.logger.With(
		zap.String("request_id", payload.RequestID),
		zap.String("scene_id", payload.Request.SceneID),
		zap.String("simulation_id", payload.Request.SimulationID),
	)
	log.Info("processing bake", zap.Int("bodies", len(payload.Request.Bodies)))

	res, run, err := w.baker.BakeAndPersist(ctx, &payload.Request)
	if err != nil {
		if apperrors.IsBakeInProgress(err) || apperrors.IsCanceled(err) || apperrors.IsTransientFetch(err) {
			log.Info("bake deferred", zap.String("code", apperrors.GetCode(err)))
			return err
		}
		if apperrors.IsValidation(err) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return fmt.Errorf("failed to bake: %w", err)
	}

	fields := []zap.Field{
		zap.Strings("succeeded", res.Succeeded()),
		zap.Strings("failed", res.Failed()),
	}
	if run != nil {
		fields = append(fields, zap.String("run_id", run.ID.String()))
	}
	log.Info("bake completed", fields...)

	if retry := retryableBodies(res); len(retry) > 0 {
		return apperrors.TransientFetch(fmt.Sprintf("%d bodies failed transiently", len(retry))).
			WithDetail("objects", fmt.Sprint(retry))
	}
	return nil
}

func retryableBodies(res *domain.BakeResult) []string {
	var ids []string
	for _, id := range res.Failed() {
		if res.Status[id].Retryable {
			ids = append(ids, id)
		}
	}
	return ids
}

// retryDelay retries held bake slots quickly and backs off otherwise.
func retryDelay(n int, err error, t *asynq.Task) time.Duration {
	if apperrors.IsBakeInProgress(err) {
		return time.Duration(n+1) * 5 * time.Second
	}
	return asynq.DefaultRetryDelayFunc(n, err, t)
}
