package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/keyframestudio/stage/internal/domain"
	"github.com/keyframestudio/stage/internal/middleware"
	apperrors "github.com/keyframestudio/stage/internal/pkg/errors"
)

// MockBakeService mocks the bake service
type MockBakeService struct {
	mock.Mock
}

func (m *MockBakeService) BakeAndPersist(ctx context.Context, req *domain.BakeRequest) (*domain.BakeResult, *domain.BakeRun, error) {
	args := m.Called(ctx, req)
	var (
		res *domain.BakeResult
		run *domain.BakeRun
	)
	if v := args.Get(0); v != nil {
		res = v.(*domain.BakeResult)
	}
	if v := args.Get(1); v != nil {
		run = v.(*domain.BakeRun)
	}
	return res, run, args.Error(2)
}

func (m *MockBakeService) GetRun(ctx context.Context, id uuid.UUID) (*domain.BakeRun, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BakeRun), args.Error(1)
}

func (m *MockBakeService) GetAnimation(ctx context.Context, sceneID, objectID string) (*domain.BakedAnimation, error) {
	args := m.Called(ctx, sceneID, objectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BakedAnimation), args.Error(1)
}

func (m *MockBakeService) ListRuns(ctx context.Context, sceneID string, limit int) ([]*domain.BakeRun, error) {
	args := m.Called(ctx, sceneID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.BakeRun), args.Error(1)
}

func (m *MockBakeService) DeleteAnimation(ctx context.Context, sceneID, objectID string) error {
	args := m.Called(ctx, sceneID, objectID)
	return args.Error(0)
}

// MockEnqueuer mocks the bake queue
type MockEnqueuer struct {
	mock.Mock
}

func (m *MockEnqueuer) EnqueueBake(ctx context.Context, requestID string, req *domain.BakeRequest) (string, error) {
	args := m.Called(ctx, requestID, req)
	return args.String(0), args.Error(1)
}

func newTestApp(register func(r fiber.Router)) *fiber.App {
	app := fiber.New()
	app.Use(middleware.RequestID())
	register(app.Group("/v1"))
	return app
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeError(t *testing.T, resp *http.Response) ErrorResponse {
	t.Helper()
	var out ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

const bakeBody = `{"scene_id":"scene-1","simulation_id":"abc","bodies":{"ball":"rapier://sim-abc/body-1"},"fps":10,"duration":1}`

func TestBakeHandler_Bake(t *testing.T) {
	t.Run("returns the result and run id", func(t *testing.T) {
		svc := new(MockBakeService)
		h := NewBakeHandler(zap.NewNop(), svc, nil)
		app := newTestApp(h.RegisterRoutes)

		run := &domain.BakeRun{ID: uuid.New(), Status: domain.RunStatusSucceeded}
		res := &domain.BakeResult{
			SceneID:      "scene-1",
			SimulationID: "abc",
			FPS:          10,
			Duration:     1,
			Animations:   map[string]*domain.BakedAnimation{"ball": {ObjectID: "ball", FPS: 10}},
			Status:       map[string]domain.BodyStatus{"ball": {ObjectID: "ball", BodyID: "1", State: domain.BodyStateOK}},
		}
		svc.On("BakeAndPersist", mock.Anything, mock.MatchedBy(func(r *domain.BakeRequest) bool {
			return r.SceneID == "scene-1" && r.Bodies["ball"] == "rapier://sim-abc/body-1"
		})).Return(res, run, nil)

		resp, err := app.Test(jsonRequest(http.MethodPost, "/v1/bakes", bakeBody))
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, run.ID.String(), resp.Header.Get(HeaderBakeRunID))

		var out domain.BakeResult
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.Equal(t, []string{"ball"}, out.Succeeded())
		svc.AssertExpectations(t)
	})

	t.Run("malformed body", func(t *testing.T) {
		svc := new(MockBakeService)
		app := newTestApp(NewBakeHandler(zap.NewNop(), svc, nil).RegisterRoutes)

		resp, err := app.Test(jsonRequest(http.MethodPost, "/v1/bakes", `{"scene_id":`))
		require.NoError(t, err)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, apperrors.CodeValidation, decodeError(t, resp).Code)
		svc.AssertNotCalled(t, "BakeAndPersist", mock.Anything, mock.Anything)
	})

	t.Run("bake in progress", func(t *testing.T) {
		svc := new(MockBakeService)
		app := newTestApp(NewBakeHandler(zap.NewNop(), svc, nil).RegisterRoutes)
		svc.On("BakeAndPersist", mock.Anything, mock.Anything).
			Return(nil, nil, apperrors.BakeInProgress("scene-1", "ball"))

		resp, err := app.Test(jsonRequest(http.MethodPost, "/v1/bakes", bakeBody))
		require.NoError(t, err)

		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		body := decodeError(t, resp)
		assert.Equal(t, apperrors.CodeBakeInProgress, body.Code)
		assert.Equal(t, "ball", body.Details["object_id"])
		assert.NotEmpty(t, body.RequestID)
	})

	t.Run("storage failure keeps the run header", func(t *testing.T) {
		svc := new(MockBakeService)
		app := newTestApp(NewBakeHandler(zap.NewNop(), svc, nil).RegisterRoutes)
		run := &domain.BakeRun{ID: uuid.New()}
		svc.On("BakeAndPersist", mock.Anything, mock.Anything).
			Return(&domain.BakeResult{}, run, apperrors.Internal("failed to persist bake"))

		resp, err := app.Test(jsonRequest(http.MethodPost, "/v1/bakes", bakeBody))
		require.NoError(t, err)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, run.ID.String(), resp.Header.Get(HeaderBakeRunID))
	})

	t.Run("foreign errors are opaque", func(t *testing.T) {
		svc := new(MockBakeService)
		app := newTestApp(NewBakeHandler(zap.NewNop(), svc, nil).RegisterRoutes)
		svc.On("BakeAndPersist", mock.Anything, mock.Anything).
			Return(nil, nil, errors.New("dial tcp 10.0.0.1:5432: refused"))

		resp, err := app.Test(jsonRequest(http.MethodPost, "/v1/bakes", bakeBody))
		require.NoError(t, err)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		raw, _ := io.ReadAll(resp.Body)
		assert.NotContains(t, string(raw), "10.0.0.1")
	})
}

func TestBakeHandler_BakeAsync(t *testing.T) {
	t.Run("queues the bake", func(t *testing.T) {
		q := new(MockEnqueuer)
		app := newTestApp(NewBakeHandler(zap.NewNop(), new(MockBakeService), q).RegisterRoutes)
		q.On("EnqueueBake", mock.Anything, "req-1", mock.AnythingOfType("*domain.BakeRequest")).
			Return("req-1", nil)

		req := jsonRequest(http.MethodPost, "/v1/bakes/async", bakeBody)
		req.Header.Set(middleware.HeaderRequestID, "req-1")
		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, http.StatusAccepted, resp.StatusCode)
		var out EnqueueResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.Equal(t, "req-1", out.TaskID)
		assert.Equal(t, "req-1", out.RequestID)
		q.AssertExpectations(t)
	})

	t.Run("no queue configured", func(t *testing.T) {
		app := newTestApp(NewBakeHandler(zap.NewNop(), new(MockBakeService), nil).RegisterRoutes)

		resp, err := app.Test(jsonRequest(http.MethodPost, "/v1/bakes/async", bakeBody))
		require.NoError(t, err)

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, apperrors.CodeUnavailable, decodeError(t, resp).Code)
	})

	t.Run("validates before queueing", func(t *testing.T) {
		q := new(MockEnqueuer)
		app := newTestApp(NewBakeHandler(zap.NewNop(), new(MockBakeService), q).RegisterRoutes)

		resp, err := app.Test(jsonRequest(http.MethodPost, "/v1/bakes/async", `{"scene_id":"scene-1","simulation_id":"abc"}`))
		require.NoError(t, err)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		body := decodeError(t, resp)
		assert.Contains(t, body.Details, "bodies")
		q.AssertNotCalled(t, "EnqueueBake", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rejects bindings to another simulation", func(t *testing.T) {
		q := new(MockEnqueuer)
		app := newTestApp(NewBakeHandler(zap.NewNop(), new(MockBakeService), q).RegisterRoutes)

		body := `{"scene_id":"scene-1","simulation_id":"abc","bodies":{"ball":"rapier://sim-xyz/body-1"}}`
		resp, err := app.Test(jsonRequest(http.MethodPost, "/v1/bakes/async", body))
		require.NoError(t, err)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		q.AssertNotCalled(t, "EnqueueBake", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("queue failure", func(t *testing.T) {
		q := new(MockEnqueuer)
		app := newTestApp(NewBakeHandler(zap.NewNop(), new(MockBakeService), q).RegisterRoutes)
		q.On("EnqueueBake", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("redis down"))

		resp, err := app.Test(jsonRequest(http.MethodPost, "/v1/bakes/async", bakeBody))
		require.NoError(t, err)

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})
}

func TestBakeHandler_Lookups(t *testing.T) {
	t.Run("invalid run id", func(t *testing.T) {
		svc := new(MockBakeService)
		app := newTestApp(NewBakeHandler(zap.NewNop(), svc, nil).RegisterRoutes)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/bakes/not-a-uuid", nil))
		require.NoError(t, err)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		svc.AssertNotCalled(t, "GetRun", mock.Anything, mock.Anything)
	})

	t.Run("run found", func(t *testing.T) {
		svc := new(MockBakeService)
		app := newTestApp(NewBakeHandler(zap.NewNop(), svc, nil).RegisterRoutes)
		id := uuid.New()
		svc.On("GetRun", mock.Anything, id).Return(&domain.BakeRun{ID: id, Status: domain.RunStatusPartial}, nil)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/bakes/"+id.String(), nil))
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var out domain.BakeRun
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.Equal(t, domain.RunStatusPartial, out.Status)
	})

	t.Run("run not found", func(t *testing.T) {
		svc := new(MockBakeService)
		app := newTestApp(NewBakeHandler(zap.NewNop(), svc, nil).RegisterRoutes)
		svc.On("GetRun", mock.Anything, mock.Anything).Return(nil, apperrors.NotFound("bake run"))

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/bakes/"+uuid.NewString(), nil))
		require.NoError(t, err)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("animation", func(t *testing.T) {
		svc := new(MockBakeService)
		app := newTestApp(NewBakeHandler(zap.NewNop(), svc, nil).RegisterRoutes)
		svc.On("GetAnimation", mock.Anything, "scene-1", "ball").
			Return(&domain.BakedAnimation{ObjectID: "ball", FPS: 60, DataPath: "animations/scene-1/ball.json"}, nil)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/animations/scene-1/ball", nil))
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var out domain.BakedAnimation
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.Equal(t, "animations/scene-1/ball.json", out.DataPath)
	})

	t.Run("runs by scene", func(t *testing.T) {
		svc := new(MockBakeService)
		app := newTestApp(NewBakeHandler(zap.NewNop(), svc, nil).RegisterRoutes)
		svc.On("ListRuns", mock.Anything, "scene-1", 5).
			Return([]*domain.BakeRun{{ID: uuid.New()}, {ID: uuid.New()}}, nil)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/scenes/scene-1/bakes?limit=5", nil))
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var out struct {
			Runs []domain.BakeRun `json:"runs"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.Len(t, out.Runs, 2)
	})

	t.Run("delete animation", func(t *testing.T) {
		svc := new(MockBakeService)
		app := newTestApp(NewBakeHandler(zap.NewNop(), svc, nil).RegisterRoutes)
		svc.On("DeleteAnimation", mock.Anything, "scene-1", "ball").Return(nil)

		resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/v1/animations/scene-1/ball", nil))
		require.NoError(t, err)

		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		svc.AssertExpectations(t)
	})
}
