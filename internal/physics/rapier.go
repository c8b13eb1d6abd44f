package physics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"github.com/keyframestudio/stage/internal/domain"
	"github.com/keyframestudio/stage/internal/pkg/circuitbreaker"
	"github.com/keyframestudio/stage/internal/pkg/curve"
	apperrors "github.com/keyframestudio/stage/internal/pkg/errors"
	"github.com/keyframestudio/stage/internal/pkg/metrics"
)

const maxResponseBytes = 64 << 20

// RapierConfig configures the Rapier HTTP client
type RapierConfig struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	// MaxFailures and CoolDown tune the per-host circuit breaker
	MaxFailures int
	CoolDown    time.Duration
}

// RapierClient fetches trajectories from a Rapier simulation service over
// HTTP. It never retries; every failure is classified and returned.
type RapierClient struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	breakers   *circuitbreaker.Registry
	logger     *zap.Logger
}

// NewRapierClient creates a new Rapier client
func NewRapierClient(cfg RapierConfig, logger *zap.Logger) (*RapierClient, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid physics base url %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "stage-baker"
	}

	c := &RapierClient{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
	c.breakers = circuitbreaker.NewRegistry(func(name string) circuitbreaker.Config {
		return circuitbreaker.Config{
			Name:                name,
			MaxFailures:         cfg.MaxFailures,
			Timeout:             cfg.CoolDown,
			MaxHalfOpenRequests: 1,
			IsFailure:           apperrors.IsTransientFetch,
			OnStateChange: func(name string, from, to circuitbreaker.State) {
				metrics.SetPhysicsCircuitState(name, int(to))
				logger.Warn("physics circuit breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		}
	})
	return c, nil
}

// BreakerStats exposes the client's circuit breakers for health reporting
func (c *RapierClient) BreakerStats() []circuitbreaker.Stat {
	return c.breakers.Stats()
}

type trajectoryRequest struct {
	Steps int     `json:"steps"`
	DT    float64 `json:"dt"`
}

type trajectoryFrame struct {
	Time        float64     `json:"time"`
	Position    mgl64.Vec3  `json:"position"`
	Orientation curve.Quat  `json:"orientation"`
	Velocity    *mgl64.Vec3 `json:"velocity"`
}

type trajectoryResponse struct {
	Frames []trajectoryFrame `json:"frames"`
}

// FetchTrajectory implements Source
func (c *RapierClient) FetchTrajectory(ctx context.Context, simulationID, bodyID string, r TimeRange) ([]domain.RawSample, error) {
	if r.FPS <= 0 || r.Duration <= 0 {
		return nil, apperrors.Validation("trajectory range needs positive fps and duration")
	}

	start := time.Now()
	cb := c.breakers.Get("physics:" + c.host())
	samples, err := circuitbreaker.ExecuteWithResult(cb, ctx, func() ([]domain.RawSample, error) {
		return c.fetch(ctx, simulationID, bodyID, r)
	})
	err = classifyBreakerError(err)

	metrics.RecordPhysicsFetch(fetchStatus(err), time.Since(start))
	if err != nil {
		c.logger.Warn("trajectory fetch failed",
			zap.String("simulation_id", simulationID),
			zap.String("body_id", bodyID),
			zap.String("code", apperrors.GetCode(err)),
			zap.Error(err),
		)
		return nil, err
	}

	c.logger.Debug("trajectory fetched",
		zap.String("simulation_id", simulationID),
		zap.String("body_id", bodyID),
		zap.Int("samples", len(samples)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return samples, nil
}

func (c *RapierClient) host() string {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "default"
	}
	return u.Host
}

func (c *RapierClient) fetch(ctx context.Context, simulationID, bodyID string, r TimeRange) ([]domain.RawSample, error) {
	payload, err := json.Marshal(trajectoryRequest{Steps: r.Steps(), DT: r.DT()})
	if err != nil {
		return nil, fmt.Errorf("failed to encode trajectory request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/simulations/%s/bodies/%s/trajectory",
		c.baseURL, url.PathEscape(simulationID), url.PathEscape(bodyID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, apperrors.PermanentFetch("failed to build trajectory request").WithError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, classifyTransportError(err)
	}

	if resp.StatusCode >= 300 {
		return nil, classifyStatus(resp.StatusCode, simulationID, bodyID, body)
	}

	var decoded trajectoryResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, apperrors.PermanentFetch("malformed trajectory response").WithError(err)
	}

	samples := make([]domain.RawSample, len(decoded.Frames))
	for i, f := range decoded.Frames {
		s := domain.RawSample{
			Time:     f.Time,
			Position: f.Position,
			Rotation: f.Orientation.Normalize(),
		}
		if f.Velocity != nil {
			s.Velocity = *f.Velocity
		}
		samples[i] = s
	}
	return samples, nil
}

// classifyStatus maps an HTTP status to a fetch error. 429 and 5xx are
// transient; every other status, 404 included, is permanent.
func classifyStatus(status int, simulationID, bodyID string, body []byte) error {
	snippet := strings.TrimSpace(string(body))
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	msg := fmt.Sprintf("physics service returned %d", status)

	switch {
	case status == http.StatusNotFound:
		return apperrors.FetchNotFound(simulationID, bodyID).WithDetail("response", snippet)
	case status == http.StatusTooManyRequests || status >= 500:
		return apperrors.TransientFetch(msg).WithDetail("response", snippet)
	default:
		return apperrors.PermanentFetch(msg).WithDetail("response", snippet)
	}
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return apperrors.Canceled(err)
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return apperrors.TransientFetch("physics request timed out").WithError(err)
	}
	return apperrors.TransientFetch("physics request failed").WithError(err)
}

func classifyBreakerError(err error) error {
	switch {
	case errors.Is(err, circuitbreaker.ErrCircuitOpen), errors.Is(err, circuitbreaker.ErrTooManyRequests):
		return apperrors.TransientFetch("physics service unavailable").WithError(err)
	case errors.Is(err, context.Canceled) && apperrors.GetAppError(err) == nil:
		return apperrors.Canceled(err)
	case errors.Is(err, context.DeadlineExceeded) && apperrors.GetAppError(err) == nil:
		return apperrors.TransientFetch("physics request timed out").WithError(err)
	}
	return err
}

func fetchStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case apperrors.IsTransientFetch(err):
		return "transient"
	case apperrors.IsCanceled(err):
		return "canceled"
	}
	return "permanent"
}
