// Package adapter talks to the remote marketplace backend and normalizes its payloads.
package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/IliyaBaranov/agora/internal/circuitbreaker"
	"github.com/IliyaBaranov/agora/internal/config"
	"github.com/IliyaBaranov/agora/internal/errors"
	"github.com/IliyaBaranov/agora/internal/logging"
	"github.com/IliyaBaranov/agora/internal/models"
	"github.com/IliyaBaranov/agora/internal/retry"
	"github.com/IliyaBaranov/agora/internal/types"
)

// Endpoint names as the backend exposes them, without the path suffix
const (
	EndpointMe                  = "me"
	EndpointLogin               = "auth_login"
	EndpointRegister            = "auth_register"
	EndpointLogout              = "logout"
	EndpointMarketplaces        = "marketplaces"
	EndpointFavorites           = "favorites"
	EndpointAdminSetRole        = "admin_set_role"
	EndpointProducers           = "producers"
	EndpointProducerStatus      = "producer_update_status"
	EndpointJobs                = "jobs"
	EndpointJobsTake            = "jobs_take"
	EndpointJobsComplete        = "jobs_complete"
	EndpointJobsPay             = "jobs_pay"
	EndpointMarketplaceAutoJoin = "marketplace_autojoin"
)

const (
	maxResponseBytes      = 8 << 20
	requestIDHeader       = "X-Request-ID"
	autoJoinStatusCreated = "created"
)

// rootEndpoints are served outside the /api prefix
var rootEndpoints = map[string]bool{
	EndpointJobsTake: true,
}

// JobInput carries the fields of a new job
type JobInput struct {
	MarketplaceID string   `json:"marketplaceId"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Address       string   `json:"address"`
	PreferredTime string   `json:"preferredTime"`
	Price         int64    `json:"price"`
	Lat           *float64 `json:"lat,omitempty"`
	Lng           *float64 `json:"lng,omitempty"`
}

// AgoraClient is the HTTP JSON client of the marketplace backend.
// All calls share one cookie jar, so a successful login authenticates the rest.
type AgoraClient struct {
	baseURL    string
	suffix     string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *circuitbreaker.CircuitBreaker
	meRetry    *retry.RetryConfig
	logger     *logging.Logger
}

// NewAgoraClient creates a backend client from configuration
func NewAgoraClient(cfg config.APIConfig, logger *logging.Logger) (*AgoraClient, error) {
	if cfg.BaseURL == "" {
		return nil, errors.NewInvalidParameterError("AGORA_API_URL", "must not be empty")
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSec > 0 {
		limit = rate.Limit(cfg.RequestsPerSec)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	meRetry := retry.DefaultRetryConfig()
	if cfg.MeRetryAttempts > 0 {
		meRetry.MaxAttempts = cfg.MeRetryAttempts
	}
	meRetry.ShouldRetry = errors.IsRetryable

	return &AgoraClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		suffix:     cfg.PathSuffix,
		httpClient: &http.Client{Timeout: timeout, Jar: jar},
		limiter:    rate.NewLimiter(limit, burst),
		breaker: circuitbreaker.NewCircuitBreaker(&circuitbreaker.Config{
			Name:        "agora-api",
			MaxFailures: cfg.BreakerFailures,
			Cooldown:    cfg.BreakerCooldown,
			// only transport failures and 5xx answers say the backend is unhealthy
			IsFailure: errors.IsRetryable,
		}),
		meRetry: meRetry,
		logger:  logger.WithComponent("agora_client"),
	}, nil
}

// BreakerStats exposes the circuit breaker state for health reporting
func (c *AgoraClient) BreakerStats() circuitbreaker.Stats {
	return c.breaker.GetStats()
}

// endpointURL builds the full URL for a logical endpoint name
func (c *AgoraClient) endpointURL(name string) string {
	if rootEndpoints[name] {
		return c.baseURL + "/" + name + c.suffix
	}
	return c.baseURL + "/api/" + name + c.suffix
}

type requestIDKey struct{}

// WithRequestID attaches a correlation ID that is sent as X-Request-ID
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the correlation ID carried by ctx, if any
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// response is a decoded backend answer
type response struct {
	status int
	body   []byte
	fields wireRecord
}

// errorMessage returns the application error reported in the body, if any
func (r *response) errorMessage() string {
	if r.fields == nil {
		return ""
	}
	raw, ok := r.fields.lookup("error")
	if !ok {
		return ""
	}
	switch raw[0] {
	case '"':
		return r.fields.str("error")
	case 'f', '0':
		// "error": false
		return ""
	default:
		return string(raw)
	}
}

// flag reports whether a boolean field is present and true
func (r *response) flag(key string) bool {
	return r.fields != nil && r.fields.truthy(key)
}

func (c *AgoraClient) do(ctx context.Context, method, endpoint string, payload interface{}) (*response, error) {
	requestID := RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.New().String()
	}
	logger := c.logger.WithFields(map[string]interface{}{
		"endpoint":  endpoint,
		"method":    method,
		"requestId": requestID,
	})

	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.NewInternalError("failed to encode request", err)
		}
		body = bytes.NewReader(buf)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.NewProviderError(endpoint, err)
	}

	var resp *response
	start := time.Now()
	err := c.breaker.Execute(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.endpointURL(endpoint), body)
		if err != nil {
			return errors.NewInternalError("failed to create request", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set(requestIDHeader, requestID)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		httpResp, err := c.httpClient.Do(req)
		if err != nil {
			return errors.NewProviderError(endpoint, err)
		}
		defer httpResp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
		if err != nil {
			return errors.NewProviderError(endpoint, err)
		}

		resp = &response{status: httpResp.StatusCode, body: raw}
		resp.fields, _ = decodeRecord(raw)

		if httpResp.StatusCode >= 500 {
			return errors.NewAPIError(endpoint, httpResp.StatusCode, resp.errorMessage())
		}
		return nil
	})

	if stderrors.Is(err, circuitbreaker.ErrCircuitOpen) {
		logger.Warn("Backend call short-circuited")
		return nil, errors.NewProviderUnavailableError(endpoint, err)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.IsCategory(err, errors.CategoryProvider) {
			err = errors.NewProviderError(endpoint, ctxErr)
		}
		logger.WithError(err).Warn("Backend call failed")
		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"status":   resp.status,
		"duration": time.Since(start).String(),
	}).Debug("Backend call completed")

	if resp.status < 200 || resp.status >= 300 {
		return resp, errors.NewAPIError(endpoint, resp.status, resp.errorMessage())
	}
	if msg := resp.errorMessage(); msg != "" {
		return resp, errors.NewAPIError(endpoint, resp.status, msg)
	}
	return resp, nil
}

// Me fetches the session payload. A nil snapshot means nobody is signed in.
func (c *AgoraClient) Me(ctx context.Context) (*models.Snapshot, error) {
	var snap *models.Snapshot
	ctx = logging.WithLogger(ctx, c.logger)
	err := retry.Do(ctx, c.meRetry, func(ctx context.Context, attempt int) error {
		resp, err := c.do(ctx, http.MethodGet, EndpointMe, nil)
		if err != nil {
			if resp != nil && (resp.status == http.StatusUnauthorized || resp.status == http.StatusForbidden) {
				snap = nil
				return nil
			}
			return err
		}
		decoded, err := DecodeSnapshot(resp.body)
		if err != nil {
			return errors.NewAPIError(EndpointMe, resp.status, err.Error())
		}
		snap = decoded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Login opens a session. The response body is not used.
func (c *AgoraClient) Login(ctx context.Context, email, password string) error {
	_, err := c.do(ctx, http.MethodPost, EndpointLogin, map[string]interface{}{
		"email":    email,
		"password": password,
	})
	return err
}

// Register creates an account and opens a session
func (c *AgoraClient) Register(ctx context.Context, name, email, password string) error {
	_, err := c.do(ctx, http.MethodPost, EndpointRegister, map[string]interface{}{
		"name":     name,
		"email":    email,
		"password": password,
	})
	return err
}

// Logout closes the session
func (c *AgoraClient) Logout(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, EndpointLogout, nil)
	return err
}

// CreateMarketplace creates a marketplace owned by the signed-in user.
// OwnerID is empty when the backend does not echo it.
func (c *AgoraClient) CreateMarketplace(ctx context.Context, name, slug, city string) (*models.Marketplace, error) {
	resp, err := c.do(ctx, http.MethodPost, EndpointMarketplaces, map[string]interface{}{
		"name": name,
		"slug": slug,
		"city": city,
	})
	if err != nil {
		return nil, err
	}
	if resp.fields == nil || resp.fields.id("id") == "" {
		return nil, errors.NewAPIError(EndpointMarketplaces, resp.status, "response carries no marketplace id")
	}
	m := decodeMarketplace(resp.fields)
	if m.Name == "" {
		m.Name = name
	}
	if m.Slug == "" {
		m.Slug = slug
	}
	if m.City == "" {
		m.City = city
	}
	return &m, nil
}

// AddFavorite bookmarks a marketplace
func (c *AgoraClient) AddFavorite(ctx context.Context, marketplaceID string) error {
	_, err := c.do(ctx, http.MethodPost, EndpointFavorites, map[string]interface{}{
		"marketplaceId": wireID(marketplaceID),
	})
	return err
}

// RemoveFavorite drops a bookmark
func (c *AgoraClient) RemoveFavorite(ctx context.Context, marketplaceID string) error {
	_, err := c.do(ctx, http.MethodDelete, EndpointFavorites, map[string]interface{}{
		"marketplaceId": wireID(marketplaceID),
	})
	return err
}

// SetRole assigns a role to a member. Admin only.
func (c *AgoraClient) SetRole(ctx context.Context, marketplaceID, userID string, role types.UserRole) error {
	_, err := c.do(ctx, http.MethodPost, EndpointAdminSetRole, map[string]interface{}{
		"marketplaceId": wireID(marketplaceID),
		"userId":        wireID(userID),
		"role":          role,
	})
	return err
}

// SetApproval approves or rejects a producer application through the same admin endpoint
func (c *AgoraClient) SetApproval(ctx context.Context, marketplaceID, userID string, status types.ApprovalStatus) error {
	_, err := c.do(ctx, http.MethodPost, EndpointAdminSetRole, map[string]interface{}{
		"marketplaceId": wireID(marketplaceID),
		"userId":        wireID(userID),
		"status":        status,
	})
	return err
}

// RegisterProducer submits a producer application. Succeeds only on {"ok": true}.
func (c *AgoraClient) RegisterProducer(ctx context.Context, marketplaceID, description string) error {
	resp, err := c.do(ctx, http.MethodPost, EndpointProducers, map[string]interface{}{
		"marketplaceId": wireID(marketplaceID),
		"description":   description,
	})
	if err != nil {
		return err
	}
	if !resp.flag("ok") {
		return errors.NewAPIError(EndpointProducers, resp.status, "application not accepted")
	}
	return nil
}

// UpdateProducerStatus changes the caller's availability. Succeeds only on {"success": true}.
func (c *AgoraClient) UpdateProducerStatus(ctx context.Context, marketplaceID string, status types.ProducerStatus) error {
	resp, err := c.do(ctx, http.MethodPost, EndpointProducerStatus, map[string]interface{}{
		"marketplaceId": wireID(marketplaceID),
		"status":        status,
	})
	if err != nil {
		return err
	}
	if !resp.flag("success") {
		return errors.NewAPIError(EndpointProducerStatus, resp.status, "status change not confirmed")
	}
	return nil
}

// CreateJob posts a job and returns the identifier issued by the backend
func (c *AgoraClient) CreateJob(ctx context.Context, in JobInput) (string, error) {
	payload := map[string]interface{}{
		"marketplaceId": wireID(in.MarketplaceID),
		"title":         in.Title,
		"description":   in.Description,
		"address":       in.Address,
		"preferredTime": in.PreferredTime,
		"price":         in.Price,
		"lat":           in.Lat,
		"lng":           in.Lng,
	}
	resp, err := c.do(ctx, http.MethodPost, EndpointJobs, payload)
	if err != nil {
		return "", err
	}
	id := ""
	if resp.fields != nil {
		id = resp.fields.id("id")
	}
	if id == "" {
		return "", errors.NewAPIError(EndpointJobs, resp.status, "response carries no job id")
	}
	return id, nil
}

// TakeJob assigns an open job to the caller
func (c *AgoraClient) TakeJob(ctx context.Context, jobID string) error {
	_, err := c.do(ctx, http.MethodPost, EndpointJobsTake, map[string]interface{}{"jobId": wireID(jobID)})
	return err
}

// CompleteJob marks a taken job done
func (c *AgoraClient) CompleteJob(ctx context.Context, jobID string) error {
	_, err := c.do(ctx, http.MethodPost, EndpointJobsComplete, map[string]interface{}{"jobId": wireID(jobID)})
	return err
}

// PayJob settles a job. The credit transfer itself happens on the backend.
func (c *AgoraClient) PayJob(ctx context.Context, jobID string) error {
	_, err := c.do(ctx, http.MethodPost, EndpointJobsPay, map[string]interface{}{"jobId": wireID(jobID)})
	return err
}

// AutoJoin enrolls the caller as a customer. Created reports whether a new membership was made.
func (c *AgoraClient) AutoJoin(ctx context.Context, marketplaceID string) (bool, error) {
	resp, err := c.do(ctx, http.MethodPost, EndpointMarketplaceAutoJoin, map[string]interface{}{
		"marketplaceId": wireID(marketplaceID),
	})
	if err != nil {
		return false, err
	}
	return resp.fields != nil && strings.EqualFold(resp.fields.str("status"), autoJoinStatusCreated), nil
}
