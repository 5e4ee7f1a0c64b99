package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/zjrosen/diagramdesk/internal/domain"
	"github.com/zjrosen/diagramdesk/internal/log"
	"github.com/zjrosen/diagramdesk/internal/tracing"
)

const (
	apiPrefix        = "/api/v1"
	defaultTimeout   = 10 * time.Second
	defaultUserAgent = "diagramdesk/1"
)

// ClientConfig configures a Client.
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
	Token   string
	// RateLimit caps requests per second. Zero or less is unlimited.
	RateLimit float64
	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// Client is the HTTP implementation of Gateway. Retries are left to the
// caller so it can decide per operation.
type Client struct {
	resty   *resty.Client
	limiter *rate.Limiter
	mu      sync.RWMutex
}

var _ Gateway = (*Client)(nil)

// NewClient creates a Client for the project service at cfg.BaseURL.
func NewClient(cfg ClientConfig) *Client {
	var rc *resty.Client
	if cfg.HTTPClient != nil {
		rc = resty.NewWithClient(cfg.HTTPClient)
	} else {
		rc = resty.New()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	rc.SetBaseURL(cfg.BaseURL + apiPrefix).
		SetTimeout(timeout).
		SetHeader("User-Agent", defaultUserAgent).
		SetHeader("Accept", "application/json")
	if cfg.Token != "" {
		rc.SetAuthToken(cfg.Token)
	}

	c := &Client{resty: rc}
	c.SetRateLimit(cfg.RateLimit)
	return c
}

// SetRateLimit configures rate limiting in requests per second.
func (c *Client) SetRateLimit(rps float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rps <= 0 {
		c.limiter = rate.NewLimiter(rate.Inf, 0)
		return
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
}

func (c *Client) CreateProject(ctx context.Context, id, name, description string) (domain.Project, error) {
	env, err := c.do(ctx, OpCreateProject, http.MethodPost, "/projects", nil, CreateProjectRequest{
		ID:          id,
		Name:        name,
		Description: description,
	})
	if err != nil {
		return domain.Project{}, err
	}
	if env.Project == nil {
		return domain.Project{}, malformed(OpCreateProject, "project")
	}
	return env.Project.ToDomain(), nil
}

func (c *Client) ListProjects(ctx context.Context) ([]domain.Project, error) {
	env, err := c.do(ctx, OpListProjects, http.MethodGet, "/projects", nil, nil)
	if err != nil {
		return nil, err
	}
	projects := make([]domain.Project, len(env.Projects))
	for i, p := range env.Projects {
		projects[i] = p.ToDomain().Summary()
	}
	return projects, nil
}

func (c *Client) GetProjectOutline(ctx context.Context, projectID string) (domain.Project, error) {
	env, err := c.do(ctx, OpGetProjectOutline, http.MethodGet, "/projects/{projectID}",
		map[string]string{"projectID": projectID}, nil)
	if err != nil {
		return domain.Project{}, err
	}
	if env.Project == nil {
		return domain.Project{}, malformed(OpGetProjectOutline, "project")
	}
	project := env.Project.ToDomain()
	if project.Diagrams == nil {
		project.Diagrams = []domain.Diagram{}
	}
	return project, nil
}

func (c *Client) AddDiagram(ctx context.Context, projectID string, in DiagramInput) (domain.Diagram, error) {
	env, err := c.do(ctx, OpAddDiagram, http.MethodPost, "/projects/{projectID}/diagrams",
		map[string]string{"projectID": projectID}, in.request())
	if err != nil {
		return domain.Diagram{}, err
	}
	if env.Diagram == nil {
		return domain.Diagram{}, malformed(OpAddDiagram, "diagram")
	}
	return env.Diagram.ToDomain(), nil
}

func (c *Client) UpdateDiagram(ctx context.Context, projectID string, id domain.DiagramID, in DiagramInput) (domain.Diagram, error) {
	env, err := c.do(ctx, OpUpdateDiagram, http.MethodPut, "/projects/{projectID}/diagrams/{diagramID}",
		map[string]string{"projectID": projectID, "diagramID": string(id)}, in.request())
	if err != nil {
		return domain.Diagram{}, err
	}
	if env.Diagram == nil {
		return domain.Diagram{}, malformed(OpUpdateDiagram, "diagram")
	}
	return env.Diagram.ToDomain(), nil
}

func (c *Client) GetDiagram(ctx context.Context, projectID string, id domain.DiagramID) (domain.Diagram, error) {
	env, err := c.do(ctx, OpGetDiagram, http.MethodGet, "/projects/{projectID}/diagrams/{diagramID}",
		map[string]string{"projectID": projectID, "diagramID": string(id)}, nil)
	if err != nil {
		return domain.Diagram{}, err
	}
	if env.Diagram == nil {
		return domain.Diagram{}, malformed(OpGetDiagram, "diagram")
	}
	return env.Diagram.ToDomain(), nil
}

func (c *Client) ListDiagrams(ctx context.Context, projectID string) ([]domain.Diagram, error) {
	env, err := c.do(ctx, OpListDiagrams, http.MethodGet, "/projects/{projectID}/diagrams",
		map[string]string{"projectID": projectID}, nil)
	if err != nil {
		return nil, err
	}
	diagrams := make([]domain.Diagram, len(env.Diagrams))
	for i, d := range env.Diagrams {
		diagrams[i] = d.ToDomain()
	}
	return diagrams, nil
}

func (c *Client) DeleteDiagram(ctx context.Context, projectID string, id domain.DiagramID) error {
	_, err := c.do(ctx, OpDeleteDiagram, http.MethodDelete, "/projects/{projectID}/diagrams/{diagramID}",
		map[string]string{"projectID": projectID, "diagramID": string(id)}, nil)
	return err
}

// request waits for the rate limiter and returns a request bound to ctx.
func (c *Client) request(ctx context.Context, op string) (*resty.Request, error) {
	c.mu.RLock()
	limiter := c.limiter
	c.mu.RUnlock()

	if err := limiter.Wait(ctx); err != nil {
		return nil, transportError(op, fmt.Errorf("rate limit wait: %w", err))
	}

	req := c.resty.R().SetContext(ctx)
	if traceID := tracing.TraceIDFromContext(ctx); traceID != "" {
		req.SetHeader(tracing.HeaderTraceID, traceID)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, params map[string]string, body any) (*Envelope, error) {
	req, err := c.request(ctx, op)
	if err != nil {
		return nil, err
	}

	var env Envelope
	req.SetResult(&env).SetError(&env)
	if params != nil {
		req.SetPathParams(params)
	}
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		remoteErr := transportError(op, err)
		log.Warn(log.CatRemote, "request failed", "op", op, "category", remoteErr.Category, "error", err.Error())
		return nil, remoteErr
	}

	log.Debug(log.CatRemote, "request complete", "op", op, "method", method, "status", resp.StatusCode(), "duration", resp.Time())

	if resp.IsError() || !resp.IsSuccess() || !env.OK {
		return nil, statusError(op, resp, env)
	}
	return &env, nil
}

func transportError(op string, err error) *domain.RemoteError {
	category := domain.CategoryNetwork
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		category = domain.CategoryTimeout
	}
	return &domain.RemoteError{Op: op, Category: category, Err: err}
}

func statusError(op string, resp *resty.Response, env Envelope) *domain.RemoteError {
	code := resp.StatusCode()
	message := env.Error
	if message == "" {
		message = resp.Status()
	}

	remoteErr := &domain.RemoteError{
		Op:         op,
		Category:   StatusCategory(code),
		StatusCode: code,
		Message:    message,
		Fields:     env.Fields,
	}
	if code == http.StatusNotFound {
		remoteErr.Err = ErrNotFound
	}
	return remoteErr
}

// StatusCategory classifies an HTTP status. Success codes that carry
// ok=false are treated as server faults.
func StatusCategory(code int) domain.Category {
	switch {
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return domain.CategoryTimeout
	case code == http.StatusConflict:
		return domain.CategoryConflict
	case code == http.StatusTooManyRequests || code >= 500:
		return domain.CategoryServer
	case code >= 400:
		return domain.CategoryValidation
	default:
		return domain.CategoryServer
	}
}

func malformed(op, field string) *domain.RemoteError {
	return &domain.RemoteError{
		Op:       op,
		Category: domain.CategoryServer,
		Message:  "response is missing " + field,
	}
}
