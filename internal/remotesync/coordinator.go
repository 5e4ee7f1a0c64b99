// Package remotesync turns workspace intents into project service calls.
// Transient failures are retried with capped exponential backoff, reads are
// served through a short-lived cache, and every call is traced.
package remotesync

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/diagramdesk/internal/cachemanager"
	"github.com/zjrosen/diagramdesk/internal/domain"
	"github.com/zjrosen/diagramdesk/internal/log"
	"github.com/zjrosen/diagramdesk/internal/remote"
	"github.com/zjrosen/diagramdesk/internal/tracing"
)

const projectListKey = "projects"

// Config tunes retries and caching.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// CacheTTL is how long project reads are served from cache. Zero disables caching.
	CacheTTL time.Duration
	Tracer   trace.Tracer
}

// DefaultConfig returns 3 attempts from 1s up to 10s and a one minute cache.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    10 * time.Second,
		CacheTTL:    time.Minute,
	}
}

// SaveRequest describes a diagram to persist remotely. An empty DiagramID
// creates the diagram.
type SaveRequest struct {
	ProjectID string
	DiagramID domain.DiagramID
	Title     string
	Content   string
	Type      domain.DiagramType
}

// Coordinator performs remote calls on behalf of the workspace.
type Coordinator struct {
	gateway remote.Gateway
	cfg     Config

	projects *cachemanager.ReadThroughCache[string, []domain.Project, struct{}]
	outlines *cachemanager.ReadThroughCache[string, domain.Project, string]
}

// New creates a Coordinator over gateway.
func New(gateway remote.Gateway, cfg Config) *Coordinator {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultConfig().BaseDelay
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}

	c := &Coordinator{gateway: gateway, cfg: cfg}
	skip := cfg.CacheTTL <= 0

	c.projects = cachemanager.NewReadThroughCache[string, []domain.Project, struct{}](
		cachemanager.NewInMemoryCacheManager[string, []domain.Project]("projects", cfg.CacheTTL, 0),
		func(ctx context.Context, _ struct{}) ([]domain.Project, error) {
			return withRetry(ctx, c, remote.OpListProjects, nil, c.gateway.ListProjects)
		},
		skip,
	)
	c.outlines = cachemanager.NewReadThroughCache[string, domain.Project, string](
		cachemanager.NewInMemoryCacheManager[string, domain.Project]("outlines", cfg.CacheTTL, 0),
		func(ctx context.Context, projectID string) (domain.Project, error) {
			return withRetry(ctx, c, remote.OpGetProjectOutline, projectAttrs(projectID),
				func(ctx context.Context) (domain.Project, error) {
					return c.gateway.GetProjectOutline(ctx, projectID)
				})
		},
		skip,
	)
	return c
}

// ListProjects returns the project summaries.
func (c *Coordinator) ListProjects(ctx context.Context) ([]domain.Project, error) {
	return tracing.Run(ctx, c.cfg.Tracer, tracing.SpanPrefixSync+"list_projects", nil,
		func(ctx context.Context) ([]domain.Project, error) {
			projects, err := c.projects.Get(ctx, projectListKey, struct{}{}, c.cfg.CacheTTL)
			if err != nil {
				return nil, err
			}
			out := make([]domain.Project, len(projects))
			for i, p := range projects {
				out[i] = p.Clone()
			}
			return out, nil
		})
}

// LoadProject returns the project with its diagrams.
func (c *Coordinator) LoadProject(ctx context.Context, projectID string) (domain.Project, error) {
	return tracing.Run(ctx, c.cfg.Tracer, tracing.SpanPrefixSync+"load_project", projectAttrs(projectID),
		func(ctx context.Context) (domain.Project, error) {
			p, err := c.outlines.Get(ctx, projectID, projectID, c.cfg.CacheTTL)
			if err != nil {
				return domain.Project{}, err
			}
			return p.Clone(), nil
		})
}

// CreateProject creates a project remotely.
func (c *Coordinator) CreateProject(ctx context.Context, id, name, description string) (domain.Project, error) {
	return tracing.Run(ctx, c.cfg.Tracer, tracing.SpanPrefixSync+"create_project", projectAttrs(id),
		func(ctx context.Context) (domain.Project, error) {
			p, err := withRetry(ctx, c, remote.OpCreateProject, projectAttrs(id),
				func(ctx context.Context) (domain.Project, error) {
					return c.gateway.CreateProject(ctx, id, name, description)
				})
			if err != nil {
				return domain.Project{}, err
			}
			c.invalidate(ctx, c.projects, projectListKey)
			return p, nil
		})
}

// SaveDiagram adds or updates a diagram and returns the server's copy.
// The caller merges it into local state; nothing is rolled back on failure.
func (c *Coordinator) SaveDiagram(ctx context.Context, req SaveRequest) (domain.Diagram, error) {
	op := remote.OpUpdateDiagram
	if req.DiagramID == "" {
		op = remote.OpAddDiagram
	}
	attrs := append(projectAttrs(req.ProjectID),
		attribute.String(tracing.AttrDiagramID, string(req.DiagramID)),
		attribute.String(tracing.AttrDiagramType, string(req.Type)),
	)
	in := remote.DiagramInput{Title: req.Title, Content: req.Content, Type: req.Type}

	return tracing.Run(ctx, c.cfg.Tracer, tracing.SpanPrefixSync+"save_diagram", attrs,
		func(ctx context.Context) (domain.Diagram, error) {
			d, err := withRetry(ctx, c, op, attrs, func(ctx context.Context) (domain.Diagram, error) {
				if req.DiagramID == "" {
					return c.gateway.AddDiagram(ctx, req.ProjectID, in)
				}
				return c.gateway.UpdateDiagram(ctx, req.ProjectID, req.DiagramID, in)
			})
			if err != nil {
				return domain.Diagram{}, err
			}
			c.invalidate(ctx, c.outlines, req.ProjectID)
			return d, nil
		})
}

// DeleteDiagram deletes a diagram remotely. The caller removes it locally
// only after this succeeds.
func (c *Coordinator) DeleteDiagram(ctx context.Context, projectID string, id domain.DiagramID) error {
	attrs := append(projectAttrs(projectID), attribute.String(tracing.AttrDiagramID, string(id)))
	_, err := tracing.Run(ctx, c.cfg.Tracer, tracing.SpanPrefixSync+"delete_diagram", attrs,
		func(ctx context.Context) (struct{}, error) {
			_, err := withRetry(ctx, c, remote.OpDeleteDiagram, attrs, func(ctx context.Context) (struct{}, error) {
				return struct{}{}, c.gateway.DeleteDiagram(ctx, projectID, id)
			})
			if err != nil {
				return struct{}{}, err
			}
			c.invalidate(ctx, c.outlines, projectID)
			return struct{}{}, nil
		})
	return err
}

// Invalidate drops cached reads so the next call goes to the server.
// An empty projectID drops the project list.
func (c *Coordinator) Invalidate(ctx context.Context, projectID string) {
	if projectID == "" {
		c.invalidate(ctx, c.projects, projectListKey)
		return
	}
	c.invalidate(ctx, c.outlines, projectID)
}

type invalidator interface {
	Invalidate(ctx context.Context, keys ...string) error
}

func (c *Coordinator) invalidate(ctx context.Context, cache invalidator, key string) {
	if err := cache.Invalidate(ctx, key); err != nil {
		log.ErrorErr(log.CatSync, "cache invalidation failed", err, "key", key)
		return
	}
	trace.SpanFromContext(ctx).AddEvent(tracing.EventCacheInvalidated,
		trace.WithAttributes(attribute.String("cache.key", key)))
}

func (c *Coordinator) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.BaseDelay
	b.MaxInterval = c.cfg.MaxDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0.5
	b.Reset()
	return b
}

// withRetry runs fn until it succeeds, fails permanently or runs out of
// attempts. Each attempt gets its own span.
func withRetry[T any](ctx context.Context, c *Coordinator, op string, attrs []attribute.KeyValue, fn func(context.Context) (T, error)) (T, error) {
	attempt := 0
	operation := func() (T, error) {
		attempt++
		spanAttrs := append([]attribute.KeyValue{
			attribute.String(tracing.AttrRemoteOp, op),
			attribute.Int(tracing.AttrRemoteAttempt, attempt),
		}, attrs...)

		result, err := tracing.Run(ctx, c.cfg.Tracer, tracing.SpanPrefixRemote+op, spanAttrs, fn)
		if err != nil && !domain.IsRetryable(err) {
			return result, backoff.Permanent(err)
		}
		return result, err
	}

	notify := func(err error, wait time.Duration) {
		log.Warn(log.CatSync, "remote call failed, retrying",
			"op", op, "attempt", attempt, "wait", wait, "category", domain.CategoryOf(err), "error", err.Error())
		trace.SpanFromContext(ctx).AddEvent(tracing.EventRetryScheduled, trace.WithAttributes(
			attribute.String(tracing.AttrRemoteOp, op),
			attribute.Int(tracing.AttrRemoteAttempt, attempt),
			attribute.String("retry.wait", wait.String()),
		))
	}

	result, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(uint(c.cfg.MaxAttempts)),
		backoff.WithNotify(notify),
	)
	if err == nil {
		return result, nil
	}

	if domain.IsRetryable(err) && ctx.Err() == nil {
		log.Error(log.CatSync, "remote call gave up", "op", op, "attempts", attempt, "error", err.Error())
		return result, fmt.Errorf("%w: %s after %d attempts: %w", domain.ErrRetriesExhausted, op, attempt, err)
	}
	return result, err
}

func projectAttrs(projectID string) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.String(tracing.AttrProjectID, projectID)}
}
