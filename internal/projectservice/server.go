package projectservice

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/diagramdesk/internal/log"
	"github.com/zjrosen/diagramdesk/internal/tracing"
)

// ServerConfig configures a Server.
type ServerConfig struct {
	Addr        string
	Store       *Store
	Tracer      trace.Tracer
	ReadTimeout time.Duration
}

// Server serves the project API.
type Server struct {
	store    *Store
	faults   *Faults
	port     int
	listener net.Listener
	server   *http.Server
}

// NewServer creates a Server listening on cfg.Addr. Use ":0" for an
// ephemeral port.
func NewServer(cfg ServerConfig) (*Server, error) {
	store := cfg.Store
	if store == nil {
		store = NewStore()
	}
	readTimeout := cfg.ReadTimeout
	if readTimeout == 0 {
		readTimeout = 30 * time.Second
	}

	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", cfg.Addr, err)
	}

	port := 0
	if tcpAddr, ok := listener.Addr().(*net.TCPAddr); ok {
		port = tcpAddr.Port
	}

	faults := &Faults{}
	return &Server{
		store:    store,
		faults:   faults,
		port:     port,
		listener: listener,
		server: &http.Server{
			Handler:           NewRouter(store, cfg.Tracer, faults),
			ReadTimeout:       readTimeout,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// NewRouter builds the gin engine. faults may be nil.
func NewRouter(store *Store, tracer trace.Tracer, faults *Faults) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(tracing.GinMiddleware(tracer))
	r.Use(requestLogger())
	if faults != nil {
		r.Use(faults.middleware())
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "status": "healthy"})
	})
	Register(r.Group("/api/v1/projects"), store)
	return r
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	log.Info(log.CatServer, "Starting project service", "addr", s.listener.Addr().String(), "port", s.port)
	if err := s.server.Serve(s.listener); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	log.Info(log.CatServer, "Stopping project service")
	return s.server.Shutdown(ctx)
}

// Port returns the port the server listens on.
func (s *Server) Port() int {
	return s.port
}

// URL returns the base URL of the server.
func (s *Server) URL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", s.port)
}

// Store returns the backing store.
func (s *Server) Store() *Store {
	return s.store
}

// Faults returns the fault injector.
func (s *Server) Faults() *Faults {
	return s.faults
}

// Faults makes the next requests fail with a fixed status. It lets demos
// and tests exercise client retries against a real server.
type Faults struct {
	mu        sync.Mutex
	remaining int
	status    int
	served    int
}

// FailNext makes the next n API requests answer with status.
func (f *Faults) FailNext(n, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remaining = n
	f.status = status
}

// Injected returns how many requests were failed so far.
func (f *Faults) Injected() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.served
}

func (f *Faults) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" {
			c.Next()
			return
		}

		f.mu.Lock()
		fail := f.remaining > 0
		status := f.status
		if fail {
			f.remaining--
			f.served++
		}
		f.mu.Unlock()

		if fail {
			c.AbortWithStatusJSON(status, gin.H{"ok": false, "error": http.StatusText(status)})
			return
		}
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Debug(log.CatServer, "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"trace_id", tracing.TraceIDFromContext(c.Request.Context()),
		)
	}
}
