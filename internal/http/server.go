package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"iexpense/internal/cache"
	"iexpense/internal/expense"
	"iexpense/internal/log"
	"iexpense/internal/middleware/security"
	"iexpense/internal/middleware/trace"
	appweb "iexpense/web"
)

const (
	defaultCacheTTL  = 5 * time.Minute
	viewCacheEntries = 16
)

// Options configures a Server.
type Options struct {
	// CurrencyCode is the ISO 4217 code used to format amounts.
	CurrencyCode string
	Logger       *log.Logger
	// CacheTTL bounds how long an encoded category view is kept.
	CacheTTL time.Duration
}

type Server struct {
	http.Server
	store     *expense.Store
	templates *template.Template
	currency  string
	logger    *log.Logger
	started   time.Time
	tracer    *trace.Middleware

	views  *cache.LRUCache[[]byte]
	caches *cache.Manager

	// version counts store mutations and backs the API ETag.
	version     atomic.Uint64
	unsubscribe func()

	shutdownOnce sync.Once
}

// NewServer wires routes over store and subscribes to its mutations.
func NewServer(addr string, store *expense.Store, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	mux := http.NewServeMux()
	s := &Server{
		store:    store,
		currency: opts.CurrencyCode,
		logger:   logger.WithComponent(log.ComponentHTTP),
		started:  time.Now(),
		views:    cache.NewLRUCache[[]byte](viewCacheEntries, ttl),
		caches:   cache.NewManager(),
	}

	s.caches.Register(s.views)
	s.caches.StartCleanup(ttl)
	s.unsubscribe = store.Subscribe(s.onStoreEvent)

	// Parse embedded templates at startup.
	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Warn("Failed parsing templates", log.FieldError, err)
	}
	s.templates = t

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600")
			static.ServeHTTP(w, r)
		}))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /api/expenses", s.handleListExpenses)
	mux.HandleFunc("POST /expenses", s.handleCreateExpense)
	mux.HandleFunc("POST /expenses/remove", s.handleRemoveIndices)
	mux.HandleFunc("DELETE /expenses/{id}", s.handleDeleteExpense)
	mux.HandleFunc("POST /expenses/{id}/delete", s.handleDeleteExpense)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	s.tracer = trace.NewMiddleware(logger)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           log.Middleware(logger)(s.tracer.Middleware(headers.Middleware(mux))),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) onStoreEvent(ev expense.Event) {
	s.version.Add(1)
	s.views.Purge()
	s.logger.Debug("Store changed",
		log.FieldOperation, string(ev.Kind),
		log.FieldCount, ev.Count)
}

// Version returns the number of store mutations seen since start.
func (s *Server) Version() uint64 {
	return s.version.Load()
}

// Shutdown detaches from the store, stops cache cleanup and gracefully
// shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.unsubscribe()
		s.caches.Stop()
	})
	return s.Server.Shutdown(ctx)
}
