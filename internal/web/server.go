package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"image-compress-go/internal/config"
	"image-compress-go/internal/model"
	"image-compress-go/internal/processor"
	"image-compress-go/internal/statistics"
	"image-compress-go/internal/storage"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

type Server struct {
	cfg        *config.Config
	log        *logrus.Logger
	router     *mux.Router
	httpServer *http.Server
	wsUpgrader websocket.Upgrader
	wsClients  map[*websocket.Conn]bool
	wsMutex    sync.Mutex

	// wsWriteTimeout bounds each websocket write; slow clients are dropped.
	wsWriteTimeout time.Duration

	stats     *statistics.Statistics
	processor *processor.FileProcessor
	storage   storage.Storage

	stopCleanup context.CancelFunc
	cleanupDone chan struct{}
}

const defaultWSWriteTimeout = 5 * time.Second

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func NewServer(
	cfg *config.Config,
	log *logrus.Logger,
	stats *statistics.Statistics,
	proc *processor.FileProcessor,
	store storage.Storage,
) *Server {
	s := &Server{
		cfg:       cfg,
		log:       log,
		router:    mux.NewRouter(),
		wsClients: make(map[*websocket.Conn]bool),
		wsUpgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		wsWriteTimeout: defaultWSWriteTimeout,
		stats:          stats,
		processor:      proc,
		storage:        store,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc(model.PathUpload, s.limitBody(s.handleUpload)).Methods("POST")
	s.router.HandleFunc(model.PathBatch, s.limitBody(s.handleBatch)).Methods("POST")
	s.router.HandleFunc(model.PathDownload+"{filename}", s.handleDownload).Methods("GET")
	s.router.HandleFunc(model.PathCleanup, s.handleCleanup).Methods("POST")

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/statistics", s.handleGetStatistics).Methods("GET")

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc(model.PathWebSocket, s.handleWebSocket)
	s.router.HandleFunc("/", s.handleIndex).Methods("GET")
}

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Stop is called. The scheduled cleanup runs alongside.
func (s *Server) Start() error {
	addr := s.cfg.ListenAddr()
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	if s.cfg.Cleanup.Enabled {
		s.startCleanupScheduler()
	}

	s.log.Infof("Starting compression server on http://%s", addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Stop(ctx context.Context) error {
	s.stopCleanupScheduler()
	s.closeWSClients()
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) startCleanupScheduler() {
	interval := s.cfg.Cleanup.Interval
	if interval <= 0 {
		interval = time.Hour
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.stopCleanup = cancel
	s.cleanupDone = make(chan struct{})

	go func() {
		defer close(s.cleanupDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.runCleanup(ctx); err != nil {
					s.log.Errorf("Scheduled cleanup failed: %v", err)
				}
			}
		}
	}()
	s.log.Infof("Scheduled cleanup every %s (max age %s)", interval, s.cfg.Cleanup.MaxAge)
}

func (s *Server) stopCleanupScheduler() {
	if s.stopCleanup == nil {
		return
	}
	s.stopCleanup()
	<-s.cleanupDone
	s.stopCleanup = nil
}

// runCleanup removes stale files from both storage areas.
func (s *Server) runCleanup(ctx context.Context) (int, error) {
	removed, err := storage.CleanupAll(ctx, s.storage, s.cfg.Cleanup.MaxAge)
	s.stats.RecordCleanup(removed)
	s.log.WithField("removed", removed).Info("Cleanup finished")
	return removed, err
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	s.writeJSONStatus(w, data, http.StatusOK)
}

func (s *Server) writeJSONStatus(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, message string, statusCode int) {
	s.writeJSONStatus(w, APIResponse{
		Success: false,
		Error:   message,
	}, statusCode)
}
