package tasks

import (
	"fmt"

	"cms0/internal/config"
	"cms0/internal/utils/logger"

	"github.com/hibiken/asynq"
)

var queues = map[string]int{
	QueueCritical: 6,
	QueueDefault:  3,
	QueueLow:      1,
}

// Server handles task processing
type Server struct {
	server      *asynq.Server
	handler     *TaskHandler
	logger      *logger.Logger
	concurrency int
}

// NewServer creates a new task processing server
func NewServer(cfg *config.Config, handler *TaskHandler, logger *logger.Logger) *Server {
	concurrency := cfg.Worker.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	server := asynq.NewServer(
		RedisOpt(cfg.Redis),
		asynq.Config{
			Concurrency:    concurrency,
			Queues:         queues,
			StrictPriority: true,
		},
	)

	return &Server{
		server:      server,
		handler:     handler,
		logger:      logger,
		concurrency: concurrency,
	}
}

// Mux routes task types to the handler.
func (s *Server) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypePurgeSessions, s.handler.HandlePurgeSessions)
	mux.HandleFunc(TaskTypeInvalidateRole, s.handler.HandleInvalidateRole)
	return mux
}

// Start starts the task processing server
func (s *Server) Start() error {
	s.logger.Info("starting task processing server concurrency %d queues %v", s.concurrency, queues)

	if err := s.server.Start(s.Mux()); err != nil {
		return fmt.Errorf("failed to start task server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the task processing server
func (s *Server) Shutdown() {
	s.logger.Info("shutting down task processing server")
	s.server.Shutdown()
}
