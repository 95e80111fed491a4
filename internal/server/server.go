package server

import (
	"log/slog"
	"net/http"
	"sync"

	glog "github.com/gin-contrib/slog"
	"github.com/gin-gonic/gin"
	"github.com/kode4food/caravan"
	"github.com/kode4food/caravan/topic"

	"github.com/kode4food/stride/internal/archive"
	"github.com/kode4food/stride/internal/persist"
	"github.com/kode4food/stride/internal/util"
	"github.com/kode4food/stride/pkg/api"
)

type (
	// Server implements the Workflow Persistence Service: the authoritative
	// store of submission snapshots that the synchronization controller
	// reconciles against
	Server struct {
		repo     *persist.Repository
		catalog  *api.Catalog
		archiver *archive.Archiver
		changes  topic.Topic[Change]
		prod     topic.Producer[Change]
		sockets  util.Set[*socket]
		mu       sync.Mutex
	}

	// Change notifies WebSocket subscribers that a submission was mutated
	Change struct {
		SubmissionID api.SubmissionID      `json:"submission_id"`
		Instance     *api.WorkflowInstance `json:"instance"`
	}
)

// NewServer creates the persistence service over a snapshot repository. The
// archiver is optional; when nil, completed submissions are not archived
func NewServer(
	repo *persist.Repository, catalog *api.Catalog, archiver *archive.Archiver,
) *Server {
	changes := caravan.NewTopic[Change]()
	return &Server{
		repo:     repo,
		catalog:  catalog,
		archiver: archiver,
		changes:  changes,
		prod:     changes.NewProducer(),
		sockets:  util.Set[*socket]{},
	}
}

// SetupRoutes configures and returns the HTTP router with all API endpoints
func (s *Server) SetupRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(glog.SetLogger(
		glog.WithLogger(func(c *gin.Context, l *slog.Logger) *slog.Logger {
			return slog.Default()
		}),
	))

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set(
			"Access-Control-Allow-Methods",
			"GET, POST, PUT, DELETE, OPTIONS",
		)
		c.Writer.Header().Set(
			"Access-Control-Allow-Headers",
			"Content-Type, Authorization",
		)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})

	router.GET("/health", s.handleHealth)
	router.GET("/catalog", s.handleCatalog)
	router.GET("/ws", s.handleWebSocket)

	sub := router.Group("/submission")
	{
		sub.GET("/:submissionID", s.getSubmission)
		sub.POST("/:submissionID/initialize", s.initializeSubmission)
		sub.PUT("/:submissionID/navigate", s.navigateSubmission)
		sub.PUT("/:submissionID/step/:stepNumber", s.updateStep)
		sub.PUT("/:submissionID/step/:stepNumber/complete", s.completeStep)
		sub.POST("/:submissionID/complete", s.completeSubmission)
	}

	return router
}

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.repo.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, api.ErrorResponse{
			Error:  err.Error(),
			Status: http.StatusServiceUnavailable,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, s.catalog)
}

func (s *Server) publish(id api.SubmissionID, w *api.WorkflowInstance) {
	s.prod.Send() <- Change{
		SubmissionID: id,
		Instance:     w,
	}
}

// CloseWebSockets shuts down all connected WebSocket clients and the change
// topic
func (s *Server) CloseWebSockets() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sock := range s.sockets {
		sock.close()
	}
	clear(s.sockets)
	s.prod.Close()
}
