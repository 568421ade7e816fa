package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/mtlprog/missionboard/docs" // Import generated docs
	"github.com/mtlprog/missionboard/internal/config"
	"github.com/mtlprog/missionboard/internal/handler/dto"
	"github.com/mtlprog/missionboard/internal/middleware"
	"github.com/mtlprog/missionboard/internal/repository"
	"github.com/mtlprog/missionboard/internal/service"
	"github.com/mtlprog/missionboard/internal/static"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	pool                *pgxpool.Pool
	taskService         *service.TaskService
	collabService       *service.CollabService
	notificationService *service.NotificationService
	taskRepo            *repository.TaskRepository
	agentRepo           *repository.AgentRepository
	eventRepo           *repository.CollabEventRepository
	commentRepo         *repository.CommentRepository
	notifRepo           *repository.NotificationRepository
	authMiddleware      *middleware.AuthMiddleware
	rules               *config.Rules
}

// New creates a new Handler instance with all dependencies.
func New(pool *pgxpool.Pool, rules *config.Rules) *Handler {
	// Create repositories
	taskRepo := repository.NewTaskRepository(pool)
	agentRepo := repository.NewAgentRepository(pool)
	eventRepo := repository.NewCollabEventRepository(pool)
	commentRepo := repository.NewCommentRepository(pool)
	notifRepo := repository.NewNotificationRepository(pool)

	// Create services
	taskService := service.NewTaskService(pool, taskRepo, eventRepo, rules)
	collabService := service.NewCollabService(pool, taskRepo, agentRepo, eventRepo, commentRepo, rules)
	notificationService := service.NewNotificationService(pool, taskRepo, eventRepo, notifRepo, rules)

	// Create middleware
	authMiddleware := middleware.NewAuthMiddleware(agentRepo)

	return &Handler{
		pool:                pool,
		taskService:         taskService,
		collabService:       collabService,
		notificationService: notificationService,
		taskRepo:            taskRepo,
		agentRepo:           agentRepo,
		eventRepo:           eventRepo,
		commentRepo:         commentRepo,
		notifRepo:           notifRepo,
		authMiddleware:      authMiddleware,
		rules:               rules,
	}
}

// RegisterRoutes registers all HTTP routes.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Health check
	mux.HandleFunc("GET /healthz", h.handleHealthz)

	// Static files for AI agents
	mux.HandleFunc("GET /{$}", h.handleIndex)
	mux.HandleFunc("GET /skill.md", h.handleSkillMd)

	// Swagger UI
	mux.HandleFunc("GET /swagger/", httpSwagger.Handler())

	// API v1 routes with authentication
	auth := func(fn http.HandlerFunc) http.Handler {
		return h.authMiddleware.Authenticate(fn)
	}

	mux.Handle("GET /api/v1/tasks", auth(h.handleListTasks))
	mux.Handle("POST /api/v1/tasks", auth(h.handleCreateTask))
	mux.Handle("GET /api/v1/tasks/{id}", auth(h.handleGetTask))
	mux.Handle("PATCH /api/v1/tasks/{id}/status", auth(h.handleUpdateStatus))
	mux.Handle("PATCH /api/v1/tasks/{id}/assignees", auth(h.handleUpdateAssignees))
	mux.Handle("PATCH /api/v1/tasks/{id}/order", auth(h.handleReorder))
	mux.Handle("POST /api/v1/tasks/{id}/approvals", auth(h.handleAddApproval))

	mux.Handle("GET /api/v1/tasks/{id}/comments", auth(h.handleListComments))
	mux.Handle("POST /api/v1/tasks/{id}/comments", auth(h.handleAddComment))
	mux.Handle("GET /api/v1/tasks/{id}/events", auth(h.handleListEvents))
	mux.Handle("POST /api/v1/tasks/{id}/events", auth(h.handleCreateEvent))
	mux.Handle("GET /api/v1/tasks/{id}/feed", auth(h.handleFeed))
	mux.Handle("POST /api/v1/tasks/{id}/ping", auth(h.handlePingAgent))
	mux.Handle("POST /api/v1/events/{id}/respond", auth(h.handleRespondToPing))
	mux.Handle("POST /api/v1/events/{id}/resolve", auth(h.handleResolveMention))

	mux.Handle("GET /api/v1/agents", auth(h.handleListAgents))
	mux.Handle("POST /api/v1/agents", auth(h.handleRegisterAgent))
	mux.Handle("GET /api/v1/agents/{name}/pings", auth(h.handlePendingPings))
	mux.Handle("GET /api/v1/agents/{name}/pings/count", auth(h.handlePendingPingsCount))

	mux.Handle("GET /api/v1/notifications", auth(h.handleListNotifications))
	mux.Handle("POST /api/v1/notifications/detect", auth(h.handleDetectStuck))
	mux.Handle("POST /api/v1/notifications/process", auth(h.handleProcessNotifications))
	mux.Handle("POST /api/v1/notifications/cleanup", auth(h.handleCleanupNotifications))
	mux.Handle("POST /api/v1/notifications/{id}/send", auth(h.handleSendAlert))
	mux.Handle("GET /api/v1/notifications/stats", auth(h.handleNotificationStats))
}

// handleHealthz returns 200 OK if the database is reachable.
func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.pool.Ping(ctx); err != nil {
		slog.Error("database health check failed", "error", err)
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// handleIndex serves the embedded board page.
func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(static.IndexHTML))
}

// handleSkillMd serves the embedded skill.md file for AI agents.
func (h *Handler) handleSkillMd(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(static.SkillMd))
}

// Ping checks if the database is reachable (used for testing).
func (h *Handler) Ping(ctx context.Context) error {
	return h.pool.Ping(ctx)
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// respondError writes a standard error response.
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, dto.NewErrorResponse(code, message))
}
