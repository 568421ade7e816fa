package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/mtlprog/missionboard/internal/domain"
	"github.com/mtlprog/missionboard/internal/handler/dto"
	"github.com/mtlprog/missionboard/internal/middleware"
)

// handleListAgents returns all registered agents.
// @Summary List agents
// @Tags agents
// @Produce json
// @Success 200 {object} dto.AgentsListResponse
// @Security BearerAuth
// @Router /agents [get]
func (h *Handler) handleListAgents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	agents, err := h.agentRepo.List(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list agents")
		return
	}

	resp := dto.AgentsListResponse{
		Agents: make([]dto.AgentResponse, len(agents)),
		Total:  len(agents),
	}
	for i, agent := range agents {
		resp.Agents[i] = dto.ToAgentResponse(agent, false)
	}

	respondJSON(w, http.StatusOK, resp)
}

// handleRegisterAgent registers a new agent and issues its session key.
// @Summary Register an agent
// @Description Register a new agent handle. The session key in the response is shown only once.
// @Tags agents
// @Accept json
// @Produce json
// @Param request body dto.RegisterAgentRequest true "Registration request"
// @Success 201 {object} dto.AgentResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /agents [post]
func (h *Handler) handleRegisterAgent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	requestor, err := middleware.GetAgentFromContext(ctx)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_SESSION_KEY", "Authentication required")
		return
	}
	if requestor.Name != h.rules.CoordinatorID {
		respondError(w, http.StatusForbidden, "INSUFFICIENT_ACCESS", "Only the coordinator can register agents")
		return
	}

	var req dto.RegisterAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	name := strings.ToLower(strings.TrimSpace(req.Name))
	if name == "" {
		respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required")
		return
	}

	agent := &domain.Agent{
		Name:       name,
		Role:       req.Role,
		Status:     "idle",
		SessionKey: uuid.NewString(),
	}

	agent, err = h.agentRepo.Create(ctx, agent)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to register agent")
		return
	}

	respondJSON(w, http.StatusCreated, dto.ToAgentResponse(agent, true))
}

// handlePendingPings returns unresponded pings and mentions for an agent.
// @Summary Pending pings for an agent
// @Description Unresponded pings and mentions aimed at the agent, newest first.
// @Tags agents
// @Produce json
// @Param name path string true "Agent handle"
// @Success 200 {object} dto.EventsListResponse
// @Security BearerAuth
// @Router /agents/{name}/pings [get]
func (h *Handler) handlePendingPings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	name := r.PathValue("name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "agent name is required")
		return
	}

	events, err := h.collabService.PendingPings(ctx, name)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list pending pings")
		return
	}

	resp := dto.EventsListResponse{
		Events: make([]dto.EventResponse, len(events)),
		Total:  len(events),
	}
	for i, e := range events {
		resp.Events[i] = dto.ToEventResponse(e)
	}

	respondJSON(w, http.StatusOK, resp)
}

// handlePendingPingsCount returns the badge count of unresponded pings.
// @Summary Pending ping count for an agent
// @Tags agents
// @Produce json
// @Param name path string true "Agent handle"
// @Success 200 {object} dto.PendingCountResponse
// @Security BearerAuth
// @Router /agents/{name}/pings/count [get]
func (h *Handler) handlePendingPingsCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	name := r.PathValue("name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "agent name is required")
		return
	}

	count, err := h.collabService.CountPendingPings(ctx, name)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to count pending pings")
		return
	}

	respondJSON(w, http.StatusOK, dto.PendingCountResponse{Count: count})
}
