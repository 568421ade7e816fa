package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mtlprog/missionboard/internal/domain"
	"github.com/mtlprog/missionboard/internal/repository"
)

type contextKey string

const (
	// ContextKeyAgent is the key for storing agent in request context.
	ContextKeyAgent contextKey = "agent"
)

// AuthMiddleware handles Bearer session-key authentication. Actor identity
// on every mutation comes from here, never from the request body.
type AuthMiddleware struct {
	agentRepo *repository.AgentRepository
}

// NewAuthMiddleware creates a new AuthMiddleware.
func NewAuthMiddleware(agentRepo *repository.AgentRepository) *AuthMiddleware {
	return &AuthMiddleware{
		agentRepo: agentRepo,
	}
}

// Authenticate validates the Bearer session key and adds the agent to the
// request context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "missing authorization header", http.StatusUnauthorized)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			http.Error(w, "invalid authorization header format", http.StatusUnauthorized)
			return
		}

		sessionKey := parts[1]
		if sessionKey == "" {
			http.Error(w, "missing session key", http.StatusUnauthorized)
			return
		}

		agent, err := m.agentRepo.GetBySessionKey(r.Context(), sessionKey)
		if err != nil {
			if err == domain.ErrAgentNotFound {
				http.Error(w, "invalid session key", http.StatusUnauthorized)
				return
			}
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeyAgent, agent)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetAgentFromContext retrieves the authenticated agent from request context.
func GetAgentFromContext(ctx context.Context) (*domain.Agent, error) {
	agent, ok := ctx.Value(ContextKeyAgent).(*domain.Agent)
	if !ok || agent == nil {
		return nil, domain.ErrAgentNotFound
	}
	return agent, nil
}
