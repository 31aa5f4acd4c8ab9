package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ringring/ringring-server/internal/domain"
	"github.com/ringring/ringring-server/internal/service"
	"github.com/ringring/ringring-server/pkg/auth"
	"github.com/ringring/ringring-server/pkg/config"
	"github.com/ringring/ringring-server/pkg/logger"
)

type Handlers struct {
	svc    service.ActivationService
	config *config.Config
}

func New(svc service.ActivationService, config *config.Config) *Handlers {
	return &Handlers{
		svc:    svc,
		config: config,
	}
}

// RequireAdmin guards the destructive reset endpoints.
func (h *Handlers) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "Missing or invalid authorization header", "UNAUTHORIZED")
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := auth.Parse(token, h.config.Auth.JWTSecret)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token", "INVALID_TOKEN")
			return
		}

		if claims.Role != auth.RoleAdmin {
			writeError(w, http.StatusForbidden, "Insufficient permissions", "FORBIDDEN")
			return
		}

		ctx := context.WithValue(r.Context(), logger.EmailKey, claims.Email)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusResponse struct {
	Status domain.Status `json:"status"`
	User   *domain.User  `json:"user,omitempty"`
	Users  []domain.User `json:"users,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, statusCode int, message, code string) {
	response := map[string]string{
		"error": message,
		"code":  code,
	}
	writeJSON(w, statusCode, response)
}

// writeResult renders the public result-code envelope for an operation
// outcome. ErrUserAlreadyActivated still carries a user payload: the
// password refresh succeeded.
func writeResult(w http.ResponseWriter, err error, user *domain.User) {
	status := domain.StatusFromError(err)

	resp := statusResponse{Status: status}
	if user != nil && (err == nil || errors.Is(err, domain.ErrUserAlreadyActivated)) {
		resp.User = user
	}

	writeJSON(w, status.HTTPStatus(), resp)
}
