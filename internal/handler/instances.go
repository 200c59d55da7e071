package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"lexgate/internal/domain"
	"lexgate/internal/httputil"
	"lexgate/internal/instance"
)

// InstanceHandler serves tenant discovery for client bootstrap.
type InstanceHandler struct {
	registry *instance.Registry
	logger   *slog.Logger
}

func NewInstanceHandler(registry *instance.Registry, logger *slog.Logger) *InstanceHandler {
	return &InstanceHandler{registry: registry, logger: logger}
}

// ListInstances handles GET /api/instances.
func (h *InstanceHandler) ListInstances(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.registry.List()
	if err != nil {
		h.logger.Error("instance listing failed", "error", err)
		httputil.RespondError(w, http.StatusInternalServerError, "no se pudieron listar las instancias")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, summaries)
}

// instanceView is the public projection of a loaded tenant: greeting and
// limits, never the system prompt.
type instanceView struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	Description         string `json:"description,omitempty"`
	Greeting            string `json:"greeting,omitempty"`
	Model               string `json:"model"`
	MaxChatInteractions int    `json:"max_chat_interactions"`
}

// GetInstance handles GET /api/instances/{id}.
func (h *InstanceHandler) GetInstance(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	tenant, err := h.registry.Load(id)
	if err != nil {
		var gerr *domain.GatewayError
		if errors.As(err, &gerr) && gerr.Code == domain.CodeTenantNotFound {
			httputil.RespondError(w, http.StatusNotFound, gerr.Message)
			return
		}
		h.logger.Error("instance load failed", "instance_id", id, "error", err)
		httputil.RespondError(w, http.StatusInternalServerError, "no se pudo cargar la instancia")
		return
	}

	httputil.RespondJSON(w, http.StatusOK, instanceView{
		ID:                  tenant.ID,
		Name:                tenant.Name,
		Description:         tenant.Description,
		Greeting:            tenant.Greeting,
		Model:               tenant.Config.Model,
		MaxChatInteractions: tenant.Config.MaxChatInteractions,
	})
}

// HealthCheck handles GET /health.
func (h *InstanceHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
