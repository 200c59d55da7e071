// Package handler exposes the gateway's HTTP surface: instance discovery
// and the SSE turn endpoint.
package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"lexgate/internal/domain"
	"lexgate/internal/domain/models"
	"lexgate/internal/httputil"
	"lexgate/internal/orchestrator"
)

const keepaliveInterval = 15 * time.Second

// TurnHandler runs turns and streams their events to the client.
type TurnHandler struct {
	orch        *orchestrator.Orchestrator
	turnTimeout time.Duration
	logger      *slog.Logger
}

func NewTurnHandler(orch *orchestrator.Orchestrator, turnTimeout time.Duration, logger *slog.Logger) *TurnHandler {
	return &TurnHandler{orch: orch, turnTimeout: turnTimeout, logger: logger}
}

// turnRequest is the POST body for one turn.
type turnRequest struct {
	Question    string              `json:"question"`
	ChatID      string              `json:"chat_id"`
	Attachments []models.Attachment `json:"attachments,omitempty"`
}

func (r turnRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Question, validation.Required, validation.Length(1, 32000)),
		validation.Field(&r.ChatID, validation.Length(0, 128)),
	)
}

// RunTurn handles POST /api/instances/{id}/turns. The response is an SSE
// stream: delta/status events while the model runs, one terminal done or
// error event, then the [DONE] sentinel.
func (h *TurnHandler) RunTurn(w http.ResponseWriter, r *http.Request) {
	instanceID := r.PathValue("id")
	userID := httputil.GetUserID(r)

	var req turnRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	chatID := req.ChatID
	if chatID == "" {
		chatID = uuid.New().String()
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// A client disconnect cancels the turn through the request context.
	ctx := r.Context()
	var cancel context.CancelFunc
	if h.turnTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, h.turnTimeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	events := make(chan string, 64)

	go func() {
		defer close(events)
		h.orch.Run(ctx, orchestrator.TurnRequest{
			Question:    req.Question,
			UserID:      userID,
			ChatID:      chatID,
			InstanceID:  instanceID,
			Attachments: req.Attachments,
		}, orchestrator.Callbacks{
			OnDelta: func(delta string) {
				if ev, err := models.NewDeltaEvent(delta); err == nil {
					events <- ev
				}
			},
			OnStatus: func(message string) {
				if ev, err := models.NewStatusEvent(message); err == nil {
					events <- ev
				}
			},
			OnComplete: func(result *models.TurnResult) {
				if ev, err := models.NewDoneEvent(doneEvent(result)); err == nil {
					events <- ev
				}
			},
			OnError: func(err error) {
				h.logger.Error("turn failed",
					"instance_id", instanceID, "chat_id", chatID, "code", domain.CodeOf(err), "error", err)
				if ev, eerr := models.NewErrorEvent(userMessage(err), domain.CodeOf(err)); eerr == nil {
					events <- ev
				}
			},
		})
	}()

	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				fmt.Fprint(w, models.SSETerminator)
				flusher.Flush()
				return
			}
			fmt.Fprint(w, event)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			h.logger.Info("client disconnected mid-stream", "chat_id", chatID)
			cancel()
			// Drain so the orchestrator goroutine can finish.
			for range events {
			}
			return
		}
	}
}

func doneEvent(result *models.TurnResult) models.DoneEvent {
	ev := models.DoneEvent{
		Type:              models.SSEEventDone,
		Usage:             result.Usage,
		InteractionStatus: result.InteractionStatus,
		CreditConsumption: result.Debit,
		NormativeAnnex:    result.Annex,
		URLValidation:     result.URLValidation,
		FromCache:         result.FromCache,
	}
	return ev
}

// userMessage keeps internal detail out of the wire while preserving the
// localized messages the taxonomy defines.
func userMessage(err error) string {
	var gerr *domain.GatewayError
	if errors.As(err, &gerr) {
		return gerr.Message
	}
	return "error interno"
}
