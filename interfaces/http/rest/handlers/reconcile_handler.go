package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"cardtree-backend/application/commands"
	"cardtree-backend/application/commands/bus"
	"cardtree-backend/pkg/auth"
	"cardtree-backend/pkg/common"
	appErrors "cardtree-backend/pkg/errors"
)

// ReconcileHandler triggers consistency sweeps over HTTP. The sweep
// runs synchronously; the full report lands in the logs and telemetry
// rather than the response.
type ReconcileHandler struct {
	commandBus *bus.CommandBus
	errors     *appErrors.ErrorHandler
	logger     *zap.Logger
}

// NewReconcileHandler creates a new reconcile handler
func NewReconcileHandler(commandBus *bus.CommandBus, errorHandler *appErrors.ErrorHandler, logger *zap.Logger) *ReconcileHandler {
	return &ReconcileHandler{
		commandBus: commandBus,
		errors:     errorHandler,
		logger:     logger,
	}
}

// Reconcile handles POST /reconcile
func (h *ReconcileHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	requestedBy := ""
	if userCtx, ok := auth.GetUserFromContext(r.Context()); ok {
		requestedBy = userCtx.UserID
	}

	cmd := commands.ReconcileTreeCommand{RequestedBy: requestedBy}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, map[string]string{
		"message": "reconcile sweep complete",
	})
}
