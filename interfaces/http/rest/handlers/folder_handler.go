package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"cardtree-backend/application/queries"
	querybus "cardtree-backend/application/queries/bus"
	"cardtree-backend/pkg/common"
	appErrors "cardtree-backend/pkg/errors"
)

// FolderHandler handles folder listing HTTP requests
type FolderHandler struct {
	queryBus *querybus.QueryBus
	errors   *appErrors.ErrorHandler
	logger   *zap.Logger
}

// NewFolderHandler creates a new folder handler
func NewFolderHandler(queryBus *querybus.QueryBus, errorHandler *appErrors.ErrorHandler, logger *zap.Logger) *FolderHandler {
	return &FolderHandler{
		queryBus: queryBus,
		errors:   errorHandler,
		logger:   logger,
	}
}

// ListChildren handles GET /folders/{folderID}/children. The literal
// folder id "root" lists the top level.
func (h *FolderHandler) ListChildren(w http.ResponseWriter, r *http.Request) {
	folderID := pathParam(r, "folderID")
	if folderID == "root" {
		folderID = ""
	}

	pagination := common.ExtractPaginationParams(r)

	result, err := h.queryBus.Ask(r.Context(), queries.ListChildrenQuery{
		FolderID: folderID,
		Limit:    pagination.CalculateOffset() + pagination.PageSize,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	listing, ok := result.(*queries.ListChildrenResult)
	if !ok {
		common.RespondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "unexpected query result")
		return
	}

	// Window the page out of the capped listing.
	offset := pagination.CalculateOffset()
	children := listing.Children
	if offset >= len(children) {
		children = nil
	} else {
		end := offset + pagination.PageSize
		if end > len(children) {
			end = len(children)
		}
		children = children[offset:end]
	}

	common.RespondWithMeta(w, http.StatusOK, map[string]interface{}{
		"folder_id": listing.FolderID,
		"children":  children,
	}, &common.MetaInfo{
		RequestID:  common.ExtractRequestID(r),
		Pagination: common.BuildPaginationMeta(pagination.Page, pagination.PageSize, listing.Total),
	})
}

// ListTopLevel handles GET /folders, listing top-level nodes
func (h *FolderHandler) ListTopLevel(w http.ResponseWriter, r *http.Request) {
	result, err := h.queryBus.Ask(r.Context(), queries.ListChildrenQuery{})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}
