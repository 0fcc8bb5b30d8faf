package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/complainator-backend/internal/requestdata"
	"github.com/yungbote/complainator-backend/internal/services"
	"github.com/yungbote/complainator-backend/internal/types"
)

type SuggestionHandler struct {
	suggestionService services.SuggestionService
}

func NewSuggestionHandler(suggestionService services.SuggestionService) *SuggestionHandler {
	return &SuggestionHandler{suggestionService: suggestionService}
}

func (sh *SuggestionHandler) UpdateStatus(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	suggestionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_suggestion_id", err)
		return
	}
	var req struct {
		Status types.SuggestionStatus `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", errors.New("invalid request body"))
		return
	}
	// Invalid status values are rejected here, before the service runs.
	if !req.Status.Valid() {
		RespondError(c, http.StatusBadRequest, "invalid_status", errors.New("invalid status value"))
		return
	}
	ok, err := sh.suggestionService.UpdateStatus(c.Request.Context(), rd.UserID, suggestionID, req.Status)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "update_status_failed", errors.New("failed to update suggestion status"))
		return
	}
	if !ok {
		RespondError(c, http.StatusNotFound, "suggestion_not_found", errors.New("suggestion not found"))
		return
	}
	c.Status(http.StatusNoContent)
}
