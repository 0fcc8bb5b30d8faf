package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/complainator-backend/internal/requestdata"
	"github.com/yungbote/complainator-backend/internal/services"
	"github.com/yungbote/complainator-backend/internal/types"
)

type RetrospectiveHandler struct {
	retrospectiveService services.RetrospectiveService
	suggestionService    services.SuggestionService
}

func NewRetrospectiveHandler(retrospectiveService services.RetrospectiveService, suggestionService services.SuggestionService) *RetrospectiveHandler {
	return &RetrospectiveHandler{
		retrospectiveService: retrospectiveService,
		suggestionService:    suggestionService,
	}
}

func (rh *RetrospectiveHandler) Create(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	retro, err := rh.retrospectiveService.Create(c.Request.Context(), rd.UserID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "create_retrospective_failed", errors.New("failed to create retrospective"))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": retro.ID, "name": retro.Name, "date": retro.Date})
}

func (rh *RetrospectiveHandler) GetList(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req struct {
		Page    int    `form:"page,default=1"`
		PerPage int    `form:"per_page,default=10"`
		Sort    string `form:"sort,default=date_desc"`
	}
	if err := c.ShouldBindQuery(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_query", errors.New("invalid query parameters"))
		return
	}
	list, err := rh.retrospectiveService.GetList(c.Request.Context(), rd.UserID, req.Page, req.PerPage, req.Sort)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "list_retrospectives_failed", errors.New("failed to list retrospectives"))
		return
	}
	RespondOK(c, list)
}

func (rh *RetrospectiveHandler) GetByID(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	retroID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_retrospective_id", err)
		return
	}
	detail, err := rh.retrospectiveService.GetByID(c.Request.Context(), rd.UserID, retroID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "load_retrospective_failed", errors.New("failed to load retrospective"))
		return
	}
	if detail == nil {
		RespondError(c, http.StatusNotFound, "retrospective_not_found", errors.New("retrospective not found"))
		return
	}
	RespondOK(c, detail)
}

func (rh *RetrospectiveHandler) AddNote(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	retroID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_retrospective_id", err)
		return
	}
	var req struct {
		Category types.NoteCategory `json:"category"`
		Content  string             `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", errors.New("invalid request body"))
		return
	}
	note, err := rh.retrospectiveService.AddNote(c.Request.Context(), rd.UserID, retroID, req.Category, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrRetrospectiveNotFound):
			RespondError(c, http.StatusNotFound, "retrospective_not_found", errors.New("retrospective not found"))
		case errors.Is(err, services.ErrInvalidNoteCategory), errors.Is(err, services.ErrInvalidNoteContent):
			RespondError(c, http.StatusBadRequest, "invalid_note", err)
		default:
			RespondError(c, http.StatusInternalServerError, "add_note_failed", errors.New("failed to add note"))
		}
		return
	}
	c.JSON(http.StatusCreated, note)
}

func (rh *RetrospectiveHandler) GenerateSuggestions(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	retroID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_retrospective_id", err)
		return
	}
	suggestions, err := rh.suggestionService.GenerateForRetrospective(c.Request.Context(), rd.UserID, retroID)
	if err != nil {
		if errors.Is(err, services.ErrRetrospectiveNotFound) {
			RespondError(c, http.StatusNotFound, "retrospective_not_found", errors.New("retrospective not found"))
			return
		}
		// Provider failures never carry their internal error text to clients.
		var rateLimited *services.RateLimitError
		if errors.As(err, &rateLimited) {
			c.Header("Retry-After", strconv.Itoa(int(rateLimited.RetryAfter.Seconds())))
			RespondError(c, http.StatusServiceUnavailable, "provider_rate_limited", errors.New("suggestion provider is rate limited, try again later"))
			return
		}
		RespondError(c, http.StatusBadGateway, "suggestion_generation_failed", errors.New("failed to generate suggestions"))
		return
	}

	items := make([]gin.H, 0, len(suggestions))
	for _, suggestion := range suggestions {
		items = append(items, gin.H{
			"id":              suggestion.ID,
			"suggestion_text": suggestion.SuggestionText,
			"status":          suggestion.Status,
		})
	}
	RespondOK(c, gin.H{"suggestions": items})
}
