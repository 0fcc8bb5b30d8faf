package services

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/complainator-backend/internal/logger"
	"github.com/yungbote/complainator-backend/internal/normalization"
	"github.com/yungbote/complainator-backend/internal/repos"
	"github.com/yungbote/complainator-backend/internal/types"
)

const maxNoteContentLength = 1000

var (
	ErrInvalidNoteCategory = errors.New("invalid note category")
	ErrInvalidNoteContent  = errors.New("note content must be between 1 and 1000 characters")
)

type SuggestionListItem struct {
	ID             uuid.UUID `json:"id"`
	SuggestionText string    `json:"suggestion_text"`
}

type RetrospectiveListItem struct {
	ID                  uuid.UUID            `json:"id"`
	Name                string               `json:"name"`
	Date                time.Time            `json:"date"`
	AcceptedSuggestions []SuggestionListItem `json:"accepted_suggestions"`
}

type RetrospectiveList struct {
	Items   []RetrospectiveListItem `json:"items"`
	Total   int64                   `json:"total"`
	Page    int                     `json:"page"`
	PerPage int                     `json:"per_page"`
}

type NoteItem struct {
	ID      uuid.UUID `json:"id"`
	Content string    `json:"content"`
}

type RetrospectiveNotes struct {
	ImprovementArea []NoteItem `json:"improvement_area"`
	Observation     []NoteItem `json:"observation"`
	Success         []NoteItem `json:"success"`
}

type RetrospectiveDetail struct {
	ID                  uuid.UUID            `json:"id"`
	Name                string               `json:"name"`
	Date                time.Time            `json:"date"`
	AcceptedCount       int                  `json:"accepted_count"`
	RejectedCount       int                  `json:"rejected_count"`
	Notes               RetrospectiveNotes   `json:"notes"`
	AcceptedSuggestions []SuggestionListItem `json:"accepted_suggestions"`
}

type RetrospectiveService interface {
	Create(ctx context.Context, userID uuid.UUID) (*types.Retrospective, error)
	GetList(ctx context.Context, userID uuid.UUID, page, perPage int, sort string) (*RetrospectiveList, error)
	// GetByID returns (nil, nil) when the retrospective does not exist or is
	// not owned by the caller.
	GetByID(ctx context.Context, userID, retroID uuid.UUID) (*RetrospectiveDetail, error)
	// AddNote returns (nil, ErrRetrospectiveNotFound) when the retrospective is
	// missing or foreign.
	AddNote(ctx context.Context, userID, retroID uuid.UUID, category types.NoteCategory, content string) (*types.Note, error)
}

type retrospectiveService struct {
	db        *gorm.DB
	log       *logger.Logger
	retroRepo repos.RetrospectiveRepo
	noteRepo  repos.NoteRepo
}

func NewRetrospectiveService(db *gorm.DB, log *logger.Logger, retroRepo repos.RetrospectiveRepo, noteRepo repos.NoteRepo) RetrospectiveService {
	serviceLog := log.With("service", "RetrospectiveService")
	return &retrospectiveService{
		db:        db,
		log:       serviceLog,
		retroRepo: retroRepo,
		noteRepo:  noteRepo,
	}
}

func (rs *retrospectiveService) Create(ctx context.Context, userID uuid.UUID) (*types.Retrospective, error) {
	var created *types.Retrospective
	err := rs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		count, err := rs.retroRepo.CountByUser(ctx, tx, userID)
		if err != nil {
			return fmt.Errorf("failed to count retrospectives: %w", err)
		}

		now := time.Now().UTC()
		retro := &types.Retrospective{
			ID:     uuid.New(),
			UserID: userID,
			Name:   fmt.Sprintf("Retrospektywa #%d - %s", count+1, now.Format("02.01.2006")),
			Date:   now.Truncate(24 * time.Hour),
		}
		if _, err := rs.retroRepo.Create(ctx, tx, []*types.Retrospective{retro}); err != nil {
			return fmt.Errorf("failed to create retrospective: %w", err)
		}
		created = retro
		return nil
	})
	if err != nil {
		return nil, err
	}
	rs.log.Info("Created retrospective", "retrospective_id", created.ID, "user_id", userID)
	return created, nil
}

func (rs *retrospectiveService) GetList(ctx context.Context, userID uuid.UUID, page, perPage int, sort string) (*RetrospectiveList, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	dateAsc := normalization.ParseInputString(sort) == "date_asc"

	total, err := rs.retroRepo.CountByUser(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count retrospectives: %w", err)
	}

	retros, err := rs.retroRepo.ListByUser(ctx, nil, userID, (page-1)*perPage, perPage, dateAsc)
	if err != nil {
		return nil, fmt.Errorf("failed to list retrospectives: %w", err)
	}

	items := make([]RetrospectiveListItem, 0, len(retros))
	for _, retro := range retros {
		items = append(items, RetrospectiveListItem{
			ID:                  retro.ID,
			Name:                retro.Name,
			Date:                retro.Date,
			AcceptedSuggestions: toSuggestionListItems(retro.Suggestions, types.SuggestionStatusAccepted),
		})
	}

	return &RetrospectiveList{
		Items:   items,
		Total:   total,
		Page:    page,
		PerPage: perPage,
	}, nil
}

func (rs *retrospectiveService) GetByID(ctx context.Context, userID, retroID uuid.UUID) (*RetrospectiveDetail, error) {
	retro, err := rs.retroRepo.GetByIDForUser(ctx, nil, userID, retroID)
	if err != nil {
		return nil, fmt.Errorf("failed to load retrospective: %w", err)
	}
	if retro == nil {
		return nil, nil
	}

	notes := RetrospectiveNotes{
		ImprovementArea: []NoteItem{},
		Observation:     []NoteItem{},
		Success:         []NoteItem{},
	}
	for _, note := range retro.Notes {
		item := NoteItem{ID: note.ID, Content: note.Content}
		switch note.Category {
		case types.NoteCategoryImprovementArea:
			notes.ImprovementArea = append(notes.ImprovementArea, item)
		case types.NoteCategoryObservation:
			notes.Observation = append(notes.Observation, item)
		case types.NoteCategorySuccess:
			notes.Success = append(notes.Success, item)
		}
	}

	return &RetrospectiveDetail{
		ID:                  retro.ID,
		Name:                retro.Name,
		Date:                retro.Date,
		AcceptedCount:       retro.AcceptedCount,
		RejectedCount:       retro.RejectedCount,
		Notes:               notes,
		AcceptedSuggestions: toSuggestionListItems(retro.Suggestions, types.SuggestionStatusAccepted),
	}, nil
}

func (rs *retrospectiveService) AddNote(ctx context.Context, userID, retroID uuid.UUID, category types.NoteCategory, content string) (*types.Note, error) {
	if !category.Valid() {
		return nil, ErrInvalidNoteCategory
	}
	content = normalization.ParseContentString(content)
	if n := utf8.RuneCountInString(content); n == 0 || n > maxNoteContentLength {
		return nil, ErrInvalidNoteContent
	}

	owned, err := rs.retroRepo.ExistsForUser(ctx, nil, userID, retroID)
	if err != nil {
		return nil, fmt.Errorf("failed to check retrospective ownership: %w", err)
	}
	if !owned {
		rs.log.Warn("Retrospective not found or not owned", "retrospective_id", retroID, "user_id", userID)
		return nil, ErrRetrospectiveNotFound
	}

	note := &types.Note{
		ID:              uuid.New(),
		RetrospectiveID: retroID,
		Category:        category,
		Content:         content,
		CreatedAt:       time.Now().UTC(),
	}
	if _, err := rs.noteRepo.Create(ctx, nil, []*types.Note{note}); err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}

	rs.log.Info("Added note to retrospective", "retrospective_id", retroID, "note_id", note.ID, "category", category)
	return note, nil
}

func toSuggestionListItems(suggestions []*types.Suggestion, status types.SuggestionStatus) []SuggestionListItem {
	items := []SuggestionListItem{}
	for _, suggestion := range suggestions {
		if suggestion.Status != status {
			continue
		}
		items = append(items, SuggestionListItem{
			ID:             suggestion.ID,
			SuggestionText: suggestion.SuggestionText,
		})
	}
	return items
}
