package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/complainator-backend/internal/logger"
	"github.com/yungbote/complainator-backend/internal/repos"
	"github.com/yungbote/complainator-backend/internal/types"
)

// ErrRetrospectiveNotFound covers both "does not exist" and "not owned by the
// caller". Handlers map it to 404 without distinguishing the two, so the API
// never confirms a foreign retrospective's existence.
var ErrRetrospectiveNotFound = errors.New("retrospective not found")

type SuggestionService interface {
	// GenerateForRetrospective returns the retrospective's pending suggestions,
	// generating a fresh batch through the AI gateway only when none are
	// pending. Repeated calls before any accept/reject decision return the same
	// rows without touching the gateway.
	GenerateForRetrospective(ctx context.Context, userID, retroID uuid.UUID) ([]*types.Suggestion, error)
	// UpdateStatus moves a suggestion between Pending/Accepted/Rejected and
	// keeps the parent's counters in step. Returns (false, nil) when the
	// suggestion is missing or owned by someone else.
	UpdateStatus(ctx context.Context, userID uuid.UUID, suggestionID uuid.UUID, status types.SuggestionStatus) (bool, error)
}

type suggestionService struct {
	db             *gorm.DB
	log            *logger.Logger
	retroRepo      repos.RetrospectiveRepo
	suggestionRepo repos.SuggestionRepo
	aiService      AISuggestionService
}

func NewSuggestionService(
	db *gorm.DB,
	log *logger.Logger,
	retroRepo repos.RetrospectiveRepo,
	suggestionRepo repos.SuggestionRepo,
	aiService AISuggestionService,
) SuggestionService {
	serviceLog := log.With("service", "SuggestionService")
	return &suggestionService{
		db:             db,
		log:            serviceLog,
		retroRepo:      retroRepo,
		suggestionRepo: suggestionRepo,
		aiService:      aiService,
	}
}

func (ss *suggestionService) GenerateForRetrospective(ctx context.Context, userID, retroID uuid.UUID) ([]*types.Suggestion, error) {
	retro, err := ss.retroRepo.GetByIDForUser(ctx, nil, userID, retroID)
	if err != nil {
		return nil, fmt.Errorf("failed to load retrospective: %w", err)
	}
	if retro == nil {
		ss.log.Warn("Retrospective not found or not owned", "retrospective_id", retroID, "user_id", userID)
		return nil, ErrRetrospectiveNotFound
	}

	// Idempotency gate: an untriaged batch blocks regeneration. Note that a
	// retrospective whose suggestions are all accepted/rejected passes the gate
	// and gets a fresh batch.
	pending, err := ss.suggestionRepo.GetPendingByRetrospectiveID(ctx, nil, retroID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending suggestions: %w", err)
	}
	if len(pending) > 0 {
		ss.log.Info("Pending suggestions already exist, skipping generation", "retrospective_id", retroID, "count", len(pending))
		return pending, nil
	}

	texts, err := ss.aiService.Generate(ctx, retro.Notes)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	suggestions := make([]*types.Suggestion, 0, len(texts))
	for _, text := range texts {
		suggestions = append(suggestions, &types.Suggestion{
			ID:              uuid.New(),
			RetrospectiveID: retroID,
			SuggestionText:  text,
			Status:          types.SuggestionStatusPending,
			CreatedAt:       now,
		})
	}

	// The gate is re-checked and the batch persisted in one transaction. A
	// rival batch committed while the gateway call was in flight wins; this one
	// is discarded so at most one pending batch is ever outstanding.
	var persisted []*types.Suggestion
	if err := ss.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rival, gateErr := ss.suggestionRepo.GetPendingByRetrospectiveID(ctx, tx, retroID)
		if gateErr != nil {
			return fmt.Errorf("failed to re-check pending suggestions: %w", gateErr)
		}
		if len(rival) > 0 {
			persisted = rival
			return nil
		}
		if _, createErr := ss.suggestionRepo.Create(ctx, tx, suggestions); createErr != nil {
			return createErr
		}
		persisted = suggestions
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to persist suggestion batch: %w", err)
	}

	if len(persisted) > 0 && persisted[0].ID != suggestions[0].ID {
		ss.log.Info("Concurrent batch already pending, discarding generated one", "retrospective_id", retroID, "count", len(persisted))
		return persisted, nil
	}
	ss.log.Info("Persisted new suggestion batch", "retrospective_id", retroID, "count", len(suggestions))
	return persisted, nil
}

func (ss *suggestionService) UpdateStatus(ctx context.Context, userID uuid.UUID, suggestionID uuid.UUID, status types.SuggestionStatus) (bool, error) {
	var updated bool
	err := ss.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		suggestion, err := ss.suggestionRepo.GetByID(ctx, tx, suggestionID)
		if err != nil {
			return fmt.Errorf("failed to load suggestion: %w", err)
		}
		if suggestion == nil {
			ss.log.Warn("Suggestion not found", "suggestion_id", suggestionID)
			return nil
		}
		owned, err := ss.retroRepo.ExistsForUser(ctx, tx, userID, suggestion.RetrospectiveID)
		if err != nil {
			return fmt.Errorf("failed to check retrospective ownership: %w", err)
		}
		if !owned {
			ss.log.Warn("Suggestion not owned by caller", "suggestion_id", suggestionID, "user_id", userID)
			return nil
		}

		// Idempotent no-op: same status, no counter movement.
		if suggestion.Status == status {
			updated = true
			return nil
		}

		// The write is conditional on the status just read. Zero rows means a
		// concurrent update moved the row first; its deltas already landed, so
		// this call must not move counters again.
		affected, err := ss.suggestionRepo.UpdateStatus(ctx, tx, suggestionID, suggestion.Status, status)
		if err != nil {
			return fmt.Errorf("failed to update suggestion status: %w", err)
		}
		if affected == 0 {
			ss.log.Warn("Suggestion status changed concurrently, skipping counter update", "suggestion_id", suggestionID)
			updated = true
			return nil
		}

		acceptedDelta := counterDelta(types.SuggestionStatusAccepted, suggestion.Status, status)
		rejectedDelta := counterDelta(types.SuggestionStatusRejected, suggestion.Status, status)
		if err := ss.retroRepo.ApplyCounterDeltas(ctx, tx, suggestion.RetrospectiveID, acceptedDelta, rejectedDelta); err != nil {
			return fmt.Errorf("failed to update retrospective counters: %w", err)
		}

		ss.log.Info("Updated suggestion status", "suggestion_id", suggestionID, "from", suggestion.Status, "to", status)
		updated = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return updated, nil
}

// counterDelta computes the +1/-1/0 movement of one counter (Accepted or
// Rejected) for a transition from oldStatus to newStatus. Pending contributes
// to no counter.
func counterDelta(counter, oldStatus, newStatus types.SuggestionStatus) int {
	delta := 0
	if oldStatus == counter {
		delta--
	}
	if newStatus == counter {
		delta++
	}
	return delta
}
