package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/complainator-backend/internal/logger"
	"github.com/yungbote/complainator-backend/internal/types"
)

type RetrospectiveRepo interface {
	Create(ctx context.Context, tx *gorm.DB, retros []*types.Retrospective) ([]*types.Retrospective, error)
	// GetByIDForUser loads a retrospective with its notes and suggestions, scoped
	// to the owner. Returns (nil, nil) when no such row exists for that owner so
	// callers cannot distinguish "absent" from "not yours".
	GetByIDForUser(ctx context.Context, tx *gorm.DB, userID, retroID uuid.UUID) (*types.Retrospective, error)
	// ExistsForUser reports whether the retrospective exists and belongs to the
	// user, without loading its children.
	ExistsForUser(ctx context.Context, tx *gorm.DB, userID, retroID uuid.UUID) (bool, error)
	CountByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, offset, limit int, dateAsc bool) ([]*types.Retrospective, error)
	// ApplyCounterDeltas adjusts accepted/rejected counters with an atomic SQL
	// increment against the stored value. Concurrent updates on different
	// suggestions of the same retrospective must not lose counts, so this never
	// writes a value read earlier in the request.
	ApplyCounterDeltas(ctx context.Context, tx *gorm.DB, retroID uuid.UUID, acceptedDelta, rejectedDelta int) error
}

type retrospectiveRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRetrospectiveRepo(db *gorm.DB, baseLog *logger.Logger) RetrospectiveRepo {
	repoLog := baseLog.With("repo", "RetrospectiveRepo")
	return &retrospectiveRepo{db: db, log: repoLog}
}

func (rr *retrospectiveRepo) Create(ctx context.Context, tx *gorm.DB, retros []*types.Retrospective) ([]*types.Retrospective, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	if len(retros) == 0 {
		return []*types.Retrospective{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&retros).Error; err != nil {
		return nil, err
	}
	return retros, nil
}

func (rr *retrospectiveRepo) GetByIDForUser(ctx context.Context, tx *gorm.DB, userID, retroID uuid.UUID) (*types.Retrospective, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	var result types.Retrospective
	err := transaction.WithContext(ctx).
		Preload("Notes").
		Preload("Suggestions").
		Where("id = ? AND user_id = ?", retroID, userID).
		First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (rr *retrospectiveRepo) ExistsForUser(ctx context.Context, tx *gorm.DB, userID, retroID uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.Retrospective{}).
		Where("id = ? AND user_id = ?", retroID, userID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (rr *retrospectiveRepo) CountByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.Retrospective{}).
		Where("user_id = ?", userID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (rr *retrospectiveRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, offset, limit int, dateAsc bool) ([]*types.Retrospective, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	order := "date DESC"
	if dateAsc {
		order = "date ASC"
	}

	var results []*types.Retrospective
	if err := transaction.WithContext(ctx).
		Preload("Suggestions", "status = ?", types.SuggestionStatusAccepted).
		Where("user_id = ?", userID).
		Order(order).
		Offset(offset).
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (rr *retrospectiveRepo) ApplyCounterDeltas(ctx context.Context, tx *gorm.DB, retroID uuid.UUID, acceptedDelta, rejectedDelta int) error {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	updates := map[string]interface{}{}
	if acceptedDelta != 0 {
		updates["accepted_count"] = gorm.Expr("accepted_count + ?", acceptedDelta)
	}
	if rejectedDelta != 0 {
		updates["rejected_count"] = gorm.Expr("rejected_count + ?", rejectedDelta)
	}
	if len(updates) == 0 {
		return nil
	}

	return transaction.WithContext(ctx).
		Model(&types.Retrospective{}).
		Where("id = ?", retroID).
		Updates(updates).Error
}
