package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/complainator-backend/internal/logger"
	"github.com/yungbote/complainator-backend/internal/types"
)

type SuggestionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, suggestions []*types.Suggestion) ([]*types.Suggestion, error)
	// GetByID returns (nil, nil) when the suggestion does not exist.
	GetByID(ctx context.Context, tx *gorm.DB, suggestionID uuid.UUID) (*types.Suggestion, error)
	GetPendingByRetrospectiveID(ctx context.Context, tx *gorm.DB, retroID uuid.UUID) ([]*types.Suggestion, error)
	// UpdateStatus writes the new status only if the row still holds the status
	// the caller read. Returns the number of rows changed: zero means a
	// concurrent update got there first and the caller must not move counters.
	UpdateStatus(ctx context.Context, tx *gorm.DB, suggestionID uuid.UUID, from, to types.SuggestionStatus) (int64, error)
}

type suggestionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSuggestionRepo(db *gorm.DB, baseLog *logger.Logger) SuggestionRepo {
	repoLog := baseLog.With("repo", "SuggestionRepo")
	return &suggestionRepo{db: db, log: repoLog}
}

func (sr *suggestionRepo) Create(ctx context.Context, tx *gorm.DB, suggestions []*types.Suggestion) ([]*types.Suggestion, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}

	if len(suggestions) == 0 {
		return []*types.Suggestion{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&suggestions).Error; err != nil {
		return nil, err
	}
	return suggestions, nil
}

func (sr *suggestionRepo) GetByID(ctx context.Context, tx *gorm.DB, suggestionID uuid.UUID) (*types.Suggestion, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}

	var result types.Suggestion
	err := transaction.WithContext(ctx).
		Where("id = ?", suggestionID).
		First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (sr *suggestionRepo) GetPendingByRetrospectiveID(ctx context.Context, tx *gorm.DB, retroID uuid.UUID) ([]*types.Suggestion, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}

	var results []*types.Suggestion
	if err := transaction.WithContext(ctx).
		Where("retrospective_id = ? AND status = ?", retroID, types.SuggestionStatusPending).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (sr *suggestionRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, suggestionID uuid.UUID, from, to types.SuggestionStatus) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}

	result := transaction.WithContext(ctx).
		Model(&types.Suggestion{}).
		Where("id = ? AND status = ?", suggestionID, from).
		Update("status", to)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
