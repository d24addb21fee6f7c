package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pulsefeed/pulsefeed-backend/internal/domain"
	pkgerrors "github.com/pulsefeed/pulsefeed-backend/internal/pkg/errors"
	"github.com/pulsefeed/pulsefeed-backend/internal/platform/logger"
)

type PreferencesRepo interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.UserPreferences, error)
	Upsert(ctx context.Context, row *domain.UserPreferences) error
	Delete(ctx context.Context, userID uuid.UUID) error
}

type preferencesRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPreferencesRepo(db *gorm.DB, baseLog *logger.Logger) PreferencesRepo {
	return &preferencesRepo{db: db, log: baseLog.With("repo", "PreferencesRepo")}
}

// GetByUserID returns nil, nil when no row exists. Retention is judged by the
// caller; the repo only stores.
func (r *preferencesRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.UserPreferences, error) {
	if userID == uuid.Nil {
		return nil, nil
	}
	var row domain.UserPreferences
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return &row, nil
}

func (r *preferencesRepo) Upsert(ctx context.Context, row *domain.UserPreferences) error {
	if row == nil || row.UserID == uuid.Nil {
		return pkgerrors.Validation("user_id", "required")
	}
	now := time.Now().UTC()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.UpdatedAt = now
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"topics", "sources", "sentiment", "updated_at",
			}),
		}).
		Create(row).Error
	return storeErr(err)
}

func (r *preferencesRepo) Delete(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return nil
	}
	return storeErr(r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&domain.UserPreferences{}).Error)
}

func storeErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", pkgerrors.ErrStoreUnavailable, err)
	}
	return err
}
