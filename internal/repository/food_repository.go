package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"rescueboard/internal/model"
)

// FoodRepository defines food listing persistence operations.
type FoodRepository interface {
	Create(ctx context.Context, food *model.Food) error
	FindByID(ctx context.Context, id uint) (*model.Food, error)
	// FindByIDWithUsers loads the row with poster and claimer embedded.
	FindByIDWithUsers(ctx context.Context, id uint) (*model.Food, error)
	// List returns foods newest first with poster and claimer embedded.
	// A nil status returns every row.
	List(ctx context.Context, status *model.FoodStatus) ([]model.Food, error)
	ListByOwner(ctx context.Context, userID uint) ([]model.Food, error)
	// Claim marks an available food as taken by claimerID in a single conditional
	// update. It reports false when no row matched.
	Claim(ctx context.Context, id, claimerID uint, at time.Time) (bool, error)
	// Delete removes the row and reports whether it existed.
	Delete(ctx context.Context, id uint) (bool, error)
	Stats(ctx context.Context) (model.FoodStats, error)
	// ExpireCreatedBefore moves available foods created before cutoff to expired,
	// stamping them with at.
	ExpireCreatedBefore(ctx context.Context, cutoff, at time.Time) (int64, error)
}

type foodRepository struct {
	db *gorm.DB
}

// NewFoodRepository creates a new food repository.
func NewFoodRepository(db *gorm.DB) FoodRepository {
	return &foodRepository{db: db}
}

func (r *foodRepository) Create(ctx context.Context, food *model.Food) error {
	return r.db.WithContext(ctx).Create(food).Error
}

func (r *foodRepository) FindByID(ctx context.Context, id uint) (*model.Food, error) {
	var food model.Food
	if err := r.db.WithContext(ctx).First(&food, id).Error; err != nil {
		return nil, err
	}
	return &food, nil
}

func (r *foodRepository) FindByIDWithUsers(ctx context.Context, id uint) (*model.Food, error) {
	var food model.Food
	if err := r.withUsers(ctx).First(&food, id).Error; err != nil {
		return nil, err
	}
	return &food, nil
}

func (r *foodRepository) List(ctx context.Context, status *model.FoodStatus) ([]model.Food, error) {
	q := r.withUsers(ctx)
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	foods := []model.Food{}
	if err := q.Order("created_at DESC").Order("id DESC").Find(&foods).Error; err != nil {
		return nil, err
	}
	return foods, nil
}

func (r *foodRepository) ListByOwner(ctx context.Context, userID uint) ([]model.Food, error) {
	foods := []model.Food{}
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Find(&foods).Error; err != nil {
		return nil, err
	}
	return foods, nil
}

func (r *foodRepository) Claim(ctx context.Context, id, claimerID uint, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Food{}).
		Where("id = ? AND status = ? AND user_id <> ?", id, model.FoodStatusAvailable, claimerID).
		Updates(map[string]interface{}{
			"status":     model.FoodStatusTaken,
			"claimed_by": claimerID,
			"claimed_at": at,
			"updated_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *foodRepository) Delete(ctx context.Context, id uint) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&model.Food{}, id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Stats counts every bucket in one statement so the totals always add up.
func (r *foodRepository) Stats(ctx context.Context) (model.FoodStats, error) {
	var stats model.FoodStats
	err := r.db.WithContext(ctx).Model(&model.Food{}).
		Select(
			"COUNT(*) AS total_foods, "+
				"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS available, "+
				"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS taken, "+
				"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS expired",
			model.FoodStatusAvailable, model.FoodStatusTaken, model.FoodStatusExpired,
		).
		Scan(&stats).Error
	return stats, err
}

func (r *foodRepository) ExpireCreatedBefore(ctx context.Context, cutoff, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Food{}).
		Where("status = ? AND created_at < ?", model.FoodStatusAvailable, cutoff).
		Updates(map[string]interface{}{
			"status":     model.FoodStatusExpired,
			"updated_at": at,
		})
	return res.RowsAffected, res.Error
}

func (r *foodRepository) withUsers(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("User").Preload("Claimer")
}
