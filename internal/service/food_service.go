package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "rescueboard/internal/errors"
	"rescueboard/internal/metrics"
	"rescueboard/internal/model"
	"rescueboard/internal/notification"
	"rescueboard/internal/repository"
	"rescueboard/internal/storage"
	"rescueboard/internal/validation"
)

// MaxImageSize is the largest accepted food photo (5120 KB).
const MaxImageSize = 5 * 1024 * 1024

var allowedImageTypes = []string{"image/jpeg", "image/png", "image/webp"}

var (
	errImageType = apperrors.NewValidationError("image", "The image field must be a file of type: jpeg, png, jpg, webp.")
	// ErrImageTooLarge is returned for photos over MaxImageSize.
	ErrImageTooLarge = apperrors.NewValidationError("image", "The image field must not be greater than 5120 kilobytes.")
)

// ImageUpload is an optional photo attached to a new listing.
type ImageUpload struct {
	Filename string
	Size     int64
	Content  io.Reader
}

// CreateFoodInput is the payload of a new listing.
type CreateFoodInput struct {
	Title       string       `json:"title" form:"title" validate:"required,max=255"`
	Location    string       `json:"location" form:"location" validate:"required,max=255"`
	Description *string      `json:"description" form:"description"`
	Image       *ImageUpload `json:"-" form:"-"`
}

// FoodService implements the listing lifecycle.
type FoodService interface {
	List(ctx context.Context, status *string) ([]model.Food, error)
	ListAll(ctx context.Context, requester *model.User) ([]model.Food, error)
	Stats(ctx context.Context, requester *model.User) (model.FoodStats, error)
	MyFoods(ctx context.Context, owner *model.User) ([]model.Food, error)
	Create(ctx context.Context, owner *model.User, in CreateFoodInput) (*model.Food, error)
	Claim(ctx context.Context, claimer *model.User, id uint) (*model.Food, error)
	Delete(ctx context.Context, requester *model.User, id uint) error
	ExpireStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

// FoodServiceOptions tunes access and time for FoodService.
type FoodServiceOptions struct {
	// AdminOnlyListings restricts ListAll and Stats to admins.
	AdminOnlyListings bool
	Now               func() time.Time
}

type foodService struct {
	foods     repository.FoodRepository
	users     repository.UserRepository
	blobs     storage.BlobStore
	notifier  notification.Notifier
	validator *validation.Validator
	logger    *slog.Logger
	opts      FoodServiceOptions
}

// NewFoodService creates a FoodService.
func NewFoodService(
	foods repository.FoodRepository,
	users repository.UserRepository,
	blobs storage.BlobStore,
	notifier notification.Notifier,
	v *validation.Validator,
	logger *slog.Logger,
	opts FoodServiceOptions,
) FoodService {
	if notifier == nil {
		notifier = notification.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &foodService{
		foods:     foods,
		users:     users,
		blobs:     blobs,
		notifier:  notifier,
		validator: v,
		logger:    logger,
		opts:      opts,
	}
}

// List returns listings of one status, available when status is nil.
func (s *foodService) List(ctx context.Context, status *string) ([]model.Food, error) {
	filter := model.FoodStatusAvailable
	if status != nil {
		filter = model.FoodStatus(*status)
	}
	return s.foods.List(ctx, &filter)
}

func (s *foodService) ListAll(ctx context.Context, requester *model.User) ([]model.Food, error) {
	if s.opts.AdminOnlyListings && !requester.IsAdmin() {
		return nil, apperrors.ErrAdminOnly
	}
	return s.foods.List(ctx, nil)
}

func (s *foodService) Stats(ctx context.Context, requester *model.User) (model.FoodStats, error) {
	if s.opts.AdminOnlyListings && !requester.IsAdmin() {
		return model.FoodStats{}, apperrors.ErrAdminOnly
	}
	return s.foods.Stats(ctx)
}

func (s *foodService) MyFoods(ctx context.Context, owner *model.User) ([]model.Food, error) {
	return s.foods.ListByOwner(ctx, owner.ID)
}

// Create stores the optional image and inserts an available listing.
func (s *foodService) Create(ctx context.Context, owner *model.User, in CreateFoodInput) (*model.Food, error) {
	if err := s.validator.Struct(&in); err != nil {
		return nil, err
	}

	var imageURL *string
	if in.Image != nil {
		url, err := s.storeImage(ctx, in.Image)
		if err != nil {
			return nil, err
		}
		imageURL = &url
	}

	food := &model.Food{
		UserID:      owner.ID,
		Title:       in.Title,
		Description: in.Description,
		Location:    in.Location,
		ImageURL:    imageURL,
		Status:      model.FoodStatusAvailable,
	}
	if err := s.foods.Create(ctx, food); err != nil {
		if imageURL != nil {
			s.deleteBlob(ctx, *imageURL)
		}
		return nil, fmt.Errorf("create food: %w", err)
	}
	food.User = &model.UserRef{ID: owner.ID, Name: owner.Name}

	metrics.FoodsPosted.Inc()
	return food, nil
}

func (s *foodService) storeImage(ctx context.Context, img *ImageUpload) (string, error) {
	if img.Size > MaxImageSize {
		return "", ErrImageTooLarge
	}
	data, err := io.ReadAll(io.LimitReader(img.Content, MaxImageSize+1))
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if len(data) > MaxImageSize {
		return "", ErrImageTooLarge
	}

	mtype := mimetype.Detect(data)
	if !mimetype.EqualsAny(mtype.String(), allowedImageTypes...) {
		return "", errImageType
	}

	key := "foods/" + uuid.NewString() + mtype.Extension()
	url, err := s.blobs.Put(ctx, key, mtype.String(), bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}
	return url, nil
}

// Claim moves an available listing to taken for claimer. Ownership is checked
// before status.
func (s *foodService) Claim(ctx context.Context, claimer *model.User, id uint) (*model.Food, error) {
	food, err := s.foods.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.FoodClaims.WithLabelValues(metrics.ClaimNotFound).Inc()
			return nil, apperrors.ErrFoodNotFound
		}
		return nil, fmt.Errorf("find food: %w", err)
	}
	if food.UserID == claimer.ID {
		metrics.FoodClaims.WithLabelValues(metrics.ClaimForbidden).Inc()
		return nil, apperrors.ErrSelfClaim
	}
	if food.Status != model.FoodStatusAvailable {
		metrics.FoodClaims.WithLabelValues(metrics.ClaimConflict).Inc()
		return nil, apperrors.ErrFoodUnavailable
	}

	claimed, err := s.foods.Claim(ctx, id, claimer.ID, s.opts.Now())
	if err != nil {
		return nil, fmt.Errorf("claim food: %w", err)
	}
	if !claimed {
		// Lost the race, or the row was deleted in between.
		if _, err := s.foods.FindByID(ctx, id); errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.FoodClaims.WithLabelValues(metrics.ClaimNotFound).Inc()
			return nil, apperrors.ErrFoodNotFound
		}
		metrics.FoodClaims.WithLabelValues(metrics.ClaimConflict).Inc()
		return nil, apperrors.ErrFoodUnavailable
	}
	metrics.FoodClaims.WithLabelValues(metrics.ClaimOK).Inc()

	result, err := s.foods.FindByIDWithUsers(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reload food: %w", err)
	}
	s.notifyPoster(ctx, result, claimer)
	return result, nil
}

func (s *foodService) notifyPoster(ctx context.Context, food *model.Food, claimer *model.User) {
	poster, err := s.users.FindByID(ctx, food.UserID)
	if err != nil {
		s.logger.WarnContext(ctx, "load poster for claim notification", "food_id", food.ID, "error", err)
		return
	}
	if poster.FCMToken == nil || *poster.FCMToken == "" {
		return
	}

	msg := notification.Message{
		Token: *poster.FCMToken,
		Title: "Your food was claimed",
		Body:  fmt.Sprintf("%s claimed %q.", claimer.Name, food.Title),
		Data: map[string]string{
			"food_id": strconv.FormatUint(uint64(food.ID), 10),
			"status":  string(food.Status),
		},
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "send claim notification", "food_id", food.ID, "user_id", poster.ID, "error", err)
	}
}

// Delete removes a listing and its image. Only admins may delete.
func (s *foodService) Delete(ctx context.Context, requester *model.User, id uint) error {
	if !requester.IsAdmin() {
		return apperrors.ErrAdminOnly
	}

	food, err := s.foods.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrFoodNotFound
		}
		return fmt.Errorf("find food: %w", err)
	}

	if food.ImageURL != nil && *food.ImageURL != "" {
		s.deleteBlob(ctx, *food.ImageURL)
	}

	deleted, err := s.foods.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete food: %w", err)
	}
	if !deleted {
		return apperrors.ErrFoodNotFound
	}

	metrics.FoodsDeleted.Inc()
	return nil
}

func (s *foodService) deleteBlob(ctx context.Context, url string) {
	if err := s.blobs.Delete(ctx, url); err != nil {
		metrics.BlobDeleteFailures.Inc()
		s.logger.WarnContext(ctx, "delete food image", "url", url, "error", err)
	}
}

// ExpireStale marks available listings older than olderThan as expired.
func (s *foodService) ExpireStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, nil
	}
	now := s.opts.Now()
	n, err := s.foods.ExpireCreatedBefore(ctx, now.Add(-olderThan), now)
	if err != nil {
		return 0, fmt.Errorf("expire foods: %w", err)
	}
	if n > 0 {
		metrics.FoodsExpired.Add(float64(n))
		s.logger.InfoContext(ctx, "expired stale foods", "count", n)
	}
	return n, nil
}
