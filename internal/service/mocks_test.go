package service

import (
	"context"
	"io"
	"time"

	"github.com/stretchr/testify/mock"

	"rescueboard/internal/model"
	"rescueboard/internal/notification"
)

// MockUserRepository is a mock implementation of UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	if args.Error(0) == nil && user.ID == 0 {
		user.ID = 1
	}
	return args.Error(0)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) UpdateFCMToken(ctx context.Context, id uint, token string) error {
	args := m.Called(ctx, id, token)
	return args.Error(0)
}

// MockFoodRepository is a mock implementation of FoodRepository.
type MockFoodRepository struct {
	mock.Mock
}

func (m *MockFoodRepository) Create(ctx context.Context, food *model.Food) error {
	args := m.Called(ctx, food)
	if args.Error(0) == nil && food.ID == 0 {
		food.ID = 1
	}
	return args.Error(0)
}

func (m *MockFoodRepository) FindByID(ctx context.Context, id uint) (*model.Food, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Food), args.Error(1)
}

func (m *MockFoodRepository) FindByIDWithUsers(ctx context.Context, id uint) (*model.Food, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Food), args.Error(1)
}

func (m *MockFoodRepository) List(ctx context.Context, status *model.FoodStatus) ([]model.Food, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Food), args.Error(1)
}

func (m *MockFoodRepository) ListByOwner(ctx context.Context, userID uint) ([]model.Food, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Food), args.Error(1)
}

func (m *MockFoodRepository) Claim(ctx context.Context, id, claimerID uint, at time.Time) (bool, error) {
	args := m.Called(ctx, id, claimerID, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockFoodRepository) Delete(ctx context.Context, id uint) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockFoodRepository) Stats(ctx context.Context) (model.FoodStats, error) {
	args := m.Called(ctx)
	return args.Get(0).(model.FoodStats), args.Error(1)
}

func (m *MockFoodRepository) ExpireCreatedBefore(ctx context.Context, cutoff, at time.Time) (int64, error) {
	args := m.Called(ctx, cutoff, at)
	return args.Get(0).(int64), args.Error(1)
}

// MockTokenStore is a mock implementation of TokenStoreInterface.
type MockTokenStore struct {
	mock.Mock
}

func (m *MockTokenStore) StoreSession(ctx context.Context, tokenID string, userID uint, ttl time.Duration) error {
	args := m.Called(ctx, tokenID, userID, ttl)
	return args.Error(0)
}

func (m *MockTokenStore) GetSession(ctx context.Context, tokenID string) (uint, error) {
	args := m.Called(ctx, tokenID)
	return args.Get(0).(uint), args.Error(1)
}

func (m *MockTokenStore) DeleteSession(ctx context.Context, tokenID string) error {
	args := m.Called(ctx, tokenID)
	return args.Error(0)
}

// MockBlobStore is a mock implementation of storage.BlobStore.
type MockBlobStore struct {
	mock.Mock
}

func (m *MockBlobStore) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	args := m.Called(ctx, key, contentType, body, size)
	return args.String(0), args.Error(1)
}

func (m *MockBlobStore) Delete(ctx context.Context, url string) error {
	args := m.Called(ctx, url)
	return args.Error(0)
}

// MockNotifier is a mock implementation of notification.Notifier.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Send(ctx context.Context, msg notification.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}
