package push_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/pushkit/pkg/registry"
)

// MockRegistry is a testify mock of registry.Registry.
type MockRegistry struct {
	mock.Mock
}

func (m *MockRegistry) VAPIDKey(ctx context.Context) (registry.KeyInfo, error) {
	args := m.Called(ctx)
	return args.Get(0).(registry.KeyInfo), args.Error(1)
}

func (m *MockRegistry) RegisterDevice(ctx context.Context, sub registry.Subscription, label string) error {
	args := m.Called(ctx, sub, label)
	return args.Error(0)
}

func (m *MockRegistry) UnregisterDevice(ctx context.Context, endpoint string) error {
	args := m.Called(ctx, endpoint)
	return args.Error(0)
}

func (m *MockRegistry) Preferences(ctx context.Context) (registry.Preferences, error) {
	args := m.Called(ctx)
	return args.Get(0).(registry.Preferences), args.Error(1)
}

func (m *MockRegistry) UpdatePreferences(ctx context.Context, patch registry.PreferencesPatch, seq uint64) error {
	args := m.Called(ctx, patch, seq)
	return args.Error(0)
}

func (m *MockRegistry) ListNotifications(ctx context.Context, limit int) ([]registry.Notification, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]registry.Notification), args.Error(1)
}

func (m *MockRegistry) MarkRead(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockRegistry) MarkAllRead(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockRegistry) DeleteNotification(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockRegistry) SendTest(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
