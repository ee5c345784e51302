// mock_interface.go - Mock implementation of datastore.Interface using testify/mock
package mock_datastore

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"gorm.io/datatypes"

	"github.com/mhews/mhews/internal/datastore"
)

var _ datastore.Interface = (*MockInterface)(nil)

// MockInterface is a mock implementation of datastore.Interface for testing.
type MockInterface struct {
	mock.Mock
}

func (m *MockInterface) Open() error {
	return m.Called().Error(0)
}

func (m *MockInterface) Close() error {
	return m.Called().Error(0)
}

func (m *MockInterface) SaveReading(ctx context.Context, r *datastore.SensorReading) error {
	return m.Called(ctx, r).Error(0)
}

func (m *MockInterface) LatestReading(ctx context.Context) (*datastore.SensorReading, error) {
	args := m.Called(ctx)
	if r, ok := args.Get(0).(*datastore.SensorReading); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockInterface) ReadingsBetween(ctx context.Context, from, to time.Time) ([]datastore.SensorReading, error) {
	args := m.Called(ctx, from, to)
	if r, ok := args.Get(0).([]datastore.SensorReading); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockInterface) SaveNotification(ctx context.Context, n *datastore.NotificationRecord) error {
	return m.Called(ctx, n).Error(0)
}

func (m *MockInterface) LatestNotificationTime(ctx context.Context, hazardType string) (time.Time, bool, error) {
	args := m.Called(ctx, hazardType)
	t, _ := args.Get(0).(time.Time)
	return t, args.Bool(1), args.Error(2)
}

func (m *MockInterface) RecentNotifications(ctx context.Context, limit int) ([]datastore.NotificationRecord, error) {
	args := m.Called(ctx, limit)
	if r, ok := args.Get(0).([]datastore.NotificationRecord); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockInterface) NextAlertSequence(ctx context.Context, year int) (int, error) {
	args := m.Called(ctx, year)
	return args.Int(0), args.Error(1)
}

func (m *MockInterface) SaveAlert(ctx context.Context, a *datastore.AlertRecord) error {
	return m.Called(ctx, a).Error(0)
}

func (m *MockInterface) RecentAlerts(ctx context.Context, limit int) ([]datastore.AlertRecord, error) {
	args := m.Called(ctx, limit)
	if r, ok := args.Get(0).([]datastore.AlertRecord); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockInterface) GetAlert(ctx context.Context, alertID string) (*datastore.AlertRecord, error) {
	args := m.Called(ctx, alertID)
	if a, ok := args.Get(0).(*datastore.AlertRecord); ok {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockInterface) ResolveAlert(ctx context.Context, alertID string, at time.Time) (*datastore.AlertRecord, error) {
	args := m.Called(ctx, alertID, at)
	if a, ok := args.Get(0).(*datastore.AlertRecord); ok {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockInterface) SetAlertSMSResult(ctx context.Context, alertID string, result datatypes.JSON) error {
	return m.Called(ctx, alertID, result).Error(0)
}

func (m *MockInterface) DeleteAlert(ctx context.Context, alertID string) error {
	return m.Called(ctx, alertID).Error(0)
}

func (m *MockInterface) CountActiveAlerts(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	n, _ := args.Get(0).(int64)
	return n, args.Error(1)
}
