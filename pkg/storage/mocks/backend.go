package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/williamokano/bak/pkg/storage"
)

// MockBackend is a testify mock of storage.Backend
type MockBackend struct {
	mock.Mock
}

var _ storage.Backend = (*MockBackend)(nil)

// NewMockBackend creates a MockBackend whose expectations are asserted when
// the test finishes
func NewMockBackend(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockBackend {
	m := &MockBackend{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockBackend) Name() string {
	return m.Called().String(0)
}

func (m *MockBackend) List(ctx context.Context, dir string) ([]storage.FileInfo, error) {
	ret := m.Called(ctx, dir)
	if fn, ok := ret.Get(0).(func(context.Context, string) ([]storage.FileInfo, error)); ok {
		return fn(ctx, dir)
	}

	var files []storage.FileInfo
	if ret.Get(0) != nil {
		files = ret.Get(0).([]storage.FileInfo)
	}
	return files, ret.Error(1)
}

func (m *MockBackend) Delete(ctx context.Context, path string) error {
	ret := m.Called(ctx, path)
	if fn, ok := ret.Get(0).(func(context.Context, string) error); ok {
		return fn(ctx, path)
	}
	return ret.Error(0)
}

func (m *MockBackend) Close() error {
	return m.Called().Error(0)
}

// ExpectList is shorthand for a single List call on dir returning files
func (m *MockBackend) ExpectList(dir string, files []storage.FileInfo) *mock.Call {
	return m.On("List", mock.Anything, dir).Return(files, nil).Once()
}

// ExpectDelete is shorthand for a single Delete call on path returning err
func (m *MockBackend) ExpectDelete(path string, err error) *mock.Call {
	return m.On("Delete", mock.Anything, path).Return(err).Once()
}
