package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/conveyor-ci/conveyor/pkg/protocol"
)

// MockSourceHost is a mock implementation of the protocol.SourceHost
// interface.
type MockSourceHost struct {
	mock.Mock
}

func (m *MockSourceHost) Head(ctx context.Context, branch string) (string, error) {
	args := m.Called(ctx, branch)

	return args.String(0), args.Error(1)
}

func (m *MockSourceHost) Checkout(ctx context.Context, revision string) (map[string][]byte, error) {
	args := m.Called(ctx, revision)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(map[string][]byte), args.Error(1)
}

// MockSandbox is a mock implementation of the protocol.Sandbox interface.
type MockSandbox struct {
	mock.Mock
}

func (m *MockSandbox) Run(ctx context.Context, job protocol.BuildJob) (*protocol.BuildResult, error) {
	args := m.Called(ctx, job)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*protocol.BuildResult), args.Error(1)
}

// MockPublishTarget is a mock implementation of the protocol.PublishTarget
// interface.
type MockPublishTarget struct {
	mock.Mock
}

func (m *MockPublishTarget) Publish(ctx context.Context, location string, files map[string][]byte) error {
	args := m.Called(ctx, location, files)

	return args.Error(0)
}

// MockProvisioner is a mock implementation of the protocol.Provisioner
// interface.
type MockProvisioner struct {
	mock.Mock
}

func (m *MockProvisioner) Apply(ctx context.Context, stackName string, template []byte) (map[string]string, error) {
	args := m.Called(ctx, stackName, template)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(map[string]string), args.Error(1)
}
