package minio

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/insurance-derivatives/internal/config"
	"github.com/turtacn/insurance-derivatives/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/insurance-derivatives/pkg/errors"
)

// MockObjectAPI is a testify mock of ObjectAPI.
type MockObjectAPI struct {
	mock.Mock
}

func (m *MockObjectAPI) BucketExists(ctx context.Context, bucket string) (bool, error) {
	args := m.Called(ctx, bucket)
	return args.Bool(0), args.Error(1)
}

func (m *MockObjectAPI) MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error {
	return m.Called(ctx, bucket, opts).Error(0)
}

func (m *MockObjectAPI) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	body, _ := io.ReadAll(r)
	args := m.Called(ctx, bucket, key, body, size, opts)
	return args.Get(0).(minio.UploadInfo), args.Error(1)
}

func (m *MockObjectAPI) GetObject(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	args := m.Called(ctx, bucket, key, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return io.NopCloser(bytes.NewReader(args.Get(0).([]byte))), args.Error(1)
}

func (m *MockObjectAPI) ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	args := m.Called(ctx, bucket, opts)
	ch := make(chan minio.ObjectInfo, len(args.Get(0).([]minio.ObjectInfo)))
	for _, o := range args.Get(0).([]minio.ObjectInfo) {
		ch <- o
	}
	close(ch)
	return ch
}

func (m *MockObjectAPI) RemoveObject(ctx context.Context, bucket, key string, opts minio.RemoveObjectOptions) error {
	return m.Called(ctx, bucket, key, opts).Error(0)
}

type ClientTestSuite struct {
	suite.Suite
	api    *MockObjectAPI
	client *Client
	ctx    context.Context
}

func (s *ClientTestSuite) SetupTest() {
	s.api = new(MockObjectAPI)
	s.client = NewClientWithAPI(s.api, config.SnapshotConfig{Bucket: "snaps", Prefix: "p/"}, logging.NewNopLogger())
	s.ctx = context.Background()
}

func (s *ClientTestSuite) TestDefaultsRegion() {
	s.Equal(config.DefaultSnapshotRegion, s.client.cfg.Region)
	s.Equal("snaps", s.client.Bucket())
	s.Equal("p/", s.client.Prefix())
}

func (s *ClientTestSuite) TestEnsureBucket_Exists() {
	s.api.On("BucketExists", s.ctx, "snaps").Return(true, nil)

	s.NoError(s.client.EnsureBucket(s.ctx))
	s.api.AssertNotCalled(s.T(), "MakeBucket", mock.Anything, mock.Anything, mock.Anything)
}

func (s *ClientTestSuite) TestEnsureBucket_Creates() {
	s.api.On("BucketExists", s.ctx, "snaps").Return(false, nil)
	s.api.On("MakeBucket", s.ctx, "snaps", minio.MakeBucketOptions{Region: "us-east-1"}).Return(nil)

	s.NoError(s.client.EnsureBucket(s.ctx))
	s.api.AssertExpectations(s.T())
}

func (s *ClientTestSuite) TestEnsureBucket_LostRace() {
	s.api.On("BucketExists", s.ctx, "snaps").Return(false, nil)
	s.api.On("MakeBucket", s.ctx, "snaps", mock.Anything).Return(minio.ErrorResponse{Code: "BucketAlreadyOwnedByYou"})

	s.NoError(s.client.EnsureBucket(s.ctx))
}

func (s *ClientTestSuite) TestEnsureBucket_Failure() {
	s.api.On("BucketExists", s.ctx, "snaps").Return(false, stderrors.New("dial tcp: refused"))

	err := s.client.EnsureBucket(s.ctx)
	s.Error(err)
	s.ErrorContains(err, "refused")
}

func (s *ClientTestSuite) TestHealthCheck() {
	s.api.On("BucketExists", s.ctx, "snaps").Return(false, nil).Once()
	_, err := s.client.HealthCheck(s.ctx)
	s.True(errors.IsNotFound(err))

	s.api.On("BucketExists", s.ctx, "snaps").Return(true, nil).Once()
	_, err = s.client.HealthCheck(s.ctx)
	s.NoError(err)
}

func (s *ClientTestSuite) TestClosedClientRefusesWork() {
	s.NoError(s.client.Close())
	_, err := s.client.API()
	s.ErrorIs(err, ErrClientClosed)
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}

func TestNewClient_RequiresEndpointAndBucket(t *testing.T) {
	_, err := NewClient(config.SnapshotConfig{Bucket: "b"}, logging.NewNopLogger())
	assert.True(t, errors.IsValidation(err))
}
