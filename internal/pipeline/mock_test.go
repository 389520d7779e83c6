package pipeline

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/curate-cli/internal/model"
	"github.com/sells-group/curate-cli/internal/store"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CommitClassified(ctx context.Context, man store.Manifest, buckets []model.BucketArtifacts) error {
	args := m.Called(ctx, man, buckets)
	return args.Error(0)
}

func (m *mockStore) CommitSelected(ctx context.Context, percentile float64, results []model.PercentileResult) error {
	args := m.Called(ctx, percentile, results)
	return args.Error(0)
}

func (m *mockStore) Manifest(ctx context.Context) (*store.Manifest, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.(*store.Manifest), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) Counts(ctx context.Context, g model.Group) ([]model.TokenCountRow, error) {
	args := m.Called(ctx, g)
	if v := args.Get(0); v != nil {
		return v.([]model.TokenCountRow), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) Records(ctx context.Context, g model.Group) ([]json.RawMessage, error) {
	args := m.Called(ctx, g)
	if v := args.Get(0); v != nil {
		return v.([]json.RawMessage), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}
