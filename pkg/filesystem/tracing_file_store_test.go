package filesystem_test

import (
	"context"
	"testing"

	"github.com/buildbarn/bb-indexfs/internal/mock"
	"github.com/buildbarn/bb-indexfs/pkg/filesystem"
	"github.com/buildbarn/bb-storage/pkg/testutil"
	"github.com/stretchr/testify/require"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/mock/gomock"
)

func TestTracingFileStore(t *testing.T) {
	ctrl, ctx := gomock.WithContext(context.Background(), t)

	baseFileStore := mock.NewMockFileStore(ctrl)
	fileStore := filesystem.NewTracingFileStore(baseFileStore, noop.NewTracerProvider())

	t.Run("Create", func(t *testing.T) {
		baseFileStore.EXPECT().Create(gomock.Any(), int64(1000)).Return(uint32(12), nil)

		headerSector, err := fileStore.Create(ctx, 1000)
		require.NoError(t, err)
		require.Equal(t, uint32(12), headerSector)
	})

	t.Run("OpenFailure", func(t *testing.T) {
		baseFileStore.EXPECT().Open(gomock.Any(), uint32(12)).Return(nil, status.Error(codes.DataLoss, "Header is corrupted"))

		_, err := fileStore.Open(ctx, 12)
		testutil.RequireEqualStatus(t, status.Error(codes.DataLoss, "Header is corrupted"), err)
	})

	t.Run("Remove", func(t *testing.T) {
		baseFileStore.EXPECT().Remove(gomock.Any(), uint32(12))

		require.NoError(t, fileStore.Remove(ctx, 12))
	})
}
