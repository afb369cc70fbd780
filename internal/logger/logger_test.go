package logger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/feral-file/batch-ledger/internal/logger"
)

func TestDefaultIsUsableBeforeInitialize(t *testing.T) {
	assert.NotPanics(t, func() {
		logger.Info("not initialized yet")
		logger.InfoCtx(context.Background(), "not initialized yet")
	})
}

func TestWithFields(t *testing.T) {
	require.NoError(t, logger.Initialize(logger.Config{Debug: true}))

	ctx := logger.WithFields(context.Background(), zap.String("request_id", "abc"))
	ctx = logger.WithFields(ctx, zap.Uint64("batch_id", 7))

	assert.NotNil(t, logger.FromContext(ctx))
	assert.NotPanics(t, func() {
		logger.InfoCtx(ctx, "with fields")
		logger.WarnCtx(ctx, "with fields")
		logger.ErrorCtx(ctx, nil)
	})
}
