package testutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/insurance-derivatives/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/insurance-derivatives/internal/testutil"
)

func TestMockLogger(t *testing.T) {
	logger := testutil.NewMockLogger()

	logger.Info("test info", logging.String("key", "value"))

	messages := logger.GetMessages()
	assert.Len(t, messages, 1)
	assert.Equal(t, "info", messages[0].Level)
	assert.Equal(t, "test info", messages[0].Message)

	logger.Clear()
	assert.Len(t, logger.GetMessages(), 0)

	logger.Error("test error")
	assert.True(t, logger.HasMessage("error", "test error"))
	assert.False(t, logger.HasMessage("info", "test info"))
}

func TestMockLogger_ChildrenShareRecord(t *testing.T) {
	logger := testutil.NewMockLogger()
	child := logger.With(logging.DerivativeID(7)).Named("events")

	child.Warn("publish failed", logging.String("topic", "ledger.derivative"))

	entry := logger.Find("warn", "publish failed")
	require.NotNil(t, entry)
	id, ok := entry.Field("derivative_id")
	require.True(t, ok)
	assert.Equal(t, int64(7), id)
	name, _ := entry.Field("logger")
	assert.Equal(t, "events", name)
	_, ok = entry.Field("missing")
	assert.False(t, ok)
}
