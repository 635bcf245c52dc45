package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialize_ValidLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "fatal", "DEBUG", "Info"} {
		err := Initialize(level)
		assert.NoError(t, err, "level %s", level)
	}
}

func TestInitialize_UnknownLevelFallsBackToInfo(t *testing.T) {
	err := Initialize("bogus")
	require.NoError(t, err)

	logger := GetLogger("test")
	assert.True(t, logger.shouldLog(INFO))
	assert.False(t, logger.shouldLog(DEBUG))
}

func TestGetLogger_ReturnsNamedLogger(t *testing.T) {
	require.NoError(t, Initialize("info"))

	logger := GetLogger("mcp.registry")
	assert.Equal(t, "mcp.registry", logger.name)
}

func TestWithField_IsImmutable(t *testing.T) {
	require.NoError(t, Initialize("info"))

	base := GetLogger("test")
	child := base.WithField("tool", "get_pod_logs")

	assert.Empty(t, base.fields)
	assert.Equal(t, "get_pod_logs", child.fields["tool"])
}

func TestWithFields_MergesIntoCopy(t *testing.T) {
	require.NoError(t, Initialize("info"))

	base := GetLogger("test").WithField("a", 1)
	child := base.WithFields(Field("b", 2), Field("c", 3))

	assert.Len(t, base.fields, 1)
	assert.Len(t, child.fields, 3)
	assert.Equal(t, 1, child.fields["a"])
}

func TestPackageLogLevels_ExactAndWildcard(t *testing.T) {
	require.NoError(t, Initialize("info"))
	require.NoError(t, SetPackageLogLevels(map[string]string{
		"mcp.registry": "debug",
		"mcp.*":        "warn",
	}))
	t.Cleanup(func() {
		require.NoError(t, SetPackageLogLevels(map[string]string{}))
	})

	assert.Equal(t, DEBUG, GetPackageLogLevel("mcp.registry"))
	assert.Equal(t, WARN, GetPackageLogLevel("mcp.invoker"))
	assert.Equal(t, LogLevel(-1), GetPackageLogLevel("store"))
}

func TestSetPackageLogLevels_InvalidLevel(t *testing.T) {
	err := SetPackageLogLevels(map[string]string{"mcp.*": "loud"})
	assert.Error(t, err)
}

func TestExtractContextFields(t *testing.T) {
	assert.Nil(t, extractContextFields(nil))
	assert.Nil(t, extractContextFields(context.Background()))

	ctx := WithCorrelationID(context.Background(), "corr-1")
	ctx = WithIncidentID(ctx, "inc-1")

	fields := extractContextFields(ctx)
	require.NotNil(t, fields)
	assert.Equal(t, "corr-1", fields["correlation_id"])
	assert.Equal(t, "inc-1", fields["incident_id"])
}

func TestCorrelationIDFrom(t *testing.T) {
	assert.Equal(t, "", CorrelationIDFrom(context.Background()))

	ctx := WithCorrelationID(context.Background(), "corr-2")
	assert.Equal(t, "corr-2", CorrelationIDFrom(ctx))
}
