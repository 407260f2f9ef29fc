package logger_test

import (
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pushkit/pkg/logger"
)

func TestGroup(t *testing.T) {
	attr := logger.Group("req", slog.String("id", "1"), slog.Int("n", 2))
	require.Equal(t, "req", attr.Key)
	require.Equal(t, slog.KindGroup, attr.Value.Kind())
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, "id", g[0].Key)
	assert.Equal(t, "n", g[1].Key)
}

func TestErrors(t *testing.T) {
	err1 := errors.New("first")
	err2 := errors.New("second")

	attr := logger.Errors(err1, nil, err2)
	require.Equal(t, "errors", attr.Key)
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, err1, g[0].Value.Any())
	assert.Equal(t, err2, g[1].Value.Any())

	assert.True(t, logger.Errors(nil).Equal(slog.Attr{}))
}

func TestError(t *testing.T) {
	err := errors.New("boom")
	assert.Equal(t, "error", logger.Error(err).Key)
	assert.True(t, logger.Error(nil).Equal(slog.Attr{}))
}

func TestEndpoint(t *testing.T) {
	short := "https://push.example.com/abc"
	assert.Equal(t, short, logger.Endpoint(short).Value.String())

	long := "https://push.example.com/" + strings.Repeat("x", 200)
	got := logger.Endpoint(long).Value.String()
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Less(t, len(got), len(long))

	assert.True(t, logger.Endpoint("").Equal(slog.Attr{}))
}

func TestDomainAttrs(t *testing.T) {
	assert.Equal(t, "device_label", logger.DeviceLabel("Desktop").Key)
	assert.Equal(t, "notification_id", logger.NotificationID("n1").Key)
	assert.True(t, logger.NotificationID("").Equal(slog.Attr{}))
	assert.Equal(t, "state", logger.State("idle").Key)
	assert.Equal(t, uint64(7), logger.Sequence(7).Value.Uint64())
	assert.Equal(t, "component", logger.Component("feed").Key)
	assert.True(t, logger.RequestID("").Equal(slog.Attr{}))
}
