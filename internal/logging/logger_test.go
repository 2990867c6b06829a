package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/AaronLay10/EspressoLine/internal/events"
)

func TestNew(t *testing.T) {
	l, err := New(Config{Level: "debug", Development: true})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = New(DefaultConfig())
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))

	_, err = New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestEventSink(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	sink := EventSink(&Logger{Logger: zap.New(core)})

	require.NoError(t, sink.Write(events.Event{
		Level:   "warning",
		Name:    "order.dropped",
		Message: "Not enough milk in MilkTank",
		RunID:   "run-1",
		Fields:  map[string]interface{}{"order_id": 3, "stage": "heat_milk"},
	}))
	require.NoError(t, sink.Write(events.Event{Level: "info", Name: "pipeline.drained"}))

	entries := logs.All()
	require.Len(t, entries, 2)

	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "Not enough milk in MilkTank", entries[0].Message)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "order.dropped", ctx["event"])
	assert.Equal(t, "run-1", ctx["run_id"])
	assert.EqualValues(t, 3, ctx["order_id"])

	assert.Equal(t, "pipeline.drained", entries[1].Message)
	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
}

func TestEventLevel(t *testing.T) {
	assert.Equal(t, zapcore.ErrorLevel, eventLevel("error"))
	assert.Equal(t, zapcore.WarnLevel, eventLevel("warn"))
	assert.Equal(t, zapcore.DebugLevel, eventLevel("debug"))
	assert.Equal(t, zapcore.InfoLevel, eventLevel("whatever"))
}
