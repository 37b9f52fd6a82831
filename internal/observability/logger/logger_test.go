package logger

import (
	"context"
	"testing"

	obscontext "github.com/smallbiznis/estatebill/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContextAddsCorrelationFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	ctx := obscontext.WithRequestID(context.Background(), "req-9")
	ctx = obscontext.WithBuildingID(ctx, "12")
	WithContext(ctx, base).Info("billing.run.start")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-9", fields["request_id"])
	assert.Equal(t, "12", fields["building_id"])
	_, hasTrace := fields["trace_id"]
	assert.False(t, hasTrace)
}

func TestStatementVerb(t *testing.T) {
	assert.Equal(t, "INSERT", statementVerb(`INSERT INTO "invoices" ("id") VALUES (1)`))
	assert.Equal(t, "SELECT", statementVerb("(SELECT 1)"))
	assert.Equal(t, "UNKNOWN", statementVerb("PRAGMA foreign_keys = ON"))
}
