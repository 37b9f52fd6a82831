package tracing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsUnknownKeys(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("building_id", "1"),
		attribute.String("resident_email", "a@example.com"),
		attribute.String("billing_period", "2024-05"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		assert.NotEqual(t, attribute.Key("resident_email"), attr.Key)
	}
}

func TestSafeErrorKeepsFirstLine(t *testing.T) {
	err := SafeError(errors.New("insert failed\nDETAIL: key (email)=(a@b.c)"))
	assert.EqualError(t, err, "insert failed")
	assert.Nil(t, SafeError(nil))
}
