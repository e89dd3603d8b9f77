// SPDX-License-Identifier: MIT

package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func lookup(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestEventAttributes(t *testing.T) {
	attrs := EventAttributes("del_player", 3)
	v, ok := lookup(attrs, EventNameKey)
	assert.True(t, ok)
	assert.Equal(t, "del_player", v.AsString())
	v, _ = lookup(attrs, EventListenersKey)
	assert.Equal(t, int64(3), v.AsInt64())
}

func TestCommandAttributesOmitEmpty(t *testing.T) {
	attrs := CommandAttributes("", "", 0)
	assert.Len(t, attrs, 1)

	attrs = CommandAttributes("id", "day", 1)
	assert.Len(t, attrs, 3)
	v, _ := lookup(attrs, PhaseKey)
	assert.Equal(t, "day", v.AsString())
}

func TestErrorAttributes(t *testing.T) {
	attrs := ErrorAttributes("behavior_failure")
	v, _ := lookup(attrs, ErrorKey)
	assert.True(t, v.AsBool())
}
