// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by dispatch and routing spans.
const (
	EventNameKey      = "lykos.event.name"
	EventListenersKey = "lykos.event.listeners"
	EventStoppedKey   = "lykos.event.stopped"

	CommandNameKey   = "lykos.command.name"
	CommandAliasKey  = "lykos.command.alias"
	CommandRoutesKey = "lykos.command.routes"

	SessionIDKey = "lykos.session.id"
	PhaseKey     = "lykos.session.phase"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// EventAttributes describes one dispatch.
func EventAttributes(name string, listeners int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(EventNameKey, name),
		attribute.Int(EventListenersKey, listeners),
	}
}

// CommandAttributes describes one routed message. Empty values are omitted.
func CommandAttributes(alias, phase string, routes int) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if alias != "" {
		attrs = append(attrs, attribute.String(CommandAliasKey, alias))
	}
	if phase != "" {
		attrs = append(attrs, attribute.String(PhaseKey, phase))
	}
	attrs = append(attrs, attribute.Int(CommandRoutesKey, routes))
	return attrs
}

// ErrorAttributes marks a span as failed.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
