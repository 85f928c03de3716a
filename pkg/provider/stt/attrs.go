package stt

import "go.opentelemetry.io/otel/attribute"

func providerAttr(name string) attribute.KeyValue {
	return attribute.String("provider", name)
}

func statusAttr(err error) attribute.KeyValue {
	if err != nil {
		return attribute.String("status", "error")
	}
	return attribute.String("status", "ok")
}
