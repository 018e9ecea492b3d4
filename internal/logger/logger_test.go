package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, buf.String())
	}
	return m
}

func TestBuild_ComponentField(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "info", Component: "extentd"}, &buf)
	zl.Info().Msg("hello")

	m := decodeLine(t, &buf)
	if m["component"] != "extentd" {
		t.Fatalf("component=%v want extentd", m["component"])
	}
	if m["msg"] != "hello" {
		t.Fatalf("msg=%v want hello", m["msg"])
	}
	if _, ok := m["timestamp"]; !ok {
		t.Fatalf("missing timestamp field: %v", m)
	}
}

func TestFromContext_AttachesFields(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "info"}, &buf)

	ctx := WithRequestID(context.Background(), "abc123")
	ctx = WithSource(ctx, "usgs")
	FromContext(ctx, &zl).Info().Msg("merge")

	m := decodeLine(t, &buf)
	if m["request_id"] != "abc123" {
		t.Fatalf("request_id=%v want abc123", m["request_id"])
	}
	if m["source"] != "usgs" {
		t.Fatalf("source=%v want usgs", m["source"])
	}
}

func TestRequestID(t *testing.T) {
	if _, ok := RequestID(context.Background()); ok {
		t.Fatalf("empty context reported a request id")
	}
	ctx := WithRequestID(context.Background(), "")
	id, ok := RequestID(ctx)
	if !ok || id == "" {
		t.Fatalf("generated id missing (id=%q ok=%v)", id, ok)
	}
}

func TestNewSlog_BridgesToZerolog(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "info"}, &buf)
	sl := NewSlog(&zl)

	sl.Info("select", "policy", "ordered", "total", int64(100))

	m := decodeLine(t, &buf)
	if m["msg"] != "select" {
		t.Fatalf("msg=%v want select", m["msg"])
	}
	if m["policy"] != "ordered" {
		t.Fatalf("policy=%v want ordered", m["policy"])
	}
	if m["total"] != float64(100) {
		t.Fatalf("total=%v want 100", m["total"])
	}
}
