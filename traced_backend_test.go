package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/imeyer/leaseqa/pkg/api"
	"github.com/imeyer/leaseqa/pkg/leaseqa"
)

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{context.Canceled, "canceled"},
		{fmt.Errorf("list posts: %w", context.DeadlineExceeded), "canceled"},
		{&api.Error{Op: "get post", StatusCode: http.StatusNotFound}, "rejected"},
		{&api.Error{Op: "get post", StatusCode: http.StatusBadGateway}, "error"},
		{errors.New("connection refused"), "error"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, outcome(tt.err), "%v", tt.err)
	}
}

func TestTracedBackend(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	telemetry := &TelemetryConfig{Tracer: provider.Tracer("test")}

	mb := &MockBackend{
		GetPostFunc: func(ctx context.Context, id string) (*leaseqa.PostDetail, error) {
			if id == "p1" {
				return &leaseqa.PostDetail{Post: leaseqa.Post{ID: "p1"}}, nil
			}
			return nil, notFound("get post")
		},
	}
	tb := NewTracedBackend(mb, telemetry)

	detail, err := tb.GetPost(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", detail.ID)

	_, err = tb.GetPost(context.Background(), "missing")
	assert.ErrorIs(t, err, api.ErrNotFound)

	assert.NoError(t, tb.DeletePost(context.Background(), "p1"))
	assert.True(t, mb.Called("DeletePost"))

	spans := recorder.Ended()
	require.Len(t, spans, 3)
	assert.Equal(t, "GetPost(backend)", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "DeletePost(backend)", spans[2].Name())

	var found bool
	for _, kv := range spans[1].Attributes() {
		if kv.Key == "backend.outcome" {
			found = true
			assert.Equal(t, "rejected", kv.Value.AsString())
		}
	}
	assert.True(t, found)
}

func TestTracedBackendWithoutTelemetry(t *testing.T) {
	tb := NewTracedBackend(&MockBackend{}, nil)

	folders, err := tb.ListFolders(context.Background())
	require.NoError(t, err)
	assert.Len(t, folders, 2)
}

func TestNewBackendFactory(t *testing.T) {
	client, err := api.New("http://backend.test/api")
	require.NoError(t, err)

	factory := NewBackendFactory(client, &TelemetryConfig{})
	be := factory(nil)
	_, ok := be.(*TracedBackend)
	assert.True(t, ok)
}
