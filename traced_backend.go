package main

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/imeyer/leaseqa/pkg/api"
	"github.com/imeyer/leaseqa/pkg/leaseqa"
)

// TracedBackend decorates a Backend with a span and duration metrics per
// call.
type TracedBackend struct {
	wrapped   Backend
	tracer    trace.Tracer
	histogram metric.Float64Histogram
}

var _ Backend = (*TracedBackend)(nil)

func NewTracedBackend(wrapped Backend, telemetry *TelemetryConfig) *TracedBackend {
	t := &TracedBackend{wrapped: wrapped, tracer: noop.NewTracerProvider().Tracer("leaseqa")}
	if telemetry != nil {
		if telemetry.Tracer != nil {
			t.tracer = telemetry.Tracer
		}
		t.histogram = telemetry.Metrics.BackendCallDuration
	}
	return t
}

func outcome(err error) string {
	var apiErr *api.Error
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500:
		return "rejected"
	default:
		return "error"
	}
}

func (t *TracedBackend) record(ctx context.Context, span trace.Span, op string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	result := outcome(err)

	backendCallDuration.WithLabelValues(op, result).Observe(duration)
	if t.histogram != nil {
		t.histogram.Record(ctx, duration, metric.WithAttributes(
			attribute.String("operation", op),
			attribute.String("outcome", result),
		))
	}

	span.SetAttributes(
		attribute.String("backend.outcome", result),
		attribute.Float64("request.duration", duration),
	)

	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		span.SetAttributes(attribute.Int("http.response.status_code", apiErr.StatusCode))
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}

func traced[T any](ctx context.Context, t *TracedBackend, op string, call func(context.Context) (T, error), attrs ...attribute.KeyValue) (T, error) {
	ctx, span := t.tracer.Start(ctx, op+"(backend)", trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
	defer span.End()

	start := time.Now()
	v, err := call(ctx)
	t.record(ctx, span, op, start, err)
	return v, err
}

func tracedErr(ctx context.Context, t *TracedBackend, op string, call func(context.Context) error, attrs ...attribute.KeyValue) error {
	_, err := traced(ctx, t, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, call(ctx)
	}, attrs...)
	return err
}

func postAttr(id string) attribute.KeyValue { return attribute.String("post.id", id) }

func (t *TracedBackend) Session(ctx context.Context) (*leaseqa.User, error) {
	return traced(ctx, t, "Session", t.wrapped.Session)
}

func (t *TracedBackend) Login(ctx context.Context, p api.LoginParams) (*leaseqa.User, error) {
	return traced(ctx, t, "Login", func(ctx context.Context) (*leaseqa.User, error) {
		return t.wrapped.Login(ctx, p)
	}, attribute.String("user.email_hash", hashEmail(p.Email)))
}

func (t *TracedBackend) Register(ctx context.Context, p api.RegisterParams) (*leaseqa.User, error) {
	return traced(ctx, t, "Register", func(ctx context.Context) (*leaseqa.User, error) {
		return t.wrapped.Register(ctx, p)
	}, attribute.String("user.email_hash", hashEmail(p.Email)), attribute.String("user.role", string(p.Role)))
}

func (t *TracedBackend) Logout(ctx context.Context) error {
	return tracedErr(ctx, t, "Logout", t.wrapped.Logout)
}

func (t *TracedBackend) ListPosts(ctx context.Context) ([]leaseqa.Post, error) {
	return traced(ctx, t, "ListPosts", t.wrapped.ListPosts)
}

func (t *TracedBackend) GetPost(ctx context.Context, id string) (*leaseqa.PostDetail, error) {
	return traced(ctx, t, "GetPost", func(ctx context.Context) (*leaseqa.PostDetail, error) {
		return t.wrapped.GetPost(ctx, id)
	}, postAttr(id))
}

func (t *TracedBackend) CreatePost(ctx context.Context, in api.PostInput) (*leaseqa.Post, error) {
	return traced(ctx, t, "CreatePost", func(ctx context.Context) (*leaseqa.Post, error) {
		return t.wrapped.CreatePost(ctx, in)
	}, attribute.StringSlice("post.folders", in.Folders))
}

func (t *TracedBackend) UpdatePost(ctx context.Context, id string, in api.PostUpdate) (*leaseqa.Post, error) {
	return traced(ctx, t, "UpdatePost", func(ctx context.Context) (*leaseqa.Post, error) {
		return t.wrapped.UpdatePost(ctx, id, in)
	}, postAttr(id))
}

func (t *TracedBackend) DeletePost(ctx context.Context, id string) error {
	return tracedErr(ctx, t, "DeletePost", func(ctx context.Context) error {
		return t.wrapped.DeletePost(ctx, id)
	}, postAttr(id))
}

func (t *TracedBackend) UploadPostAttachments(ctx context.Context, id string, files []api.File) error {
	return tracedErr(ctx, t, "UploadPostAttachments", func(ctx context.Context) error {
		return t.wrapped.UploadPostAttachments(ctx, id, files)
	}, postAttr(id), attribute.Int("files", len(files)))
}

func (t *TracedBackend) CreateAnswer(ctx context.Context, in api.AnswerInput) (*leaseqa.Answer, error) {
	return traced(ctx, t, "CreateAnswer", func(ctx context.Context) (*leaseqa.Answer, error) {
		return t.wrapped.CreateAnswer(ctx, in)
	}, postAttr(in.PostID), attribute.String("answer.type", in.AnswerType))
}

func (t *TracedBackend) UpdateAnswer(ctx context.Context, id, content string) (*leaseqa.Answer, error) {
	return traced(ctx, t, "UpdateAnswer", func(ctx context.Context) (*leaseqa.Answer, error) {
		return t.wrapped.UpdateAnswer(ctx, id, content)
	}, attribute.String("answer.id", id))
}

func (t *TracedBackend) DeleteAnswer(ctx context.Context, id string) error {
	return tracedErr(ctx, t, "DeleteAnswer", func(ctx context.Context) error {
		return t.wrapped.DeleteAnswer(ctx, id)
	}, attribute.String("answer.id", id))
}

func (t *TracedBackend) UploadAnswerAttachments(ctx context.Context, id string, files []api.File) error {
	return tracedErr(ctx, t, "UploadAnswerAttachments", func(ctx context.Context) error {
		return t.wrapped.UploadAnswerAttachments(ctx, id, files)
	}, attribute.String("answer.id", id), attribute.Int("files", len(files)))
}

func (t *TracedBackend) CreateDiscussion(ctx context.Context, in api.DiscussionInput) (*leaseqa.Discussion, error) {
	return traced(ctx, t, "CreateDiscussion", func(ctx context.Context) (*leaseqa.Discussion, error) {
		return t.wrapped.CreateDiscussion(ctx, in)
	}, postAttr(in.PostID), attribute.Bool("discussion.reply", in.ParentID != ""))
}

func (t *TracedBackend) UpdateDiscussion(ctx context.Context, id, content string) (*leaseqa.Discussion, error) {
	return traced(ctx, t, "UpdateDiscussion", func(ctx context.Context) (*leaseqa.Discussion, error) {
		return t.wrapped.UpdateDiscussion(ctx, id, content)
	}, attribute.String("discussion.id", id))
}

func (t *TracedBackend) DeleteDiscussion(ctx context.Context, id string) error {
	return tracedErr(ctx, t, "DeleteDiscussion", func(ctx context.Context) error {
		return t.wrapped.DeleteDiscussion(ctx, id)
	}, attribute.String("discussion.id", id))
}

func (t *TracedBackend) ListFolders(ctx context.Context) ([]leaseqa.Folder, error) {
	return traced(ctx, t, "ListFolders", t.wrapped.ListFolders)
}

func (t *TracedBackend) CreateFolder(ctx context.Context, in api.FolderInput) (*leaseqa.Folder, error) {
	return traced(ctx, t, "CreateFolder", func(ctx context.Context) (*leaseqa.Folder, error) {
		return t.wrapped.CreateFolder(ctx, in)
	}, attribute.String("folder.name", in.Name))
}

func (t *TracedBackend) UpdateFolder(ctx context.Context, id string, in api.FolderInput) (*leaseqa.Folder, error) {
	return traced(ctx, t, "UpdateFolder", func(ctx context.Context) (*leaseqa.Folder, error) {
		return t.wrapped.UpdateFolder(ctx, id, in)
	}, attribute.String("folder.id", id))
}

func (t *TracedBackend) DeleteFolder(ctx context.Context, id string) error {
	return tracedErr(ctx, t, "DeleteFolder", func(ctx context.Context) error {
		return t.wrapped.DeleteFolder(ctx, id)
	}, attribute.String("folder.id", id))
}

func (t *TracedBackend) StatsOverview(ctx context.Context) (*leaseqa.StatsOverview, error) {
	return traced(ctx, t, "StatsOverview", t.wrapped.StatsOverview)
}

func (t *TracedBackend) CreateReview(ctx context.Context, in api.ReviewInput) (*leaseqa.Review, error) {
	return traced(ctx, t, "CreateReview", func(ctx context.Context) (*leaseqa.Review, error) {
		return t.wrapped.CreateReview(ctx, in)
	}, attribute.Bool("review.file", in.File != nil))
}

func (t *TracedBackend) ListReviews(ctx context.Context) ([]leaseqa.Review, error) {
	return traced(ctx, t, "ListReviews", t.wrapped.ListReviews)
}

func (t *TracedBackend) GetReview(ctx context.Context, id string) (*leaseqa.Review, error) {
	return traced(ctx, t, "GetReview", func(ctx context.Context) (*leaseqa.Review, error) {
		return t.wrapped.GetReview(ctx, id)
	}, attribute.String("review.id", id))
}
