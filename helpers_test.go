package main

import (
	"bytes"
	"context"
	"html/template"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTeeHandler(t *testing.T) {
	var debug, info bytes.Buffer
	h := teeHandler{
		slog.NewTextHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo}),
	}
	logger := slog.New(h).With(slog.String("component", "test")).WithGroup("req")

	assert.True(t, h.Enabled(context.Background(), slog.LevelDebug))

	logger.Debug("only debug", slog.String("id", "1"))
	logger.Info("both", slog.String("id", "2"))

	assert.Contains(t, debug.String(), "only debug")
	assert.Contains(t, debug.String(), "both")
	assert.NotContains(t, info.String(), "only debug")
	assert.Contains(t, info.String(), "component=test")
	assert.Contains(t, info.String(), "req.id=2")
}

func TestSetupTemplates(t *testing.T) {
	tmpls, err := setupTemplates(templateFiles)
	require.NoError(t, err)

	for _, name := range []string{
		"board.html", "post-form.html", "reply-form.html", "login.html", "register.html",
		"ai-review.html", "review.html", "review-history.html", "admin.html",
		"folder-form.html", "error.html", "header", "footer", "post-detail",
	} {
		assert.NotNil(t, tmpls.Lookup(name), name)
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate(10, "short"))
	assert.Equal(t, "exactly10!", truncate(10, "exactly10!"))
	assert.Equal(t, "Landlord…", truncate(9, "Landlord withheld"))
	assert.Equal(t, "déjà…", truncate(4, "déjà vu"))
}

func TestAnswerTypeLabel(t *testing.T) {
	assert.Equal(t, "Lawyer opinion", answerTypeLabel("lawyer_opinion"))
	assert.Equal(t, "Community answer", answerTypeLabel("community_answer"))
	assert.Equal(t, "Answer", answerTypeLabel(""))
}

func TestTemplateFuncs(t *testing.T) {
	funcs := templateFuncs()

	indent := funcs["indent"].(func(int) int)
	assert.Equal(t, 0, indent(0))
	assert.Equal(t, 48, indent(2))
	assert.Equal(t, 8*24, indent(20))

	contains := funcs["contains"].(func([]string, string) bool)
	assert.True(t, contains([]string{"deposits", "repairs"}, "repairs"))
	assert.False(t, contains(nil, "repairs"))

	body := funcs["body"].(func(string) template.HTML)
	out := string(body(`<p onclick="x()">Hi <script>alert(1)</script></p>`))
	assert.Contains(t, out, "<p>Hi")
	assert.False(t, strings.Contains(out, "script"))

	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, "2026-01-02 03:04:05", formatTimestamp(ts))
	assert.Equal(t, "Jan 2, 2026", formatDate(ts))
}
