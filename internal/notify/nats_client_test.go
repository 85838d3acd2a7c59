package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docvars/internal/build"
	"git.home.luguber.info/inful/docvars/internal/config"
	ferrors "git.home.luguber.info/inful/docvars/internal/foundation/errors"
)

type fakeConn struct {
	subject    string
	data       []byte
	publishErr error
	flushErr   error
	deadline   bool
	closed     bool
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	f.subject = subject
	f.data = data
	return f.publishErr
}

func (f *fakeConn) FlushWithContext(ctx context.Context) error {
	_, f.deadline = ctx.Deadline()
	return f.flushErr
}

func (f *fakeConn) Close() { f.closed = true }

func testClient(c conn) *NATSClient {
	cfg := config.NotifyConfig{Enabled: true, Subject: "docvars.builds", Timeout: time.Second}
	client := newClient(c, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	client.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return client
}

func sampleReport() *build.Report {
	start := time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC)
	return &build.Report{
		BuildID:      "b-1",
		Status:       build.BuildStatusSuccess,
		Revision:     "3f2a9c",
		Documents:    12,
		Replacements: 40,
		OutputDir:    "site",
		StartTime:    start,
		EndTime:      start.Add(1500 * time.Millisecond),
		Duration:     1500 * time.Millisecond,
	}
}

func TestNotify_PublishesBuildEvent(t *testing.T) {
	fc := &fakeConn{}
	require.NoError(t, testClient(fc).Notify(t.Context(), sampleReport()))

	assert.Equal(t, "docvars.builds", fc.subject)
	assert.True(t, fc.deadline, "flush is bounded by the configured timeout")

	var got BuildEvent
	require.NoError(t, json.Unmarshal(fc.data, &got))
	assert.Equal(t, "b-1", got.BuildID)
	assert.Equal(t, "success", got.Status)
	assert.Equal(t, "3f2a9c", got.Revision)
	assert.Equal(t, 12, got.Documents)
	assert.Equal(t, 40, got.Replacements)
	assert.Equal(t, int64(1500), got.DurationMS)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), got.Timestamp)
}

func TestNotify_OmitsEmptyRevision(t *testing.T) {
	fc := &fakeConn{}
	r := sampleReport()
	r.Revision = ""
	require.NoError(t, testClient(fc).Notify(t.Context(), r))
	assert.NotContains(t, string(fc.data), "revision")
}

func TestNotify_Errors(t *testing.T) {
	publishFail := &fakeConn{publishErr: errors.New("connection closed")}
	err := testClient(publishFail).Notify(t.Context(), sampleReport())
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryNetwork))

	flushFail := &fakeConn{flushErr: context.DeadlineExceeded}
	err = testClient(flushFail).Notify(t.Context(), sampleReport())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNotify_NilReport(t *testing.T) {
	fc := &fakeConn{}
	require.NoError(t, testClient(fc).Notify(t.Context(), nil))
	assert.Nil(t, fc.data)
}

func TestClose(t *testing.T) {
	fc := &fakeConn{}
	testClient(fc).Close()
	assert.True(t, fc.closed)

	var nilClient *NATSClient
	nilClient.Close()
}

func TestNewNATSClient_Disabled(t *testing.T) {
	_, err := NewNATSClient(config.NotifyConfig{}, nil)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestNewNATSClient_Unreachable(t *testing.T) {
	_, err := NewNATSClient(config.NotifyConfig{
		Enabled: true,
		NATSURL: "nats://127.0.0.1:1",
		Subject: "docvars.builds",
		Timeout: 200 * time.Millisecond,
	}, nil)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryNetwork))
}
