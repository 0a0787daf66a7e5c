package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/lakeadmin/internal/common"
	"github.com/dmitrijs2005/lakeadmin/internal/logging"
	"github.com/dmitrijs2005/lakeadmin/internal/server/models"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs     []kafka.Message
	err      error
	closed   bool
	closeErr error
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return f.closeErr
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher(w, logging.NewDiscardLogger())

	ev := models.Event{
		ID:      "e-1",
		Sender:  "coordinator",
		Type:    models.EventCreateArchiveJob,
		Time:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Payload: map[string]any{"bucket": "*", "job_id": "j1"},
	}
	require.NoError(t, p.Publish(context.Background(), "lakeadmin-events", ev))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "lakeadmin-events", msg.Topic)
	assert.Equal(t, "j1", string(msg.Key))

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, "coordinator", body["sender"])
	assert.Equal(t, "create_archive_job", body["type"])
	assert.Equal(t, "*", body["bucket"])
	assert.Equal(t, "j1", body["job_id"])
	assert.Equal(t, "2024-05-01T12:00:00Z", body["time"])
}

func TestKafkaPublisher_PublishErrors(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p := newKafkaPublisher(w, logging.NewDiscardLogger())
	ev := New("coordinator", models.EventUserAdd, map[string]any{"uid": "alice"})

	err := p.Publish(context.Background(), "user-events", ev)
	require.ErrorIs(t, err, common.ErrorBackend)

	w.err = context.DeadlineExceeded
	err = p.Publish(context.Background(), "user-events", ev)
	require.ErrorIs(t, err, common.ErrorBackendTimeout)
}

func TestKafkaPublisher_Close(t *testing.T) {
	w := &fakeWriter{closeErr: errors.New("flush failed")}
	p := newKafkaPublisher(w, logging.NewDiscardLogger())

	require.EqualError(t, p.Close(), "flush failed")
	assert.True(t, w.closed)
}

func TestNewKafkaPublisher(t *testing.T) {
	_, err := NewKafkaPublisher(nil, logging.NewDiscardLogger())
	require.ErrorIs(t, err, ErrNoBrokers)

	p, err := NewKafkaPublisher([]string{"127.0.0.1:9092"}, logging.NewDiscardLogger())
	require.NoError(t, err)
	kw, ok := p.w.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, "127.0.0.1:9092", kw.Addr.String())
	assert.IsType(t, &kafka.Hash{}, kw.Balancer)
}

func TestNew(t *testing.T) {
	orig := now
	t.Cleanup(func() { now = orig })
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	now = func() time.Time { return fixed }

	ev := New("coordinator", models.EventUserRemove, map[string]any{"uid": "bob"})
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, fixed, ev.Time)
	assert.Equal(t, "bob", ev.Subject())
	assert.NotEqual(t, ev.ID, New("coordinator", models.EventUserRemove, nil).ID)
}
