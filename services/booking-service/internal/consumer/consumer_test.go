package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cajuhub/roombook/libs/kafkax"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
	drained   chan struct{}
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	return &fakeReader{queue: msgs, drained: make(chan struct{})}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	select {
	case <-r.drained:
	default:
		close(r.drained)
	}
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	r.committed = append(r.committed, msgs...)
	r.mu.Unlock()
	return nil
}

func (r *fakeReader) Close() error { return nil }

type memInbox struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (m *memInbox) Record(_ context.Context, id, _ string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen[id] {
		return false, nil
	}
	m.seen[id] = true
	return true, nil
}

func (m *memInbox) Forget(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.seen, id)
	m.mu.Unlock()
	return nil
}

type recordingInvalidator struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, id string) error {
	r.mu.Lock()
	r.ids = append(r.ids, id)
	r.mu.Unlock()
	return nil
}

func spaceMsg(eventID, body string) kafka.Message {
	return kafka.Message{
		Topic:   "spaces.space.updated.v1",
		Value:   []byte(body),
		Headers: kafkax.MetaHeaders(kafkax.EventMeta{EventID: eventID, EventType: "spaces.space.updated.v1"}),
	}
}

func TestConsumerDedupesAndCommits(t *testing.T) {
	reader := newFakeReader(
		spaceMsg("e1", `{"space_id":"R1","active":false}`),
		spaceMsg("e1", `{"space_id":"R1","active":false}`),
		spaceMsg("e2", `not json`),
		spaceMsg("e3", `{"space_id":"R2"}`),
	)
	inv := &recordingInvalidator{}
	c := New(reader, &memInbox{seen: map[string]bool{}}, InvalidateSpaces(inv, discard), discard)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case <-reader.drained:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not drain queue")
	}
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []string{"R1", "R2"}, inv.ids)
	assert.Len(t, reader.committed, 4)
}

func TestConsumerRetriesFailedHandler(t *testing.T) {
	fail := true
	handler := func(context.Context, kafka.Message) error {
		if fail {
			fail = false
			return errors.New("redis down")
		}
		return nil
	}
	inbox := &memInbox{seen: map[string]bool{}}
	c := New(newFakeReader(), inbox, handler, discard)

	msg := spaceMsg("e9", `{"space_id":"R1"}`)
	assert.False(t, c.process(context.Background(), msg))
	assert.False(t, inbox.seen["e9"], "failed event must be released for redelivery")
	assert.True(t, c.process(context.Background(), msg))
}

func TestConsumerRunRetriesSameMessage(t *testing.T) {
	first := spaceMsg("e1", `{"space_id":"R1","active":false}`)
	first.Offset = 1
	second := spaceMsg("e2", `{"space_id":"R2","active":false}`)
	second.Offset = 2
	reader := newFakeReader(first, second)

	var (
		mu       sync.Mutex
		attempts int
		handled  []string
	)
	handler := func(_ context.Context, msg kafka.Message) error {
		evt, err := ParseSpaceUpdated(msg.Value)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		if evt.SpaceID == "R1" {
			attempts++
			if attempts < 3 {
				return errors.New("redis down")
			}
		}
		handled = append(handled, evt.SpaceID)
		return nil
	}
	c := New(reader, &memInbox{seen: map[string]bool{}}, handler, discard)
	c.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case <-reader.drained:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not drain queue")
	}
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, 3, attempts)
	assert.Equal(t, []string{"R1", "R2"}, handled)
	offsets := make([]int64, 0, len(reader.committed))
	for _, m := range reader.committed {
		offsets = append(offsets, m.Offset)
	}
	assert.Equal(t, []int64{1, 2}, offsets)
}

func TestParseSpaceUpdated(t *testing.T) {
	evt, err := ParseSpaceUpdated([]byte(`{"space_id":" R7 ","active":true}`))
	require.NoError(t, err)
	assert.Equal(t, "R7", evt.SpaceID)
	require.NotNil(t, evt.Active)
	assert.True(t, *evt.Active)

	_, err = ParseSpaceUpdated([]byte(`{"active":true}`))
	assert.ErrorIs(t, err, errMissingSpaceID)
}
