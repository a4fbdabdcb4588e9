package app

import (
	"context"
	"io"
	"sync"

	"class_reminder_bot/internal/domain/gateway"
	"class_reminder_bot/internal/domain/schedule"

	"github.com/sirupsen/logrus"
)

type sentCall struct {
	row    int
	kind   schedule.Kind
	sentAt string
}

type retryCall struct {
	row   int
	kind  schedule.Kind
	retry int
}

// fakeRepo keeps records in memory and applies writes to them, like a real store would.
type fakeRepo struct {
	mu       sync.Mutex
	records  []*schedule.Record
	listErr  error
	writeErr error
	sent     []sentCall
	retries  []retryCall
}

func (f *fakeRepo) ListRecords(_ context.Context) ([]*schedule.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]*schedule.Record, 0, len(f.records))
	for _, r := range f.records {
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeRepo) find(row int) *schedule.Record {
	for _, r := range f.records {
		if r.Row == row {
			return r
		}
	}
	return nil
}

func (f *fakeRepo) MarkSent(_ context.Context, row int, kind schedule.Kind, sentAt string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentCall{row: row, kind: kind, sentAt: sentAt})
	if f.writeErr != nil {
		return f.writeErr
	}
	r := f.find(row)
	st := r.State(kind)
	st.Sent, st.SentAt = true, sentAt
	r.SetState(kind, st)
	return nil
}

func (f *fakeRepo) SetRetryCount(_ context.Context, row int, kind schedule.Kind, retry int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retries = append(f.retries, retryCall{row: row, kind: kind, retry: retry})
	if f.writeErr != nil {
		return f.writeErr
	}
	r := f.find(row)
	st := r.State(kind)
	st.RetryCount = retry
	r.SetState(kind, st)
	return nil
}

type fakeGateway struct {
	err      error
	messages []gateway.Message
}

func (f *fakeGateway) Send(_ context.Context, msg gateway.Message) error {
	f.messages = append(f.messages, msg)
	return f.err
}

type fakeAlerter struct {
	texts []string
}

func (f *fakeAlerter) Notify(_ context.Context, text string) error {
	f.texts = append(f.texts, text)
	return nil
}

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}
