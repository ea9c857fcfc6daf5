package event

import (
	"context"
	"errors"
	"testing"
	"time"
)

type recordingSink struct {
	appendErr error
	notifyErr error
	appended  int
	notified  int
}

func (s *recordingSink) Append(context.Context, TranscriptEntry) error {
	s.appended++
	return s.appendErr
}

func (s *recordingSink) Notify(context.Context, SessionEnded) error {
	s.notified++
	return s.notifyErr
}

func TestMultiSinkDeliversToAll(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	m := MultiSink{a, b}

	if err := m.Append(context.Background(), TranscriptEntry{SessionID: "s1"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := m.Notify(context.Background(), SessionEnded{SessionID: "s1", EndedAt: time.Now()}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if a.appended != 1 || b.appended != 1 || a.notified != 1 || b.notified != 1 {
		t.Errorf("delivery counts: a=%+v b=%+v", a, b)
	}
}

func TestMultiSinkFailureDoesNotStopFanout(t *testing.T) {
	boom := errors.New("boom")
	a := &recordingSink{appendErr: boom, notifyErr: boom}
	b := &recordingSink{}
	m := MultiSink{a, b}

	if err := m.Append(context.Background(), TranscriptEntry{}); !errors.Is(err, boom) {
		t.Errorf("Append err = %v, want wrapped boom", err)
	}
	if b.appended != 1 {
		t.Error("later sink skipped after earlier failure")
	}

	if err := m.Notify(context.Background(), SessionEnded{}); !errors.Is(err, boom) {
		t.Errorf("Notify err = %v, want wrapped boom", err)
	}
	if b.notified != 1 {
		t.Error("later sink skipped after earlier failure")
	}
}

func TestEmptyMultiSink(t *testing.T) {
	var m MultiSink
	if err := m.Append(context.Background(), TranscriptEntry{}); err != nil {
		t.Errorf("Append on empty sink = %v, want nil", err)
	}
	if err := m.Notify(context.Background(), SessionEnded{}); err != nil {
		t.Errorf("Notify on empty sink = %v, want nil", err)
	}
}
