package broadcast

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	ledger "verdant-cloud/internal/ledger/domain"
)

type stubAppender struct {
	nextID int64
	err    error
	last   ledger.AppendInput
}

func (s *stubAppender) Append(_ context.Context, in ledger.AppendInput) (ledger.Event, error) {
	s.last = in
	if s.err != nil {
		return ledger.Event{}, s.err
	}
	s.nextID++
	return ledger.Event{
		EventID:    s.nextID,
		ZoneID:     in.ZoneID,
		Type:       in.Type,
		EntityType: in.EntityType,
		EntityID:   in.EntityID,
	}, nil
}

type capturePublisher struct {
	events []ledger.Event
}

func (p *capturePublisher) Publish(event ledger.Event) {
	p.events = append(p.events, event)
}

type failingForwarder struct {
	calls int
}

func (f *failingForwarder) Forward(ledger.Event) error {
	f.calls++
	return errors.New("broker unreachable")
}

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestRecordAppendsThenPublishes(t *testing.T) {
	store := &stubAppender{}
	publisher := &capturePublisher{}
	recorder, err := NewRecorder(store, publisher, nil, discardLogger())
	if err != nil {
		t.Fatal(err)
	}

	event, err := recorder.Record(context.Background(), ledger.AppendInput{
		ZoneID: "zone-1", Type: ledger.TypeCommandIssued, EntityType: "command", EntityID: "cmd-1",
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if event.EventID != 1 {
		t.Fatalf("event_id = %d", event.EventID)
	}
	if len(publisher.events) != 1 || publisher.events[0].EventID != 1 {
		t.Fatal("event not pushed with its assigned id")
	}
}

func TestRecordAppendFailureSkipsFanOut(t *testing.T) {
	store := &stubAppender{err: errors.New("insert failed")}
	publisher := &capturePublisher{}
	recorder, _ := NewRecorder(store, publisher, nil, discardLogger())

	if _, err := recorder.Record(context.Background(), ledger.AppendInput{
		ZoneID: "zone-1", Type: ledger.TypeCommandIssued, EntityType: "command", EntityID: "cmd-1",
	}); err == nil {
		t.Fatal("expected append error")
	}
	if len(publisher.events) != 0 {
		t.Fatal("failed append must not fan out")
	}
}

func TestRecordSwallowsForwarderFailure(t *testing.T) {
	store := &stubAppender{}
	forwarder := &failingForwarder{}
	recorder, _ := NewRecorder(store, &capturePublisher{}, forwarder, discardLogger())

	event, err := recorder.Record(context.Background(), ledger.AppendInput{
		ZoneID: "zone-1", Type: ledger.TypeAlertRaised, EntityType: "alert", EntityID: "alert-1",
	})
	if err != nil {
		t.Fatalf("forward failure must not fail the record: %v", err)
	}
	if event.EventID != 1 {
		t.Fatalf("event_id = %d", event.EventID)
	}
	if forwarder.calls != 1 {
		t.Fatalf("forwarder calls = %d", forwarder.calls)
	}
}
