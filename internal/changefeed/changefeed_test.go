package changefeed

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"Courier/internal/apperr"
	"Courier/internal/constants"
	"Courier/internal/models"

	"github.com/lib/pq"
)

type recordingSink struct {
	name   string
	events []Event
	err    error
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Handle(ctx context.Context, ev Event) error {
	s.events = append(s.events, ev)
	return s.err
}

const payload = `{"table":"delivery_requests","op":"INSERT","id":"3f2b8c2e-5b1a-4f5e-9d3c-2a7b6c1d0e9f","tenant_id":"t1","status":"available"}`

func TestDispatchFansOutDespiteSinkFailure(t *testing.T) {
	failing := &recordingSink{name: "failing", err: errors.New("boom")}
	ok := &recordingSink{name: "ok"}
	r := NewRelay(failing, ok)

	if err := r.Dispatch(context.Background(), payload); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(failing.events) != 1 || len(ok.events) != 1 {
		t.Fatalf("events: failing=%d ok=%d", len(failing.events), len(ok.events))
	}
	if ok.events[0].TenantID != "t1" || ok.events[0].Status != constants.STATUS_AVAILABLE {
		t.Fatalf("unexpected event %+v", ok.events[0])
	}

	if err := r.Dispatch(context.Background(), "not json"); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}

func TestRunSkipsReconnectMarker(t *testing.T) {
	sink := &recordingSink{name: "rec"}
	r := NewRelay(sink)

	ch := make(chan *pq.Notification, 3)
	ch <- nil
	ch <- &pq.Notification{Channel: constants.CHANGEFEED_CHANNEL, Extra: payload}
	close(ch)

	r.Run(context.Background(), ch)
	if len(sink.events) != 1 {
		t.Fatalf("events = %d, want 1", len(sink.events))
	}
}

type fakePublisher struct {
	exchange, key string
	body          []byte
	headers       map[string]any
}

func (p *fakePublisher) Publish(ctx context.Context, exchange, key string, body []byte, headers map[string]any) error {
	p.exchange, p.key, p.body, p.headers = exchange, key, body, headers
	return nil
}

func TestAMQPSink(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewAMQPSink(pub)
	ev := Event{Table: "delivery_requests", Op: "UPDATE", ID: "x", TenantID: "t1", Status: "claimed"}

	if err := sink.Handle(context.Background(), ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if pub.exchange != constants.CHANGEFEED_EXCHANGE || pub.key != "delivery_requests.update" {
		t.Fatalf("published to %s/%s", pub.exchange, pub.key)
	}
	var got Event
	if err := json.Unmarshal(pub.body, &got); err != nil || got != ev {
		t.Fatalf("body = %s (%v)", pub.body, err)
	}
	if pub.headers["x-tenant-id"] != "t1" {
		t.Fatalf("headers = %v", pub.headers)
	}
}

type fakeSender struct {
	chatID int64
	text   string
	calls  int
}

func (s *fakeSender) SendText(chatID int64, text string) error {
	s.chatID, s.text = chatID, text
	s.calls++
	return nil
}

type chats map[string]int64

func (c chats) DriverChatID(tenantID string) int64 { return c[tenantID] }

type deliveries map[string]*models.DeliveryRequest

func (d deliveries) Get(ctx context.Context, tenantID, id string) (*models.DeliveryRequest, error) {
	r, ok := d[id]
	if !ok || r.TenantID != tenantID {
		return nil, apperr.NotFound("заявка", id)
	}
	return r, nil
}

func TestDriverNotifier(t *testing.T) {
	id := "3f2b8c2e-5b1a-4f5e-9d3c-2a7b6c1d0e9f"
	store := deliveries{id: {
		ID: id, TenantID: "t1", Status: constants.STATUS_AVAILABLE,
		PickupAddress: "1 Market_St", DeliveryAddress: "42 Elm St", PaymentMethod: "cash",
	}}
	sender := &fakeSender{}
	n := NewDriverNotifier(sender, chats{"t1": -100500}, store, "https://acme.example.com")
	ctx := context.Background()

	if err := n.Handle(ctx, Event{Table: "delivery_requests", Op: "INSERT", ID: id, TenantID: "t1", Status: "available"}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if sender.calls != 1 || sender.chatID != -100500 {
		t.Fatalf("calls=%d chat=%d", sender.calls, sender.chatID)
	}
	if !strings.Contains(sender.text, `1 Market\_St`) || !strings.Contains(sender.text, "/track/"+id) {
		t.Fatalf("unexpected text %q", sender.text)
	}

	// не та таблица, не тот статус, арендатор без чата
	n.Handle(ctx, Event{Table: "staff", Op: "UPDATE", ID: "d1", TenantID: "t1"})
	n.Handle(ctx, Event{Table: "delivery_requests", Op: "UPDATE", ID: id, TenantID: "t1", Status: "claimed"})
	n.Handle(ctx, Event{Table: "delivery_requests", Op: "INSERT", ID: id, TenantID: "t2", Status: "available"})
	if sender.calls != 1 {
		t.Fatalf("calls = %d, want 1", sender.calls)
	}

	// заявку успели забрать
	store[id].Status = constants.STATUS_CLAIMED
	if err := n.Handle(ctx, Event{Table: "delivery_requests", Op: "UPDATE", ID: id, TenantID: "t1", Status: "available"}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if sender.calls != 1 {
		t.Fatalf("claimed delivery must not be announced, calls=%d", sender.calls)
	}
}
