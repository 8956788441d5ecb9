package registry

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"garagelive/internal/core/domain"
)

func testHub(t *testing.T) (*Hub, *Registry) {
	t.Helper()
	r := NewRegistry()
	return NewHub(slog.Default(), r), r
}

func eventNames(t *testing.T, msgs [][]byte) []string {
	t.Helper()
	names := make([]string, 0, len(msgs))
	for _, m := range msgs {
		var out domain.Outbound
		if err := json.Unmarshal(m, &out); err != nil {
			t.Fatalf("unmarshal outbound: %v", err)
		}
		names = append(names, out.Event)
	}
	return names
}

func TestEmitReachesOnlyCurrentMembers(t *testing.T) {
	hub, r := testHub(t)
	a := newFakeClient("a")
	b := newFakeClient("b")
	r.Register(a)
	r.Register(b)
	r.Join(a, "appointment:1")
	r.Join(b, "appointment:2")

	hub.Emit(context.Background(), "appointment:1", domain.Outbound{Event: "new_message"})

	if n := len(a.messages()); n != 1 {
		t.Errorf("member of target room: got %d messages, want 1", n)
	}
	if n := len(b.messages()); n != 0 {
		t.Errorf("member of other room: got %d messages, want 0", n)
	}
}

func TestLateJoinerGetsNoBacklog(t *testing.T) {
	hub, r := testHub(t)
	late := newFakeClient("late")
	r.Register(late)

	hub.Emit(context.Background(), "appointment:1", domain.Outbound{Event: "new_message"})
	r.Join(late, "appointment:1")

	if n := len(late.messages()); n != 0 {
		t.Fatalf("late joiner received %d historical events, want 0", n)
	}
}

func TestEmitExceptSkipsSender(t *testing.T) {
	hub, r := testHub(t)
	sender := newFakeClient("sender")
	other := newFakeClient("other")
	r.Register(sender)
	r.Register(other)
	r.Join(sender, "appointment:1")
	r.Join(other, "appointment:1")

	hub.EmitExcept(context.Background(), "appointment:1", sender.ConnectionID(),
		domain.Outbound{Event: "user_typing"})

	if n := len(sender.messages()); n != 0 {
		t.Errorf("sender received %d events, want 0", n)
	}
	if n := len(other.messages()); n != 1 {
		t.Errorf("other member received %d events, want 1", n)
	}
}

func TestEmitOrderingPreserved(t *testing.T) {
	hub, r := testHub(t)
	c := newFakeClient("a")
	r.Register(c)
	r.Join(c, "appointment:1")

	hub.Emit(context.Background(), "appointment:1", domain.Outbound{Event: "ev1"})
	hub.Emit(context.Background(), "appointment:1", domain.Outbound{Event: "ev2"})

	got := eventNames(t, c.messages())
	if len(got) != 2 || got[0] != "ev1" || got[1] != "ev2" {
		t.Fatalf("delivery order: got %v, want [ev1 ev2]", got)
	}
}

func TestEmitBestEffortPerConnection(t *testing.T) {
	hub, r := testHub(t)
	dead := newFakeClient("dead")
	dead.failSend = true
	live := newFakeClient("live")
	r.Register(dead)
	r.Register(live)
	r.Join(dead, "appointment:1")
	r.Join(live, "appointment:1")

	hub.Emit(context.Background(), "appointment:1", domain.Outbound{Event: "new_message"})

	if n := len(live.messages()); n != 1 {
		t.Fatalf("healthy member: got %d messages, want 1", n)
	}
}

func TestConvenienceTargetsRoomKeys(t *testing.T) {
	hub, r := testHub(t)
	c := newFakeClient("a")
	r.Register(c)
	r.Join(c, domain.UserRoom("u1"))
	r.Join(c, domain.RoleRoom(domain.RoleAdmin))
	r.Join(c, domain.AppointmentRoom(42))
	r.Join(c, domain.BroadcastRoom)

	ctx := context.Background()
	hub.EmitToUser(ctx, "u1", domain.Outbound{Event: "notification"})
	hub.EmitToRole(ctx, domain.RoleAdmin, domain.Outbound{Event: "low_stock_alert"})
	hub.EmitToAppointment(ctx, 42, domain.Outbound{Event: "progress_update"})
	hub.Broadcast(ctx, domain.Outbound{Event: "service_bay_status_update"})

	got := eventNames(t, c.messages())
	want := []string{"notification", "low_stock_alert", "progress_update", "service_bay_status_update"}
	if len(got) != len(want) {
		t.Fatalf("events: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

func TestEmitOnUninitializedHubPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic from uninitialized hub")
		}
	}()
	var h *Hub
	h.Emit(context.Background(), "appointment:1", domain.Outbound{Event: "new_message"})
}
