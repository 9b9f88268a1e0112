package queue

import (
    "encoding/json"
    "os"
    "path/filepath"
    "strings"
    "testing"
)

func TestAuditConsumerHandle(t *testing.T) {
    dir := t.TempDir()
    c := NewAuditConsumer("", dir, nil)

    fin, _ := json.Marshal(OrderFinalizedEvent{
        EventID: "e1", OrderID: 10, RouteID: 3, UserID: 7,
        Trigger: "webhook", Seats: []uint32{1, 2}, FinalizedAt: "2024-05-01T10:00:00Z",
    })
    if err := c.Handle(FinalizedQueue, fin); err != nil {
        t.Fatalf("Handle finalized: %v", err)
    }
    chg, _ := json.Marshal(TicketChangedEvent{
        EventID: "e2", TicketID: 5, RouteID: 3, OrderID: 10, Action: ActionChangeSeat,
        FromSeat: 1, ToSeat: 4, Status: "paid", ChangedAt: "2024-05-01T10:05:00Z",
    })
    if err := c.Handle(TicketChangedQueue, chg); err != nil {
        t.Fatalf("Handle changed: %v", err)
    }

    raw, err := os.ReadFile(filepath.Join(dir, "booking.log"))
    if err != nil {
        t.Fatalf("read log: %v", err)
    }
    lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
    if len(lines) != 2 {
        t.Fatalf("lines = %d, want 2: %q", len(lines), raw)
    }
    want0 := "[2024-05-01T10:00:00Z] Order finalized | order_id=10 | route_id=3 | user_id=7 | trigger=webhook | seats=[1,2]"
    if lines[0] != want0 {
        t.Fatalf("line 0 = %q, want %q", lines[0], want0)
    }
    if !strings.Contains(lines[1], "Ticket change_seat | ticket_id=5") || !strings.Contains(lines[1], "seat=1->4") {
        t.Fatalf("line 1 = %q", lines[1])
    }
}

func TestAuditConsumerRejectsBadInput(t *testing.T) {
    c := NewAuditConsumer("", t.TempDir(), nil)
    if err := c.Handle(FinalizedQueue, []byte("{")); err == nil {
        t.Fatal("malformed body accepted")
    }
    if err := c.Handle("other.queue", []byte("{}")); err == nil {
        t.Fatal("unknown queue accepted")
    }
}

func TestSeatList(t *testing.T) {
    if got := seatList(nil); got != "[]" {
        t.Fatalf("seatList(nil) = %q", got)
    }
    if got := seatList([]uint32{3, 12}); got != "[3,12]" {
        t.Fatalf("seatList = %q", got)
    }
}
