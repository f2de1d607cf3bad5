package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samirrijal/vehiclenav/internal/core/domain"
)

func TestChannel_FIFO(t *testing.T) {
	ch := Bounded[int](4)
	for i := 1; i <= 3; i++ {
		if err := ch.TrySend(i); err != nil {
			t.Fatalf("TrySend(%d): %v", i, err)
		}
	}
	for want := 1; want <= 3; want++ {
		got, ok, err := ch.TryRecv()
		if err != nil || !ok || got != want {
			t.Fatalf("TryRecv = (%d, %v, %v), want %d", got, ok, err, want)
		}
	}
	if _, ok, err := ch.TryRecv(); ok || err != nil {
		t.Fatalf("empty channel: ok=%v err=%v", ok, err)
	}
}

func TestChannel_BoundedBlocksWhenFull(t *testing.T) {
	ch := Bounded[string](2)
	ctx := context.Background()
	if err := ch.Send(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if err := ch.Send(ctx, "b"); err != nil {
		t.Fatal(err)
	}

	if err := ch.TrySend("c"); !errors.Is(err, domain.ErrQueueFull) {
		t.Fatalf("TrySend on full channel = %v, want ErrQueueFull", err)
	}

	sent := make(chan error, 1)
	go func() { sent <- ch.Send(ctx, "c") }()

	select {
	case err := <-sent:
		t.Fatalf("third send returned early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	if v, _ := ch.Recv(ctx); v != "a" {
		t.Fatalf("Recv = %q, want a", v)
	}
	select {
	case err := <-sent:
		if err != nil {
			t.Fatalf("unblocked send: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("send still blocked after a slot freed up")
	}
}

func TestChannel_SendHonorsContext(t *testing.T) {
	ch := Bounded[int](1)
	_ = ch.TrySend(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := ch.Send(ctx, 2); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Send = %v, want deadline exceeded", err)
	}
}

func TestChannel_UnboundedNeverFull(t *testing.T) {
	ch := Unbounded[int]()
	for i := 0; i < 1000; i++ {
		if err := ch.TrySend(i); err != nil {
			t.Fatalf("TrySend(%d): %v", i, err)
		}
	}
	if ch.Len() != 1000 || ch.Cap() != 0 {
		t.Fatalf("len=%d cap=%d", ch.Len(), ch.Cap())
	}
}

func TestChannel_ReceiverGone(t *testing.T) {
	ch := Bounded[int](1)
	_ = ch.TrySend(1)

	left := ch.CloseReceiver()
	if len(left) != 1 {
		t.Errorf("CloseReceiver returned %v, want one queued item", left)
	}
	if err := ch.TrySend(2); !errors.Is(err, domain.ErrSendDisconnected) {
		t.Errorf("TrySend = %v, want ErrSendDisconnected", err)
	}
	if err := ch.Send(context.Background(), 2); !errors.Is(err, domain.ErrSendDisconnected) {
		t.Errorf("Send = %v, want ErrSendDisconnected", err)
	}
}

func TestChannel_ReceiverGoneUnblocksSender(t *testing.T) {
	ch := Bounded[int](1)
	_ = ch.TrySend(1)

	sent := make(chan error, 1)
	go func() { sent <- ch.Send(context.Background(), 2) }()

	time.Sleep(10 * time.Millisecond)
	ch.CloseReceiver()

	select {
	case err := <-sent:
		if !domain.IsDisconnected(err) {
			t.Fatalf("Send = %v, want disconnected", err)
		}
	case <-time.After(time.Second):
		t.Fatal("blocked sender was not released")
	}
}

func TestChannel_SenderGoneDrainsThenDisconnects(t *testing.T) {
	ch := Unbounded[int]()
	_ = ch.TrySend(7)
	ch.CloseSender()

	v, err := ch.Recv(context.Background())
	if err != nil || v != 7 {
		t.Fatalf("Recv = (%d, %v), want queued item first", v, err)
	}
	if _, err := ch.Recv(context.Background()); !errors.Is(err, domain.ErrRecvDisconnected) {
		t.Fatalf("Recv = %v, want ErrRecvDisconnected", err)
	}
	if _, _, err := ch.TryRecv(); !errors.Is(err, domain.ErrRecvDisconnected) {
		t.Fatalf("TryRecv = %v, want ErrRecvDisconnected", err)
	}
}

func TestChannel_RecvWakesOnSend(t *testing.T) {
	ch := Bounded[int](2)
	got := make(chan int, 1)
	go func() {
		v, _ := ch.Recv(context.Background())
		got <- v
	}()

	time.Sleep(10 * time.Millisecond)
	_ = ch.TrySend(42)

	select {
	case v := <-got:
		if v != 42 {
			t.Fatalf("Recv = %d, want 42", v)
		}
	case <-time.After(time.Second):
		t.Fatal("Recv did not wake up")
	}
}
