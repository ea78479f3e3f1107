package broker

import (
	"context"
	"testing"
	"time"

	"sikuli-bot/src/contracts"
)

func receive(t *testing.T, ch <-chan Message) Message {
	t.Helper()
	select {
	case msg, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
	return Message{}
}

func TestInMemoryBroker_PublishSubscribe(t *testing.T) {
	b := NewInMemoryBroker(10)
	defer b.Close()

	ctx := context.Background()
	first, err := b.Subscribe(ctx, "runs", "tui")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	second, _ := b.Subscribe(ctx, "runs", "mcp")
	other, _ := b.Subscribe(ctx, "other", "tui")

	if err := b.Publish(ctx, "runs", "build-1", []byte("one")); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	b.Publish(ctx, "runs", "build-1", []byte("two"))

	for _, ch := range []<-chan Message{first, second} {
		m := receive(t, ch)
		if m.Key != "build-1" || string(m.Value) != "one" || m.Offset != 0 {
			t.Errorf("first message = %+v", m)
		}
		m = receive(t, ch)
		if string(m.Value) != "two" || m.Offset != 1 {
			t.Errorf("second message = %+v", m)
		}
	}

	select {
	case m := <-other:
		t.Errorf("unrelated topic received %+v", m)
	default:
	}
}

func TestInMemoryBroker_ContextCancel(t *testing.T) {
	b := NewInMemoryBroker(1)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := b.Subscribe(ctx, "runs", "g")
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}

	// Publishing after the subscriber left must not block or panic
	if err := b.Publish(context.Background(), "runs", "", []byte("x")); err != nil {
		t.Errorf("Publish() error = %v", err)
	}
}

func TestInMemoryBroker_FullSubscriberDoesNotBlock(t *testing.T) {
	b := NewInMemoryBroker(1)
	defer b.Close()

	ch, _ := b.Subscribe(context.Background(), "runs", "g")
	for i := 0; i < 5; i++ {
		if err := b.Publish(context.Background(), "runs", "", []byte{byte(i)}); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}
	if m := receive(t, ch); m.Value[0] != 0 {
		t.Errorf("kept message = %v, want first", m.Value)
	}
}

func TestInMemoryBroker_Close(t *testing.T) {
	b := NewInMemoryBroker(1)
	ch, _ := b.Subscribe(context.Background(), "runs", "g")

	if err := b.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, ok := <-ch; ok {
		t.Error("expected closed channel after Close")
	}
	if err := b.Publish(context.Background(), "runs", "", nil); err == nil {
		t.Error("Publish() after Close should fail")
	}
	if _, err := b.Subscribe(context.Background(), "runs", "g"); err == nil {
		t.Error("Subscribe() after Close should fail")
	}
	if err := b.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestPublishRunEvent(t *testing.T) {
	b := NewInMemoryBroker(4)
	defer b.Close()

	ch, _ := b.Subscribe(context.Background(), contracts.TopicRuns, "test")
	ev := contracts.RunEvent{
		RunID:     "run-1",
		Stage:     contracts.StageTest,
		Status:    contracts.StatusRunning,
		BuildName: "Geoscience ANALYST_v2.30_x64_GA-1_patch_2016-11-24-16-29_setup",
		Branch:    "GA-1_patch",
		Failures:  2,
	}
	if err := PublishRunEvent(context.Background(), b, ev); err != nil {
		t.Fatalf("PublishRunEvent() error = %v", err)
	}

	msg := receive(t, ch)
	if msg.Key != ev.BuildName {
		t.Errorf("Key = %q, want build name", msg.Key)
	}
	got, err := DecodeRunEvent(msg)
	if err != nil {
		t.Fatalf("DecodeRunEvent() error = %v", err)
	}
	if got.RunID != ev.RunID || got.Stage != ev.Stage || got.Failures != 2 {
		t.Errorf("decoded = %+v", got)
	}

	PublishRunEvent(context.Background(), b, contracts.RunEvent{RunID: "run-2", Stage: contracts.StageScan})
	if msg := receive(t, ch); msg.Key != "run-2" {
		t.Errorf("Key without build = %q, want run ID", msg.Key)
	}

	if _, err := DecodeRunEvent(Message{Value: []byte("{")}); err == nil {
		t.Error("DecodeRunEvent() should fail on bad JSON")
	}
}
