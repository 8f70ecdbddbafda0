package state

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestSetOverwritesPrior(t *testing.T) {
	m := NewMemoryManager()
	m.Set(1, Pending{Step: StepAwaitingOTP, Service: "snappfood", Phone: "09120000001"})
	m.Set(1, Pending{Step: StepAwaitingOTP, Service: "snappfood", Phone: "09120000002"})

	p, ok := m.Peek(1)
	if !ok {
		t.Fatal("expected pending state")
	}
	if p.Phone != "09120000002" {
		t.Fatalf("expected latest phone, got %s", p.Phone)
	}
}

func TestTakeConsumesExactlyOnce(t *testing.T) {
	m := NewMemoryManager()
	m.Set(7, Pending{Step: StepAwaitingOTP, Phone: "09120000003"})

	if _, ok := m.Take(7); !ok {
		t.Fatal("first take should succeed")
	}
	if _, ok := m.Take(7); ok {
		t.Fatal("second take should find nothing")
	}
	if m.InProgress(7) {
		t.Fatal("chat should no longer be in progress")
	}
}

func TestTakeIsAtomicUnderConcurrency(t *testing.T) {
	m := NewMemoryManager()
	const chats = 50
	for i := int64(0); i < chats; i++ {
		m.Set(i, Pending{Step: StepAwaitingOTP})
	}

	var wins atomic.Int64
	var wg sync.WaitGroup
	for i := int64(0); i < chats; i++ {
		for j := 0; j < 4; j++ {
			wg.Add(1)
			go func(chatID int64) {
				defer wg.Done()
				if _, ok := m.Take(chatID); ok {
					wins.Add(1)
				}
			}(i)
		}
	}
	wg.Wait()

	if wins.Load() != chats {
		t.Fatalf("expected exactly %d successful takes, got %d", chats, wins.Load())
	}
}

func TestClearAndIsolationBetweenChats(t *testing.T) {
	m := NewMemoryManager()
	m.Set(1, Pending{Step: StepAwaitingOTP, Phone: "a"})
	m.Set(2, Pending{Step: StepAwaitingOTP, Phone: "b"})

	m.Clear(1)
	if m.InProgress(1) {
		t.Fatal("chat 1 should be cleared")
	}
	if !m.InProgress(2) {
		t.Fatal("chat 2 should be untouched")
	}
}
