package utils

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestKeySetNoDuplicates(t *testing.T) {
	s := NewKeySet()

	added := s.Add(JoinKey("Acme Co", "CSV Import"))
	if !added {
		t.Error("first Add should return true")
	}

	added = s.Add(JoinKey("Acme Co", "CSV Import"))
	if added {
		t.Error("second Add of same key should return false")
	}

	if !s.Add(JoinKey("Acme Co", "Flippa")) {
		t.Error("Add of a different key should return true")
	}
}

func TestJoinKeyKeepsPartsDistinct(t *testing.T) {
	if JoinKey("a,b", "c") == JoinKey("a", "b,c") {
		t.Error("JoinKey should not collapse differently split parts")
	}
}

func TestKeySetConcurrency(t *testing.T) {
	s := NewKeySet()
	var added int64
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Add("https://example.com/same") {
				atomic.AddInt64(&added, 1)
			}
		}()
	}
	wg.Wait()

	if added != 1 {
		t.Errorf("expected exactly 1 successful add, got %d", added)
	}
}

func TestLimiterBoundsHolders(t *testing.T) {
	l := NewLimiter(2)
	if !l.TryAcquire() || !l.TryAcquire() {
		t.Fatal("first two TryAcquire calls should succeed")
	}
	if l.TryAcquire() {
		t.Error("third TryAcquire should fail while two slots are held")
	}
	if l.InFlight() != 2 {
		t.Errorf("InFlight: got %d, want 2", l.InFlight())
	}

	l.Release()
	if !l.TryAcquire() {
		t.Error("TryAcquire after Release should succeed")
	}
}

func TestLimiterMinimumOne(t *testing.T) {
	l := NewLimiter(0)
	if !l.TryAcquire() {
		t.Error("NewLimiter(0) should still admit one holder")
	}
}
