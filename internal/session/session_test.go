package session

import (
	"sync"
	"testing"
	"time"
)

func TestTouchGreetsOnFirstContactAndAfterSilence(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	s := New(10, time.Hour, WithClock(func() time.Time { return now }))

	if g := s.Touch("u"); g != GreetFirst {
		t.Fatalf("first contact = %v, want GreetFirst", g)
	}
	now = now.Add(4 * time.Minute)
	if g := s.Touch("u"); g != GreetNone {
		t.Fatalf("no greeting within five minutes, got %v", g)
	}
	now = now.Add(5*time.Minute + time.Second)
	if g := s.Touch("u"); g != GreetAgain {
		t.Fatalf("after five minutes of silence = %v, want GreetAgain", g)
	}
	if g := s.Touch("other"); g != GreetFirst {
		t.Fatalf("users are tracked independently, got %v", g)
	}
}

func TestEntriesExpire(t *testing.T) {
	t.Parallel()

	s := New(10, 50*time.Millisecond, WithGreetGap(time.Hour))
	s.Touch("u")
	if s.Len() != 1 {
		t.Fatalf("expected one tracked user, got %d", s.Len())
	}

	time.Sleep(200 * time.Millisecond)
	if s.Touch("u") != GreetFirst {
		t.Fatalf("expired user should be greeted as new")
	}
}

func TestSizeBoundEvictsOldest(t *testing.T) {
	t.Parallel()

	s := New(2, time.Hour)
	s.Touch("a")
	s.Touch("b")
	s.Touch("c")
	if s.Len() != 2 {
		t.Fatalf("expected size bound of 2, got %d", s.Len())
	}
	if s.Touch("a") != GreetFirst {
		t.Fatalf("evicted user should be greeted as new")
	}
}

func TestDuplicate(t *testing.T) {
	t.Parallel()
	s := New(10, time.Hour)

	if s.Duplicate("SM123") {
		t.Fatalf("first delivery is not a duplicate")
	}
	if !s.Duplicate("SM123") {
		t.Fatalf("retry must be flagged")
	}
	if s.Duplicate("") || s.Duplicate("") {
		t.Fatalf("empty ids are never duplicates")
	}
}

func TestPendingIsConsumedOnce(t *testing.T) {
	t.Parallel()
	s := New(10, time.Hour)

	if _, ok := s.PopPending("u"); ok {
		t.Fatalf("nothing pending yet")
	}
	s.SetPending("u", Pending{Action: ActionDeleteReminder, Positions: []int{1, 3}})
	if !s.HasPending("u") {
		t.Fatalf("pending not recorded")
	}
	p, ok := s.PopPending("u")
	if !ok || p.Action != ActionDeleteReminder || len(p.Positions) != 2 || p.Positions[1] != 3 {
		t.Fatalf("PopPending = %+v, %v", p, ok)
	}
	if s.HasPending("u") {
		t.Fatalf("pending must be cleared after pop")
	}

	s.SetPending("u", Pending{Action: ActionDeleteReminder})
	s.Forget("u")
	if s.HasPending("u") {
		t.Fatalf("Forget must clear pending state")
	}
}

func TestConcurrentTouch(t *testing.T) {
	t.Parallel()
	s := New(100, time.Hour)

	var wg sync.WaitGroup
	greetings := make(chan Greeting, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			greetings <- s.Touch("same")
		}()
	}
	wg.Wait()
	close(greetings)

	count := 0
	for g := range greetings {
		if g == GreetFirst {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("exactly one greeting expected, got %d", count)
	}
}
