package session

import (
	"slices"
	"strconv"
	"sync"
	"testing"
	"time"
)

func TestRegistry_UpsertMergesFields(t *testing.T) {
	r := NewRegistry()
	now := time.Now()

	r.Upsert("c1", Fields{SessionID: String("s1"), GoalID: String("g1")})
	r.Upsert("c1", Fields{CurrentWeek: String("Week 2"), LastActivity: Time(now)})

	got, ok := r.Get("c1")
	if !ok {
		t.Fatal("Expected session c1 to exist")
	}
	if got.SessionID != "s1" || got.GoalID != "g1" {
		t.Errorf("Expected earlier fields to survive, got %+v", got)
	}
	if got.CurrentWeek != "Week 2" || !got.LastActivity.Equal(now) {
		t.Errorf("Expected later fields to be applied, got %+v", got)
	}
	if got.ConnectionID != "c1" {
		t.Errorf("Expected connection id c1, got %q", got.ConnectionID)
	}
}

func TestRegistry_UpsertLastWriteWins(t *testing.T) {
	r := NewRegistry()

	r.Upsert("c1", Fields{GoalID: String("g1")})
	r.Upsert("c1", Fields{GoalID: String("g2")})

	got, _ := r.Get("c1")
	if got.GoalID != "g2" {
		t.Errorf("Expected g2, got %q", got.GoalID)
	}
}

func TestRegistry_RemoveAndCount(t *testing.T) {
	r := NewRegistry()
	r.Upsert("c1", Fields{SessionID: String("s1")})
	r.Upsert("c2", Fields{SessionID: String("s2")})

	if r.Count() != 2 {
		t.Fatalf("Expected 2 sessions, got %d", r.Count())
	}

	if !r.Remove("c1") {
		t.Error("Expected first remove to report true")
	}
	if r.Remove("c1") {
		t.Error("Expected second remove to report false")
	}
	if r.Count() != 1 {
		t.Errorf("Expected 1 session, got %d", r.Count())
	}
	if _, ok := r.Get("c1"); ok {
		t.Error("Expected c1 to be gone")
	}
}

func TestRegistry_IdleSince(t *testing.T) {
	r := NewRegistry()
	now := time.Now()
	r.Upsert("old", Fields{LastActivity: Time(now.Add(-time.Hour))})
	r.Upsert("new", Fields{LastActivity: Time(now)})

	ids := r.IdleSince(now.Add(-time.Minute))
	if !slices.Equal(ids, []string{"old"}) {
		t.Errorf("Expected [old], got %v", ids)
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := "c" + strconv.Itoa(i)
			r.Upsert(id, Fields{SessionID: String(id)})
			r.Get(id)
			r.Count()
			if i%2 == 0 {
				r.Remove(id)
			}
		}(i)
	}
	wg.Wait()

	if r.Count() != 25 {
		t.Errorf("Expected 25 sessions, got %d", r.Count())
	}
}
