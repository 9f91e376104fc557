package ledger

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"lexie-server/api/internal/types"
)

func fixedClock(s *Store) func() {
	t := time.UnixMilli(1_700_000_000_000)
	s.now = func() time.Time { return t }
	return func() { t = t.Add(time.Millisecond) }
}

func TestLifecycle(t *testing.T) {
	s := New(0)
	s.Create("a")
	if r, _ := s.Get("a"); r.Stage != StageStarted {
		t.Fatalf("stage=%s", r.Stage)
	}
	s.Advance("a", StageTranscribing)
	s.Advance("a", StageClassifying)
	res := &types.Result{Title: "x"}
	s.Complete("a", res)

	r, ok := s.Get("a")
	if !ok || r.Stage != StageCompleted || r.Result != res {
		t.Fatalf("record=%+v", r)
	}
	got, ok := s.Result("a")
	if !ok || got.Title != "x" {
		t.Fatal("result view")
	}
}

func TestAdvanceIsUpsertAndKeepsResult(t *testing.T) {
	s := New(0)
	s.Advance("new", StageGenerating)
	if r, ok := s.Get("new"); !ok || r.Stage != StageGenerating {
		t.Fatalf("advance should create: %+v", r)
	}

	res := &types.Result{Title: "kept"}
	s.Complete("new", res)
	s.Advance("new", StageGenerating)
	if r, _ := s.Get("new"); r.Result != res {
		t.Fatal("advance dropped result")
	}
}

func TestFail(t *testing.T) {
	s := New(0)
	s.Create("e")
	s.Fail("e", errors.New("upstream"))
	r, _ := s.Get("e")
	if r.Stage != StageError || r.Error != "upstream" {
		t.Fatalf("%+v", r)
	}
	if _, ok := s.Result("e"); ok {
		t.Fatal("failed record has no result")
	}
}

func TestUnknown(t *testing.T) {
	if _, ok := New(0).Get("nope"); ok {
		t.Fatal("expected miss")
	}
}

func TestEvictsOldest(t *testing.T) {
	s := New(2)
	tick := fixedClock(s)
	s.Create("a")
	tick()
	s.Create("b")
	tick()
	s.Advance("a", StageClassifying) // a теперь свежее b
	tick()
	s.Create("c")

	if s.Len() != 2 {
		t.Fatalf("len=%d", s.Len())
	}
	if _, ok := s.Get("b"); ok {
		t.Fatal("b should be evicted")
	}
	for _, id := range []string{"a", "c"} {
		if _, ok := s.Get(id); !ok {
			t.Fatalf("%s evicted", id)
		}
	}
}

func TestStatusReadDoesNotKeepRecordAlive(t *testing.T) {
	s := New(2)
	tick := fixedClock(s)
	s.Create("a")
	tick()
	s.Create("b")
	for i := 0; i < 5; i++ {
		s.Get("a") // опрос статуса
	}
	tick()
	s.Create("c")

	if _, ok := s.Get("a"); ok {
		t.Fatal("a should be evicted: reads must not refresh it")
	}
	if _, ok := s.Get("b"); !ok {
		t.Fatal("b evicted")
	}
}

func TestUnboundedKeepsEverything(t *testing.T) {
	s := New(0)
	for i := 0; i < 1000; i++ {
		s.Create(fmt.Sprintf("id-%d", i))
	}
	if s.Len() != 1000 {
		t.Fatalf("len=%d", s.Len())
	}
}

func TestConcurrentAccess(t *testing.T) {
	s := New(50)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("id-%d", i)
			s.Create(id)
			s.Advance(id, StageTranscribing)
			s.Get(id)
			s.Complete(id, &types.Result{ProcessingID: id})
		}(i)
	}
	wg.Wait()
	if s.Len() > 50 {
		t.Fatalf("len=%d over capacity", s.Len())
	}
}
