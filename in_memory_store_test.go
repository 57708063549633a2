package queuectl

import (
	"sync"
	"testing"
	"time"
)

func TestInMemoryStoreClaimOldestFirst(t *testing.T) {
	st := NewInMemoryStore()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"first", "second", "third"} {
		ts := base.Add(time.Duration(i) * time.Second).UnixNano()
		job := &Job{ID: id, Command: "true", State: Pending, RunAt: ts, Created: ts, Updated: ts}
		if err := st.Create(job); err != nil {
			t.Fatalf("Create failed with %v", err)
		}
	}

	for _, want := range []string{"first", "second", "third"} {
		job, err := st.Claim()
		if err != nil {
			t.Fatalf("Claim failed with %v", err)
		}
		if job == nil {
			t.Fatal("Claim returned no job")
		}
		if have := job.ID; have != want {
			t.Fatalf("claimed %q, want %q", have, want)
		}
	}

	job, err := st.Claim()
	if err != nil {
		t.Fatalf("Claim failed with %v", err)
	}
	if job != nil {
		t.Fatalf("claimed %q from an empty queue", job.ID)
	}
}

func TestInMemoryStoreClaimSkipsFutureRunAt(t *testing.T) {
	st := NewInMemoryStore()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	st.nowFn = func() time.Time { return now }

	job := &Job{
		ID:      "later",
		Command: "true",
		State:   Pending,
		RunAt:   now.Add(time.Minute).UnixNano(),
		Created: now.UnixNano(),
	}
	if err := st.Create(job); err != nil {
		t.Fatalf("Create failed with %v", err)
	}

	claimed, err := st.Claim()
	if err != nil {
		t.Fatalf("Claim failed with %v", err)
	}
	if claimed != nil {
		t.Fatalf("claimed %q before its run time", claimed.ID)
	}

	// once the clock passes RunAt the job becomes eligible
	st.nowFn = func() time.Time { return now.Add(2 * time.Minute) }
	claimed, err = st.Claim()
	if err != nil {
		t.Fatalf("Claim failed with %v", err)
	}
	if claimed == nil {
		t.Fatal("Claim returned no job")
	}
	if have, want := claimed.ID, "later"; have != want {
		t.Fatalf("claimed %q, want %q", have, want)
	}
}

func TestInMemoryStoreClaimMarksProcessing(t *testing.T) {
	st := NewInMemoryStore()
	now := time.Now().UnixNano()
	job := &Job{ID: "1", Command: "true", State: Pending, RunAt: now, Created: now}
	if err := st.Create(job); err != nil {
		t.Fatalf("Create failed with %v", err)
	}

	claimed, err := st.Claim()
	if err != nil {
		t.Fatalf("Claim failed with %v", err)
	}
	// the claim returns the row as it was selected
	if have, want := claimed.State, Pending; have != want {
		t.Fatalf("claimed State = %q, want %q", have, want)
	}
	stored, err := st.Lookup("1")
	if err != nil {
		t.Fatalf("Lookup failed with %v", err)
	}
	if have, want := stored.State, Processing; have != want {
		t.Fatalf("stored State = %q, want %q", have, want)
	}
}

func TestInMemoryStoreConcurrentClaimSingleWinner(t *testing.T) {
	st := NewInMemoryStore()
	now := time.Now().UnixNano()
	job := &Job{ID: "contended", Command: "true", State: Pending, RunAt: now, Created: now}
	if err := st.Create(job); err != nil {
		t.Fatalf("Create failed with %v", err)
	}

	const n = 16
	var wg sync.WaitGroup
	claims := make(chan *Job, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, err := st.Claim()
			if err != nil {
				t.Errorf("Claim failed with %v", err)
				return
			}
			if job != nil {
				claims <- job
			}
		}()
	}
	wg.Wait()
	close(claims)

	var winners int
	for range claims {
		winners++
	}
	if have, want := winners, 1; have != want {
		t.Fatalf("winners = %d, want %d", have, want)
	}
}

func TestInMemoryStoreLookupNotFound(t *testing.T) {
	st := NewInMemoryStore()
	if _, err := st.Lookup("missing"); err != ErrNotFound {
		t.Fatalf("Lookup = %v, want %v", err, ErrNotFound)
	}
}

func TestInMemoryStoreUpdateStateNotFound(t *testing.T) {
	st := NewInMemoryStore()
	if err := st.UpdateState("missing", Failed); err != ErrNotFound {
		t.Fatalf("UpdateState = %v, want %v", err, ErrNotFound)
	}
}

func TestInMemoryStoreRetryDead(t *testing.T) {
	st := NewInMemoryStore()
	now := time.Now().UnixNano()
	if err := st.Create(&Job{ID: "dead", Command: "false", State: Dead, Attempts: 3, MaxRetries: 3, Created: now}); err != nil {
		t.Fatalf("Create failed with %v", err)
	}
	if err := st.Create(&Job{ID: "alive", Command: "true", State: Pending, Created: now}); err != nil {
		t.Fatalf("Create failed with %v", err)
	}

	if err := st.RetryDead("missing"); err != ErrNotFound {
		t.Fatalf("RetryDead = %v, want %v", err, ErrNotFound)
	}
	// only jobs in the DLQ can be retried
	if err := st.RetryDead("alive"); err != ErrNotFound {
		t.Fatalf("RetryDead = %v, want %v", err, ErrNotFound)
	}

	if err := st.RetryDead("dead"); err != nil {
		t.Fatalf("RetryDead failed with %v", err)
	}
	job, err := st.Lookup("dead")
	if err != nil {
		t.Fatalf("Lookup failed with %v", err)
	}
	if have, want := job.State, Pending; have != want {
		t.Fatalf("State = %q, want %q", have, want)
	}
	if have, want := job.Attempts, 0; have != want {
		t.Fatalf("Attempts = %d, want %d", have, want)
	}
}

func TestInMemoryStoreListSortedByCreated(t *testing.T) {
	st := NewInMemoryStore()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"c", "a", "b"} {
		ts := base.Add(time.Duration(len(id)+i) * time.Second).UnixNano()
		if err := st.Create(&Job{ID: id, Command: "true", State: Pending, Created: ts}); err != nil {
			t.Fatalf("Create failed with %v", err)
		}
	}
	jobs, err := st.List(Pending)
	if err != nil {
		t.Fatalf("List failed with %v", err)
	}
	if have, want := len(jobs), 3; have != want {
		t.Fatalf("len(jobs) = %d, want %d", have, want)
	}
	for i := 1; i < len(jobs); i++ {
		if jobs[i].Created < jobs[i-1].Created {
			t.Fatalf("jobs out of order: %q before %q", jobs[i-1].ID, jobs[i].ID)
		}
	}
}

func TestInMemoryStoreStats(t *testing.T) {
	st := NewInMemoryStore()
	states := []string{Pending, Pending, Processing, Completed, Dead, Dead, Dead, Failed}
	base := time.Now().UnixNano()
	for i, state := range states {
		job := &Job{ID: string(rune('a' + i)), Command: "true", State: state, Created: base + int64(i)}
		if err := st.Create(job); err != nil {
			t.Fatalf("Create failed with %v", err)
		}
	}
	stats, err := st.Stats()
	if err != nil {
		t.Fatalf("Stats failed with %v", err)
	}
	want := &Stats{Pending: 2, Processing: 1, Completed: 1, Dead: 3, Failed: 1}
	if *stats != *want {
		t.Fatalf("Stats = %+v, want %+v", stats, want)
	}
}

func TestInMemoryStoreConfig(t *testing.T) {
	st := NewInMemoryStore()

	// missing keys are an error, never a default
	if _, err := st.GetConfig(ConfigMaxRetries); err != ErrNotFound {
		t.Fatalf("GetConfig = %v, want %v", err, ErrNotFound)
	}

	if err := st.Start(); err != nil {
		t.Fatalf("Start failed with %v", err)
	}
	v, err := st.GetConfig(ConfigMaxRetries)
	if err != nil {
		t.Fatalf("GetConfig failed with %v", err)
	}
	if have, want := v, "3"; have != want {
		t.Fatalf("GetConfig = %q, want %q", have, want)
	}

	if err := st.SetConfig(ConfigBackoffBase, "5"); err != nil {
		t.Fatalf("SetConfig failed with %v", err)
	}
	v, err = st.GetConfig(ConfigBackoffBase)
	if err != nil {
		t.Fatalf("GetConfig failed with %v", err)
	}
	if have, want := v, "5"; have != want {
		t.Fatalf("GetConfig = %q, want %q", have, want)
	}

	// Start must not overwrite explicit values
	if err := st.Start(); err != nil {
		t.Fatalf("Start failed with %v", err)
	}
	v, err = st.GetConfig(ConfigBackoffBase)
	if err != nil {
		t.Fatalf("GetConfig failed with %v", err)
	}
	if have, want := v, "5"; have != want {
		t.Fatalf("GetConfig = %q, want %q", have, want)
	}
}
