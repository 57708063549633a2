package mongodb

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/queuectl/queuectl"
)

// Integration tests require a running MongoDB server, e.g.
//
//	MONGODB_URL='localhost/queuectl_test' go test ./mongodb/...
func newTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("MONGODB_URL")
	if url == "" {
		t.Skip("MONGODB_URL is not set")
	}
	st, err := NewStore(url, SetCollectionName("queuectl_test_jobs"))
	if err != nil {
		t.Fatalf("NewStore failed with %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if err := st.Start(); err != nil {
		t.Fatalf("Start failed with %v", err)
	}
	// isolate test runs against a shared database
	if _, err := st.jobs.RemoveAll(nil); err != nil {
		t.Fatalf("cleanup failed with %v", err)
	}
	return st
}

func newTestJob(id string, ts int64) *queuectl.Job {
	return &queuectl.Job{
		ID:         id,
		Command:    "true",
		State:      queuectl.Pending,
		MaxRetries: 3,
		RunAt:      ts,
		Created:    ts,
		Updated:    ts,
	}
}

func TestMongoDBStoreCreateAndLookup(t *testing.T) {
	st := newTestStore(t)

	now := time.Now().UnixNano()
	job := newTestJob("1", now)
	job.Command = "echo hello"
	if err := st.Create(job); err != nil {
		t.Fatalf("Create failed with %v", err)
	}

	stored, err := st.Lookup("1")
	if err != nil {
		t.Fatalf("Lookup failed with %v", err)
	}
	if have, want := stored.Command, "echo hello"; have != want {
		t.Fatalf("Command = %q, want %q", have, want)
	}
	if have, want := stored.State, queuectl.Pending; have != want {
		t.Fatalf("State = %q, want %q", have, want)
	}

	if _, err := st.Lookup("missing"); !errors.Is(err, queuectl.ErrNotFound) {
		t.Fatalf("Lookup = %v, want %v", err, queuectl.ErrNotFound)
	}

	if err := st.Create(newTestJob("1", now)); !errors.Is(err, queuectl.ErrDuplicateID) {
		t.Fatalf("Create = %v, want %v", err, queuectl.ErrDuplicateID)
	}
}

func TestMongoDBStoreClaim(t *testing.T) {
	st := newTestStore(t)

	now := time.Now()
	if err := st.Create(newTestJob("newer", now.UnixNano())); err != nil {
		t.Fatalf("Create failed with %v", err)
	}
	if err := st.Create(newTestJob("older", now.Add(-time.Minute).UnixNano())); err != nil {
		t.Fatalf("Create failed with %v", err)
	}
	if err := st.Create(newTestJob("later", now.Add(time.Hour).UnixNano())); err != nil {
		t.Fatalf("Create failed with %v", err)
	}

	for _, want := range []string{"older", "newer"} {
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
		stored, err := st.Lookup(job.ID)
		if err != nil {
			t.Fatalf("Lookup failed with %v", err)
		}
		if have, want := stored.State, queuectl.Processing; have != want {
			t.Fatalf("State = %q, want %q", have, want)
		}
	}

	job, err := st.Claim()
	if err != nil {
		t.Fatalf("Claim failed with %v", err)
	}
	if job != nil {
		t.Fatalf("claimed %q, want nothing eligible", job.ID)
	}
}

func TestMongoDBStoreRetryDead(t *testing.T) {
	st := newTestStore(t)

	now := time.Now().UnixNano()
	dead := newTestJob("dead", now)
	dead.State = queuectl.Dead
	dead.Attempts = 3
	if err := st.Create(dead); err != nil {
		t.Fatalf("Create failed with %v", err)
	}

	if err := st.RetryDead("missing"); !errors.Is(err, queuectl.ErrNotFound) {
		t.Fatalf("RetryDead = %v, want %v", err, queuectl.ErrNotFound)
	}
	if err := st.RetryDead("dead"); err != nil {
		t.Fatalf("RetryDead failed with %v", err)
	}
	stored, err := st.Lookup("dead")
	if err != nil {
		t.Fatalf("Lookup failed with %v", err)
	}
	if have, want := stored.State, queuectl.Pending; have != want {
		t.Fatalf("State = %q, want %q", have, want)
	}
	if have, want := stored.Attempts, 0; have != want {
		t.Fatalf("Attempts = %d, want %d", have, want)
	}
}

func TestMongoDBStoreStats(t *testing.T) {
	st := newTestStore(t)

	now := time.Now().UnixNano()
	states := []string{queuectl.Pending, queuectl.Processing, queuectl.Completed, queuectl.Dead}
	for i, state := range states {
		job := newTestJob(string(rune('a'+i)), now+int64(i))
		job.State = state
		if err := st.Create(job); err != nil {
			t.Fatalf("Create failed with %v", err)
		}
	}
	stats, err := st.Stats()
	if err != nil {
		t.Fatalf("Stats failed with %v", err)
	}
	want := queuectl.Stats{Pending: 1, Processing: 1, Completed: 1, Dead: 1}
	if *stats != want {
		t.Fatalf("Stats = %+v, want %+v", stats, want)
	}
}

func TestMongoDBStoreConfig(t *testing.T) {
	st := newTestStore(t)

	v, err := st.GetConfig(queuectl.ConfigMaxRetries)
	if err != nil {
		t.Fatalf("GetConfig failed with %v", err)
	}
	if v == "" {
		t.Fatal("GetConfig returned an empty value")
	}

	if _, err := st.GetConfig("missing"); !errors.Is(err, queuectl.ErrNotFound) {
		t.Fatalf("GetConfig = %v, want %v", err, queuectl.ErrNotFound)
	}

	if err := st.SetConfig(queuectl.ConfigBackoffBase, "4"); err != nil {
		t.Fatalf("SetConfig failed with %v", err)
	}
	v, err = st.GetConfig(queuectl.ConfigBackoffBase)
	if err != nil {
		t.Fatalf("GetConfig failed with %v", err)
	}
	if have, want := v, "4"; have != want {
		t.Fatalf("GetConfig = %q, want %q", have, want)
	}
	if err := st.SetConfig(queuectl.ConfigBackoffBase, "2"); err != nil {
		t.Fatalf("SetConfig failed with %v", err)
	}
}
