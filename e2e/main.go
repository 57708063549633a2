package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/queuectl/queuectl"
	"github.com/queuectl/queuectl/mongodb"
	"github.com/queuectl/queuectl/mysql"
	"github.com/queuectl/queuectl/sqlite"
)

func main() {
	const (
		exampleMySQLURL = "root@tcp(127.0.0.1:3306)/queuectl_e2e?loc=UTC&parseTime=true"
	)
	var (
		concurrency = flag.Int("c", 2, "number of workers")
		jobs        = flag.Int("n", 100, "number of jobs to enqueue")
		fillTime    = flag.Duration("fill-time", 500*time.Millisecond, "max interval between enqueues")
		logInterval = flag.Duration("log-interval", 1*time.Second, "log interval for stats")
		maxRetries  = flag.Int("max-retries", 2, "maximum number of retries per job")
		failureRate = flag.Float64("failure-rate", 0.05, "failure rate in the interval [0.0,1.0]")
		dbfile      = flag.String("dbfile", "", "SQLite file for persistent storage (default: temp file)")
		mysqlURL    = flag.String("mysql", "", "MySQL DSN for persistent storage, e.g. "+exampleMySQLURL)
		mongodbURL  = flag.String("mongodb", "", "MongoDB URL for persistent storage, e.g. localhost/queuectl_e2e")
	)
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)

	rand.Seed(time.Now().UnixNano())

	// Initialize the manager
	var options []queuectl.ManagerOption
	switch {
	case *mysqlURL != "":
		store, err := mysql.NewStore(*mysqlURL)
		if err != nil {
			log.Fatal(err)
		}
		options = append(options, queuectl.SetStore(store))
	case *mongodbURL != "":
		store, err := mongodb.NewStore(*mongodbURL)
		if err != nil {
			log.Fatal(err)
		}
		options = append(options, queuectl.SetStore(store))
	default:
		path := *dbfile
		if path == "" {
			dir, err := os.MkdirTemp("", "queuectl-e2e")
			if err != nil {
				log.Fatal(err)
			}
			defer os.RemoveAll(dir)
			path = filepath.Join(dir, "queue.db")
		}
		store, err := sqlite.NewStore(path)
		if err != nil {
			log.Fatal(err)
		}
		options = append(options, queuectl.SetStore(store))
	}
	m := queuectl.New(options...)

	// Start the manager
	if err := m.Start(); err != nil {
		log.Fatal(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	errc := make(chan error, 1)

	// Enqueue jobs
	go func() {
		errc <- enqueuer(m, *jobs, *fillTime, *maxRetries, *failureRate)
	}()

	// Run workers
	go func() {
		errc <- m.StartWorkers(ctx, *concurrency)
	}()

	// Print stats and stop once the queue has drained
	go func() {
		errc <- watch(ctx, m, *jobs, *logInterval, cancel)
	}()

	if err := <-errc; err != nil {
		log.Fatal(err)
	}
	log.Print("exiting")
}

// enqueuer adds n shell jobs at random intervals. A fraction of them is
// the failing command "false"; those exercise the retry and DLQ path.
func enqueuer(m *queuectl.Manager, n int, fillTime time.Duration, maxRetries int, failureRate float64) error {
	fillTimeNanos := fillTime.Nanoseconds()
	for i := 1; i <= n; i++ {
		time.Sleep(time.Duration(rand.Int63n(fillTimeNanos)) * time.Nanosecond)
		command := "true"
		if rand.Float64() < failureRate {
			command = "false"
		}
		job := &queuectl.Job{
			ID:         fmt.Sprintf("e2e-%05d", i),
			Command:    command,
			MaxRetries: maxRetries,
		}
		if err := m.Enqueue(job); err != nil {
			return err
		}
	}
	return nil
}

// watch logs stats every interval and cancels the run once all n jobs
// have reached a terminal state.
func watch(ctx context.Context, m *queuectl.Manager, n int, d time.Duration, cancel context.CancelFunc) error {
	t := time.NewTicker(d)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			ss, err := m.Stats()
			if err != nil {
				log.Printf("stats: %v", err)
				continue
			}
			fmt.Printf("Pending=%6d Processing=%6d Completed=%6d Dead=%6d Failed=%6d\n",
				ss.Pending,
				ss.Processing,
				ss.Completed,
				ss.Dead,
				ss.Failed)
			if ss.Completed+ss.Dead+ss.Failed >= n {
				log.Printf("all %d jobs settled", n)
				cancel()
				return nil
			}
		}
	}
}
