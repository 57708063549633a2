package mongodb

import (
	"errors"
	"net/url"
	"time"

	"github.com/globalsign/mgo"
	"github.com/globalsign/mgo/bson"

	"github.com/queuectl/queuectl"
)

const (
	// socketTimeout should be long enough that even a slow mongo server
	// will respond in that length of time. Since mongo servers ping themselves
	// every 10 seconds, we use a value just over 2 ping periods to allow
	// for delayed pings due to issues such as CPU starvation etc.
	socketTimeout = 21 * time.Second

	// dialTimeout should be representative of the upper bound of the
	// time taken to dial a mongo server from within the same cloud/private
	// network.
	dialTimeout = 30 * time.Second

	// defaultCollectionName is the name of the jobs collection.
	// It can be overridden by SetCollectionName.
	defaultCollectionName = "queuectl_jobs"

	// configCollectionSuffix is appended to the jobs collection name to
	// form the config collection.
	configCollectionSuffix = "_config"
)

// Store represents a MongoDB-based storage backend. It implements the
// queuectl.Store interface.
//
// Claim maps onto a single findAndModify, which MongoDB executes
// atomically, so concurrent claimers never receive the same job.
type Store struct {
	session        *mgo.Session
	db             *mgo.Database
	jobs           *mgo.Collection
	config         *mgo.Collection
	collectionName string
}

// StoreOption is an options provider for Store.
type StoreOption func(*Store)

// SetCollectionName overrides the default collection name.
func SetCollectionName(collectionName string) StoreOption {
	return func(s *Store) {
		s.collectionName = collectionName
	}
}

// NewStore creates a new MongoDB-based storage backend.
func NewStore(mongodbURL string, options ...StoreOption) (*Store, error) {
	st := &Store{
		collectionName: defaultCollectionName,
	}
	for _, opt := range options {
		opt(st)
	}

	uri, err := url.Parse(mongodbURL)
	if err != nil {
		return nil, err
	}
	if uri.Path == "" || uri.Path == "/" {
		return nil, errors.New("mongodb: database missing in URL")
	}
	dbname := uri.Path[1:]

	st.session, err = mgo.DialWithTimeout(mongodbURL, dialTimeout)
	if err != nil {
		return nil, err
	}

	st.session.SetMode(mgo.Monotonic, true)
	st.session.SetSocketTimeout(socketTimeout)

	st.db = st.session.DB(dbname)
	st.jobs = st.db.C(st.collectionName)
	st.config = st.db.C(st.collectionName + configCollectionSuffix)

	return st, nil
}

// Close the MongoDB store.
func (s *Store) Close() error {
	s.session.Close()
	return nil
}

// Start creates the indexes and seeds the config defaults. It is safe
// to run on every process start.
func (s *Store) Start() error {
	err := s.jobs.EnsureIndexKey("state", "run_at")
	if err != nil {
		return err
	}
	err = s.jobs.EnsureIndexKey("created_at")
	if err != nil {
		return err
	}
	seeds := map[string]string{
		queuectl.ConfigMaxRetries:  "3",
		queuectl.ConfigBackoffBase: "2",
	}
	for key, value := range seeds {
		err := s.config.Insert(bson.M{"_id": key, "value": value})
		if err != nil && !mgo.IsDup(err) {
			return err
		}
	}
	return nil
}

// Create adds a new job to the store.
func (s *Store) Create(job *queuectl.Job) error {
	err := s.jobs.Insert(newJob(job))
	if mgo.IsDup(err) {
		return queuectl.ErrDuplicateID
	}
	return err
}

// Claim picks the oldest eligible pending job and marks it Processing
// via findAndModify. The pre-update document is returned.
func (s *Store) Claim() (*queuectl.Job, error) {
	now := time.Now().UnixNano()
	change := mgo.Change{
		Update: bson.M{"$set": bson.M{
			"state":      queuectl.Processing,
			"updated_at": now,
		}},
		ReturnNew: false,
	}
	var j Job
	_, err := s.jobs.
		Find(bson.M{"state": queuectl.Pending, "run_at": bson.M{"$lte": now}}).
		Sort("created_at").
		Apply(change, &j)
	if err == mgo.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return j.ToJob(), nil
}

// Update persists the job's state, attempts and run time.
func (s *Store) Update(job *queuectl.Job) error {
	return s.jobs.UpdateId(job.ID, bson.M{"$set": bson.M{
		"state":      job.State,
		"attempts":   job.Attempts,
		"run_at":     job.RunAt,
		"updated_at": job.Updated,
	}})
}

// UpdateState unconditionally overwrites the job's state.
func (s *Store) UpdateState(id, state string) error {
	return s.jobs.UpdateId(id, bson.M{"$set": bson.M{
		"state":      state,
		"updated_at": time.Now().UnixNano(),
	}})
}

// RetryDead moves a dead job back to Pending with attempts reset.
func (s *Store) RetryDead(id string) error {
	now := time.Now().UnixNano()
	err := s.jobs.Update(
		bson.M{"_id": id, "state": queuectl.Dead},
		bson.M{"$set": bson.M{
			"state":      queuectl.Pending,
			"attempts":   0,
			"run_at":     now,
			"updated_at": now,
		}},
	)
	if err == mgo.ErrNotFound {
		return queuectl.ErrNotFound
	}
	return err
}

// Lookup retrieves a single job by its identifier.
func (s *Store) Lookup(id string) (*queuectl.Job, error) {
	var j Job
	err := s.jobs.FindId(id).One(&j)
	if err == mgo.ErrNotFound {
		return nil, queuectl.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return j.ToJob(), nil
}

// List returns all jobs in the given state, oldest first.
func (s *Store) List(state string) ([]*queuectl.Job, error) {
	var list []*Job
	err := s.jobs.Find(bson.M{"state": state}).Sort("created_at").All(&list)
	if err != nil {
		return nil, err
	}
	jobs := make([]*queuectl.Job, 0, len(list))
	for _, j := range list {
		jobs = append(jobs, j.ToJob())
	}
	return jobs, nil
}

// Stats returns the number of jobs per state.
func (s *Store) Stats() (*queuectl.Stats, error) {
	stats := &queuectl.Stats{}
	for _, state := range queuectl.States {
		count, err := s.jobs.Find(bson.M{"state": state}).Count()
		if err != nil {
			return nil, err
		}
		switch state {
		case queuectl.Pending:
			stats.Pending = count
		case queuectl.Processing:
			stats.Processing = count
		case queuectl.Completed:
			stats.Completed = count
		case queuectl.Dead:
			stats.Dead = count
		case queuectl.Failed:
			stats.Failed = count
		}
	}
	return stats, nil
}

// GetConfig returns the value for a config key, or ErrNotFound.
func (s *Store) GetConfig(key string) (string, error) {
	var doc struct {
		Value string `bson:"value"`
	}
	err := s.config.FindId(key).One(&doc)
	if err == mgo.ErrNotFound {
		return "", queuectl.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return doc.Value, nil
}

// SetConfig creates or overwrites a config key.
func (s *Store) SetConfig(key, value string) error {
	_, err := s.config.UpsertId(key, bson.M{"$set": bson.M{"value": value}})
	return err
}

// -- MongoDB-internal representation of a job --

type Job struct {
	ID         string `bson:"_id"`
	Command    string `bson:"command"`
	State      string `bson:"state"`
	Attempts   int    `bson:"attempts"`
	MaxRetries int    `bson:"max_retries"`
	RunAt      int64  `bson:"run_at"`
	Created    int64  `bson:"created_at"`
	Updated    int64  `bson:"updated_at"`
}

func newJob(job *queuectl.Job) *Job {
	return &Job{
		ID:         job.ID,
		Command:    job.Command,
		State:      job.State,
		Attempts:   job.Attempts,
		MaxRetries: job.MaxRetries,
		RunAt:      job.RunAt,
		Created:    job.Created,
		Updated:    job.Updated,
	}
}

func (j *Job) ToJob() *queuectl.Job {
	return &queuectl.Job{
		ID:         j.ID,
		Command:    j.Command,
		State:      j.State,
		Attempts:   j.Attempts,
		MaxRetries: j.MaxRetries,
		RunAt:      j.RunAt,
		Created:    j.Created,
		Updated:    j.Updated,
	}
}
