package scheduler

import (
	"database/sql"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// JobType selects the trigger kind.
type JobType string

const (
	TypeCron     JobType = "cron"
	TypeInterval JobType = "interval"
	TypeOneShot  JobType = "one_shot"
)

// Job statuses.
const (
	StatusActive    = "active"
	StatusPaused    = "paused"
	StatusCompleted = "completed"
)

// Job is a persisted scheduled task. Spec holds the cron expression for
// cron jobs and an @every duration for interval jobs; one-shot jobs use
// RunAt instead.
type Job struct {
	ID           string     `json:"job_id"`
	Name         string     `json:"name"`
	AgentID      string     `json:"agent_id"`
	Prompt       string     `json:"prompt"`
	ScheduleDesc string     `json:"schedule_desc"`
	Type         JobType    `json:"schedule_type"`
	Spec         string     `json:"spec,omitempty"`
	RunAt        *time.Time `json:"run_at,omitempty"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	NextRun      *time.Time `json:"next_run,omitempty"`
}

// Store persists jobs in SQLite so they survive restarts.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if needed) the schedule database at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open schedule db")
	}
	// modernc.org/sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent job updates.
	db.SetMaxOpenConns(1)

	const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	agent_id      TEXT NOT NULL,
	prompt        TEXT NOT NULL,
	schedule_desc TEXT NOT NULL DEFAULT '',
	type          TEXT NOT NULL,
	spec          TEXT NOT NULL DEFAULT '',
	run_at        TEXT,
	status        TEXT NOT NULL DEFAULT 'active',
	created_at    TEXT NOT NULL
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create jobs table")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Put inserts or replaces a job row.
func (s *Store) Put(job Job) error {
	var runAt any
	if job.RunAt != nil {
		runAt = job.RunAt.UTC().Format(time.RFC3339)
	}
	_, err := s.db.Exec(`
INSERT OR REPLACE INTO jobs (id, name, agent_id, prompt, schedule_desc, type, spec, run_at, status, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Name, job.AgentID, job.Prompt, job.ScheduleDesc,
		string(job.Type), job.Spec, runAt, job.Status,
		job.CreatedAt.UTC().Format(time.RFC3339))
	return errors.Wrap(err, "put job")
}

// Get returns one job by id.
func (s *Store) Get(id string) (Job, bool, error) {
	row := s.db.QueryRow(`
SELECT id, name, agent_id, prompt, schedule_desc, type, spec, run_at, status, created_at
FROM jobs WHERE id = ?`, id)

	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return Job{}, false, nil
	}
	if err != nil {
		return Job{}, false, errors.Wrap(err, "get job")
	}
	return job, true, nil
}

// List returns all jobs ordered by creation time.
func (s *Store) List() ([]Job, error) {
	rows, err := s.db.Query(`
SELECT id, name, agent_id, prompt, schedule_desc, type, spec, run_at, status, created_at
FROM jobs ORDER BY created_at`)
	if err != nil {
		return nil, errors.Wrap(err, "list jobs")
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan job")
		}
		jobs = append(jobs, job)
	}
	return jobs, errors.Wrap(rows.Err(), "iterate jobs")
}

// SetStatus updates one job's status.
func (s *Store) SetStatus(id, status string) error {
	_, err := s.db.Exec(`UPDATE jobs SET status = ? WHERE id = ?`, status, id)
	return errors.Wrap(err, "set job status")
}

// Delete removes a job row. It reports whether a row existed.
func (s *Store) Delete(id string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return false, errors.Wrap(err, "delete job")
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(r rowScanner) (Job, error) {
	var (
		job       Job
		jobType   string
		runAt     sql.NullString
		createdAt string
	)
	err := r.Scan(&job.ID, &job.Name, &job.AgentID, &job.Prompt, &job.ScheduleDesc,
		&jobType, &job.Spec, &runAt, &job.Status, &createdAt)
	if err != nil {
		return Job{}, err
	}
	job.Type = JobType(jobType)
	if runAt.Valid {
		if t, err := time.Parse(time.RFC3339, runAt.String); err == nil {
			job.RunAt = &t
		}
	}
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		job.CreatedAt = t
	}
	return job, nil
}
