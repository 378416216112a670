package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/agent-sphere/agent-sphere/src/concurrent"
)

const (
	historyCap      = 200
	resultCap       = 500
	oneShotMisfires = time.Minute
)

// ExecFunc runs a scheduled prompt against an agent (or the orchestrator)
// and returns the final response.
type ExecFunc func(ctx context.Context, agentID, prompt string) (string, error)

// BroadcastFunc pushes a job result event to connected clients.
type BroadcastFunc func(event string, payload any)

// Execution is one history record.
type Execution struct {
	JobID     string    `json:"job_id"`
	JobName   string    `json:"job_name"`
	Success   bool      `json:"success"`
	Result    string    `json:"result"`
	Timestamp time.Time `json:"timestamp"`
}

// Engine schedules cron, interval, and one-shot jobs, persisting them in a
// Store and running them on a bounded worker pool.
type Engine struct {
	store     *Store
	exec      ExecFunc
	pool      *concurrent.WorkerPool
	logger    zerolog.Logger
	cron      *cron.Cron
	parser    cron.Parser
	cancel    context.CancelFunc
	runCtx    context.Context
	broadcast BroadcastFunc

	mu      sync.Mutex
	entries map[string]cron.EntryID
	timers  map[string]*time.Timer
	history []Execution
}

// EngineOptions configures NewEngine.
type EngineOptions struct {
	Store   *Store
	Exec    ExecFunc
	Workers int
	Logger  zerolog.Logger
}

func NewEngine(opts EngineOptions) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		store:   opts.Store,
		exec:    opts.Exec,
		pool:    concurrent.NewWorkerPool(opts.Workers),
		logger:  opts.Logger.With().Str("component", "scheduler").Logger(),
		cron:    cron.New(),
		parser:  cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		runCtx:  ctx,
		cancel:  cancel,
		entries: make(map[string]cron.EntryID),
		timers:  make(map[string]*time.Timer),
	}
}

// SetBroadcast installs the result push callback.
func (e *Engine) SetBroadcast(fn BroadcastFunc) {
	e.mu.Lock()
	e.broadcast = fn
	e.mu.Unlock()
}

// Start restores persisted jobs and begins running schedules. One-shot jobs
// whose time passed while the process was down are marked completed unless
// they missed by less than a minute, in which case they run immediately.
func (e *Engine) Start() error {
	jobs, err := e.store.List()
	if err != nil {
		return err
	}

	now := time.Now()
	for _, job := range jobs {
		switch {
		case job.Status == StatusPaused:
			continue
		case job.Type == TypeOneShot && job.RunAt != nil && job.RunAt.Before(now):
			if now.Sub(*job.RunAt) <= oneShotMisfires {
				e.runJob(job.ID)
			}
			if err := e.store.SetStatus(job.ID, StatusCompleted); err != nil {
				e.logger.Warn().Err(err).Str("job", job.ID).Msg("status update failed")
			}
		case job.Status == StatusActive:
			if err := e.schedule(job); err != nil {
				e.logger.Warn().Err(err).Str("job", job.ID).Msg("restore failed")
			}
		}
	}

	e.cron.Start()
	e.logger.Info().Int("jobs", len(jobs)).Msg("scheduler started")
	return nil
}

// Stop halts all schedules without waiting for running jobs.
func (e *Engine) Stop() {
	e.cancel()
	e.cron.Stop()

	e.mu.Lock()
	for id, t := range e.timers {
		t.Stop()
		delete(e.timers, id)
	}
	e.mu.Unlock()
	e.logger.Info().Msg("scheduler stopped")
}

// AddCronJob registers a recurring job from a standard 5-field cron spec.
func (e *Engine) AddCronJob(id, name, agentID, prompt, desc, spec string) (Job, error) {
	if _, err := e.parser.Parse(spec); err != nil {
		return Job{}, errors.Wrapf(err, "invalid cron spec %q", spec)
	}
	return e.addJob(Job{
		ID: id, Name: name, AgentID: agentID, Prompt: prompt,
		ScheduleDesc: desc, Type: TypeCron, Spec: spec,
	})
}

// AddIntervalJob registers a job that repeats at a fixed interval.
func (e *Engine) AddIntervalJob(id, name, agentID, prompt, desc string, every time.Duration) (Job, error) {
	if every <= 0 {
		return Job{}, errors.New("interval must be positive")
	}
	return e.addJob(Job{
		ID: id, Name: name, AgentID: agentID, Prompt: prompt,
		ScheduleDesc: desc, Type: TypeInterval,
		Spec: fmt.Sprintf("@every %s", every),
	})
}

// AddOneShotJob registers a job that fires once at runAt.
func (e *Engine) AddOneShotJob(id, name, agentID, prompt, desc string, runAt time.Time) (Job, error) {
	if runAt.Before(time.Now()) {
		return Job{}, errors.New("one-shot time is in the past")
	}
	return e.addJob(Job{
		ID: id, Name: name, AgentID: agentID, Prompt: prompt,
		ScheduleDesc: desc, Type: TypeOneShot, RunAt: &runAt,
	})
}

// AddJob registers a job built elsewhere, such as from a detected intent.
func (e *Engine) AddJob(job Job) (Job, error) {
	switch job.Type {
	case TypeCron, TypeInterval:
		if _, err := e.parser.Parse(job.Spec); err != nil {
			return Job{}, errors.Wrapf(err, "invalid schedule spec %q", job.Spec)
		}
	case TypeOneShot:
		if job.RunAt == nil {
			return Job{}, errors.New("one-shot job needs a run time")
		}
		if job.RunAt.Before(time.Now()) {
			return Job{}, errors.New("one-shot time is in the past")
		}
	default:
		return Job{}, errors.Errorf("unknown job type %q", job.Type)
	}
	return e.addJob(job)
}

func (e *Engine) addJob(job Job) (Job, error) {
	job.Status = StatusActive
	job.CreatedAt = time.Now().UTC()

	// Persist before scheduling so a restart never loses a live schedule.
	if err := e.store.Put(job); err != nil {
		return Job{}, err
	}
	if err := e.schedule(job); err != nil {
		if _, derr := e.store.Delete(job.ID); derr != nil {
			e.logger.Warn().Err(derr).Str("job", job.ID).Msg("rollback failed")
		}
		return Job{}, err
	}

	e.logger.Info().Str("job", job.ID).Str("name", job.Name).Str("type", string(job.Type)).Msg("job added")
	return e.withNextRun(job), nil
}

func (e *Engine) schedule(job Job) error {
	switch job.Type {
	case TypeCron, TypeInterval:
		id := job.ID
		entryID, err := e.cron.AddFunc(job.Spec, func() { e.runJob(id) })
		if err != nil {
			return errors.Wrapf(err, "schedule %s", job.ID)
		}
		e.mu.Lock()
		e.entries[job.ID] = entryID
		e.mu.Unlock()
	case TypeOneShot:
		if job.RunAt == nil {
			return errors.Errorf("one-shot job %s has no run time", job.ID)
		}
		id := job.ID
		timer := time.AfterFunc(time.Until(*job.RunAt), func() {
			e.runJob(id)
			e.mu.Lock()
			delete(e.timers, id)
			e.mu.Unlock()
			if err := e.store.SetStatus(id, StatusCompleted); err != nil {
				e.logger.Warn().Err(err).Str("job", id).Msg("status update failed")
			}
		})
		e.mu.Lock()
		e.timers[job.ID] = timer
		e.mu.Unlock()
	default:
		return errors.Errorf("unknown job type %q", job.Type)
	}
	return nil
}

func (e *Engine) unschedule(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if entryID, ok := e.entries[id]; ok {
		e.cron.Remove(entryID)
		delete(e.entries, id)
	}
	if timer, ok := e.timers[id]; ok {
		timer.Stop()
		delete(e.timers, id)
	}
}

// runJob executes one job on the pool, records history, and broadcasts.
func (e *Engine) runJob(id string) {
	job, found, err := e.store.Get(id)
	if err != nil || !found {
		e.logger.Warn().Err(err).Str("job", id).Msg("job lookup failed")
		return
	}

	e.pool.Go(e.runCtx, func() error {
		e.logger.Info().Str("job", job.ID).Str("name", job.Name).Msg("running job")

		result, err := e.exec(e.runCtx, job.AgentID, job.Prompt)
		success := err == nil
		if err != nil {
			result = fmt.Sprintf("Error: %v", err)
			e.logger.Error().Err(err).Str("job", job.ID).Msg("job failed")
		}

		e.record(job, success, result)
		return nil
	}, func(err error) {
		e.logger.Warn().Err(err).Str("job", job.ID).Msg("job did not run")
	})
}

func (e *Engine) record(job Job, success bool, result string) {
	if len(result) > resultCap {
		result = result[:resultCap]
	}
	exec := Execution{
		JobID:     job.ID,
		JobName:   job.Name,
		Success:   success,
		Result:    result,
		Timestamp: time.Now().UTC(),
	}

	e.mu.Lock()
	e.history = append(e.history, exec)
	if len(e.history) > historyCap {
		e.history = e.history[len(e.history)-historyCap:]
	}
	fn := e.broadcast
	e.mu.Unlock()

	if fn != nil {
		fn("schedule_job_result", exec)
	}
}

// List returns all jobs with their next run times.
func (e *Engine) List() ([]Job, error) {
	jobs, err := e.store.List()
	if err != nil {
		return nil, err
	}
	for i := range jobs {
		jobs[i] = e.withNextRun(jobs[i])
	}
	return jobs, nil
}

// Get returns one job by id.
func (e *Engine) Get(id string) (Job, bool, error) {
	job, found, err := e.store.Get(id)
	if err != nil || !found {
		return Job{}, found, err
	}
	return e.withNextRun(job), true, nil
}

// Pause stops a job's schedule without deleting it.
func (e *Engine) Pause(id string) error {
	_, found, err := e.store.Get(id)
	if err != nil {
		return err
	}
	if !found {
		return errors.New("job not found")
	}
	e.unschedule(id)
	return e.store.SetStatus(id, StatusPaused)
}

// Resume reactivates a paused job.
func (e *Engine) Resume(id string) error {
	job, found, err := e.store.Get(id)
	if err != nil {
		return err
	}
	if !found {
		return errors.New("job not found")
	}
	if job.Status != StatusPaused {
		return nil
	}
	if err := e.schedule(job); err != nil {
		return err
	}
	return e.store.SetStatus(id, StatusActive)
}

// Delete unschedules and removes a job.
func (e *Engine) Delete(id string) error {
	e.unschedule(id)
	found, err := e.store.Delete(id)
	if err != nil {
		return err
	}
	if !found {
		return errors.New("job not found")
	}
	return nil
}

// RunNow triggers a job immediately, outside its schedule.
func (e *Engine) RunNow(id string) error {
	_, found, err := e.store.Get(id)
	if err != nil {
		return err
	}
	if !found {
		return errors.New("job not found")
	}
	e.runJob(id)
	return nil
}

// History returns recent executions, optionally filtered by job id.
func (e *Engine) History(jobID string, limit int) []Execution {
	if limit <= 0 {
		limit = 50
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var out []Execution
	for _, exec := range e.history {
		if jobID == "" || exec.JobID == jobID {
			out = append(out, exec)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func (e *Engine) withNextRun(job Job) Job {
	switch job.Type {
	case TypeOneShot:
		if job.Status == StatusActive {
			job.NextRun = job.RunAt
		}
	case TypeCron, TypeInterval:
		e.mu.Lock()
		entryID, ok := e.entries[job.ID]
		e.mu.Unlock()
		if ok {
			next := e.cron.Entry(entryID).Next
			if !next.IsZero() {
				job.NextRun = &next
			}
		}
	}
	return job
}
