package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/agent-sphere/agent-sphere/src/agent"
	"github.com/agent-sphere/agent-sphere/src/models"
)

const minConfidence = 0.6

// scheduleKeywords gates the LLM call: no keyword, no intent check.
var scheduleKeywords = []string{
	"every", "daily", "weekly", "monthly", "hourly", "each",
	"remind me", "schedule", "automate", "run at", "set up",
	"at ", "every morning", "every evening", "every night",
	"cron", "recurring", "periodically", "in 30 minutes",
	"tomorrow", "each day", "each week",
}

const intentSystemPrompt = `You are a scheduling intent detector. Analyze the user message and determine if they want to schedule a recurring or future task.

SCHEDULING KEYWORDS to look for: every, daily, weekly, monthly, hourly, at [time], each morning/evening/night, remind me, schedule, automate, run at, set up a job, cron.

If this is a scheduling request, extract the details. If NOT a scheduling request (just a regular question or task), return is_schedule: false.

Today's date/time: %s

Respond ONLY with raw JSON (no markdown):
{
  "is_schedule": true/false,
  "confidence": 0.0-1.0,
  "job_name": "Short descriptive name for the job",
  "agent_id": "which agent: home | calendar | finance | orchestrator",
  "task_prompt": "The actual task to execute (rewritten as a clear instruction)",
  "schedule_type": "cron | interval | one_shot",
  "schedule_desc": "Human-readable description e.g. 'Every day at 7:00 AM'",
  "cron": {
    "hour": null,
    "minute": 0,
    "day_of_week": "*",
    "day": "*",
    "month": "*"
  },
  "interval": {
    "hours": 0,
    "minutes": 0
  },
  "one_shot_offset_minutes": null
}

Rules:
- "every morning" = cron hour=7, minute=0
- "every evening" = cron hour=18, minute=0
- "every night" = cron hour=22, minute=0
- "every hour" = interval hours=1
- "every 30 minutes" = interval minutes=30
- "every day at 9am" = cron hour=9, minute=0
- "every Monday at 8am" = cron hour=8, minute=0, day_of_week=mon
- "in 30 minutes" = one_shot one_shot_offset_minutes=30
- "tomorrow at 3pm" = one_shot one_shot_offset_minutes=(calculate from now)
- weekday abbreviations: mon,tue,wed,thu,fri,sat,sun
- If no specific time mentioned for daily/weekly cron, default hour=8, minute=0
- agent_id should be "orchestrator" when the task spans multiple agents or is unclear`

// CronFields mirrors the planner's cron sub-object.
type CronFields struct {
	Hour      *int   `json:"hour"`
	Minute    int    `json:"minute"`
	DayOfWeek string `json:"day_of_week"`
	Day       string `json:"day"`
	Month     string `json:"month"`
}

// IntervalFields mirrors the planner's interval sub-object.
type IntervalFields struct {
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
}

// Intent is a detected scheduling request.
type Intent struct {
	IsSchedule    bool           `json:"is_schedule"`
	Confidence    float64        `json:"confidence"`
	JobName       string         `json:"job_name"`
	AgentID       string         `json:"agent_id"`
	TaskPrompt    string         `json:"task_prompt"`
	ScheduleType  JobType        `json:"schedule_type"`
	ScheduleDesc  string         `json:"schedule_desc"`
	Cron          CronFields     `json:"cron"`
	Interval      IntervalFields `json:"interval"`
	OneShotOffset *int           `json:"one_shot_offset_minutes"`
}

// ChatFunc asks the routed model for a completion.
type ChatFunc func(ctx context.Context, messages []models.ChatMessage) string

// Detector spots scheduling intent in chat messages.
type Detector struct {
	chat   ChatFunc
	logger zerolog.Logger
	now    func() time.Time

	mu      sync.Mutex
	pending map[string]Job
}

func NewDetector(chat ChatFunc, logger zerolog.Logger) *Detector {
	return &Detector{
		chat:    chat,
		logger:  logger.With().Str("component", "schedule_intent").Logger(),
		now:     time.Now,
		pending: make(map[string]Job),
	}
}

// Detect analyzes a message for scheduling intent. It returns nil when the
// message has no scheduling keywords, the model says it is not a schedule,
// or confidence falls under the threshold.
func (d *Detector) Detect(ctx context.Context, message string) *Intent {
	lower := strings.ToLower(message)
	keyword := false
	for _, kw := range scheduleKeywords {
		if strings.Contains(lower, kw) {
			keyword = true
			break
		}
	}
	if !keyword {
		return nil
	}

	reply := d.chat(ctx, []models.ChatMessage{
		models.System(fmt.Sprintf(intentSystemPrompt, d.now().Format("2006-01-02 15:04"))),
		models.User(message),
	})

	raw, ok := agent.ExtractJSONObject(reply)
	if !ok {
		return nil
	}
	var intent Intent
	if err := json.Unmarshal([]byte(raw), &intent); err != nil {
		d.logger.Warn().Err(err).Msg("intent JSON did not parse")
		return nil
	}
	if !intent.IsSchedule || intent.Confidence < minConfidence {
		return nil
	}
	return &intent
}

// ToJob converts a detected intent into a Job ready for the engine. Cron
// fields become a standard 5-field spec; a missing hour defaults to 8.
func (d *Detector) ToJob(intent *Intent) Job {
	job := Job{
		ID:           "job_" + uuid.NewString()[:8],
		Name:         orDefault(intent.JobName, "Scheduled Task"),
		AgentID:      orDefault(intent.AgentID, "orchestrator"),
		Prompt:       intent.TaskPrompt,
		ScheduleDesc: intent.ScheduleDesc,
		Type:         intent.ScheduleType,
	}

	switch intent.ScheduleType {
	case TypeInterval:
		every := time.Duration(intent.Interval.Hours)*time.Hour +
			time.Duration(intent.Interval.Minutes)*time.Minute
		if every <= 0 {
			every = time.Hour
		}
		job.Spec = fmt.Sprintf("@every %s", every)
	case TypeOneShot:
		offset := 60
		if intent.OneShotOffset != nil {
			offset = *intent.OneShotOffset
		}
		runAt := d.now().Add(time.Duration(offset) * time.Minute)
		job.RunAt = &runAt
	default:
		job.Type = TypeCron
		hour := 8
		if intent.Cron.Hour != nil {
			hour = *intent.Cron.Hour
		}
		job.Spec = fmt.Sprintf("%d %d %s %s %s",
			intent.Cron.Minute, hour,
			orDefault(intent.Cron.Day, "*"),
			orDefault(intent.Cron.Month, "*"),
			orDefault(intent.Cron.DayOfWeek, "*"))
	}
	return job
}

// BuildConfirmation renders the yes/no prompt shown before creating a job.
func BuildConfirmation(intent *Intent) string {
	return fmt.Sprintf(
		"I'd like to schedule: **%s**\n\n"+
			"- **Schedule**: %s\n"+
			"- **Agent**: %s\n"+
			"- **Task**: %s\n\n"+
			"Shall I create this schedule? Reply **yes** to confirm or **no** to cancel.",
		orDefault(intent.JobName, "Scheduled Task"),
		intent.ScheduleDesc,
		orDefault(intent.AgentID, "orchestrator"),
		intent.TaskPrompt)
}

// StorePending parks a job awaiting user confirmation for a session.
func (d *Detector) StorePending(sessionKey string, job Job) {
	d.mu.Lock()
	d.pending[sessionKey] = job
	d.mu.Unlock()
}

// PopPending removes and returns the pending job for a session, if any.
func (d *Detector) PopPending(sessionKey string) (Job, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	job, ok := d.pending[sessionKey]
	if ok {
		delete(d.pending, sessionKey)
	}
	return job, ok
}

// HasPending reports whether a session is awaiting confirmation.
func (d *Detector) HasPending(sessionKey string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[sessionKey]
	return ok
}

var confirmWords = map[string]bool{
	"yes": true, "yeah": true, "confirm": true, "ok": true, "sure": true,
	"create it": true, "yes please": true, "yep": true, "y": true,
}

var cancelWords = map[string]bool{
	"no": true, "cancel": true, "nope": true, "n": true,
	"no thanks": true, "stop": true, "nevermind": true,
}

// IsConfirmation reports whether a message confirms a pending schedule.
func IsConfirmation(message string) bool {
	return confirmWords[strings.ToLower(strings.TrimSpace(message))]
}

// IsCancellation reports whether a message cancels a pending schedule.
func IsCancellation(message string) bool {
	return cancelWords[strings.ToLower(strings.TrimSpace(message))]
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
