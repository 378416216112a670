package agents

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/agent-sphere/agent-sphere/src/agent"
)

// Email is one mailbox entry.
type Email struct {
	ID      int       `json:"id"`
	From    string    `json:"from"`
	To      string    `json:"to,omitempty"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	Date    time.Time `json:"date"`
	Read    bool      `json:"read"`
	Starred bool      `json:"starred"`
}

// Event is one calendar entry.
type Event struct {
	ID          int       `json:"id"`
	Title       string    `json:"title"`
	Start       time.Time `json:"start"`
	Duration    int       `json:"duration"`
	Location    string    `json:"location"`
	Attendees   []string  `json:"attendees"`
	Description string    `json:"description"`
}

// CalendarManager is an in-memory mock mailbox and calendar.
type CalendarManager struct {
	mu       sync.Mutex
	emails   []Email
	calendar []Event
	sent     []Email
	nextID   int
}

func NewCalendarManager() *CalendarManager {
	now := time.Now()
	return &CalendarManager{
		emails: []Email{
			{ID: 1, From: "boss@company.com", Subject: "Project Alpha - Status Update Required",
				Body: "Can you provide an update on the current sprint?", Date: now.Add(-2 * time.Hour)},
			{ID: 2, From: "sarah@friends.com", Subject: "Coffee tomorrow?",
				Body: "Are you free for coffee at 3 PM tomorrow?", Date: now.Add(-5 * time.Hour), Starred: true},
			{ID: 3, From: "notifications@github.com", Subject: "[GitHub] New Pull Request",
				Body: "Someone commented on your PR", Date: now.Add(-24 * time.Hour), Read: true},
		},
		calendar: []Event{
			{ID: 1, Title: "Team Standup", Start: now.Add(time.Hour), Duration: 30,
				Location: "Conference Room A", Attendees: []string{"team@company.com"}, Description: "Daily team sync"},
			{ID: 2, Title: "Lunch with Client", Start: now.Add(5 * time.Hour), Duration: 60,
				Location: "Downtown Bistro", Attendees: []string{"client@external.com"}, Description: "Discuss new features"},
			{ID: 3, Title: "Project Review", Start: now.Add(26 * time.Hour), Duration: 90,
				Location: "Conference Room B", Attendees: []string{"team@company.com", "manager@company.com"},
				Description: "Quarterly project review"},
		},
		nextID: 4,
	}
}

// ReadEmails returns up to limit emails, optionally unread only.
func (m *CalendarManager) ReadEmails(limit int, unreadOnly bool) []Email {
	if limit <= 0 {
		limit = 5
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Email
	for _, e := range m.emails {
		if unreadOnly && e.Read {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out
}

// EmailDetails returns one email by id and marks it read.
func (m *CalendarManager) EmailDetails(id int) (Email, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.emails {
		if m.emails[i].ID == id {
			m.emails[i].Read = true
			return m.emails[i], nil
		}
	}
	return Email{}, errors.Errorf("email %d not found", id)
}

// SendEmail records an outgoing message.
func (m *CalendarManager) SendEmail(to, subject, body string) (string, error) {
	if to == "" || subject == "" {
		return "", errors.New("to and subject are required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sent = append(m.sent, Email{
		ID: m.nextID, From: "me", To: to, Subject: subject, Body: body, Date: time.Now(),
	})
	m.nextID++
	return fmt.Sprintf("Email sent to %s: %q", to, subject), nil
}

// ReplyToEmail sends a reply to an existing message.
func (m *CalendarManager) ReplyToEmail(id int, body string) (string, error) {
	m.mu.Lock()
	var original *Email
	for i := range m.emails {
		if m.emails[i].ID == id {
			original = &m.emails[i]
			break
		}
	}
	if original == nil {
		m.mu.Unlock()
		return "", errors.Errorf("email %d not found", id)
	}
	to := original.From
	subject := "Re: " + original.Subject
	m.mu.Unlock()

	return m.SendEmail(to, subject, body)
}

// UpcomingEvents lists events within daysAhead days, soonest first.
func (m *CalendarManager) UpcomingEvents(daysAhead int) []Event {
	if daysAhead <= 0 {
		daysAhead = 7
	}
	cutoff := time.Now().AddDate(0, 0, daysAhead)

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Event
	for _, e := range m.calendar {
		if e.Start.Before(cutoff) && e.Start.After(time.Now().Add(-time.Duration(e.Duration)*time.Minute)) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// ScheduleEvent adds a new calendar entry. start must be RFC 3339 or
// "2006-01-02 15:04".
func (m *CalendarManager) ScheduleEvent(title, start string, duration int, location string, attendees []string) (string, error) {
	if title == "" {
		return "", errors.New("title is required")
	}
	startAt, err := parseEventTime(start)
	if err != nil {
		return "", err
	}
	if duration <= 0 {
		duration = 60
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calendar = append(m.calendar, Event{
		ID: m.nextID, Title: title, Start: startAt, Duration: duration,
		Location: location, Attendees: attendees,
	})
	m.nextID++
	return fmt.Sprintf("Event %q scheduled for %s (%d min)", title, startAt.Format("Mon Jan 2 15:04"), duration), nil
}

// RescheduleEvent moves an event to a new start time.
func (m *CalendarManager) RescheduleEvent(id int, newStart string) (string, error) {
	startAt, err := parseEventTime(newStart)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.calendar {
		if m.calendar[i].ID == id {
			m.calendar[i].Start = startAt
			return fmt.Sprintf("Event %q moved to %s", m.calendar[i].Title, startAt.Format("Mon Jan 2 15:04")), nil
		}
	}
	return "", errors.Errorf("event %d not found", id)
}

// DeleteEvent removes a calendar entry.
func (m *CalendarManager) DeleteEvent(id int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.calendar {
		if m.calendar[i].ID == id {
			title := m.calendar[i].Title
			m.calendar = append(m.calendar[:i], m.calendar[i+1:]...)
			return fmt.Sprintf("Event %q deleted", title), nil
		}
	}
	return "", errors.Errorf("event %d not found", id)
}

// FindFreeSlot returns the first gap of at least duration minutes in the
// next two days of the calendar.
func (m *CalendarManager) FindFreeSlot(duration int) string {
	if duration <= 0 {
		duration = 60
	}
	need := time.Duration(duration) * time.Minute

	events := m.UpcomingEvents(2)
	cursor := time.Now().Round(15 * time.Minute)
	for _, e := range events {
		if e.Start.Sub(cursor) >= need {
			break
		}
		end := e.Start.Add(time.Duration(e.Duration) * time.Minute)
		if end.After(cursor) {
			cursor = end
		}
	}
	return fmt.Sprintf("Next free %d-minute slot starts at %s", duration, cursor.Format("Mon Jan 2 15:04"))
}

// SentEmails returns the outbox.
func (m *CalendarManager) SentEmails() []Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Email(nil), m.sent...)
}

func parseEventTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Errorf("could not parse time %q, use ISO format", s)
}

// CalendarTools exposes the manager as agent tools.
func CalendarTools(m *CalendarManager) []agent.Tool {
	return []agent.Tool{
		{
			Name:        "read_emails",
			Description: "Read recent emails, optionally unread only",
			Params:      map[string]string{"limit": "int (optional)", "unread_only": "bool (optional)"},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				limit, _ := intArg(args, "limit")
				unreadOnly, ok := boolArg(args, "unread_only")
				if !ok {
					unreadOnly = true
				}
				return m.ReadEmails(limit, unreadOnly), nil
			},
		},
		{
			Name:        "get_email_details",
			Description: "Get full details of one email by id and mark it read",
			Params:      map[string]string{"email_id": "int"},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				id, ok := intArg(args, "email_id")
				if !ok {
					return nil, errors.New("email_id is required")
				}
				return m.EmailDetails(id)
			},
		},
		{
			Name:        "send_email",
			Description: "Send an email",
			Params:      map[string]string{"to": "str", "subject": "str", "body": "str"},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				to, _ := stringArg(args, "to")
				subject, _ := stringArg(args, "subject")
				body, _ := stringArg(args, "body")
				return m.SendEmail(to, subject, body)
			},
		},
		{
			Name:        "reply_to_email",
			Description: "Reply to an existing email by id",
			Params:      map[string]string{"email_id": "int", "reply_body": "str"},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				id, ok := intArg(args, "email_id")
				if !ok {
					return nil, errors.New("email_id is required")
				}
				body, _ := stringArg(args, "reply_body")
				return m.ReplyToEmail(id, body)
			},
		},
		{
			Name:        "get_calendar_events",
			Description: "List upcoming calendar events",
			Params:      map[string]string{"days_ahead": "int (optional)"},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				days, _ := intArg(args, "days_ahead")
				return m.UpcomingEvents(days), nil
			},
		},
		{
			Name:        "schedule_event",
			Description: "Schedule a new calendar event, start_time in ISO format",
			Params: map[string]string{
				"title": "str", "start_time": "str (ISO)", "duration": "int (minutes)",
				"location": "str (optional)", "attendees": "list (optional)",
			},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				title, _ := stringArg(args, "title")
				start, _ := stringArg(args, "start_time")
				duration, _ := intArg(args, "duration")
				location, _ := stringArg(args, "location")
				var attendees []string
				if list, ok := args["attendees"].([]any); ok {
					for _, a := range list {
						attendees = append(attendees, fmt.Sprint(a))
					}
				}
				return m.ScheduleEvent(title, start, duration, location, attendees)
			},
		},
		{
			Name:        "reschedule_event",
			Description: "Move an event to a new start time",
			Params:      map[string]string{"event_id": "int", "new_start_time": "str (ISO)"},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				id, ok := intArg(args, "event_id")
				if !ok {
					return nil, errors.New("event_id is required")
				}
				start, _ := stringArg(args, "new_start_time")
				return m.RescheduleEvent(id, start)
			},
		},
		{
			Name:        "delete_event",
			Description: "Delete a calendar event by id",
			Params:      map[string]string{"event_id": "int"},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				id, ok := intArg(args, "event_id")
				if !ok {
					return nil, errors.New("event_id is required")
				}
				return m.DeleteEvent(id)
			},
		},
		{
			Name:        "find_free_slot",
			Description: "Find the next free time slot of a given length",
			Params:      map[string]string{"duration": "int (minutes, optional)"},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				duration, _ := intArg(args, "duration")
				return m.FindFreeSlot(duration), nil
			},
		},
	}
}

// NewCalendarAgent builds the calendar and email agent.
func NewCalendarAgent(model agent.ChatModel, memory agent.MemorySource, logger zerolog.Logger) (*agent.Agent, error) {
	return agent.New(agent.Options{
		ID:           "calendar",
		Name:         "Assistant",
		Role:         "Calendar & Email Manager",
		Instructions: "You are a calendar and email management assistant. Help users manage their communications and schedule efficiently. When scheduling events, use ISO format for dates.",
		Model:        model,
		Tools:        CalendarTools(NewCalendarManager()),
		Memory:       memory,
		Logger:       logger,
	})
}
