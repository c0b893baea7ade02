package web

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/gin-gonic/gin"

	"github.com/edgard/calendarbot/internal/event"
)

type eventView struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	StartDate       time.Time  `json:"start_date"`
	EndDate         *time.Time `json:"end_date"`
	Description     string     `json:"description"`
	Location        string     `json:"location"`
	SourceGroup     string     `json:"source_group"`
	SourceMessageID int64      `json:"source_message_id"`
	Confidence      float64    `json:"confidence_score"`
	SourceType      string     `json:"source_type"`
	Link            string     `json:"telegram_link,omitempty"`
}

func newEventView(ev event.CalendarEvent) eventView {
	return eventView{
		ID:              ev.ID(),
		Title:           ev.Title,
		StartDate:       ev.Start.UTC(),
		EndDate:         ev.End,
		Description:     ev.Description,
		Location:        ev.Location,
		SourceGroup:     ev.SourceGroup,
		SourceMessageID: ev.SourceMessageID,
		Confidence:      ev.Confidence,
		SourceType:      string(ev.SourceType),
		Link:            ev.ExternalLink,
	}
}

// visible returns the stored events that were not dismissed, by start.
func (s *Server) visible(ctx context.Context) ([]event.CalendarEvent, error) {
	all, err := s.deps.Events.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	dismissed, err := s.deps.Dismissed.Set()
	if err != nil {
		return nil, fmt.Errorf("failed to load dismissed events: %w", err)
	}

	out := make([]event.CalendarEvent, 0, len(all))
	for _, ev := range all {
		if _, ok := dismissed[ev.ID()]; !ok {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (s *Server) handleEvents(c *gin.Context) {
	events, err := s.visible(c.Request.Context())
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "Failed to load events", err)
		return
	}
	views := make([]eventView, 0, len(events))
	for _, ev := range events {
		views = append(views, newEventView(ev))
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) handleCalendar(c *gin.Context) {
	events, err := s.visible(c.Request.Context())
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "Failed to load events", err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="calendarbot.ics"`)
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(BuildCalendar(events, s.now())))
}

// BuildCalendar renders events as an iCalendar document. UIDs derive from
// the event ID so that clients update rather than duplicate entries.
func BuildCalendar(events []event.CalendarEvent, stamp time.Time) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//calendarbot//EN")
	cal.SetXWRCalName("calendarbot")

	for _, ev := range events {
		ve := cal.AddEvent(ev.ID() + "@calendarbot")
		ve.SetDtStampTime(stamp.UTC())
		ve.SetStartAt(ev.Start.UTC())
		ve.SetEndAt(ev.EffectiveEnd().UTC())
		ve.SetSummary(ev.Title)
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}
		if ev.Location != "" {
			ve.SetLocation(ev.Location)
		}
		if ev.ExternalLink != "" {
			ve.SetURL(ev.ExternalLink)
		}
	}
	return cal.Serialize()
}

type dismissRequest struct {
	EventID string `json:"eventId" binding:"required"`
}

func (s *Server) handleDismiss(c *gin.Context) {
	var req dismissRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, "eventId is required", nil)
		return
	}
	if err := s.deps.Dismissed.Add(req.EventID); err != nil {
		s.fail(c, http.StatusInternalServerError, "Failed to dismiss event", err)
		return
	}
	s.log.InfoContext(c.Request.Context(), "Event dismissed", "event_id", req.EventID)
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (s *Server) handleClearDismissed(c *gin.Context) {
	if err := s.deps.Dismissed.Clear(); err != nil {
		s.fail(c, http.StatusInternalServerError, "Failed to clear dismissed events", err)
		return
	}
	s.log.InfoContext(c.Request.Context(), "All dismissed events cleared")
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}
