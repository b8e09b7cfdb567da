package google

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/klokku/calsync/internal/utils"
	"github.com/klokku/calsync/pkg/calendar"
	log "github.com/sirupsen/logrus"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
)

// Gateway implements calendar.Gateway on top of the Google Calendar API.
type Gateway struct {
	service  *gcal.Service
	clock    utils.Clock
	pageSize int64
}

func newGateway(service *gcal.Service, clock utils.Clock, pageSize int64) *Gateway {
	return &Gateway{service: service, clock: clock, pageSize: pageSize}
}

func (g *Gateway) ListCalendars(ctx context.Context) ([]calendar.Calendar, error) {
	log.Debug("Loading calendar list...")
	var calendars []calendar.Calendar
	err := g.service.CalendarList.List().Pages(ctx, func(page *gcal.CalendarList) error {
		for _, item := range page.Items {
			calendars = append(calendars, calendar.Calendar{ID: item.Id, Summary: item.Summary})
		}
		return nil
	})
	if err != nil {
		err := &calendar.GatewayError{Op: "list calendars", Err: translate(err)}
		log.Error(err)
		return nil, err
	}
	return calendars, nil
}

func (g *Gateway) FindCalendarByName(ctx context.Context, name string) (calendar.Calendar, error) {
	log.Debugf("Finding calendar by name %s...", name)
	calendars, err := g.ListCalendars(ctx)
	if err != nil {
		return calendar.Calendar{}, err
	}
	found, err := calendar.MatchCalendarByName(calendars, name)
	if err != nil {
		log.Error(err)
		return calendar.Calendar{}, err
	}
	log.Debugf("Calendar found: %s (%s)", found.Summary, found.ID)
	return found, nil
}

func (g *Gateway) ListUpcomingEvents(ctx context.Context, cal calendar.Calendar) ([]calendar.Event, error) {
	log.Debugf("Loading events for calendar %s...", cal.Summary)
	call := g.service.Events.List(cal.ID).
		TimeMin(g.clock.Now().Format(time.RFC3339)).
		ShowHiddenInvitations(true)
	if g.pageSize > 0 {
		call = call.MaxResults(g.pageSize)
	}

	var events []calendar.Event
	err := call.Pages(ctx, func(page *gcal.Events) error {
		for _, item := range page.Items {
			events = append(events, fromGoogleEvent(item))
		}
		return nil
	})
	if err != nil {
		err := &calendar.GatewayError{Op: "list", Calendar: cal.Summary, Err: translate(err)}
		log.Error(err)
		return nil, err
	}
	log.Debugf("%d events found in %s", len(events), cal.Summary)
	return events, nil
}

func (g *Gateway) CreateEvent(ctx context.Context, cal calendar.Calendar, event calendar.Event) (calendar.Event, error) {
	log.Debugf("Add event %s, %s to calendar %s...", event.Summary, event.Start.DateTime, cal.Summary)
	created, err := g.service.Events.Insert(cal.ID, toGoogleEvent(event)).Context(ctx).Do()
	if err != nil {
		return calendar.Event{}, &calendar.GatewayError{Op: "create", Calendar: cal.Summary, Summary: event.Summary, Err: translate(err)}
	}
	return fromGoogleEvent(created), nil
}

func (g *Gateway) UpdateEvent(ctx context.Context, cal calendar.Calendar, event calendar.Event) error {
	if event.ID == "" {
		return &calendar.GatewayError{Op: "update", Calendar: cal.Summary, Summary: event.Summary, Err: calendar.ErrMissingEventID}
	}
	log.Debugf("Update event %s, %s in calendar %s...", event.Summary, event.Start.DateTime, cal.Summary)
	_, err := g.service.Events.Update(cal.ID, event.ID, toGoogleEvent(event)).Context(ctx).Do()
	if err != nil {
		return &calendar.GatewayError{Op: "update", Calendar: cal.Summary, EventID: event.ID, Summary: event.Summary, Err: translate(err)}
	}
	return nil
}

func (g *Gateway) DeleteEvent(ctx context.Context, cal calendar.Calendar, event calendar.Event) error {
	if event.ID == "" {
		return &calendar.GatewayError{Op: "delete", Calendar: cal.Summary, Summary: event.Summary, Err: calendar.ErrMissingEventID}
	}
	log.Debugf("Remove event %s, %s from calendar %s...", event.Summary, event.Start.DateTime, cal.Summary)
	err := g.service.Events.Delete(cal.ID, event.ID).Context(ctx).Do()
	if err != nil {
		return &calendar.GatewayError{Op: "delete", Calendar: cal.Summary, EventID: event.ID, Summary: event.Summary, Err: translate(err)}
	}
	return nil
}

// translate maps API status codes onto the calendar package sentinels,
// keeping the original error in the chain.
func translate(err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.Code {
	case http.StatusConflict, http.StatusPreconditionFailed:
		return errors.Join(calendar.ErrStaleRevision, err)
	case http.StatusNotFound, http.StatusGone:
		return errors.Join(calendar.ErrEventNotFound, err)
	case http.StatusUnauthorized:
		return errors.Join(ErrUnauthenticated, err)
	}
	return err
}

func toGoogleEvent(e calendar.Event) *gcal.Event {
	ge := &gcal.Event{
		Summary:     e.Summary,
		Description: e.Description,
		Start:       toGoogleTime(e.Start),
		End:         toGoogleTime(e.End),
		Sequence:    e.Revision,
		Recurrence:  e.Recurrence,
		Visibility:  string(e.Visibility),
	}
	if len(e.Provenance) > 0 {
		ge.ExtendedProperties = &gcal.EventExtendedProperties{Shared: e.Provenance}
	}
	return ge
}

func fromGoogleEvent(ge *gcal.Event) calendar.Event {
	e := calendar.Event{
		ID:          ge.Id,
		ICalUID:     ge.ICalUID,
		Summary:     ge.Summary,
		Description: ge.Description,
		Start:       fromGoogleTime(ge.Start),
		End:         fromGoogleTime(ge.End),
		Visibility:  calendar.Visibility(ge.Visibility),
		Revision:    ge.Sequence,
		Recurrence:  ge.Recurrence,
	}
	if e.Visibility == "" {
		e.Visibility = calendar.VisibilityDefault
	}
	if ge.ExtendedProperties != nil && len(ge.ExtendedProperties.Shared) > 0 {
		e.Provenance = make(map[string]string, len(ge.ExtendedProperties.Shared))
		for k, v := range ge.ExtendedProperties.Shared {
			e.Provenance[k] = v
		}
	}
	return e
}

func toGoogleTime(t calendar.EventTime) *gcal.EventDateTime {
	return &gcal.EventDateTime{Date: t.Date, DateTime: t.DateTime, TimeZone: t.TimeZone}
}

func fromGoogleTime(t *gcal.EventDateTime) calendar.EventTime {
	if t == nil {
		return calendar.EventTime{}
	}
	return calendar.EventTime{Date: t.Date, DateTime: t.DateTime, TimeZone: t.TimeZone}
}
