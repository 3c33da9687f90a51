package calsync

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
)

// CalDAVProvider stores events on a CalDAV server, one object per item.
type CalDAVProvider struct {
	client  *caldav.Client
	encoder *Encoder
}

func NewCalDAVProvider(endpoint, username, password string, httpClient *http.Client, encoder *Encoder) (*CalDAVProvider, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	var hc webdav.HTTPClient = httpClient
	if username != "" {
		hc = webdav.HTTPClientWithBasicAuth(httpClient, username, password)
	}

	client, err := caldav.NewClient(hc, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create CalDAV client: %w", err)
	}

	return &CalDAVProvider{client: client, encoder: encoder}, nil
}

func (p *CalDAVProvider) ListCalendars(ctx context.Context) ([]Calendar, error) {
	principal, err := p.client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find current user principal: %w", err)
	}

	homeSet, err := p.client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("failed to find calendar home set: %w", err)
	}

	found, err := p.client.FindCalendars(ctx, homeSet)
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}

	calendars := make([]Calendar, 0, len(found))
	for _, c := range found {
		calendars = append(calendars, Calendar{
			Name:        c.Name,
			URL:         c.Path,
			Description: c.Description,
		})
	}

	slog.Debug("CalDAV calendars listed", "count", len(calendars))
	return calendars, nil
}

func (p *CalDAVProvider) UpsertEvent(ctx context.Context, calendarURL string, event Event) (string, error) {
	objectPath := path.Join(strings.TrimRight(calendarURL, "/"), event.UID+".ics")

	obj, err := p.client.PutCalendarObject(ctx, objectPath, p.encoder.Calendar("", event))
	if err != nil {
		return "", fmt.Errorf("failed to put calendar object %s: %w", objectPath, err)
	}

	if obj != nil && obj.Path != "" {
		return obj.Path, nil
	}
	return objectPath, nil
}
