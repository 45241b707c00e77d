package lib

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// CalendarAPI is the calendar channel. The default implementation talks to the
// Google Calendar API; tests swap it out with NewCalendarAPI.
type CalendarAPI interface {
	InsertEvent(calId string, e *calendar.Event) (string, error)
}

var calendarAPI CalendarAPI = &gapiCalendar{}

// NewCalendarAPI Replace calendar client with custom implementation
func NewCalendarAPI(c CalendarAPI) CalendarAPI {
	calendarAPI = c
	return calendarAPI
}

func AddCalendarEvent(calId string, e *calendar.Event) (string, error) {
	return calendarAPI.InsertEvent(calId, e)
}

var calsvc *calendar.Service

func getCalendarClient(conf *oauth2.Config) (*http.Client, error) {
	tokFile, err := os.Open(path.Join(os.Getenv("SECRETS_DIR"), "token.json"))
	if err != nil {
		return nil, err
	}
	defer tokFile.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(tokFile).Decode(tok); err != nil {
		return nil, err
	}

	cli := conf.Client(context.Background(), tok)
	return cli, nil
}

func gapiGetCalendarService() (svc *calendar.Service, err error) {
	if calsvc != nil {
		return calsvc, nil
	}
	secretsPath := os.Getenv("SECRETS_DIR")
	b, err := os.ReadFile(path.Join(secretsPath, "client_secret.json"))
	if err != nil {
		return nil, err
	}
	conf, err := google.ConfigFromJSON(b, calendar.CalendarEventsScope)
	if err != nil {
		return nil, err
	}
	cli, err := getCalendarClient(conf)
	if err != nil {
		return nil, err
	}
	srv, err := calendar.NewService(context.Background(), option.WithHTTPClient(cli))
	if err != nil {
		return nil, err
	}
	calsvc = srv
	return srv, nil
}

type gapiCalendar struct{}

func (g *gapiCalendar) InsertEvent(calId string, e *calendar.Event) (string, error) {
	svc, err := gapiGetCalendarService()
	if err != nil {
		return "", err
	}
	created, err := svc.Events.Insert(calId, e).Do()
	if err != nil {
		return "", err
	}
	return created.Id, nil
}
