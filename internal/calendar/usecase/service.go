package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"codentor-backend/internal/calendar/domain"
	"codentor-backend/internal/calendar/repository"
	"codentor-backend/pkg/apperror"
	"codentor-backend/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/sync/singleflight"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	primaryCalendar = "primary"
	eventDuration   = time.Hour
	stateTTL        = 10 * time.Minute
	statePurpose    = "google_calendar"
)

var scopes = []string{calendar.CalendarScope, calendar.CalendarEventsScope}

type Options struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// StateSecret signs the OAuth state parameter.
	StateSecret string

	// Endpoint and APIEndpoint override Google's servers in tests.
	Endpoint    oauth2.Endpoint
	APIEndpoint string
}

// Service wraps the Google Calendar API for one user at a time. Each call
// builds its own authorized client from the stored grant.
type Service struct {
	oauth       *oauth2.Config
	tokens      repository.TokenRepository
	stateSecret []byte
	apiEndpoint string
	refreshes   singleflight.Group
	now         func() time.Time
}

func NewService(opts Options, tokens repository.TokenRepository) *Service {
	endpoint := opts.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = google.Endpoint
	}
	return &Service{
		oauth: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       scopes,
		},
		tokens:      tokens,
		stateSecret: []byte(opts.StateSecret),
		apiEndpoint: opts.APIEndpoint,
		now:         time.Now,
	}
}

func (s *Service) Configured() bool {
	return s.oauth.ClientID != "" && s.oauth.ClientSecret != ""
}

// GetAuthURL returns the consent URL. Offline access with a forced consent
// prompt makes Google return a refresh token every time.
func (s *Service) GetAuthURL(userID string) (string, error) {
	if !s.Configured() {
		return "", apperror.Configuration("google calendar is not configured")
	}
	state, err := s.signState(userID)
	if err != nil {
		return "", err
	}
	return s.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	), nil
}

func (s *Service) signState(userID string) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"purpose": statePurpose,
		"iat":     now.Unix(),
		"exp":     now.Add(stateTTL).Unix(),
	})
	return token.SignedString(s.stateSecret)
}

// ParseState recovers the user id from a state issued by GetAuthURL.
func (s *Service) ParseState(state string) (string, error) {
	token, err := jwt.Parse(state, func(*jwt.Token) (interface{}, error) {
		return s.stateSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", domain.ErrInvalidState
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims["purpose"] != statePurpose {
		return "", domain.ErrInvalidState
	}
	userID, _ := claims["user_id"].(string)
	if userID == "" {
		return "", domain.ErrInvalidState
	}
	return userID, nil
}

func (s *Service) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, apperror.Upstream("failed to exchange authorization code", err)
	}
	return token, nil
}

func (s *Service) SaveTokens(userID string, token *oauth2.Token) error {
	scope, _ := token.Extra("scope").(string)
	return s.tokens.Upsert(&domain.GoogleToken{
		UserID:       userID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		Scope:        scope,
		Expiry:       token.Expiry,
	})
}

func (s *Service) GetTokens(userID string) (*domain.GoogleToken, error) {
	token, err := s.tokens.FindByUserID(userID)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, domain.ErrNotConnected
	}
	return token, nil
}

func (s *Service) HasTokens(userID string) (bool, error) {
	return s.tokens.Exists(userID)
}

// RefreshAccessToken mints a new access token from the stored refresh token.
// Concurrent refreshes for one user share a single round trip.
func (s *Service) RefreshAccessToken(ctx context.Context, userID string) (*domain.GoogleToken, error) {
	v, err, _ := s.refreshes.Do(userID, func() (interface{}, error) {
		stored, err := s.GetTokens(userID)
		if err != nil {
			return nil, err
		}
		if stored.RefreshToken == "" {
			return nil, domain.ErrReconnectRequired
		}

		fresh, err := s.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: stored.RefreshToken}).Token()
		if err != nil {
			return nil, apperror.Upstream("failed to refresh google access token", err)
		}

		scope, _ := fresh.Extra("scope").(string)
		if err := s.tokens.UpdateAccessToken(userID, fresh.AccessToken, fresh.Expiry, scope); err != nil {
			return nil, err
		}

		logger.WithComponent("Calendar").WithField("user_id", userID).Debug("[Calendar] Access token refreshed")

		stored.AccessToken = fresh.AccessToken
		stored.Expiry = fresh.Expiry
		if scope != "" {
			stored.Scope = scope
		}
		return stored, nil
	})
	if err != nil {
		return nil, err
	}
	token := *v.(*domain.GoogleToken)
	return &token, nil
}

// GetCalendar returns a Calendar client authorized as userID, refreshing
// the access token first when it has expired.
func (s *Service) GetCalendar(ctx context.Context, userID string) (*calendar.Service, error) {
	stored, err := s.GetTokens(userID)
	if err != nil {
		return nil, err
	}
	if stored.Expired(s.now()) {
		if stored, err = s.RefreshAccessToken(ctx, userID); err != nil {
			return nil, err
		}
	}

	src := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: stored.AccessToken,
		TokenType:   "Bearer",
		Expiry:      stored.Expiry,
	})
	opts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, src))}
	if s.apiEndpoint != "" {
		opts = append(opts, option.WithEndpoint(s.apiEndpoint))
	}

	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create calendar client: %w", err)
	}
	return svc, nil
}

func buildEvent(in domain.EventInput) *calendar.Event {
	start := in.Start.UTC()
	return &calendar.Event{
		Summary:     in.Title,
		Description: in.Description,
		Start:       &calendar.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: "UTC"},
		End:         &calendar.EventDateTime{DateTime: start.Add(eventDuration).Format(time.RFC3339), TimeZone: "UTC"},
		Reminders: &calendar.EventReminders{
			UseDefault: false,
			Overrides: []*calendar.EventReminder{
				{Method: "email", Minutes: 24 * 60},
				{Method: "popup", Minutes: 60},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}
}

func (s *Service) CreateEvent(ctx context.Context, userID string, in domain.EventInput) (string, error) {
	svc, err := s.GetCalendar(ctx, userID)
	if err != nil {
		return "", err
	}
	created, err := svc.Events.Insert(primaryCalendar, buildEvent(in)).Context(ctx).Do()
	if err != nil {
		return "", apperror.Upstream("failed to create calendar event", err)
	}
	return created.Id, nil
}

func (s *Service) UpdateEvent(ctx context.Context, userID, eventID string, in domain.EventInput) error {
	svc, err := s.GetCalendar(ctx, userID)
	if err != nil {
		return err
	}
	if _, err := svc.Events.Update(primaryCalendar, eventID, buildEvent(in)).Context(ctx).Do(); err != nil {
		return apperror.Upstream("failed to update calendar event", err)
	}
	return nil
}

// DeleteEvent removes the event. An event that is already gone counts as deleted.
func (s *Service) DeleteEvent(ctx context.Context, userID, eventID string) error {
	svc, err := s.GetCalendar(ctx, userID)
	if err != nil {
		return err
	}
	if err := svc.Events.Delete(primaryCalendar, eventID).Context(ctx).Do(); err != nil {
		if isGone(err) {
			return nil
		}
		return apperror.Upstream("failed to delete calendar event", err)
	}
	return nil
}

// ListEvents expands recurring events and returns every page in start order.
func (s *Service) ListEvents(ctx context.Context, userID string, timeMin, timeMax time.Time) ([]domain.Event, error) {
	svc, err := s.GetCalendar(ctx, userID)
	if err != nil {
		return nil, err
	}

	events := make([]domain.Event, 0)
	err = svc.Events.List(primaryCalendar).
		TimeMin(timeMin.UTC().Format(time.RFC3339)).
		TimeMax(timeMax.UTC().Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(250).
		Pages(ctx, func(page *calendar.Events) error {
			for _, item := range page.Items {
				events = append(events, toEvent(item))
			}
			return nil
		})
	if err != nil {
		return nil, apperror.Upstream("failed to list calendar events", err)
	}
	return events, nil
}

func (s *Service) Disconnect(userID string) error {
	return s.tokens.Delete(userID)
}

func toEvent(item *calendar.Event) domain.Event {
	ev := domain.Event{
		ID:          item.Id,
		Title:       item.Summary,
		Description: item.Description,
		HTMLURL:     item.HtmlLink,
	}
	if item.Start != nil {
		if item.Start.DateTime == "" && item.Start.Date != "" {
			ev.AllDay = true
		}
		ev.Start = parseEventTime(item.Start)
	}
	if item.End != nil {
		ev.End = parseEventTime(item.End)
	}
	return ev
}

func parseEventTime(t *calendar.EventDateTime) *time.Time {
	if t.DateTime != "" {
		if parsed, err := time.Parse(time.RFC3339, t.DateTime); err == nil {
			return &parsed
		}
	}
	if t.Date != "" {
		if parsed, err := time.Parse("2006-01-02", t.Date); err == nil {
			return &parsed
		}
	}
	return nil
}

func isGone(err error) bool {
	var gErr *googleapi.Error
	return errors.As(err, &gErr) && (gErr.Code == http.StatusNotFound || gErr.Code == http.StatusGone)
}
