package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"insights-service/internal/model"
	"insights-service/internal/repository"
)

// eventService wires business logic for event ingestion.
type eventService struct {
	repo            repository.EventRepository
	worker          BatchEventWorker
	now             func() time.Time
	futureTolerance time.Duration
}

type EventService interface {
	BuildEvent(req model.EventRequest, teamID int64) (model.Event, error)
	ProcessEvent(ctx context.Context, event model.Event) (model.EventResult, error)
}

// NewEventService constructs an eventService.
func NewEventService(repo repository.EventRepository, worker BatchEventWorker, futureTolerance time.Duration) EventService {
	return &eventService{
		repo:            repo,
		worker:          worker,
		now:             time.Now,
		futureTolerance: futureTolerance,
	}
}

// BuildEvent validates and constructs an Event from an incoming request.
func (s *eventService) BuildEvent(req model.EventRequest, teamID int64) (model.Event, error) {
	if req.Event == "" {
		return model.Event{}, &ValidationError{Message: "event is required"}
	}

	if req.DistinctID == "" {
		return model.Event{}, &ValidationError{Message: "distinct_id is required"}
	}

	if req.Timestamp == 0 {
		return model.Event{}, &ValidationError{Message: "timestamp is required"}
	}

	ts := time.Unix(req.Timestamp, 0).UTC()
	if s.futureTolerance > 0 {
		if err := ValidateTimestamp(ts, s.now(), s.futureTolerance); err != nil {
			return model.Event{}, &ValidationError{Message: err.Error()}
		}
	}

	properties := req.Properties
	if properties == nil {
		properties = map[string]any{}
	}

	event := model.Event{
		UUID:       uuid.NewString(),
		TeamID:     teamID,
		Event:      req.Event,
		DistinctID: req.DistinctID,
		Timestamp:  ts,
		Properties: properties,
	}

	return event, nil
}

// ProcessEvent hands a single event to the batch worker.
func (s *eventService) ProcessEvent(ctx context.Context, event model.Event) (model.EventResult, error) {
	s.worker.Enqueue(event)
	return model.EventResult{Status: "created"}, nil
}

// ValidateTimestamp ensures timestamps are not too far in the future.
func ValidateTimestamp(ts time.Time, now time.Time, tolerance time.Duration) error {
	if tolerance <= 0 {
		return nil
	}
	if ts.After(now.Add(tolerance)) {
		return errors.New("timestamp cannot be in the future")
	}
	return nil
}
