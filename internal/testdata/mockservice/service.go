package mockservice

import (
	"context"

	"github.com/stretchr/testify/mock"

	"insights-service/internal/model"
)

type EventService struct {
	mock.Mock
}

func (m *EventService) BuildEvent(req model.EventRequest, teamID int64) (model.Event, error) {
	args := m.Called(req, teamID)
	return args.Get(0).(model.Event), args.Error(1)
}

func (m *EventService) ProcessEvent(ctx context.Context, event model.Event) (model.EventResult, error) {
	args := m.Called(ctx, event)
	return args.Get(0).(model.EventResult), args.Error(1)
}

type InsightService struct {
	mock.Mock
}

func (m *InsightService) Trends(ctx context.Context, req model.FilterRequest, teamID int64) ([]model.Series, error) {
	args := m.Called(ctx, req, teamID)
	var out []model.Series
	if v := args.Get(0); v != nil {
		out = v.([]model.Series)
	}
	return out, args.Error(1)
}

func (m *InsightService) LifecyclePeople(ctx context.Context, req model.FilterRequest, teamID int64, status, target string, page int) ([]model.LifecyclePerson, error) {
	args := m.Called(ctx, req, teamID, status, target, page)
	var out []model.LifecyclePerson
	if v := args.Get(0); v != nil {
		out = v.([]model.LifecyclePerson)
	}
	return out, args.Error(1)
}

type PathService struct {
	mock.Mock
}

func (m *PathService) Paths(ctx context.Context, req model.FilterRequest, teamID int64) ([]model.PathEdge, error) {
	args := m.Called(ctx, req, teamID)
	var out []model.PathEdge
	if v := args.Get(0); v != nil {
		out = v.([]model.PathEdge)
	}
	return out, args.Error(1)
}
