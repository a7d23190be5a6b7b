package mockrepository

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"insights-service/internal/model"
	"insights-service/internal/repository"
)

type EventRepository struct {
	mock.Mock
}

// Interface compliance check
var _ repository.EventRepository = &EventRepository{}

func (m *EventRepository) Create(ctx context.Context, event model.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *EventRepository) CreateBatch(ctx context.Context, events []model.Event) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

type InsightRepository struct {
	mock.Mock
}

var _ repository.InsightRepository = &InsightRepository{}

func (m *InsightRepository) TrendCounts(ctx context.Context, q repository.TrendQuery) ([]repository.BucketCount, error) {
	args := m.Called(ctx, q)
	var out []repository.BucketCount
	if v := args.Get(0); v != nil {
		out = v.([]repository.BucketCount)
	}
	return out, args.Error(1)
}

func (m *InsightRepository) TrendAggregate(ctx context.Context, q repository.TrendQuery) ([]repository.AggregateValue, error) {
	args := m.Called(ctx, q)
	var out []repository.AggregateValue
	if v := args.Get(0); v != nil {
		out = v.([]repository.AggregateValue)
	}
	return out, args.Error(1)
}

func (m *InsightRepository) BreakdownValues(ctx context.Context, q repository.TrendQuery, limit int) ([]string, error) {
	args := m.Called(ctx, q, limit)
	var out []string
	if v := args.Get(0); v != nil {
		out = v.([]string)
	}
	return out, args.Error(1)
}

func (m *InsightRepository) LifecycleCounts(ctx context.Context, q repository.LifecycleQuery) ([]repository.LifecycleCount, error) {
	args := m.Called(ctx, q)
	var out []repository.LifecycleCount
	if v := args.Get(0); v != nil {
		out = v.([]repository.LifecycleCount)
	}
	return out, args.Error(1)
}

func (m *InsightRepository) LifecyclePeople(ctx context.Context, q repository.LifecyclePeopleQuery) ([]model.LifecyclePerson, error) {
	args := m.Called(ctx, q)
	var out []model.LifecyclePerson
	if v := args.Get(0); v != nil {
		out = v.([]model.LifecyclePerson)
	}
	return out, args.Error(1)
}

func (m *InsightRepository) PathEdges(ctx context.Context, q repository.PathQuery) ([]model.PathEdge, error) {
	args := m.Called(ctx, q)
	var out []model.PathEdge
	if v := args.Get(0); v != nil {
		out = v.([]model.PathEdge)
	}
	return out, args.Error(1)
}

func (m *InsightRepository) EarliestTimestamp(ctx context.Context, teamID int64) (time.Time, bool, error) {
	args := m.Called(ctx, teamID)
	return args.Get(0).(time.Time), args.Bool(1), args.Error(2)
}

type TeamRepository struct {
	mock.Mock
}

var _ repository.TeamRepository = &TeamRepository{}

func (m *TeamRepository) Get(ctx context.Context, teamID int64) (model.Team, error) {
	args := m.Called(ctx, teamID)
	return args.Get(0).(model.Team), args.Error(1)
}

type ActionRepository struct {
	mock.Mock
}

var _ repository.ActionRepository = &ActionRepository{}

func (m *ActionRepository) Steps(ctx context.Context, teamID, actionID int64) ([]model.ActionStep, error) {
	args := m.Called(ctx, teamID, actionID)
	var out []model.ActionStep
	if v := args.Get(0); v != nil {
		out = v.([]model.ActionStep)
	}
	return out, args.Error(1)
}
