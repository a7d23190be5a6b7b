package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"insights-service/internal/model"
	"insights-service/internal/repository"
	"insights-service/internal/testdata/mockrepository"
)

type InsightServiceTestSuite struct {
	suite.Suite

	insights *mockrepository.InsightRepository
	teams    *mockrepository.TeamRepository
	actions  *mockrepository.ActionRepository

	service *insightService
	ctx     context.Context
}

func TestInsightServiceSuite(t *testing.T) {
	suite.Run(t, new(InsightServiceTestSuite))
}

func (s *InsightServiceTestSuite) SetupTest() {
	s.insights = &mockrepository.InsightRepository{}
	s.teams = &mockrepository.TeamRepository{}
	s.actions = &mockrepository.ActionRepository{}

	svc := NewInsightService(s.insights, s.teams, s.actions)
	s.service = svc.(*insightService)
	s.service.now = func() time.Time { return time.Date(2020, 1, 15, 12, 0, 0, 0, time.UTC) }
	s.ctx = context.Background()

	s.teams.On("Get", mock.Anything, int64(1)).Return(model.Team{ID: 1, Timezone: "UTC"}, nil).Maybe()
}

func (s *InsightServiceTestSuite) pageviewRequest(from, to string) model.FilterRequest {
	return model.FilterRequest{
		DateFrom: from,
		DateTo:   to,
		Events:   []model.EntityRequest{{ID: "$pageview", Type: "events"}},
	}
}

func day(d int) time.Time {
	return time.Date(2020, 1, d, 0, 0, 0, 0, time.UTC)
}

func (s *InsightServiceTestSuite) TestTrends_ZeroFillsEmptyBuckets() {
	rows := []repository.BucketCount{
		{Bucket: day(2), Value: 1},
		{Bucket: day(3), Value: 2},
	}
	s.insights.On("TrendCounts", mock.Anything, mock.MatchedBy(func(q repository.TrendQuery) bool {
		return q.From.Equal(day(1)) && q.To.Equal(day(9)) && q.Interval == model.IntervalDay
	})).Return(rows, nil).Once()

	series, err := s.service.Trends(s.ctx, s.pageviewRequest("2020-01-01", "2020-01-08"), 1)

	s.NoError(err)
	s.Require().Len(series, 1)
	s.Equal("$pageview", series[0].Label)
	s.Equal([]float64{0, 1, 2, 0, 0, 0, 0, 0}, series[0].Data)
	s.Equal(3.0, series[0].Count)
	s.Len(series[0].Labels, 8)
	s.Equal("Wed. 1 January", series[0].Labels[0])
	s.Equal("2020-01-01", series[0].Days[0])
}

func (s *InsightServiceTestSuite) TestTrends_CumulativeRunningSum() {
	rows := []repository.BucketCount{
		{Bucket: day(1), Value: 1},
		{Bucket: day(3), Value: 2},
	}
	s.insights.On("TrendCounts", mock.Anything, mock.Anything).Return(rows, nil).Once()

	req := s.pageviewRequest("2020-01-01", "2020-01-04")
	req.Display = string(model.DisplayCumulativeLine)

	series, err := s.service.Trends(s.ctx, req, 1)

	s.NoError(err)
	s.Require().Len(series, 1)
	s.Equal([]float64{1, 1, 3, 3}, series[0].Data)
	s.Equal(3.0, series[0].Count, "cumulative count is the final running total")
}

func (s *InsightServiceTestSuite) TestTrends_CompareProducesAlignedPeriods() {
	s.insights.On("TrendCounts", mock.Anything, mock.MatchedBy(func(q repository.TrendQuery) bool {
		return q.From.Equal(day(8))
	})).Return([]repository.BucketCount{{Bucket: day(9), Value: 5}}, nil).Once()
	s.insights.On("TrendCounts", mock.Anything, mock.MatchedBy(func(q repository.TrendQuery) bool {
		return q.From.Equal(day(5))
	})).Return([]repository.BucketCount{{Bucket: day(5), Value: 2}}, nil).Once()

	req := s.pageviewRequest("2020-01-08", "2020-01-10")
	req.Compare = true

	series, err := s.service.Trends(s.ctx, req, 1)

	s.NoError(err)
	s.Require().Len(series, 2)

	current, previous := series[0], series[1]
	s.Equal("current", current.CompareLabel)
	s.Equal("previous", previous.CompareLabel)
	s.Equal("$pageview - current", current.Label)
	s.Equal("$pageview - previous", previous.Label)

	// Both periods share one positional axis.
	s.Equal(len(current.Data), len(previous.Data))
	s.Equal([]string{"day 0", "day 1", "day 2"}, current.Labels)
	s.Equal([]string{"day 0", "day 1", "day 2"}, previous.Labels)
	s.Equal([]float64{0, 5, 0}, current.Data)
	s.Equal([]float64{2, 0, 0}, previous.Data)
}

func (s *InsightServiceTestSuite) TestTrends_SingleAggregateDisplay() {
	s.insights.On("TrendAggregate", mock.Anything, mock.MatchedBy(func(q repository.TrendQuery) bool {
		return q.Math == model.MathDAU
	})).Return([]repository.AggregateValue{{Value: 42}}, nil).Once()

	req := s.pageviewRequest("2020-01-01", "2020-01-08")
	req.Display = string(model.DisplayTable)
	req.Events[0].Math = "dau"

	series, err := s.service.Trends(s.ctx, req, 1)

	s.NoError(err)
	s.Require().Len(series, 1)
	s.Require().NotNil(series[0].AggregatedValue)
	s.Equal(42.0, *series[0].AggregatedValue)
	s.Nil(series[0].Data)
	s.insights.AssertNotCalled(s.T(), "TrendCounts", mock.Anything, mock.Anything)
}

func (s *InsightServiceTestSuite) TestTrends_BreakdownFoldsOverflowIntoOther() {
	values := make([]string, 21)
	for i := range values {
		values[i] = string(rune('a' + i))
	}
	s.insights.On("BreakdownValues", mock.Anything, mock.Anything, 21).Return(values, nil).Once()

	s.insights.On("TrendCounts", mock.Anything, mock.MatchedBy(func(q repository.TrendQuery) bool {
		return q.Breakdown != nil && len(q.Breakdown.FoldValues) == 20
	})).Return([]repository.BucketCount{
		{Bucket: day(2), Breakdown: "a", Value: 7},
		{Bucket: day(2), Breakdown: "Other", Value: 3},
	}, nil).Once()

	req := s.pageviewRequest("2020-01-01", "2020-01-04")
	req.Breakdown = "$browser"

	series, err := s.service.Trends(s.ctx, req, 1)

	s.NoError(err)
	s.Require().Len(series, 21, "20 top values plus Other")
	s.Equal("a", series[0].BreakdownValue)
	s.Equal([]float64{0, 7, 0, 0}, series[0].Data)
	s.Equal("Other", series[20].BreakdownValue)
	s.Equal([]float64{0, 3, 0, 0}, series[20].Data)
}

func (s *InsightServiceTestSuite) TestTrends_BreakdownUnderLimitHasNoOther() {
	s.insights.On("BreakdownValues", mock.Anything, mock.Anything, 21).Return([]string{"Chrome", "Firefox"}, nil).Once()
	s.insights.On("TrendCounts", mock.Anything, mock.MatchedBy(func(q repository.TrendQuery) bool {
		return q.Breakdown != nil && len(q.Breakdown.FoldValues) == 2
	})).Return([]repository.BucketCount{}, nil).Once()

	req := s.pageviewRequest("2020-01-01", "2020-01-04")
	req.Breakdown = "$browser"

	series, err := s.service.Trends(s.ctx, req, 1)

	s.NoError(err)
	s.Require().Len(series, 2)
	for _, sr := range series {
		s.NotEqual("Other", sr.BreakdownValue)
	}
}

func (s *InsightServiceTestSuite) TestTrends_CohortBreakdown() {
	// One query per cohort plus the unrestricted "all" series.
	s.insights.On("TrendCounts", mock.Anything, mock.Anything).Return([]repository.BucketCount{}, nil).Times(3)

	req := s.pageviewRequest("2020-01-01", "2020-01-04")
	req.BreakdownType = "cohort"
	req.BreakdownCohorts = []int64{3, 8}

	series, err := s.service.Trends(s.ctx, req, 1)

	s.NoError(err)
	s.Require().Len(series, 3)
	s.Equal("3", series[0].BreakdownValue)
	s.Equal("8", series[1].BreakdownValue)
	s.Equal("all", series[2].BreakdownValue)
}

func (s *InsightServiceTestSuite) TestTrends_AllRangeResolvesEarliestEvent() {
	s.insights.On("EarliestTimestamp", mock.Anything, int64(1)).
		Return(time.Date(2020, 1, 3, 9, 30, 0, 0, time.UTC), true, nil).Once()
	s.insights.On("TrendCounts", mock.Anything, mock.MatchedBy(func(q repository.TrendQuery) bool {
		return q.From.Equal(day(3))
	})).Return([]repository.BucketCount{}, nil).Once()

	req := s.pageviewRequest("all", "2020-01-05")

	series, err := s.service.Trends(s.ctx, req, 1)

	s.NoError(err)
	s.Require().Len(series, 1)
	s.Len(series[0].Data, 3, "Jan 3 through Jan 5")
}

func (s *InsightServiceTestSuite) TestTrends_AllRangeWithNoEvents() {
	s.insights.On("EarliestTimestamp", mock.Anything, int64(1)).
		Return(time.Time{}, false, nil).Once()
	s.insights.On("TrendCounts", mock.Anything, mock.Anything).
		Return([]repository.BucketCount{}, nil).Once()

	req := s.pageviewRequest("all", "2020-01-05")

	series, err := s.service.Trends(s.ctx, req, 1)

	s.NoError(err)
	s.Require().Len(series, 1)
	s.Len(series[0].Data, 1, "range collapses to the single date_to bucket")
}

func (s *InsightServiceTestSuite) TestTrends_ActionEntityResolvesSteps() {
	s.actions.On("Steps", mock.Anything, int64(1), int64(42)).
		Return([]model.ActionStep{{ActionID: 42, Event: "sign up"}}, nil).Once()
	s.insights.On("TrendCounts", mock.Anything, mock.Anything).
		Return([]repository.BucketCount{}, nil).Once()

	req := model.FilterRequest{
		DateFrom: "2020-01-01",
		DateTo:   "2020-01-04",
		Actions:  []model.EntityRequest{{ID: "42", Name: "completed signup"}},
	}

	series, err := s.service.Trends(s.ctx, req, 1)

	s.NoError(err)
	s.Require().Len(series, 1)
	s.Equal("completed signup", series[0].Label)
	s.actions.AssertExpectations(s.T())
}

func (s *InsightServiceTestSuite) TestTrends_NoEntities() {
	_, err := s.service.Trends(s.ctx, model.FilterRequest{DateFrom: "2020-01-01", DateTo: "2020-01-04"}, 1)

	s.Error(err)
	s.IsType(&ValidationError{}, err)
}

func (s *InsightServiceTestSuite) TestTrends_Lifecycle() {
	counts := []repository.LifecycleCount{
		{Bucket: day(1), Status: model.LifecycleNew, Count: 1},
		{Bucket: day(2), Status: model.LifecycleDormant, Count: 1},
		{Bucket: day(3), Status: model.LifecycleResurrecting, Count: 1},
		{Bucket: day(4), Status: model.LifecycleReturning, Count: 1},
	}
	s.insights.On("LifecycleCounts", mock.Anything, mock.MatchedBy(func(q repository.LifecycleQuery) bool {
		return q.FirstBucket.Equal(day(1)) && q.LastBucket.Equal(day(4))
	})).Return(counts, nil).Once()

	req := s.pageviewRequest("2020-01-01", "2020-01-04")
	req.ShownAs = string(model.ShownAsLifecycle)

	series, err := s.service.Trends(s.ctx, req, 1)

	s.NoError(err)
	s.Require().Len(series, 4, "one series per status, always")

	byStatus := map[string]model.Series{}
	for _, sr := range series {
		byStatus[sr.Status] = sr
	}

	s.Equal([]float64{1, 0, 0, 0}, byStatus[model.LifecycleNew].Data)
	s.Equal([]float64{0, 0, 0, 1}, byStatus[model.LifecycleReturning].Data)
	s.Equal([]float64{0, 0, 1, 0}, byStatus[model.LifecycleResurrecting].Data)
	s.Equal([]float64{0, -1, 0, 0}, byStatus[model.LifecycleDormant].Data, "dormant counts are negated")

	s.Equal("$pageview - new", byStatus[model.LifecycleNew].Label)

	// Statuses come back in fixed order.
	s.Equal(model.LifecycleNew, series[0].Status)
	s.Equal(model.LifecycleDormant, series[3].Status)
}

func (s *InsightServiceTestSuite) TestLifecyclePeople() {
	people := []model.LifecyclePerson{{PersonID: "p1"}, {PersonID: "p2"}}
	s.insights.On("LifecyclePeople", mock.Anything, mock.MatchedBy(func(q repository.LifecyclePeopleQuery) bool {
		return q.Status == model.LifecycleDormant &&
			q.TargetBucket.Equal(day(13)) &&
			q.Limit == 100 && q.Offset == 200
	})).Return(people, nil).Once()

	req := s.pageviewRequest("2020-01-12", "2020-01-19")

	got, err := s.service.LifecyclePeople(s.ctx, req, 1, model.LifecycleDormant, "2020-01-13", 2)

	s.NoError(err)
	s.Equal(people, got)
}

func (s *InsightServiceTestSuite) TestLifecyclePeople_UnknownStatus() {
	req := s.pageviewRequest("2020-01-12", "2020-01-19")

	_, err := s.service.LifecyclePeople(s.ctx, req, 1, "hibernating", "2020-01-13", 0)

	s.Error(err)
	s.IsType(&ValidationError{}, err)
}
