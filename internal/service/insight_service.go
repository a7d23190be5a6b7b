package service

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"insights-service/internal/dates"
	"insights-service/internal/model"
	"insights-service/internal/query"
	"insights-service/internal/repository"
)

// breakdownLimit caps the distinct breakdown values surfaced per entity;
// overflow is folded into one synthetic "Other" series.
const breakdownLimit = 20

// lifecyclePageSize is the fixed page size of the lifecycle people lookup.
const lifecyclePageSize = 100

// otherBreakdownValue collects every breakdown value beyond the top ones.
const otherBreakdownValue = "Other"

// InsightService answers trend and lifecycle queries: it compiles the filter,
// fixes the bucket sequence, pushes the aggregation into the store and shapes
// the result into chart-ready series.
type InsightService interface {
	Trends(ctx context.Context, req model.FilterRequest, teamID int64) ([]model.Series, error)
	LifecyclePeople(ctx context.Context, req model.FilterRequest, teamID int64, status, target string, page int) ([]model.LifecyclePerson, error)
}

type insightService struct {
	insights repository.InsightRepository
	teams    repository.TeamRepository
	actions  repository.ActionRepository
	now      func() time.Time
}

// NewInsightService constructs an insightService.
func NewInsightService(insights repository.InsightRepository, teams repository.TeamRepository, actions repository.ActionRepository) InsightService {
	return &insightService{
		insights: insights,
		teams:    teams,
		actions:  actions,
		now:      time.Now,
	}
}

// Trends runs the full trend pipeline for every entity of the filter. A
// lifecycle filter switches to the classifier. Entities whose predicate fails
// to compile are skipped so sibling entities still produce series.
func (s *insightService) Trends(ctx context.Context, req model.FilterRequest, teamID int64) ([]model.Series, error) {
	team, err := s.teams.Get(ctx, teamID)
	if err != nil {
		return nil, err
	}

	filter, err := ParseFilter(req, team, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.resolveAllRange(ctx, &filter, team); err != nil {
		return nil, err
	}

	if filter.ShownAs == model.ShownAsLifecycle {
		return s.lifecycle(ctx, filter, team)
	}

	buckets := dates.BuildBuckets(filter.DateFrom, filter.DateTo, filter.Interval)
	if len(buckets) == 0 {
		return []model.Series{}, nil
	}

	if !filter.Compare {
		return s.trendSeries(ctx, filter, team, buckets, "")
	}

	// Compare mode: the previous period is the same bucket sequence shifted
	// back by its own length, so both runs align positionally on one axis.
	previous := make([]dates.Bucket, len(buckets))
	for i, b := range buckets {
		previous[i] = dates.Bucket{
			Start: dates.Shift(b.Start, filter.Interval, -len(buckets)),
			End:   dates.Shift(b.End, filter.Interval, -len(buckets)),
		}
	}

	current, err := s.trendSeries(ctx, filter, team, buckets, "current")
	if err != nil {
		return nil, err
	}
	prior, err := s.trendSeries(ctx, filter, team, previous, "previous")
	if err != nil {
		return nil, err
	}
	return append(current, prior...), nil
}

func (s *insightService) trendSeries(ctx context.Context, filter model.Filter, team model.Team, buckets []dates.Bucket, compareLabel string) ([]model.Series, error) {
	if len(filter.Entities) == 0 {
		return nil, &ValidationError{Message: "events or actions are required"}
	}

	out := []model.Series{}
	for _, entity := range filter.Entities {
		series, err := s.entitySeries(ctx, filter, team, entity, buckets, compareLabel)
		if err != nil {
			if _, ok := err.(*ValidationError); ok {
				// Per-entity isolation: one bad entity must not abort its
				// siblings.
				log.Printf("skipping entity %q: %v", entity.Label(), err)
				continue
			}
			return nil, err
		}
		out = append(out, series...)
	}
	return out, nil
}

func (s *insightService) entitySeries(ctx context.Context, filter model.Filter, team model.Team, entity model.Entity, buckets []dates.Bucket, compareLabel string) ([]model.Series, error) {
	predicate, err := s.compilePredicate(ctx, filter, team, entity)
	if err != nil {
		return nil, err
	}

	base := repository.TrendQuery{
		TeamID:       team.ID,
		Timezone:     filter.Location.String(),
		From:         buckets[0].Start,
		To:           buckets[len(buckets)-1].End,
		Interval:     filter.Interval,
		Predicate:    predicate,
		Math:         entity.Math,
		MathProperty: entity.MathProperty,
	}

	if filter.Breakdown == nil {
		series, err := s.plainSeries(ctx, base, filter, entity, buckets, "", compareLabel)
		if err != nil {
			return nil, err
		}
		return []model.Series{series}, nil
	}

	if filter.Breakdown.Type == model.BreakdownCohort {
		return s.cohortSeries(ctx, base, filter, team, entity, buckets, compareLabel)
	}
	return s.breakdownSeries(ctx, base, filter, entity, buckets, compareLabel)
}

// plainSeries computes one series without breakdown.
func (s *insightService) plainSeries(ctx context.Context, q repository.TrendQuery, filter model.Filter, entity model.Entity, buckets []dates.Bucket, breakdownValue, compareLabel string) (model.Series, error) {
	if filter.Display.SingleAggregate() {
		rows, err := s.insights.TrendAggregate(ctx, q)
		if err != nil {
			return model.Series{}, err
		}
		value := 0.0
		if len(rows) > 0 {
			value = rows[0].Value
		}
		return aggregateSeries(entity, value, breakdownValue, compareLabel), nil
	}

	rows, err := s.insights.TrendCounts(ctx, q)
	if err != nil {
		return model.Series{}, err
	}
	data := zeroFill(rows, buckets, filter.Interval)
	return bucketSeries(entity, filter, buckets, data, breakdownValue, compareLabel), nil
}

// cohortSeries computes one series per requested cohort, plus the implicit
// "all" series, each via its own membership-restricted predicate.
func (s *insightService) cohortSeries(ctx context.Context, base repository.TrendQuery, filter model.Filter, team model.Team, entity model.Entity, buckets []dates.Bucket, compareLabel string) ([]model.Series, error) {
	var out []model.Series
	for _, cohortID := range filter.Breakdown.CohortIDs {
		q := base
		q.Predicate = query.Compiled{
			Expr:        query.AndExpr{base.Predicate.Expr, query.CohortExpr(team.ID, cohortID)},
			JoinPersons: base.Predicate.JoinPersons,
		}
		series, err := s.plainSeries(ctx, q, filter, entity, buckets, strconv.FormatInt(cohortID, 10), compareLabel)
		if err != nil {
			return nil, err
		}
		out = append(out, series)
	}

	series, err := s.plainSeries(ctx, base, filter, entity, buckets, "all", compareLabel)
	if err != nil {
		return nil, err
	}
	return append(out, series), nil
}

// breakdownSeries splits one entity by a property value: top values by volume
// first, then one grouped store query whose overflow rows are folded into
// "Other".
func (s *insightService) breakdownSeries(ctx context.Context, base repository.TrendQuery, filter model.Filter, entity model.Entity, buckets []dates.Bucket, compareLabel string) ([]model.Series, error) {
	probe := base
	probe.Breakdown = &repository.BreakdownSpec{Type: filter.Breakdown.Type, Key: filter.Breakdown.Property}

	values, err := s.insights.BreakdownValues(ctx, probe, breakdownLimit+1)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return []model.Series{}, nil
	}

	hasOther := len(values) > breakdownLimit
	if hasOther {
		values = values[:breakdownLimit]
	}

	q := base
	q.Breakdown = &repository.BreakdownSpec{Type: filter.Breakdown.Type, Key: filter.Breakdown.Property, FoldValues: values}

	ordered := values
	if hasOther {
		ordered = append(append([]string{}, values...), otherBreakdownValue)
	}

	if filter.Display.SingleAggregate() {
		rows, err := s.insights.TrendAggregate(ctx, q)
		if err != nil {
			return nil, err
		}
		byValue := map[string]float64{}
		for _, row := range rows {
			byValue[row.Breakdown] = row.Value
		}
		out := make([]model.Series, 0, len(ordered))
		for _, value := range ordered {
			out = append(out, aggregateSeries(entity, byValue[value], value, compareLabel))
		}
		return out, nil
	}

	rows, err := s.insights.TrendCounts(ctx, q)
	if err != nil {
		return nil, err
	}
	grouped := map[string][]repository.BucketCount{}
	for _, row := range rows {
		grouped[row.Breakdown] = append(grouped[row.Breakdown], row)
	}

	out := make([]model.Series, 0, len(ordered))
	for _, value := range ordered {
		data := zeroFill(grouped[value], buckets, filter.Interval)
		out = append(out, bucketSeries(entity, filter, buckets, data, value, compareLabel))
	}
	return out, nil
}

// lifecycle classifies every in-range actor of the first entity against their
// full history and emits one zero-filled series per status.
func (s *insightService) lifecycle(ctx context.Context, filter model.Filter, team model.Team) ([]model.Series, error) {
	q, entity, buckets, err := s.lifecycleQuery(ctx, filter, team)
	if err != nil {
		return nil, err
	}

	counts, err := s.insights.LifecycleCounts(ctx, q)
	if err != nil {
		return nil, err
	}

	index := bucketIndex(buckets, filter.Interval)
	byStatus := map[string][]float64{}
	for _, status := range model.LifecycleStatuses {
		byStatus[status] = make([]float64, len(buckets))
	}
	for _, c := range counts {
		data, ok := byStatus[c.Status]
		if !ok {
			continue
		}
		if i, ok := index[dates.DayString(c.Bucket, filter.Interval)]; ok {
			if c.Status == model.LifecycleDormant {
				// Dormant nets against gains on a stacked chart.
				data[i] = -c.Count
			} else {
				data[i] = c.Count
			}
		}
	}

	out := make([]model.Series, 0, len(model.LifecycleStatuses))
	for _, status := range model.LifecycleStatuses {
		series := bucketSeries(entity, filter, buckets, byStatus[status], "", "")
		series.Label = entity.Label() + " - " + status
		series.Status = status
		out = append(out, series)
	}
	return out, nil
}

// LifecyclePeople pages through the actors classified into one status at one
// bucket, ordered by person id for deterministic pagination.
func (s *insightService) LifecyclePeople(ctx context.Context, req model.FilterRequest, teamID int64, status, target string, page int) ([]model.LifecyclePerson, error) {
	valid := false
	for _, known := range model.LifecycleStatuses {
		if status == known {
			valid = true
			break
		}
	}
	if !valid {
		return nil, &ValidationError{Message: fmt.Sprintf("lifecycle_type: unknown value %q", status)}
	}

	team, err := s.teams.Get(ctx, teamID)
	if err != nil {
		return nil, err
	}
	filter, err := ParseFilter(req, team, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.resolveAllRange(ctx, &filter, team); err != nil {
		return nil, err
	}

	targetTS, err := dates.Parse(target, s.now().In(filter.Location))
	if err != nil {
		return nil, &ValidationError{Message: "target_date: " + err.Error()}
	}

	q, _, _, err := s.lifecycleQuery(ctx, filter, team)
	if err != nil {
		return nil, err
	}
	if page < 0 {
		page = 0
	}

	people, err := s.insights.LifecyclePeople(ctx, repository.LifecyclePeopleQuery{
		LifecycleQuery: q,
		Status:         status,
		TargetBucket:   dates.Truncate(targetTS, filter.Interval),
		Limit:          lifecyclePageSize,
		Offset:         page * lifecyclePageSize,
	})
	if err != nil {
		return nil, err
	}
	if people == nil {
		people = []model.LifecyclePerson{}
	}
	return people, nil
}

func (s *insightService) lifecycleQuery(ctx context.Context, filter model.Filter, team model.Team) (repository.LifecycleQuery, model.Entity, []dates.Bucket, error) {
	if len(filter.Entities) == 0 {
		return repository.LifecycleQuery{}, model.Entity{}, nil, &ValidationError{Message: "events or actions are required"}
	}
	entity := filter.Entities[0]

	predicate, err := s.compilePredicate(ctx, filter, team, entity)
	if err != nil {
		return repository.LifecycleQuery{}, model.Entity{}, nil, err
	}

	buckets := dates.BuildBuckets(filter.DateFrom, filter.DateTo, filter.Interval)
	if len(buckets) == 0 {
		return repository.LifecycleQuery{}, model.Entity{}, nil, &ValidationError{Message: "date range resolves to zero buckets"}
	}

	return repository.LifecycleQuery{
		TeamID:      team.ID,
		Timezone:    filter.Location.String(),
		FirstBucket: buckets[0].Start,
		LastBucket:  buckets[len(buckets)-1].Start,
		Interval:    filter.Interval,
		Predicate:   predicate,
	}, entity, buckets, nil
}

// compilePredicate combines the entity selector with the filter-level
// property predicates and the team's test-account exclusions.
func (s *insightService) compilePredicate(ctx context.Context, filter model.Filter, team model.Team, entity model.Entity) (query.Compiled, error) {
	var steps []model.ActionStep
	if entity.Type == model.EntityAction {
		resolved, err := s.actions.Steps(ctx, team.ID, entity.ActionID)
		if err != nil {
			return query.Compiled{}, err
		}
		steps = resolved
	}

	entityComp, err := query.CompileEntity(entity, steps, team)
	if err != nil {
		return query.Compiled{}, &ValidationError{Message: err.Error()}
	}
	propsComp, err := query.CompileProperties(filter.Properties, team, filter.FilterTestAccounts)
	if err != nil {
		return query.Compiled{}, &ValidationError{Message: err.Error()}
	}

	return query.Compiled{
		Expr:        query.AndExpr{entityComp.Expr, propsComp.Expr},
		JoinPersons: entityComp.JoinPersons || propsComp.JoinPersons,
	}, nil
}

// resolveAllRange substitutes the team's earliest stored event for the
// open-ended "all" lower bound.
func (s *insightService) resolveAllRange(ctx context.Context, filter *model.Filter, team model.Team) error {
	if !filter.DateFromAll {
		return nil
	}
	earliest, found, err := s.insights.EarliestTimestamp(ctx, team.ID)
	if err != nil {
		return err
	}
	if found {
		filter.DateFrom = earliest.In(filter.Location)
	} else {
		filter.DateFrom = filter.DateTo
	}
	return nil
}

func bucketIndex(buckets []dates.Bucket, interval model.Interval) map[string]int {
	index := make(map[string]int, len(buckets))
	for i, b := range buckets {
		index[dates.DayString(b.Start, interval)] = i
	}
	return index
}

// zeroFill expands sparse store rows into one value per bucket.
func zeroFill(rows []repository.BucketCount, buckets []dates.Bucket, interval model.Interval) []float64 {
	index := bucketIndex(buckets, interval)
	data := make([]float64, len(buckets))
	for _, row := range rows {
		if i, ok := index[dates.DayString(row.Bucket, interval)]; ok {
			data[i] = row.Value
		}
	}
	return data
}

func bucketSeries(entity model.Entity, filter model.Filter, buckets []dates.Bucket, data []float64, breakdownValue, compareLabel string) model.Series {
	if filter.Display == model.DisplayCumulativeLine {
		running := 0.0
		cumulative := make([]float64, len(data))
		for i, v := range data {
			running += v
			cumulative[i] = running
		}
		data = cumulative
	}

	labels := make([]string, len(buckets))
	days := make([]string, len(buckets))
	for i, b := range buckets {
		if compareLabel != "" {
			labels[i] = fmt.Sprintf("day %d", i)
		} else {
			labels[i] = dates.Label(b.Start, filter.Interval)
		}
		days[i] = dates.DayString(b.Start, filter.Interval)
	}

	count := 0.0
	if filter.Display == model.DisplayCumulativeLine {
		if len(data) > 0 {
			count = data[len(data)-1]
		}
	} else {
		for _, v := range data {
			count += v
		}
	}

	return model.Series{
		Label:          seriesLabel(entity, breakdownValue, compareLabel),
		Action:         describeEntity(entity),
		Data:           data,
		Labels:         labels,
		Days:           days,
		Count:          count,
		BreakdownValue: breakdownValue,
		CompareLabel:   compareLabel,
	}
}

func aggregateSeries(entity model.Entity, value float64, breakdownValue, compareLabel string) model.Series {
	return model.Series{
		Label:           seriesLabel(entity, breakdownValue, compareLabel),
		Action:          describeEntity(entity),
		AggregatedValue: &value,
		BreakdownValue:  breakdownValue,
		CompareLabel:    compareLabel,
	}
}

func seriesLabel(entity model.Entity, breakdownValue, compareLabel string) string {
	label := entity.Label()
	if breakdownValue != "" {
		label += " - " + breakdownValue
	}
	if compareLabel != "" {
		label += " - " + compareLabel
	}
	return label
}

func describeEntity(entity model.Entity) model.EntityDescriptor {
	id := entity.Event
	if entity.Type == model.EntityAction {
		id = strconv.FormatInt(entity.ActionID, 10)
	}
	return model.EntityDescriptor{
		ID:           id,
		Type:         string(entity.Type),
		Name:         entity.Label(),
		Order:        entity.Order,
		Math:         string(entity.Math),
		MathProperty: entity.MathProperty,
	}
}
