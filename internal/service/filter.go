package service

import (
	"fmt"
	"strconv"
	"time"

	"insights-service/internal/dates"
	"insights-service/internal/model"
)

// ValidationError represents user input issues.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// defaultLookback is applied when date_from is absent.
const defaultLookback = 7

// maxMinuteRangeDays bounds minute granularity; beyond it the bucket count
// explodes and the request is rejected rather than silently coerced.
const maxMinuteRangeDays = 90

// ParseFilter normalizes a raw insight request into the canonical Filter:
// relative date expressions resolved against now in the team timezone,
// entities and enums validated, interval auto-selected from the range size.
func ParseFilter(req model.FilterRequest, team model.Team, now time.Time) (model.Filter, error) {
	loc := locationFor(team)
	now = now.In(loc)

	filter := model.Filter{
		DateFromRaw: req.DateFrom,
		DateToRaw:   req.DateTo,
		Location:    loc,
	}

	if req.DateTo == "" {
		filter.DateTo = now
	} else {
		ts, err := dates.Parse(req.DateTo, now)
		if err != nil {
			return model.Filter{}, &ValidationError{Message: "date_to: " + err.Error()}
		}
		filter.DateTo = ts
	}

	switch req.DateFrom {
	case "":
		filter.DateFrom = dates.StartOfDay(now.AddDate(0, 0, -defaultLookback))
	case dates.RangeAll:
		filter.DateFromAll = true
		filter.DateFrom = filter.DateTo
	default:
		ts, err := dates.Parse(req.DateFrom, now)
		if err != nil {
			return model.Filter{}, &ValidationError{Message: "date_from: " + err.Error()}
		}
		filter.DateFrom = ts
	}

	if !filter.DateFromAll && filter.DateFrom.After(filter.DateTo) {
		return model.Filter{}, &ValidationError{Message: "date_from must be before date_to"}
	}

	interval, err := resolveInterval(req.Interval, filter.DateFrom, filter.DateTo)
	if err != nil {
		return model.Filter{}, err
	}
	filter.Interval = interval

	entities, err := parseEntities(req)
	if err != nil {
		return model.Filter{}, err
	}
	filter.Entities = entities

	for _, p := range req.Properties {
		if p.Operator != "" && !p.Operator.Valid() {
			return model.Filter{}, &ValidationError{Message: fmt.Sprintf("properties: unknown operator %q", p.Operator)}
		}
	}
	filter.Properties = req.Properties

	breakdown, err := parseBreakdown(req)
	if err != nil {
		return model.Filter{}, err
	}
	filter.Breakdown = breakdown

	filter.Display = model.Display(req.Display)
	if req.Display == "" {
		filter.Display = model.DisplayLine
	}
	if !filter.Display.Valid() {
		return model.Filter{}, &ValidationError{Message: fmt.Sprintf("display: unknown value %q", req.Display)}
	}

	filter.ShownAs = model.ShownAs(req.ShownAs)
	if req.ShownAs == "" {
		filter.ShownAs = model.ShownAsTrends
	}
	if !filter.ShownAs.Valid() {
		return model.Filter{}, &ValidationError{Message: fmt.Sprintf("shown_as: unknown value %q", req.ShownAs)}
	}

	filter.PathType = model.PathType(req.PathType)
	if req.PathType == "" {
		filter.PathType = model.PathTypePageview
	}
	if !filter.PathType.Valid() {
		return model.Filter{}, &ValidationError{Message: fmt.Sprintf("path_type: unknown value %q", req.PathType)}
	}

	filter.Compare = req.Compare
	filter.StartPoint = req.StartPoint
	filter.FilterTestAccounts = req.FilterTestAccounts

	return filter, nil
}

func resolveInterval(raw string, from, to time.Time) (model.Interval, error) {
	if raw != "" {
		interval := model.Interval(raw)
		if !interval.Valid() {
			return "", &ValidationError{Message: fmt.Sprintf("interval: unknown value %q", raw)}
		}
		if interval == model.IntervalMinute && to.Sub(from) > maxMinuteRangeDays*24*time.Hour {
			return "", &ValidationError{Message: "interval: minute granularity not supported over ranges longer than 90 days"}
		}
		return interval, nil
	}
	if to.Sub(from) <= 48*time.Hour {
		return model.IntervalHour, nil
	}
	return model.IntervalDay, nil
}

func parseEntities(req model.FilterRequest) ([]model.Entity, error) {
	var entities []model.Entity

	for _, e := range req.Events {
		entity, err := parseEntity(e, model.EntityEvent)
		if err != nil {
			return nil, err
		}
		entity.Event = e.ID
		entities = append(entities, entity)
	}
	for _, a := range req.Actions {
		entity, err := parseEntity(a, model.EntityAction)
		if err != nil {
			return nil, err
		}
		actionID, err := strconv.ParseInt(a.ID, 10, 64)
		if err != nil {
			return nil, &ValidationError{Message: fmt.Sprintf("actions: invalid action id %q", a.ID)}
		}
		entity.ActionID = actionID
		entities = append(entities, entity)
	}
	return entities, nil
}

func parseEntity(e model.EntityRequest, entityType model.EntityType) (model.Entity, error) {
	math := model.Math(e.Math)
	if e.Math == "" {
		math = model.MathTotal
	}
	if !math.Valid() {
		return model.Entity{}, &ValidationError{Message: fmt.Sprintf("math: unknown value %q", e.Math)}
	}
	if math.IsNumeric() && e.MathProperty == "" {
		return model.Entity{}, &ValidationError{Message: fmt.Sprintf("math_property is required for math %q", e.Math)}
	}
	for _, p := range e.Properties {
		if p.Operator != "" && !p.Operator.Valid() {
			return model.Entity{}, &ValidationError{Message: fmt.Sprintf("properties: unknown operator %q", p.Operator)}
		}
	}

	name := e.Name
	if name == "" {
		name = e.ID
	}
	return model.Entity{
		Type:         entityType,
		Name:         name,
		Order:        e.Order,
		Math:         math,
		MathProperty: e.MathProperty,
		Properties:   e.Properties,
	}, nil
}

func parseBreakdown(req model.FilterRequest) (*model.Breakdown, error) {
	if req.Breakdown == "" && len(req.BreakdownCohorts) == 0 {
		return nil, nil
	}

	breakdownType := model.BreakdownType(req.BreakdownType)
	if req.BreakdownType == "" {
		breakdownType = model.BreakdownEvent
	}
	switch breakdownType {
	case model.BreakdownCohort:
		if len(req.BreakdownCohorts) == 0 {
			return nil, &ValidationError{Message: "breakdown_cohorts is required for cohort breakdowns"}
		}
		return &model.Breakdown{Type: model.BreakdownCohort, CohortIDs: req.BreakdownCohorts}, nil
	case model.BreakdownEvent, model.BreakdownPerson:
		return &model.Breakdown{Type: breakdownType, Property: req.Breakdown}, nil
	default:
		return nil, &ValidationError{Message: fmt.Sprintf("breakdown_type: unknown value %q", req.BreakdownType)}
	}
}

func locationFor(team model.Team) *time.Location {
	if team.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(team.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
