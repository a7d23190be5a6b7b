package service

import (
	"context"
	"time"

	"insights-service/internal/model"
	"insights-service/internal/query"
	"insights-service/internal/repository"
)

// internalEvents never appear as custom-event path steps.
var internalEvents = []any{"$autocapture", "$pageview", "$identify", "$pageleave"}

// PathService aggregates event streams into session-ized step transitions.
type PathService interface {
	Paths(ctx context.Context, req model.FilterRequest, teamID int64) ([]model.PathEdge, error)
}

type pathService struct {
	insights repository.InsightRepository
	teams    repository.TeamRepository
	now      func() time.Time
}

// NewPathService constructs a pathService.
func NewPathService(insights repository.InsightRepository, teams repository.TeamRepository) PathService {
	return &pathService{
		insights: insights,
		teams:    teams,
		now:      time.Now,
	}
}

// pathHandler fixes the per-path-type pieces of the pipeline: which events
// qualify, how a step is labeled and how a start point is matched.
type pathHandler struct {
	eventMatch   query.Expr
	labelExpr    string
	labelArgs    []any
	joinElements bool
	startMatch   func(startPoint string) query.Expr
}

func handlerFor(pathType model.PathType) pathHandler {
	switch pathType {
	case model.PathTypeScreen:
		return pathHandler{
			eventMatch: query.RawExpr{Fragment: "e.event = ?", Params: []any{"$screen"}},
			labelExpr:  "JSONExtractString(e.properties, ?)",
			labelArgs:  []any{"$screen_name"},
			startMatch: func(startPoint string) query.Expr {
				return query.RawExpr{Fragment: "label = ?", Params: []any{startPoint}}
			},
		}
	case model.PathTypeAutocapture:
		return pathHandler{
			eventMatch:   query.RawExpr{Fragment: "e.event = ?", Params: []any{"$autocapture"}},
			labelExpr:    "el.tag_source",
			joinElements: true,
			startMatch: func(startPoint string) query.Expr {
				return query.RawExpr{Fragment: "label = ?", Params: []any{startPoint}}
			},
		}
	case model.PathTypeCustom:
		return pathHandler{
			eventMatch: query.RawExpr{Fragment: "e.event NOT IN (?, ?, ?, ?)", Params: internalEvents},
			labelExpr:  "e.event",
			startMatch: func(startPoint string) query.Expr {
				return query.RawExpr{Fragment: "label = ?", Params: []any{startPoint}}
			},
		}
	default:
		return pathHandler{
			eventMatch: query.RawExpr{Fragment: "e.event = ?", Params: []any{"$pageview"}},
			labelExpr:  "JSONExtractString(e.properties, ?)",
			labelArgs:  []any{"$current_url"},
			// Pageview start points match the URL with an optional trailing
			// slash on either side.
			startMatch: func(startPoint string) query.Expr {
				trimmed := startPoint
				for len(trimmed) > 1 && trimmed[len(trimmed)-1] == '/' {
					trimmed = trimmed[:len(trimmed)-1]
				}
				return query.RawExpr{Fragment: "concat(label, '/') = ? OR label = ?", Params: []any{trimmed + "/", trimmed}}
			},
		}
	}
}

// Paths resolves the filter and runs the path pipeline for its path type.
func (s *pathService) Paths(ctx context.Context, req model.FilterRequest, teamID int64) ([]model.PathEdge, error) {
	team, err := s.teams.Get(ctx, teamID)
	if err != nil {
		return nil, err
	}
	filter, err := ParseFilter(req, team, s.now())
	if err != nil {
		return nil, err
	}
	if filter.DateFromAll {
		earliest, found, err := s.insights.EarliestTimestamp(ctx, team.ID)
		if err != nil {
			return nil, err
		}
		if found {
			filter.DateFrom = earliest.In(filter.Location)
		} else {
			filter.DateFrom = filter.DateTo
		}
	}

	predicate, err := query.CompileProperties(filter.Properties, team, filter.FilterTestAccounts)
	if err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}

	handler := handlerFor(filter.PathType)

	q := repository.PathQuery{
		TeamID:       team.ID,
		From:         filter.DateFrom,
		To:           filter.DateTo,
		Predicate:    predicate,
		EventMatch:   handler.eventMatch,
		LabelExpr:    handler.labelExpr,
		LabelArgs:    handler.labelArgs,
		JoinElements: handler.joinElements,
	}
	if filter.StartPoint != "" {
		q.StartMatch = handler.startMatch(filter.StartPoint)
	}

	edges, err := s.insights.PathEdges(ctx, q)
	if err != nil {
		return nil, err
	}
	if edges == nil {
		edges = []model.PathEdge{}
	}
	return edges, nil
}
