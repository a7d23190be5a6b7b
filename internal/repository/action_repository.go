package repository

import (
	"context"
	"encoding/json"

	"github.com/ClickHouse/clickhouse-go/v2"

	"insights-service/internal/model"
)

// ActionRepository resolves an action to its step predicates. A missing or
// empty action resolves to zero steps; the compiler turns that into an
// empty-match predicate so sibling entities keep working.
type ActionRepository interface {
	Steps(ctx context.Context, teamID, actionID int64) ([]model.ActionStep, error)
}

type actionRepository struct {
	conn clickhouse.Conn
}

// NewActionRepository creates an ActionRepository backed by ClickHouse.
func NewActionRepository(conn clickhouse.Conn) ActionRepository {
	return &actionRepository{conn: conn}
}

const selectActionStepsQuery = `
	SELECT action_id, event, properties
	FROM action_steps
	WHERE team_id = ? AND action_id = ?
	ORDER BY event
`

func (r *actionRepository) Steps(ctx context.Context, teamID, actionID int64) ([]model.ActionStep, error) {
	rows, err := r.conn.Query(ctx, selectActionStepsQuery, teamID, actionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []model.ActionStep
	for rows.Next() {
		var (
			step          model.ActionStep
			propertiesRaw string
		)
		if err := rows.Scan(&step.ActionID, &step.Event, &propertiesRaw); err != nil {
			return nil, err
		}
		if propertiesRaw != "" && propertiesRaw != "[]" {
			if err := json.Unmarshal([]byte(propertiesRaw), &step.Properties); err != nil {
				return nil, err
			}
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}
