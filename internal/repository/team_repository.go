package repository

import (
	"context"
	"encoding/json"

	"github.com/ClickHouse/clickhouse-go/v2"

	"insights-service/internal/model"
)

// TeamRepository looks up team configuration: timezone and test-account
// filters. Injected rather than cached process-wide so tests can swap it.
type TeamRepository interface {
	Get(ctx context.Context, teamID int64) (model.Team, error)
}

type teamRepository struct {
	conn            clickhouse.Conn
	defaultTimezone string
}

// NewTeamRepository creates a TeamRepository backed by ClickHouse.
func NewTeamRepository(conn clickhouse.Conn, defaultTimezone string) TeamRepository {
	return &teamRepository{conn: conn, defaultTimezone: defaultTimezone}
}

const selectTeamQuery = `
	SELECT id, name, timezone, test_account_filters
	FROM teams
	WHERE id = ?
	LIMIT 1
`

// Get returns the stored team, or a default-configured team when the id has
// no stored row. Queries never fail just because a team was never configured.
func (r *teamRepository) Get(ctx context.Context, teamID int64) (model.Team, error) {
	rows, err := r.conn.Query(ctx, selectTeamQuery, teamID)
	if err != nil {
		return model.Team{}, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return model.Team{}, err
		}
		return model.Team{
			ID:                 teamID,
			Timezone:           r.defaultTimezone,
			TestAccountFilters: model.DefaultTestAccountFilters(),
		}, nil
	}

	var (
		team       model.Team
		filtersRaw string
	)
	if err := rows.Scan(&team.ID, &team.Name, &team.Timezone, &filtersRaw); err != nil {
		return model.Team{}, err
	}
	if team.Timezone == "" {
		team.Timezone = r.defaultTimezone
	}
	if filtersRaw != "" && filtersRaw != "[]" {
		if err := json.Unmarshal([]byte(filtersRaw), &team.TestAccountFilters); err != nil {
			return model.Team{}, err
		}
	}
	return team, rows.Err()
}
