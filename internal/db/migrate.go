package db

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// RunMigrations ensures required tables exist. This keeps the service
// self-contained without an external migration step.
func RunMigrations(ctx context.Context, conn clickhouse.Conn) error {
	statements := []string{
		`
CREATE TABLE IF NOT EXISTS events
(
	uuid            String,
	team_id         Int64,
	event           String,
	distinct_id     String,
	ts              DateTime64(3, 'UTC'),
	properties      String DEFAULT '{}',
	ingested_at     DateTime DEFAULT now()
)
ENGINE = ReplacingMergeTree
PARTITION BY toYYYYMMDD(ts)
ORDER BY (team_id, event, ts, distinct_id)
SETTINGS index_granularity = 8192;
`,
		`
CREATE TABLE IF NOT EXISTS persons
(
	id              String,
	team_id         Int64,
	properties      String DEFAULT '{}',
	created_at      DateTime DEFAULT now()
)
ENGINE = ReplacingMergeTree
ORDER BY (team_id, id);
`,
		`
CREATE TABLE IF NOT EXISTS person_distinct_ids
(
	team_id         Int64,
	distinct_id     String,
	person_id       String
)
ENGINE = ReplacingMergeTree
ORDER BY (team_id, distinct_id);
`,
		`
CREATE TABLE IF NOT EXISTS cohort_people
(
	team_id         Int64,
	cohort_id       Int64,
	person_id       String
)
ENGINE = ReplacingMergeTree
ORDER BY (team_id, cohort_id, person_id);
`,
		`
CREATE TABLE IF NOT EXISTS actions
(
	id              Int64,
	team_id         Int64,
	name            String,
	deleted         UInt8 DEFAULT 0
)
ENGINE = ReplacingMergeTree
ORDER BY (team_id, id);
`,
		`
CREATE TABLE IF NOT EXISTS action_steps
(
	action_id       Int64,
	team_id         Int64,
	event           String,
	properties      String DEFAULT '[]'
)
ENGINE = ReplacingMergeTree
ORDER BY (team_id, action_id, event);
`,
		`
CREATE TABLE IF NOT EXISTS elements
(
	team_id         Int64,
	event_uuid      String,
	tag_name        String,
	text            String,
	order_idx       Int32
)
ENGINE = ReplacingMergeTree
ORDER BY (team_id, event_uuid, order_idx);
`,
		`
CREATE TABLE IF NOT EXISTS teams
(
	id                   Int64,
	name                 String,
	timezone             String DEFAULT 'UTC',
	test_account_filters String DEFAULT '[]'
)
ENGINE = ReplacingMergeTree
ORDER BY id;
`,
	}

	for _, stmt := range statements {
		if err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}
	return nil
}
