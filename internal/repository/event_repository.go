package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"

	"insights-service/internal/model"
)

// EventRepository defines write operations for the event log.
type EventRepository interface {
	// Create inserts a single event.
	Create(ctx context.Context, event model.Event) error

	// CreateBatch inserts multiple events in one prepared batch.
	CreateBatch(ctx context.Context, events []model.Event) error
}

type eventRepository struct {
	conn clickhouse.Conn
}

// NewEventRepository creates an EventRepository backed by ClickHouse.
func NewEventRepository(conn clickhouse.Conn) EventRepository {
	return &eventRepository{conn: conn}
}

const insertEventQuery = `
	INSERT INTO events (uuid, team_id, event, distinct_id, ts, properties)
	VALUES (?, ?, ?, ?, ?, ?)
`

const batchEventQuery = `
	INSERT INTO events (uuid, team_id, event, distinct_id, ts, properties)
`

func (r *eventRepository) Create(ctx context.Context, event model.Event) error {
	properties, err := marshalProperties(event.Properties)
	if err != nil {
		return err
	}

	return r.conn.Exec(ctx, insertEventQuery,
		event.UUID,
		event.TeamID,
		event.Event,
		event.DistinctID,
		event.Timestamp,
		properties,
	)
}

func (r *eventRepository) CreateBatch(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := r.conn.PrepareBatch(ctx, batchEventQuery)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, event := range events {
		properties, err := marshalProperties(event.Properties)
		if err != nil {
			return err
		}
		if err := batch.Append(
			event.UUID,
			event.TeamID,
			event.Event,
			event.DistinctID,
			event.Timestamp,
			properties,
		); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("batch execution error: %w", err)
	}

	return nil
}

func marshalProperties(properties map[string]any) (string, error) {
	if properties == nil {
		return "{}", nil
	}
	b, err := json.Marshal(properties)
	if err != nil {
		return "", fmt.Errorf("marshal properties: %w", err)
	}
	return string(b), nil
}
