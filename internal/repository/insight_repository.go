package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"insights-service/internal/model"
	"insights-service/internal/query"
)

// actorExpr resolves the acting person for a row: the linked person id when
// the distinct id is mapped, the raw distinct id otherwise.
const actorExpr = "if(pdi.person_id != '', pdi.person_id, e.distinct_id)"

// BreakdownSpec asks the store to group series values by a property value,
// folding everything outside FoldValues into the synthetic "Other" value.
type BreakdownSpec struct {
	Type       model.BreakdownType
	Key        string
	FoldValues []string
}

// TrendQuery is one compiled per-entity aggregation request.
type TrendQuery struct {
	TeamID       int64
	Timezone     string
	From         time.Time
	To           time.Time
	Interval     model.Interval
	Predicate    query.Compiled
	Math         model.Math
	MathProperty string
	Breakdown    *BreakdownSpec
}

// LifecycleQuery classifies actors against their full history; From/To bound
// only the reported buckets, not the activity scan.
type LifecycleQuery struct {
	TeamID      int64
	Timezone    string
	FirstBucket time.Time
	LastBucket  time.Time
	Interval    model.Interval
	Predicate   query.Compiled
}

// LifecyclePeopleQuery pages through the actors of one (status, bucket) cell.
type LifecyclePeopleQuery struct {
	LifecycleQuery
	Status       string
	TargetBucket time.Time
	Limit        int
	Offset       int
}

// PathQuery drives the session-ized transition aggregation.
type PathQuery struct {
	TeamID     int64
	From       time.Time
	To         time.Time
	Predicate  query.Compiled
	EventMatch query.Expr
	LabelExpr  string
	LabelArgs  []any
	// StartMatch, when set, truncates each session to its first event whose
	// label matches; sessions with no match are dropped.
	StartMatch query.Expr
	// JoinElements pulls the representative captured element per event for
	// autocapture labels.
	JoinElements bool
}

// BucketCount is one non-empty (bucket, breakdown) cell of a trend query.
type BucketCount struct {
	Bucket    time.Time
	Breakdown string
	Value     float64
}

// AggregateValue is one collapsed series value for table/pie display.
type AggregateValue struct {
	Breakdown string
	Value     float64
}

// LifecycleCount is one non-empty (status, bucket) cell.
type LifecycleCount struct {
	Bucket time.Time
	Status string
	Count  float64
}

// InsightRepository issues the set-based aggregation queries the engines
// compile. One or two store round-trips per requested series, never one per
// actor or per bucket.
type InsightRepository interface {
	TrendCounts(ctx context.Context, q TrendQuery) ([]BucketCount, error)
	TrendAggregate(ctx context.Context, q TrendQuery) ([]AggregateValue, error)
	BreakdownValues(ctx context.Context, q TrendQuery, limit int) ([]string, error)
	LifecycleCounts(ctx context.Context, q LifecycleQuery) ([]LifecycleCount, error)
	LifecyclePeople(ctx context.Context, q LifecyclePeopleQuery) ([]model.LifecyclePerson, error)
	PathEdges(ctx context.Context, q PathQuery) ([]model.PathEdge, error)
	EarliestTimestamp(ctx context.Context, teamID int64) (time.Time, bool, error)
}

type insightRepository struct {
	conn clickhouse.Conn
}

// NewInsightRepository creates an InsightRepository backed by ClickHouse.
func NewInsightRepository(conn clickhouse.Conn) InsightRepository {
	return &insightRepository{conn: conn}
}

func (r *insightRepository) TrendCounts(ctx context.Context, q TrendQuery) ([]BucketCount, error) {
	var args []any

	bucket := bucketExpr(q.Interval, q.Timezone, &args)
	sel := fmt.Sprintf("SELECT toString(%s) AS bucket", bucket)
	groupBy := "GROUP BY bucket"
	if q.Breakdown != nil {
		sel += ", " + breakdownSelect(q.Breakdown, &args) + " AS breakdown"
		groupBy += ", breakdown"
	}
	value, err := valueExpr(q.Math, q.MathProperty, &args)
	if err != nil {
		return nil, err
	}
	sel += ", " + value + " AS value"

	from := fromClause(q.Predicate.JoinPersons || breakdownNeedsPersons(q.Breakdown), false)
	where := whereClause(q.TeamID, q.From, q.To, q.Predicate.Expr, &args)

	sql := strings.Join([]string{sel, from, where, groupBy, "ORDER BY bucket"}, "\n")

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	loc := locationOf(q.Timezone)
	var out []BucketCount
	for rows.Next() {
		var (
			bucketStr string
			breakdown string
			value     float64
		)
		if q.Breakdown != nil {
			if err := rows.Scan(&bucketStr, &breakdown, &value); err != nil {
				return nil, err
			}
		} else {
			if err := rows.Scan(&bucketStr, &value); err != nil {
				return nil, err
			}
		}
		ts, err := parseBucket(bucketStr, loc)
		if err != nil {
			return nil, err
		}
		out = append(out, BucketCount{Bucket: ts, Breakdown: breakdown, Value: value})
	}
	return out, rows.Err()
}

func (r *insightRepository) TrendAggregate(ctx context.Context, q TrendQuery) ([]AggregateValue, error) {
	var args []any

	sel := "SELECT "
	groupBy := ""
	if q.Breakdown != nil {
		sel += breakdownSelect(q.Breakdown, &args) + " AS breakdown, "
		groupBy = "GROUP BY breakdown"
	}
	value, err := valueExpr(q.Math, q.MathProperty, &args)
	if err != nil {
		return nil, err
	}
	sel += value + " AS value"

	from := fromClause(q.Predicate.JoinPersons || breakdownNeedsPersons(q.Breakdown), false)
	where := whereClause(q.TeamID, q.From, q.To, q.Predicate.Expr, &args)

	sql := strings.Join([]string{sel, from, where, groupBy}, "\n")

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AggregateValue
	for rows.Next() {
		var agg AggregateValue
		if q.Breakdown != nil {
			if err := rows.Scan(&agg.Breakdown, &agg.Value); err != nil {
				return nil, err
			}
		} else {
			if err := rows.Scan(&agg.Value); err != nil {
				return nil, err
			}
		}
		out = append(out, agg)
	}
	return out, rows.Err()
}

// BreakdownValues returns the top breakdown values by matching-row volume,
// descending, ties broken by lexical order of the value.
func (r *insightRepository) BreakdownValues(ctx context.Context, q TrendQuery, limit int) ([]string, error) {
	var args []any

	col, colArgs := query.BreakdownColumn(q.Breakdown.Type, q.Breakdown.Key)
	args = append(args, colArgs...)
	sel := "SELECT " + col + " AS value"

	from := fromClause(q.Predicate.JoinPersons || breakdownNeedsPersons(q.Breakdown), false)
	where := whereClause(q.TeamID, q.From, q.To, q.Predicate.Expr, &args)

	sql := strings.Join([]string{
		sel,
		from,
		where,
		"GROUP BY value",
		"ORDER BY count() DESC, value ASC",
		fmt.Sprintf("LIMIT %d", limit),
	}, "\n")

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// LifecycleCounts runs the full classification in one window-function query:
// per-actor activity buckets over all time, annotated with the first bucket
// and the neighbouring active buckets, then classified and counted inside the
// reported range. Dormant rows are synthesized one interval after each
// activity bucket that has no immediate successor.
func (r *insightRepository) LifecycleCounts(ctx context.Context, q LifecycleQuery) ([]LifecycleCount, error) {
	var args []any
	sql := lifecycleStatusSQL(q, &args)

	sql = strings.Join([]string{
		"SELECT status, toString(bucket) AS bucket, toFloat64(count()) AS value",
		"FROM (" + sql + ")",
		"WHERE bucket >= ? AND bucket <= ?",
		"GROUP BY status, bucket",
		"ORDER BY bucket",
	}, "\n")
	args = append(args, q.FirstBucket, q.LastBucket)

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	loc := locationOf(q.Timezone)
	var out []LifecycleCount
	for rows.Next() {
		var (
			status    string
			bucketStr string
			value     float64
		)
		if err := rows.Scan(&status, &bucketStr, &value); err != nil {
			return nil, err
		}
		ts, err := parseBucket(bucketStr, loc)
		if err != nil {
			return nil, err
		}
		out = append(out, LifecycleCount{Bucket: ts, Status: status, Count: value})
	}
	return out, rows.Err()
}

func (r *insightRepository) LifecyclePeople(ctx context.Context, q LifecyclePeopleQuery) ([]model.LifecyclePerson, error) {
	var args []any
	sql := lifecycleStatusSQL(q.LifecycleQuery, &args)

	sql = strings.Join([]string{
		"SELECT person_id",
		"FROM (" + sql + ")",
		"WHERE status = ? AND bucket = ?",
		"ORDER BY person_id",
		fmt.Sprintf("LIMIT %d OFFSET %d", q.Limit, q.Offset),
	}, "\n")
	args = append(args, q.Status, q.TargetBucket)

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.LifecyclePerson
	for rows.Next() {
		var p model.LifecyclePerson
		if err := rows.Scan(&p.PersonID); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// PathEdges runs the layered path pipeline as explicit named stages: filter,
// window-annotate, session-ize, optional start-point truncation, rank, edge
// aggregation. Top 20 edges by count descending, stable on edge labels.
func (r *insightRepository) PathEdges(ctx context.Context, q PathQuery) ([]model.PathEdge, error) {
	labelSel := fmt.Sprintf("SELECT e.distinct_id AS distinct_id, e.ts AS ts, %s AS label", q.LabelExpr)

	from := fromClause(q.Predicate.JoinPersons, q.JoinElements)

	var whereArgs []any
	pred := query.AndExpr{q.EventMatch, q.Predicate.Expr}
	where := whereClause(q.TeamID, q.From, q.To, pred, &whereArgs)

	filtered := strings.Join([]string{labelSel, from, where}, "\n")

	annotated := `SELECT distinct_id, ts, label,
	lagInFrame(ts, 1) OVER (PARTITION BY distinct_id ORDER BY ts ASC ROWS BETWEEN UNBOUNDED PRECEDING AND UNBOUNDED FOLLOWING) AS previous_ts
FROM (` + filtered + `)`

	sessionized := `SELECT distinct_id, ts, label,
	sum(if(dateDiff('second', previous_ts, ts) >= 1800 OR previous_ts = toDateTime64(0, 3), 1, 0))
		OVER (ORDER BY distinct_id ASC, ts ASC ROWS BETWEEN UNBOUNDED PRECEDING AND CURRENT ROW) AS session
FROM (` + annotated + `)`

	var startArgs []any
	if q.StartMatch != nil {
		start := q.StartMatch.SQL(&startArgs)
		sessionized = `SELECT distinct_id, ts, label, session,
	min(if(` + start + `, ts, toDateTime64('2100-01-01 00:00:00', 3)))
		OVER (PARTITION BY session ROWS BETWEEN UNBOUNDED PRECEDING AND UNBOUNDED FOLLOWING) AS session_start
FROM (` + sessionized + `)`
		sessionized = "SELECT distinct_id, ts, label, session FROM (" + sessionized + ") WHERE ts >= session_start"
	}

	// Placeholders bind in text order, and the nesting puts outer stages
	// first: start comparator, then the label extractor, the elements join
	// and the WHERE bounds of the innermost filtered stage.
	var args []any
	args = append(args, startArgs...)
	args = append(args, q.LabelArgs...)
	if q.JoinElements {
		args = append(args, q.TeamID)
	}
	args = append(args, whereArgs...)

	ranked := `SELECT session, label,
	row_number() OVER (PARTITION BY session ORDER BY ts ASC) AS step
FROM (` + sessionized + `)`

	edges := `SELECT
	lagInFrame(concat(toString(step), '_', label), 1)
		OVER (PARTITION BY session ORDER BY step ASC ROWS BETWEEN UNBOUNDED PRECEDING AND UNBOUNDED FOLLOWING) AS source,
	concat(toString(step), '_', label) AS target
FROM (` + ranked + `)
WHERE step <= 4`

	sql := strings.Join([]string{
		"SELECT source, target, count() AS value",
		"FROM (" + edges + ")",
		"WHERE source != ''",
		"GROUP BY source, target",
		"ORDER BY value DESC, source ASC, target ASC",
		"LIMIT 20",
	}, "\n")

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PathEdge
	for rows.Next() {
		var edge model.PathEdge
		if err := rows.Scan(&edge.Source, &edge.Target, &edge.Value); err != nil {
			return nil, err
		}
		out = append(out, edge)
	}
	return out, rows.Err()
}

func (r *insightRepository) EarliestTimestamp(ctx context.Context, teamID int64) (time.Time, bool, error) {
	row := r.conn.QueryRow(ctx, "SELECT min(ts) AS earliest, count() AS total FROM events WHERE team_id = ?", teamID)

	var (
		earliest time.Time
		total    uint64
	)
	if err := row.Scan(&earliest, &total); err != nil {
		return time.Time{}, false, err
	}
	return earliest, total > 0, nil
}

// bucketExpr truncates the event timestamp to its bucket start in the team
// timezone. Week and month truncations yield Date values; wrapping them back
// into DateTime keeps range comparisons instant-based.
func bucketExpr(interval model.Interval, timezone string, args *[]any) string {
	*args = append(*args, timezone)
	local := "toTimeZone(e.ts, ?)"
	switch interval {
	case model.IntervalMinute:
		return "toStartOfMinute(" + local + ")"
	case model.IntervalHour:
		return "toStartOfHour(" + local + ")"
	case model.IntervalWeek:
		*args = append(*args, timezone)
		return "toDateTime(toStartOfWeek(" + local + "), ?)"
	case model.IntervalMonth:
		*args = append(*args, timezone)
		return "toDateTime(toStartOfMonth(" + local + "), ?)"
	default:
		return "toStartOfDay(" + local + ")"
	}
}

// shiftExpr moves a bucket start by n intervals, calendar-aware.
func shiftExpr(column string, interval model.Interval, n int) string {
	fn := map[model.Interval]string{
		model.IntervalMinute: "Minutes",
		model.IntervalHour:   "Hours",
		model.IntervalDay:    "Days",
		model.IntervalWeek:   "Weeks",
		model.IntervalMonth:  "Months",
	}[interval]
	if n < 0 {
		return fmt.Sprintf("subtract%s(%s, %d)", fn, column, -n)
	}
	return fmt.Sprintf("add%s(%s, %d)", fn, column, n)
}

// lifecycleStatusSQL builds the shared (person_id, bucket, status) relation:
// activity over ALL time, first/previous/next bucket annotations, in-range
// classification plus synthesized dormant rows.
func lifecycleStatusSQL(q LifecycleQuery, args *[]any) string {
	bucket := bucketExpr(q.Interval, q.Timezone, args)

	from := fromClause(q.Predicate.JoinPersons, false)

	var predArgs []any
	pred := q.Predicate.Expr.SQL(&predArgs)
	*args = append(*args, q.TeamID)
	*args = append(*args, predArgs...)

	activity := fmt.Sprintf(`SELECT %s AS person_id, %s AS bucket
%s
WHERE e.team_id = ? AND (%s)
GROUP BY person_id, bucket`, actorExpr, bucket, from, pred)

	const frame = "ROWS BETWEEN UNBOUNDED PRECEDING AND UNBOUNDED FOLLOWING"
	annotated := fmt.Sprintf(`SELECT person_id, bucket,
	min(bucket) OVER (PARTITION BY person_id %s) AS first_bucket,
	lagInFrame(bucket, 1) OVER (PARTITION BY person_id ORDER BY bucket ASC %s) AS previous_bucket,
	leadInFrame(bucket, 1) OVER (PARTITION BY person_id ORDER BY bucket ASC %s) AS next_bucket
FROM (%s)`, frame, frame, frame, activity)

	active := fmt.Sprintf(`SELECT person_id, bucket,
	multiIf(bucket = first_bucket, 'new', previous_bucket = %s, 'returning', 'resurrecting') AS status
FROM (%s)`, shiftExpr("bucket", q.Interval, -1), annotated)

	dormant := fmt.Sprintf(`SELECT person_id, %s AS bucket, 'dormant' AS status
FROM (%s)
WHERE next_bucket != %s`, shiftExpr("bucket", q.Interval, 1), annotated, shiftExpr("bucket", q.Interval, 1))

	return active + "\nUNION ALL\n" + dormant
}

// fromClause joins the distinct-id mapping always, persons when a predicate
// reads the person snapshot, and the representative captured element when
// autocapture labels are needed.
func fromClause(joinPersons, joinElements bool) string {
	clause := `FROM events AS e
LEFT JOIN person_distinct_ids AS pdi ON pdi.team_id = e.team_id AND pdi.distinct_id = e.distinct_id`
	if joinPersons {
		clause += `
LEFT JOIN persons AS p ON p.team_id = e.team_id AND p.id = pdi.person_id`
	}
	if joinElements {
		clause += `
LEFT JOIN (
	SELECT event_uuid, concat('<', argMin(tag_name, order_idx), '> ', argMin(text, order_idx)) AS tag_source
	FROM elements
	WHERE team_id = ?
	GROUP BY event_uuid
) AS el ON el.event_uuid = e.uuid`
	}
	return clause
}

func whereClause(teamID int64, from, to time.Time, pred query.Expr, args *[]any) string {
	*args = append(*args, teamID, from, to)
	var predArgs []any
	fragment := pred.SQL(&predArgs)
	*args = append(*args, predArgs...)
	return "WHERE e.team_id = ? AND e.ts >= ? AND e.ts < ? AND (" + fragment + ")"
}

func breakdownSelect(b *BreakdownSpec, args *[]any) string {
	col, colArgs := query.BreakdownColumn(b.Type, b.Key)
	*args = append(*args, colArgs...)
	if len(b.FoldValues) == 0 {
		return col
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(b.FoldValues)), ", ")
	for _, v := range b.FoldValues {
		*args = append(*args, v)
	}
	return "if(" + col + " IN (" + placeholders + "), " + col + ", 'Other')"
}

func breakdownNeedsPersons(b *BreakdownSpec) bool {
	return b != nil && b.Type == model.BreakdownPerson
}

func valueExpr(math model.Math, mathProperty string, args *[]any) (string, error) {
	switch math {
	case model.MathTotal, "":
		return "toFloat64(count())", nil
	case model.MathDAU:
		return "toFloat64(uniqExact(" + actorExpr + "))", nil
	}

	col, colArgs := query.NumericColumn(mathProperty)
	*args = append(*args, colArgs...)
	// Aggregates skip the NULLs produced by non-numeric property values; a
	// group with only NULLs yields NULL, which folds back to a zero bucket.
	wrap := func(agg string) string { return "toFloat64(ifNull(" + agg + ", 0))" }
	switch math {
	case model.MathSum:
		return wrap("sum(" + col + ")"), nil
	case model.MathAvg:
		return wrap("avg(" + col + ")"), nil
	case model.MathMin:
		return wrap("min(" + col + ")"), nil
	case model.MathMax:
		return wrap("max(" + col + ")"), nil
	case model.MathMedian:
		return wrap("quantile(0.5)(" + col + ")"), nil
	case model.MathP90:
		return wrap("quantile(0.9)(" + col + ")"), nil
	case model.MathP95:
		return wrap("quantile(0.95)(" + col + ")"), nil
	case model.MathP99:
		return wrap("quantile(0.99)(" + col + ")"), nil
	default:
		return "", fmt.Errorf("unsupported math %q", math)
	}
}

func parseBucket(s string, loc *time.Location) (time.Time, error) {
	if ts, err := time.ParseInLocation("2006-01-02 15:04:05", s, loc); err == nil {
		return ts, nil
	}
	return time.ParseInLocation("2006-01-02", s, loc)
}

func locationOf(timezone string) *time.Location {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
