package model

import (
	"time"
)

// Interval is the time-bucket granularity of a trend query.
type Interval string

const (
	IntervalMinute Interval = "minute"
	IntervalHour   Interval = "hour"
	IntervalDay    Interval = "day"
	IntervalWeek   Interval = "week"
	IntervalMonth  Interval = "month"
)

// Valid reports whether the interval is one of the supported granularities.
func (i Interval) Valid() bool {
	switch i {
	case IntervalMinute, IntervalHour, IntervalDay, IntervalWeek, IntervalMonth:
		return true
	default:
		return false
	}
}

// Math is the per-bucket aggregation applied to an entity's matching rows.
type Math string

const (
	MathTotal  Math = "total"
	MathDAU    Math = "dau"
	MathSum    Math = "sum"
	MathAvg    Math = "avg"
	MathMin    Math = "min"
	MathMax    Math = "max"
	MathMedian Math = "median"
	MathP90    Math = "p90"
	MathP95    Math = "p95"
	MathP99    Math = "p99"
)

func (m Math) Valid() bool {
	switch m {
	case MathTotal, MathDAU, MathSum, MathAvg, MathMin, MathMax, MathMedian, MathP90, MathP95, MathP99:
		return true
	default:
		return false
	}
}

// IsNumeric reports whether the math reads a numeric property per row.
func (m Math) IsNumeric() bool {
	switch m {
	case MathSum, MathAvg, MathMin, MathMax, MathMedian, MathP90, MathP95, MathP99:
		return true
	default:
		return false
	}
}

// Display selects the chart shape of a trend response.
type Display string

const (
	DisplayLine           Display = "ActionsLineGraph"
	DisplayCumulativeLine Display = "ActionsLineGraphCumulative"
	DisplayTable          Display = "ActionsTable"
	DisplayPie            Display = "ActionsPie"
)

func (d Display) Valid() bool {
	switch d {
	case DisplayLine, DisplayCumulativeLine, DisplayTable, DisplayPie:
		return true
	default:
		return false
	}
}

// SingleAggregate reports whether all buckets collapse into one scalar.
func (d Display) SingleAggregate() bool {
	return d == DisplayTable || d == DisplayPie
}

// ShownAs switches a trend query between standard series and lifecycle.
type ShownAs string

const (
	ShownAsTrends    ShownAs = "Trends"
	ShownAsLifecycle ShownAs = "Lifecycle"
)

func (s ShownAs) Valid() bool {
	return s == ShownAsTrends || s == ShownAsLifecycle
}

// PathType selects which events feed the path engine and how steps are labeled.
type PathType string

const (
	PathTypePageview    PathType = "$pageview"
	PathTypeScreen      PathType = "$screen"
	PathTypeAutocapture PathType = "$autocapture"
	PathTypeCustom      PathType = "custom_event"
)

func (p PathType) Valid() bool {
	switch p {
	case PathTypePageview, PathTypeScreen, PathTypeAutocapture, PathTypeCustom:
		return true
	default:
		return false
	}
}

// EntityType distinguishes raw event selectors from action references.
type EntityType string

const (
	EntityEvent  EntityType = "events"
	EntityAction EntityType = "actions"
)

// Operator compares a property value against a filter value.
type Operator string

const (
	OperatorExact        Operator = "exact"
	OperatorIsNot        Operator = "is_not"
	OperatorIContains    Operator = "icontains"
	OperatorNotIContains Operator = "not_icontains"
	OperatorRegex        Operator = "regex"
	OperatorIsSet        Operator = "is_set"
	OperatorIsNotSet     Operator = "is_not_set"
	OperatorGT           Operator = "gt"
	OperatorLT           Operator = "lt"
)

func (o Operator) Valid() bool {
	switch o {
	case OperatorExact, OperatorIsNot, OperatorIContains, OperatorNotIContains,
		OperatorRegex, OperatorIsSet, OperatorIsNotSet, OperatorGT, OperatorLT:
		return true
	default:
		return false
	}
}

// PropertyType says where a property filter reads its value from.
type PropertyType string

const (
	PropertyTypeEvent  PropertyType = "event"
	PropertyTypePerson PropertyType = "person"
	PropertyTypeCohort PropertyType = "cohort"
)

// Property is one predicate entry of a filter: {key, operator, value, type}.
type Property struct {
	Key      string       `json:"key"`
	Operator Operator     `json:"operator"`
	Value    any          `json:"value"`
	Type     PropertyType `json:"type"`
}

// BreakdownType selects the dimension kind a series is split by.
type BreakdownType string

const (
	BreakdownEvent  BreakdownType = "event"
	BreakdownPerson BreakdownType = "person"
	BreakdownCohort BreakdownType = "cohort"
)

// Breakdown splits an entity's series by a property value or cohort membership.
type Breakdown struct {
	Type      BreakdownType
	Property  string
	CohortIDs []int64
}

// Entity is one event-or-action selector within a query, with its own math
// and property filters, independent of sibling entities.
type Entity struct {
	Type         EntityType
	Event        string
	ActionID     int64
	Name         string
	Order        int
	Math         Math
	MathProperty string
	Properties   []Property
}

// Label returns the display name of the entity.
func (e Entity) Label() string {
	if e.Name != "" {
		return e.Name
	}
	return e.Event
}

// EntityRequest is the wire form of an Entity.
type EntityRequest struct {
	ID           string     `json:"id"`
	Type         string     `json:"type"`
	Name         string     `json:"name"`
	Order        int        `json:"order"`
	Math         string     `json:"math"`
	MathProperty string     `json:"math_property"`
	Properties   []Property `json:"properties"`
}

// FilterRequest carries the raw, unvalidated query parameters of an insight
// request. The service resolves it into a Filter.
type FilterRequest struct {
	DateFrom           string          `json:"date_from"`
	DateTo             string          `json:"date_to"`
	Interval           string          `json:"interval"`
	Events             []EntityRequest `json:"events"`
	Actions            []EntityRequest `json:"actions"`
	Properties         []Property      `json:"properties"`
	Breakdown          string          `json:"breakdown"`
	BreakdownType      string          `json:"breakdown_type"`
	BreakdownCohorts   []int64         `json:"breakdown_cohorts"`
	Display            string          `json:"display"`
	Compare            bool            `json:"compare"`
	ShownAs            string          `json:"shown_as"`
	StartPoint         string          `json:"start_point"`
	PathType           string          `json:"path_type"`
	FilterTestAccounts bool            `json:"filter_test_accounts"`
}

// Filter is the canonical, resolved form of an insight query. It is immutable
// once built and owned by the request that built it.
type Filter struct {
	DateFromRaw string
	DateToRaw   string
	DateFrom    time.Time
	DateTo      time.Time
	// DateFromAll marks an open-ended lower bound ("all"); DateFrom then holds
	// the earliest stored event timestamp for the team.
	DateFromAll bool

	Interval Interval
	Entities []Entity

	Properties         []Property
	Breakdown          *Breakdown
	Display            Display
	Compare            bool
	ShownAs            ShownAs
	StartPoint         string
	PathType           PathType
	FilterTestAccounts bool

	// Location is the team timezone every timestamp of this query resolves in.
	Location *time.Location
}
