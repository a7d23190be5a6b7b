package model

// EntityDescriptor echoes the requested entity back in each series.
type EntityDescriptor struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Name         string `json:"name"`
	Order        int    `json:"order"`
	Math         string `json:"math,omitempty"`
	MathProperty string `json:"math_property,omitempty"`
}

// Series is one chart-ready line: exactly one value per bucket, zero-filled.
type Series struct {
	Label  string           `json:"label"`
	Action EntityDescriptor `json:"action"`

	Data   []float64 `json:"data"`
	Labels []string  `json:"labels"`
	Days   []string  `json:"days"`

	// Count is the sum of Data; AggregatedValue replaces the bucketed data for
	// table/pie display modes.
	Count           float64  `json:"count"`
	AggregatedValue *float64 `json:"aggregated_value,omitempty"`

	BreakdownValue string `json:"breakdown_value,omitempty"`

	// Status is set for lifecycle series: new/returning/resurrecting/dormant.
	Status string `json:"status,omitempty"`

	// CompareLabel is "current" or "previous" in compare mode.
	CompareLabel string `json:"compare_label,omitempty"`
}

// PathEdge is one aggregated step-to-step transition of the path engine.
type PathEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Value  uint64 `json:"value"`
}

// LifecyclePerson is one actor returned by the lifecycle people lookup.
type LifecyclePerson struct {
	PersonID string `json:"person_id"`
}

// LifecycleStatus names the four mutually exclusive lifecycle classes.
const (
	LifecycleNew          = "new"
	LifecycleReturning    = "returning"
	LifecycleResurrecting = "resurrecting"
	LifecycleDormant      = "dormant"
)

// LifecycleStatuses lists all statuses in the order series are emitted.
var LifecycleStatuses = []string{LifecycleNew, LifecycleReturning, LifecycleResurrecting, LifecycleDormant}
