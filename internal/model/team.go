package model

// Team scopes every query to one tenant and carries the configuration the
// engine needs: timezone and the test-account exclusion filters.
type Team struct {
	ID                 int64
	Name               string
	Timezone           string
	TestAccountFilters []Property
}

// DefaultTestAccountFilters is the filter list assigned to new teams: traffic
// from local development hosts is not real product usage.
func DefaultTestAccountFilters() []Property {
	return []Property{
		{
			Key:      "$host",
			Operator: OperatorIsNot,
			Value:    []any{"localhost:8000", "localhost:5000", "127.0.0.1:8000", "127.0.0.1:3000"},
			Type:     PropertyTypeEvent,
		},
	}
}
