package query

import (
	"fmt"
	"strconv"

	"insights-service/internal/model"
)

// Table aliases every compiled fragment refers to. The repository includes
// the events table as e and the distinct-id mapping as pdi in every insight
// query, and joins persons as p when the predicate asks for it.
const (
	aliasEvents  = "e"
	aliasPersons = "p"
	aliasPDI     = "pdi"
)

// Compiled pairs a row predicate with the joins it requires.
type Compiled struct {
	Expr Expr
	// JoinPersons is set when any predicate reads the person property
	// snapshot. Person properties are matched against the actor's CURRENT
	// properties regardless of the query date range; values that changed
	// since the queried period will drift. This mirrors the documented
	// behavior and is intentionally not corrected here.
	JoinPersons bool
}

// CompileProperties turns a filter's property entries into one AND-composed
// predicate. When filterTestAccounts is set the team's test-account filters
// are appended to the list.
func CompileProperties(props []model.Property, team model.Team, filterTestAccounts bool) (Compiled, error) {
	all := props
	if filterTestAccounts {
		all = append(append([]model.Property{}, props...), team.TestAccountFilters...)
	}

	conj := AndExpr{}
	joinPersons := false
	for _, p := range all {
		expr, err := compileProperty(p, team)
		if err != nil {
			return Compiled{}, err
		}
		if p.Type == model.PropertyTypePerson {
			joinPersons = true
		}
		conj = append(conj, expr)
	}
	if len(conj) == 0 {
		return Compiled{Expr: TrueExpr{}}, nil
	}
	return Compiled{Expr: conj, JoinPersons: joinPersons}, nil
}

// CompileEntity builds the event-selection predicate for one entity. Raw
// events match by name; actions expand to the OR of their step predicates.
// An action with zero steps matches nothing.
func CompileEntity(entity model.Entity, steps []model.ActionStep, team model.Team) (Compiled, error) {
	switch entity.Type {
	case model.EntityAction:
		disj := OrExpr{}
		joinPersons := false
		for _, step := range steps {
			stepExpr := AndExpr{RawExpr{Fragment: aliasEvents + ".event = ?", Params: []any{step.Event}}}
			for _, p := range step.Properties {
				expr, err := compileProperty(p, team)
				if err != nil {
					return Compiled{}, err
				}
				if p.Type == model.PropertyTypePerson {
					joinPersons = true
				}
				stepExpr = append(stepExpr, expr)
			}
			disj = append(disj, stepExpr)
		}
		if len(disj) == 0 {
			return Compiled{Expr: FalseExpr{}}, nil
		}
		return Compiled{Expr: disj, JoinPersons: joinPersons}, nil
	default:
		conj := AndExpr{RawExpr{Fragment: aliasEvents + ".event = ?", Params: []any{entity.Event}}}
		joinPersons := false
		for _, p := range entity.Properties {
			expr, err := compileProperty(p, team)
			if err != nil {
				return Compiled{}, err
			}
			if p.Type == model.PropertyTypePerson {
				joinPersons = true
			}
			conj = append(conj, expr)
		}
		return Compiled{Expr: conj, JoinPersons: joinPersons}, nil
	}
}

// CohortExpr restricts rows to members of a precomputed cohort.
func CohortExpr(teamID, cohortID int64) Expr {
	return RawExpr{
		Fragment: aliasPDI + ".person_id IN (SELECT person_id FROM cohort_people WHERE team_id = ? AND cohort_id = ?)",
		Params:   []any{teamID, cohortID},
	}
}

// BreakdownColumn is the value expression a property breakdown groups by.
func BreakdownColumn(breakdownType model.BreakdownType, key string) (string, []any) {
	if breakdownType == model.BreakdownPerson {
		return "JSONExtractString(" + aliasPersons + ".properties, ?)", []any{key}
	}
	return "JSONExtractString(" + aliasEvents + ".properties, ?)", []any{key}
}

// NumericColumn reads a named event property as a nullable float. Missing and
// non-numeric values become NULL, which aggregate functions skip, so bad rows
// drop out of the statistic instead of polluting it with zeros.
func NumericColumn(key string) (string, []any) {
	return "toFloat64OrNull(JSONExtractRaw(" + aliasEvents + ".properties, ?))", []any{key}
}

func compileProperty(p model.Property, team model.Team) (Expr, error) {
	if p.Type == model.PropertyTypeCohort {
		id, ok := cohortID(p.Value)
		if !ok {
			// Unresolvable cohort: contribute zero rows, never an error.
			return FalseExpr{}, nil
		}
		return CohortExpr(team.ID, id), nil
	}

	bag := aliasEvents
	if p.Type == model.PropertyTypePerson {
		bag = aliasPersons
	}
	col := "JSONExtractString(" + bag + ".properties, ?)"

	switch p.Operator {
	case model.OperatorExact, "":
		return equalityExpr(col, p, false), nil
	case model.OperatorIsNot:
		return equalityExpr(col, p, true), nil
	case model.OperatorIContains:
		return RawExpr{Fragment: "positionCaseInsensitive(" + col + ", ?) > 0", Params: []any{p.Key, stringValue(p.Value)}}, nil
	case model.OperatorNotIContains:
		return RawExpr{Fragment: "positionCaseInsensitive(" + col + ", ?) = 0", Params: []any{p.Key, stringValue(p.Value)}}, nil
	case model.OperatorRegex:
		return RawExpr{Fragment: "match(" + col + ", ?)", Params: []any{p.Key, stringValue(p.Value)}}, nil
	case model.OperatorIsSet:
		return RawExpr{Fragment: "JSONHas(" + bag + ".properties, ?)", Params: []any{p.Key}}, nil
	case model.OperatorIsNotSet:
		return NotExpr{Expr: RawExpr{Fragment: "JSONHas(" + bag + ".properties, ?)", Params: []any{p.Key}}}, nil
	case model.OperatorGT:
		return orderingExpr(bag, col, p, ">"), nil
	case model.OperatorLT:
		return orderingExpr(bag, col, p, "<"), nil
	default:
		return nil, fmt.Errorf("unsupported operator %q for property %q", p.Operator, p.Key)
	}
}

// equalityExpr renders exact/is_not, expanding multi-value lists to IN lists.
func equalityExpr(col string, p model.Property, negate bool) Expr {
	values := valueList(p.Value)
	params := []any{p.Key}
	if len(values) == 1 {
		op := "="
		if negate {
			op = "!="
		}
		return RawExpr{Fragment: col + " " + op + " ?", Params: append(params, values[0])}
	}

	placeholders := ""
	for i, v := range values {
		if i > 0 {
			placeholders += ", "
		}
		placeholders += "?"
		params = append(params, v)
	}
	op := "IN"
	if negate {
		op = "NOT IN"
	}
	return RawExpr{Fragment: col + " " + op + " (" + placeholders + ")", Params: params}
}

// orderingExpr renders gt/lt. Numeric filter values compare numerically via a
// nullable float cast; anything else falls back to lexical comparison, which
// orders ISO date strings correctly.
func orderingExpr(bag, col string, p model.Property, op string) Expr {
	if f, ok := numericValue(p.Value); ok {
		numCol := "toFloat64OrNull(JSONExtractRaw(" + bag + ".properties, ?))"
		return RawExpr{Fragment: numCol + " " + op + " ?", Params: []any{p.Key, f}}
	}
	return RawExpr{Fragment: col + " " + op + " ?", Params: []any{p.Key, stringValue(p.Value)}}
}

func valueList(value any) []string {
	switch v := value.(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, stringValue(item))
		}
		if len(out) == 0 {
			return []string{""}
		}
		return out
	case []string:
		if len(v) == 0 {
			return []string{""}
		}
		return v
	default:
		return []string{stringValue(value)}
	}
}

func stringValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

func numericValue(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func cohortID(value any) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		return id, err == nil
	default:
		return 0, false
	}
}
