// Package query models filter predicates as a composable expression tree that
// the repository renders into parameterized ClickHouse SQL. Each pipeline
// stage (filter, window-annotate, session-ize, rank, aggregate) stays a named
// builder instead of nested format strings.
package query

import (
	"strings"
)

// Expr is a boolean predicate renderable to a SQL fragment. SQL appends its
// bound parameters to args and returns the fragment with ? placeholders.
type Expr interface {
	SQL(args *[]any) string
}

// TrueExpr matches every row.
type TrueExpr struct{}

func (TrueExpr) SQL(*[]any) string { return "1" }

// FalseExpr matches no rows. Used for unresolvable cohorts and empty actions
// so queries degrade to zero-filled results instead of failing.
type FalseExpr struct{}

func (FalseExpr) SQL(*[]any) string { return "0" }

// AndExpr is the conjunction of its children. Empty means true.
type AndExpr []Expr

func (e AndExpr) SQL(args *[]any) string {
	return joinExprs(e, " AND ", args)
}

// OrExpr is the disjunction of its children. Empty means false.
type OrExpr []Expr

func (e OrExpr) SQL(args *[]any) string {
	if len(e) == 0 {
		return FalseExpr{}.SQL(args)
	}
	return joinExprs(e, " OR ", args)
}

// NotExpr negates its child.
type NotExpr struct {
	Expr Expr
}

func (e NotExpr) SQL(args *[]any) string {
	return "NOT (" + e.Expr.SQL(args) + ")"
}

// RawExpr is a leaf fragment with ? placeholders and its bound parameters.
// Fragments are built by the compiler from a fixed set of templates, never
// from user input.
type RawExpr struct {
	Fragment string
	Params   []any
}

func (e RawExpr) SQL(args *[]any) string {
	*args = append(*args, e.Params...)
	return e.Fragment
}

func joinExprs(exprs []Expr, sep string, args *[]any) string {
	if len(exprs) == 0 {
		return TrueExpr{}.SQL(args)
	}
	if len(exprs) == 1 {
		return exprs[0].SQL(args)
	}
	parts := make([]string, 0, len(exprs))
	for _, ex := range exprs {
		parts = append(parts, "("+ex.SQL(args)+")")
	}
	return strings.Join(parts, sep)
}

// Render flattens an expression into a SQL fragment plus its parameter list.
func Render(e Expr) (string, []any) {
	args := []any{}
	return e.SQL(&args), args
}
