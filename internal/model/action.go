package model

// Action is a saved, named event selector owned by a team.
type Action struct {
	ID     int64
	TeamID int64
	Name   string
}

// ActionStep matches events by name plus its own property filters. An event
// matches the action when it matches ANY of the action's steps.
type ActionStep struct {
	ActionID   int64
	Event      string
	Properties []Property
}
