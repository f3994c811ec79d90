package domain

// CoordinationKind tags the messages exchanged between tabs while a signup is
// being materialized.
type CoordinationKind string

const (
	CoordinationExecuting CoordinationKind = "EXECUTING"
	CoordinationSucceeded CoordinationKind = "SUCCEEDED"
)

// CoordinationMessage carries no payload beyond its kind.
type CoordinationMessage struct {
	Kind CoordinationKind `json:"type"`
}
