package model

// Validation stage names, evaluated in this order.
const (
	StageSchema       = "schema"
	StageCompleteness = "completeness"
	StageSyntax       = "syntax"
	StageSemantics    = "semantics"
)

// ValidationResult is the outcome of one validation stage for one router.
// Stage schema applies run-wide and carries an empty Router.
type ValidationResult struct {
	Stage    string   `json:"stage"`
	Router   string   `json:"router,omitempty"`
	Passed   bool     `json:"passed"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}
