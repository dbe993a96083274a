package solve

// ReportStatus is the verdict of a verification pass.
type ReportStatus string

const (
	StatusPassed        ReportStatus = "passed"
	StatusNeedsRevision ReportStatus = "needs_revision"
	StatusFatalError    ReportStatus = "fatal_error"
)

// IssueKind classifies a defect found during verification.
type IssueKind string

const (
	IssueFactualError     IssueKind = "factual_error"
	IssueLogicalFlaw      IssueKind = "logical_flaw"
	IssueIncompleteness   IssueKind = "incompleteness"
	IssueCalculationError IssueKind = "calculation_error"
	IssueFormatError      IssueKind = "format_error"
	IssueMissingStep      IssueKind = "missing_step"
)

// Issue is one concrete defect in the current solution attempt.
type Issue struct {
	Kind     IssueKind `json:"kind"`
	Detail   string    `json:"detail"`
	Location string    `json:"location,omitempty"`
}

// FaultLocus is the verifier's advisory guess at which upstream stage
// caused a defect. It is never authoritative for routing; the Decision
// Oracle weighs it alongside the full run history.
type FaultLocus string

const (
	LocusUnderstand FaultLocus = "understand"
	LocusPlan       FaultLocus = "plan"
	LocusExecute    FaultLocus = "execute"
)

// VerificationCheck is one pass of the verifier's check protocol
// (consistency, logical chain, constraints, final answer).
type VerificationCheck struct {
	CheckType string `json:"check_type"`
	Status    string `json:"status"`
	Detail    string `json:"detail"`
}

// DiagnosticReport is the structured critique produced only by the Verify
// capability.
type DiagnosticReport struct {
	Status      ReportStatus        `json:"status"`
	Issues      []Issue             `json:"issues,omitempty"`
	Suggestions []string            `json:"suggestions,omitempty"`
	FaultLocus  FaultLocus          `json:"fault_locus_hint,omitempty"`
	Checks      []VerificationCheck `json:"checks,omitempty"`
	Rationale   string              `json:"rationale"`
	Confidence  float64             `json:"confidence"`
}

func (*DiagnosticReport) Stage() StageKind { return StageVerify }

// Passed reports whether the run is eligible to terminate via Complete.
func (r *DiagnosticReport) Passed() bool {
	return r != nil && r.Status == StatusPassed
}
