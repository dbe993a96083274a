package solve

// ProblemType classifies the mathematical domain of a problem.
type ProblemType string

const (
	ProblemAlgebra               ProblemType = "algebra"
	ProblemGeometry              ProblemType = "geometry"
	ProblemCalculus              ProblemType = "calculus"
	ProblemProbability           ProblemType = "probability"
	ProblemStatistics            ProblemType = "statistics"
	ProblemDifferentialEquations ProblemType = "differential_equations"
	ProblemLinearAlgebra         ProblemType = "linear_algebra"
	ProblemOther                 ProblemType = "other"
)

// Comprehension is the Understand stage output: the problem restated,
// deconstructed and traced to its governing principles.
type Comprehension struct {
	NormalizedProblem string      `json:"normalized_problem"`
	Givens            []string    `json:"givens"`
	Objectives        []string    `json:"objectives"`
	Constraints       []string    `json:"constraints,omitempty"`
	PrimaryField      string      `json:"primary_field"`
	Strategy          string      `json:"strategy"`
	KeyBreakthroughs  []string    `json:"key_breakthroughs,omitempty"`
	PotentialRisks    []string    `json:"potential_risks,omitempty"`
	ProblemType       ProblemType `json:"problem_type"`
}

func (*Comprehension) Stage() StageKind { return StageUnderstand }

// PlanTask is one unit of work inside an execution plan.
type PlanTask struct {
	TaskID      string   `json:"task_id"`
	Description string   `json:"description"`
	Method      string   `json:"method"`
	Query       string   `json:"query,omitempty"`
	DependsOn   []string `json:"depends_on,omitempty"`
	OutputID    string   `json:"output_id"`
}

// Plan is the Plan stage output: an ordered strategy of executable tasks.
type Plan struct {
	Approach     string     `json:"approach"`
	Tasks        []PlanTask `json:"tasks"`
	ExpectedForm string     `json:"expected_form,omitempty"`
}

func (*Plan) Stage() StageKind { return StagePlan }

// ToolExecution records one external computation dispatched by Execute.
type ToolExecution struct {
	TaskID    string `json:"task_id"`
	Tool      string `json:"tool"`
	Query     string `json:"query"`
	Output    string `json:"output,omitempty"`
	Error     string `json:"error,omitempty"`
	Rationale string `json:"rationale,omitempty"`
}

// Execution is the Execute stage output: the computational trace, the
// workspace of named intermediate results and the candidate answer.
type Execution struct {
	Trace           []ToolExecution   `json:"trace,omitempty"`
	Workspace       map[string]string `json:"workspace,omitempty"`
	Steps           []string          `json:"steps"`
	CandidateAnswer string            `json:"candidate_answer"`
}

func (*Execution) Stage() StageKind { return StageExecute }
