// Package scenario runs rule assertions from YAML files. Scenario
// files pin down expected verdicts for sample emails so that config
// edits can be gated in CI before they reach a live agent.
package scenario

// SampleEmail is the email under test.
type SampleEmail struct {
	Sender  string `yaml:"sender"`
	Subject string `yaml:"subject,omitempty"`
	Body    string `yaml:"body,omitempty"`
}

// Case is one test case within a scenario. A case with a body runs
// the full read decision including the content scan; a case without
// one resolves the listing decision only.
type Case struct {
	Email  SampleEmail `yaml:"email"`
	Expect string      `yaml:"expect"`
	Access string      `yaml:"access,omitempty"`
}

// Scenario is a named collection of rule test cases for one account.
type Scenario struct {
	Name    string `yaml:"name"`
	Account string `yaml:"account"`
	Cases   []Case `yaml:"cases"`
}

// CaseResult is the outcome of evaluating one test case.
type CaseResult struct {
	Index    int    `json:"index"`
	Passed   bool   `json:"passed"`
	Sender   string `json:"sender"`
	Subject  string `json:"subject,omitempty"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Access   string `json:"access,omitempty"`
}

// RunResult is the outcome of running all cases in one scenario file.
type RunResult struct {
	File   string       `json:"file"`
	Name   string       `json:"name"`
	Total  int          `json:"total"`
	Passed int          `json:"passed"`
	Failed int          `json:"failed"`
	Cases  []CaseResult `json:"cases"`
}
