// Package presentation converts facade results into the shapes qlcli prints.
package presentation

import (
	"sort"

	"github.com/owenrumney/go-sarif/v2/sarif"

	"github.com/zjrosen/qlcli/internal/cliserver"
)

// TestResultDTO is one finished QL test.
type TestResultDTO struct {
	Test       string   `json:"test"`
	Pass       bool     `json:"pass"`
	DurationMs int64    `json:"duration_ms"`
	Failure    string   `json:"failure,omitempty"`
	Messages   []string `json:"messages,omitempty"`
}

// TestSummaryDTO totals a test run.
type TestSummaryDTO struct {
	Passed   int      `json:"passed"`
	Failed   int      `json:"failed"`
	Failures []string `json:"failures"` // always present
}

// FromTestCompleted converts a test event.
func FromTestCompleted(ev cliserver.TestCompleted) TestResultDTO {
	dto := TestResultDTO{
		Test:       ev.Test,
		Pass:       ev.Pass,
		DurationMs: ev.CompilationMs + ev.EvaluationMs,
	}
	if !ev.Pass {
		dto.Failure = ev.FailureDescription
		if dto.Failure == "" && ev.FailureStage != "" {
			dto.Failure = "failed during " + ev.FailureStage
		}
	}
	for _, m := range ev.Messages {
		dto.Messages = append(dto.Messages, m.Message)
	}
	return dto
}

// Add records a test result in the summary.
func (s *TestSummaryDTO) Add(r TestResultDTO) {
	if r.Pass {
		s.Passed++
		return
	}
	s.Failed++
	s.Failures = append(s.Failures, r.Test)
}

// SarifRunDTO summarizes one SARIF run.
type SarifRunDTO struct {
	Tool    string         `json:"tool"`
	Version string         `json:"version,omitempty"`
	Results int            `json:"results"`
	ByRule  map[string]int `json:"by_rule"`
}

// SarifSummaryDTO summarizes an interpreted SARIF log.
type SarifSummaryDTO struct {
	Runs  []SarifRunDTO `json:"runs"`
	Rules []string      `json:"rules"` // sorted, always present
}

// FromSarifReport counts the results of every run by rule. Results without a
// rule id are counted under "".
func FromSarifReport(report *sarif.Report) SarifSummaryDTO {
	summary := SarifSummaryDTO{Runs: []SarifRunDTO{}, Rules: []string{}}
	if report == nil {
		return summary
	}
	seen := make(map[string]bool)
	for _, run := range report.Runs {
		if run == nil {
			continue
		}
		dto := SarifRunDTO{ByRule: make(map[string]int)}
		if run.Tool.Driver != nil {
			dto.Tool = run.Tool.Driver.Name
			if run.Tool.Driver.SemanticVersion != nil {
				dto.Version = *run.Tool.Driver.SemanticVersion
			}
		}
		for _, res := range run.Results {
			if res == nil {
				continue
			}
			rule := ""
			if res.RuleID != nil {
				rule = *res.RuleID
			}
			dto.Results++
			dto.ByRule[rule]++
			if !seen[rule] {
				seen[rule] = true
				summary.Rules = append(summary.Rules, rule)
			}
		}
		summary.Runs = append(summary.Runs, dto)
	}
	sort.Strings(summary.Rules)
	return summary
}
