// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"github.com/modsolve/modsolve/internal/discovery"
	"github.com/modsolve/modsolve/pkg/modgraph"
	"github.com/modsolve/modsolve/pkg/resolve"
)

type (
	// CandidateView is the serializable form of a candidate.
	CandidateView struct {
		ID       string `json:"id"`
		Version  string `json:"version"`
		Location string `json:"location"`
		Parent   string `json:"parent,omitempty"`
		Builtin  bool   `json:"builtin,omitempty"`
	}

	// UnmetView is the serializable form of an unmet soft dependency.
	UnmetView struct {
		Module     string   `json:"module"`
		Dependency string   `json:"dependency"`
		Present    []string `json:"present,omitempty"`
	}

	// ConflictView is the serializable form of a conflict.
	ConflictView struct {
		Reason  string   `json:"reason"`
		Message string   `json:"message"`
		Chain   []string `json:"chain,omitempty"`
	}

	// DiagnosticView is the serializable form of a discovery diagnostic.
	DiagnosticView struct {
		Severity string `json:"severity"`
		Code     string `json:"code"`
		Path     string `json:"path,omitempty"`
		Message  string `json:"message"`
	}

	// ReportView is the serializable form of a Report.
	ReportView struct {
		RunID           string           `json:"run_id"`
		Environment     string           `json:"environment"`
		OK              bool             `json:"ok"`
		Failure         string           `json:"failure,omitempty"`
		Selected        []CandidateView  `json:"selected,omitempty"`
		ActivationOrder []string         `json:"activation_order,omitempty"`
		Recommendations []UnmetView      `json:"unmet_recommendations,omitempty"`
		Suggestions     []UnmetView      `json:"unmet_suggestions,omitempty"`
		Conflicts       []ConflictView   `json:"conflicts,omitempty"`
		Cycle           []string         `json:"cycle,omitempty"`
		Warnings        []string         `json:"warnings,omitempty"`
		NonModules      []string         `json:"non_modules,omitempty"`
		Excluded        []string         `json:"excluded,omitempty"`
		Diagnostics     []DiagnosticView `json:"diagnostics,omitempty"`
		Steps           int              `json:"steps"`
		Backtracks      int              `json:"backtracks"`
		DiscoveryMillis int64            `json:"discovery_ms"`
		ResolveMillis   int64            `json:"resolve_ms"`
	}
)

// NewCandidateView converts a candidate.
func NewCandidateView(c *modgraph.Candidate) CandidateView {
	v := CandidateView{
		ID:       c.ID(),
		Version:  c.Version().String(),
		Location: c.Location(),
		Builtin:  c.IsBuiltin(),
	}
	if p := c.Parent(); p != nil {
		v.Parent = p.Location()
	}
	return v
}

// View converts the report into its serializable form.
func (r *Report) View() ReportView {
	v := ReportView{
		RunID:           r.RunID.String(),
		Environment:     r.Environment,
		OK:              r.OK(),
		DiscoveryMillis: r.DiscoveryElapsed.Milliseconds(),
		ResolveMillis:   r.ResolveElapsed.Milliseconds(),
	}
	if r.Discovery != nil {
		addDiscovery(&v, r.Discovery)
	}
	if r.Graph != nil {
		for _, w := range r.Graph.Warnings() {
			v.Warnings = append(v.Warnings, w.Message)
		}
	}

	if res := r.Result; res != nil {
		for _, c := range res.Selected() {
			v.Selected = append(v.Selected, NewCandidateView(c))
		}
		for _, c := range res.ActivationOrder() {
			v.ActivationOrder = append(v.ActivationOrder, c.ID())
		}
		v.Recommendations = unmetViews(res.UnmetRecommendations())
		v.Suggestions = unmetViews(res.UnmetSuggestions())
		v.Steps, v.Backtracks = res.Stats().Steps, res.Stats().Backtracks
	}

	if f := r.Failure; f != nil {
		v.Failure = f.Kind.String()
		for _, c := range f.Conflicts {
			cv := ConflictView{Reason: c.Reason.String(), Message: c.Message()}
			for _, link := range c.Chain {
				cv.Chain = append(cv.Chain, link.String())
			}
			v.Conflicts = append(v.Conflicts, cv)
		}
		for _, c := range f.Cycle {
			v.Cycle = append(v.Cycle, c.String())
		}
		v.Steps, v.Backtracks = f.Stats.Steps, f.Stats.Backtracks
	}
	return v
}

func addDiscovery(v *ReportView, res *discovery.Result) {
	for _, nm := range res.NonModules {
		v.NonModules = append(v.NonModules, nm.Path)
	}
	for _, ex := range res.Excluded {
		v.Excluded = append(v.Excluded, ex.Path)
	}
	for _, d := range res.Diagnostics {
		v.Diagnostics = append(v.Diagnostics, DiagnosticView{
			Severity: string(d.Severity),
			Code:     d.Code.String(),
			Path:     d.Path,
			Message:  d.Message,
		})
	}
}

func unmetViews(us []resolve.Unmet) []UnmetView {
	var out []UnmetView
	for _, u := range us {
		uv := UnmetView{Module: u.Candidate.String(), Dependency: u.Dependency.String()}
		for _, p := range u.Present {
			uv.Present = append(uv.Present, p.String())
		}
		out = append(out, uv)
	}
	return out
}
