package matcher

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/tailorjob/backend/internal/providers/llm"
)

const (
	defaultTransferConcurrency = 4
	maxPromptSkills            = 20
)

// TransferabilityAssessor rates, per missing must-have, how well the
// candidate's existing skills carry over (0.0 to 1.0).
type TransferabilityAssessor struct {
	provider    llm.Provider
	log         *logrus.Entry
	concurrency int
}

func NewTransferabilityAssessor(p llm.Provider, log *logrus.Entry, concurrency int) *TransferabilityAssessor {
	if concurrency <= 0 {
		concurrency = defaultTransferConcurrency
	}
	return &TransferabilityAssessor{provider: p, log: log, concurrency: concurrency}
}

// Assess rates every missing requirement in parallel; a failed rating scores 0.
func (t *TransferabilityAssessor) Assess(ctx context.Context, skills []string, missing []RequirementMatch, years float64, cvDomain []string, jobDomain string) []Assessment {
	out := make([]Assessment, len(missing))
	if len(missing) == 0 {
		return out
	}
	if t.provider == nil {
		for i, m := range missing {
			out[i] = zeroAssessment(m.Requirement, "AI not configured")
		}
		return out
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.concurrency)
	for i, m := range missing {
		g.Go(func() error {
			a, err := t.assessOne(gctx, skills, m.Requirement, years, cvDomain, jobDomain)
			if err != nil {
				if t.log != nil {
					t.log.WithError(err).WithField("requirement", m.Requirement).Warn("transferability assessment failed")
				}
				a = zeroAssessment(m.Requirement, "Assessment failed: "+err.Error())
			}
			out[i] = a
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func zeroAssessment(req, reason string) Assessment {
	return Assessment{Requirement: req, TransferabilityScore: 0, Reasoning: reason, RampUpTime: "Unknown"}
}

func (t *TransferabilityAssessor) assessOne(ctx context.Context, skills []string, req string, years float64, cvDomain []string, jobDomain string) (Assessment, error) {
	raw, err := t.provider.Generate(ctx, llm.Request{
		System:      "You are a skill transferability rater. Return only valid JSON.",
		Prompt:      transferabilityPrompt(skills, req, years, cvDomain, jobDomain),
		Temperature: 0.1,
		MaxTokens:   200,
		JSON:        true,
	})
	if err != nil {
		return Assessment{}, err
	}
	data, err := llm.DecodeObject(raw)
	if err != nil {
		return Assessment{}, err
	}

	a := Assessment{
		Requirement:          req,
		TransferabilityScore: clamp01(llm.FloatOr(data["transferability_score"], 0)),
		Reasoning:            llm.CoerceString(data["reasoning"]),
		RampUpTime:           llm.CoerceString(data["ramp_up_time"]),
	}
	if a.Reasoning == "" {
		a.Reasoning = "No reasoning provided"
	}
	if a.RampUpTime == "" {
		a.RampUpTime = "Unknown"
	}
	return a, nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func transferabilityPrompt(skills []string, req string, years float64, cvDomain []string, jobDomain string) string {
	skillList := strings.Join(skills[:min(len(skills), maxPromptSkills)], ", ")
	if len(skills) > maxPromptSkills {
		skillList += fmt.Sprintf(" (and %d more)", len(skills)-maxPromptSkills)
	}
	domain := "Not specified"
	if len(cvDomain) > 0 {
		domain = strings.Join(cvDomain, ", ")
	}
	y := formatYears(years)

	return fmt.Sprintf(`Rate transferability from 0.0 to 1.0 for this missing requirement.

CANDIDATE HAS:
Skills: %s
Years of experience: %s
Domain: %s

MISSING REQUIREMENT: %s

JOB DOMAIN: %s

RATING SCALE (0.0 to 1.0):
1.0 - Exact match (same skill, different name), e.g. "React.js" vs "React"
0.9 - Near-identical variant, e.g. "Python 3" vs "Python"
0.8 - Adjacent framework, same purpose, e.g. "Angular" -> "React", "MySQL" -> "PostgreSQL" (2-4 weeks)
0.7 - Same category, e.g. "Vue.js" -> "React", "Flask" -> "FastAPI" (1-2 months)
0.6 - Same domain, different stack, e.g. "Backend (Python)" -> "Backend (Node.js)" (2-3 months)
0.5 - Transferable with training: 10+ years in any domain and the gap is a framework or tool (3-6 months)
0.4 - Loosely related, e.g. "Data analysis" -> "Machine Learning" (6-9 months)
0.3 - Peripheral, e.g. "Backend" -> "Frontend" (9-12 months)
0.2 - Minimal overlap, same industry, different role
0.0 - Unrelated field

SPECIAL RULES:
1. Senior bonus: %s+ years with "Senior" or "Lead" adds 0.1 (max 1.0)
2. Domain penalty: a candidate domain orthogonal to the job domain caps the score at 0.5
3. Adjacent frameworks (React/Angular/Vue) score at least 0.7

Return JSON:
{
  "requirement": %q,
  "transferability_score": 0.0-1.0,
  "reasoning": "1-2 sentences",
  "ramp_up_time": "2-4 weeks|1-2 months|3-6 months|6-12 months|12+ months|Not transferable"
}

Be consistent: the same input must produce the same score within 0.1.`, skillList, y, domain, req, jobDomain, y, req)
}
