package matcher

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/tailorjob/backend/internal/providers/llm"
)

const maxExplanationItems = 5

type ExplanationGenerator struct {
	provider llm.Provider
	log      *logrus.Entry
}

func NewExplanationGenerator(p llm.Provider, log *logrus.Entry) *ExplanationGenerator {
	return &ExplanationGenerator{provider: p, log: log}
}

// Explain produces strengths, gaps and recommendations grounded in the CV
// facts; any model failure yields the rule-based fallback.
func (e *ExplanationGenerator) Explain(ctx context.Context, cv CVFacts, job Job, c Comparison, transfer []Assessment, scores FinalScores) Explanation {
	if e.provider == nil {
		return FallbackExplanation(c)
	}

	raw, err := e.provider.Generate(ctx, llm.Request{
		System: "You are a career advisor generating CV match explanations. " +
			"You MUST only reference facts from the provided CV data. " +
			"Do NOT invent or assume qualifications. " +
			"Be specific and cite evidence (company names, years, technologies). " +
			"Return valid JSON only.",
		Prompt:      explanationPrompt(cv, job, c, transfer, scores),
		Temperature: 0.3,
		MaxTokens:   1500,
		JSON:        true,
	})
	if err == nil {
		var data map[string]any
		if data, err = llm.DecodeObject(raw); err == nil {
			return Explanation{
				Strengths:       capList(llm.CoerceStrings(data["strengths"])),
				Gaps:            capList(llm.CoerceStrings(data["gaps"])),
				Recommendations: capList(llm.CoerceStrings(data["recommendations"])),
			}
		}
	}
	if e.log != nil {
		e.log.WithError(err).Warn("explanation generation failed, using fallback")
	}
	return FallbackExplanation(c)
}

func capList(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in[:min(len(in), maxExplanationItems)]
}

// FallbackExplanation is derived from the comparison alone.
func FallbackExplanation(c Comparison) Explanation {
	ex := Explanation{
		Strengths: []string{"Unable to determine strengths"},
		Gaps:      []string{"No critical gaps identified"},
		Recommendations: []string{
			"Review job requirements carefully",
			"Ensure CV highlights relevant experience",
			"Consider adding certifications if applicable",
		},
	}
	if len(c.MatchedMustHave) > 0 {
		ex.Strengths = nil
		for _, r := range c.MatchedMustHave[:min(len(c.MatchedMustHave), 3)] {
			ex.Strengths = append(ex.Strengths, "Meets requirement: "+r.Requirement)
		}
	}
	if len(c.MissingMustHave) > 0 {
		ex.Gaps = nil
		for _, r := range c.MissingMustHave[:min(len(c.MissingMustHave), 3)] {
			ex.Gaps = append(ex.Gaps, "Missing requirement: "+r.Requirement)
		}
	}
	return ex
}

func requirementNames(list []RequirementMatch) []string {
	out := make([]string, 0, len(list))
	for _, r := range list {
		out = append(out, r.Requirement)
	}
	return out
}

func explanationPrompt(cv CVFacts, job Job, c Comparison, transfer []Assessment, s FinalScores) string {
	missingMust := requirementNames(c.MissingMustHave)
	if c.Education.Status == StatusNotMet {
		missingMust = append(missingMust, c.Education.Requirement)
	}
	if c.Experience.Status == StatusNotMet {
		missingMust = append(missingMust, c.Experience.Requirement)
	}
	if c.Management.Status == StatusNotMet {
		missingMust = append(missingMust, c.Management.Requirement)
	}

	var transferable []Assessment
	for _, a := range transfer {
		if a.TransferabilityScore >= 0.5 {
			transferable = append(transferable, a)
		}
	}

	summary := cv.Summary
	if summary == "" {
		summary = "Not provided"
	}
	title := job.Title
	if title == "" {
		title = "Unknown"
	}

	return fmt.Sprintf(`Analyze this CV-to-job match and generate explanations.

JOB TITLE: %s

CV SUMMARY:
%s

CV EXPERIENCE (%s years total):
%s

CV SKILLS:
%s

MATCH RESULTS:
- Matched Must-Have Requirements: %s
- Missing Must-Have Requirements: %s
- Matched Nice-to-Have: %s
- Missing Nice-to-Have: %s

TRANSFERABILITY ANALYSIS:
%s

SCORES:
- Overall: %d%%
- Skills: %d%%
- Experience: %d%%
- Qualifications: %d%%

Generate a JSON response with:
1. "strengths": 3-5 specific achievements or skills from the CV that match job requirements, with company names, years and technologies.
2. "gaps": what is missing (must-have and nice-to-have), stated factually.
3. "recommendations": 3-5 actionable steps to improve the match.

RULES:
- Only reference facts from the CV data above
- Do NOT invent qualifications
- If something is missing, say so directly

Return JSON: {"strengths": [], "gaps": [], "recommendations": []}`,
		title, summary, formatYears(cv.YearsExperienceTotal),
		indentJSON(cv.Experience[:min(len(cv.Experience), 3)]),
		indentJSON(AllTech(cv)),
		quoteList(requirementNames(c.MatchedMustHave)), quoteList(missingMust),
		quoteList(requirementNames(c.MatchedNiceHave)), quoteList(requirementNames(c.MissingNiceHave)),
		indentJSON(transferable),
		s.Overall, s.Skills, s.Experience, s.Qualifications)
}

func indentJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(b)
}

func quoteList(items []string) string {
	return "[" + strings.Join(items, "; ") + "]"
}
