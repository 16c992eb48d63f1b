package matcher

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tailorjob/backend/internal/providers/llm"
)

// Matcher runs the v4 pipeline: normalize, compare, base score,
// transferability, final score, explain. Only the last two steps talk to a model.
type Matcher struct {
	normalizer  *SkillNormalizer
	comparator  Comparator
	transfer    *TransferabilityAssessor
	explanation *ExplanationGenerator
	now         func() time.Time
}

func New(p llm.Provider, log *logrus.Entry) *Matcher {
	return &Matcher{
		normalizer:  NewSkillNormalizer(),
		transfer:    NewTransferabilityAssessor(p, log, defaultTransferConcurrency),
		explanation: NewExplanationGenerator(p, log),
		now:         time.Now,
	}
}

// Analyze scores facts against job. A job without a requirements matrix gets
// the zero-score fallback result.
func (m *Matcher) Analyze(ctx context.Context, facts CVFacts, job Job) *Result {
	if job.Requirements.Empty() {
		return m.fallback()
	}

	cv := m.normalizer.CV(facts)
	req := m.normalizer.Job(*job.Requirements)

	cmp := m.comparator.Compare(cv, req)
	base := BaseScore(cmp, cv, req)

	transfer := m.transfer.Assess(ctx, AllTech(cv), cmp.MissingMustHave, cv.YearsExperienceTotal, cv.DomainExpertise, req.Domain)
	scores := FinalScore(base, transfer, cmp)

	ex := m.explanation.Explain(ctx, cv, Job{Title: job.Title, Requirements: &req}, cmp, transfer, scores)
	return m.build(scores, cmp, ex)
}

func (m *Matcher) build(s FinalScores, c Comparison, ex Explanation) *Result {
	matchedQ, missingQ := []string{}, []string{}
	if c.Education.Status == StatusMet {
		matchedQ = append(matchedQ, c.Education.Evidence)
	} else if c.Education.Requirement != "" {
		missingQ = append(missingQ, c.Education.Requirement)
	}

	return &Result{
		OverallScore:           s.Overall,
		SkillsScore:            s.Skills,
		ExperienceScore:        s.Experience,
		QualificationsScore:    s.Qualifications,
		BaseSkillsScore:        s.BaseSkills,
		ScoringMethod:          s.ScoringMethod,
		MatchedSkills:          requirementNames(c.MatchedMustHave),
		MissingSkills:          requirementNames(c.MissingMustHave),
		MatchedQualifications:  matchedQ,
		MissingQualifications:  missingQ,
		Strengths:              ex.Strengths,
		Gaps:                   ex.Gaps,
		Recommendations:        ex.Recommendations,
		TransferabilityDetails: s.Transfer,
		AnalyzedAt:             m.now().UTC(),
		MatcherVersion:         Version,
	}
}

func (m *Matcher) fallback() *Result {
	return &Result{
		MatchedSkills:          []string{},
		MissingSkills:          []string{},
		MatchedQualifications:  []string{},
		MissingQualifications:  []string{},
		Strengths:              []string{},
		Gaps:                   []string{"Unable to analyze match - missing job requirements"},
		Recommendations:        []string{"Ensure job has requirements_matrix populated"},
		TransferabilityDetails: []Assessment{},
		AnalyzedAt:             m.now().UTC(),
		MatcherVersion:         Version,
		ScoringMethod:          "v4.0 (fallback)",
	}
}
