package matcher

import "strings"

// BaseScore computes component scores from exact matches only.
func BaseScore(c Comparison, cv CVFacts, job Requirements) BaseScores {
	b := Breakdown{
		MatchedMust: len(c.MatchedMustHave),
		TotalMust:   len(c.MatchedMustHave) + len(c.MissingMustHave),
		MatchedNice: len(c.MatchedNiceHave),
		TotalNice:   len(c.MatchedNiceHave) + len(c.MissingNiceHave),
	}
	return BaseScores{
		Skills:         skillsScore(float64(b.MatchedMust), b.TotalMust, b.MatchedNice, b.TotalNice),
		Experience:     experienceScore(c.Experience, cv, job),
		Qualifications: qualificationsScore(c.Education),
		Breakdown:      b,
	}
}

// skillsScore weights must-haves 80% and nice-to-haves 20%; an empty list scores 100.
func skillsScore(mustCredit float64, totalMust, matchedNice, totalNice int) int {
	must := 100.0
	if totalMust > 0 {
		must = mustCredit / float64(totalMust) * 100
	}
	nice := 100.0
	if totalNice > 0 {
		nice = float64(matchedNice) / float64(totalNice) * 100
	}
	return int(must*0.8 + nice*0.2)
}

func experienceScore(m ExperienceMatch, cv CVFacts, job Requirements) int {
	have := m.CVYears
	need := float64(m.RequiredYears)

	var score int
	if need == 0 {
		switch {
		case have >= 10:
			score = 100
		case have >= 5:
			score = 90
		case have >= 2:
			score = 70
		default:
			score = 50
		}
	} else {
		switch {
		case have >= need*1.5:
			score = 100
		case have >= need:
			score = 90
		case have >= need*0.75:
			score = 70
		case have >= need*0.5:
			score = 50
		default:
			score = 30
		}
	}

	level := strings.ToLower(job.RoleLevel)
	if strings.Contains(level, "senior") || strings.Contains(level, "lead") {
		for _, sig := range cv.SenioritySignals {
			s := strings.ToLower(sig)
			if strings.Contains(s, "senior") || strings.Contains(s, "lead") {
				score = min(100, score+10)
				break
			}
		}
	}
	return score
}

// qualificationsScore gives partial credit when the degree requirement is not met.
func qualificationsScore(m EducationMatch) int {
	if m.Status == StatusMet {
		return 100
	}
	return 60
}

// FinalScore adds transferability credit for missing must-haves to the base
// skills score and combines the components 50/35/15.
func FinalScore(base BaseScores, assessments []Assessment, c Comparison) FinalScores {
	skills := skillsWithTransfer(base, assessments, c)
	overall := int(float64(skills)*0.5 + float64(base.Experience)*0.35 + float64(base.Qualifications)*0.15)

	if assessments == nil {
		assessments = []Assessment{}
	}
	return FinalScores{
		Overall:        overall,
		Skills:         skills,
		Experience:     base.Experience,
		Qualifications: base.Qualifications,
		BaseSkills:     base.Skills,
		Transfer:       assessments,
		ScoringMethod:  ScoringMethod,
	}
}

func skillsWithTransfer(base BaseScores, assessments []Assessment, c Comparison) int {
	b := base.Breakdown
	if b.TotalMust == 0 {
		return 100
	}

	missing := make(map[string]struct{}, len(c.MissingMustHave))
	for _, r := range c.MissingMustHave {
		missing[r.Requirement] = struct{}{}
	}
	credit := 0.0
	for _, a := range assessments {
		if _, ok := missing[a.Requirement]; ok {
			credit += a.TransferabilityScore
		}
	}

	return min(100, skillsScore(float64(b.MatchedMust)+credit, b.TotalMust, b.MatchedNice, b.TotalNice))
}
