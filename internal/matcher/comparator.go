package matcher

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var yearsPattern = regexp.MustCompile(`(\d+)\+?\s*years?`)

var (
	formalDegreeKeywords = []string{
		"bachelor", "b.sc", "b.s.", "bsc", "ba ", "b.a.", "b.tech",
		"master", "m.sc", "m.s.", "msc", "ma ", "m.a.",
		"phd", "ph.d.", "doctorate",
	}
	equivalentEducationKeywords = []string{
		"associate", "a.s.", "a.a.",
		"diploma", "certificate",
		"bootcamp", "coding bootcamp",
		"professional certificate",
		"technical degree",
	}
	managementKeywords = []string{"lead", "manage", "mentor", "supervised", "directed", "team of"}
)

// Comparator checks normalized CV facts against normalized requirements with
// plain rules; identical inputs always produce identical comparisons.
type Comparator struct{}

func (Comparator) Compare(cv CVFacts, job Requirements) Comparison {
	tech := AllTech(cv)

	var c Comparison
	c.MatchedMustHave, c.MissingMustHave = matchRequirements(job.MustHave, tech, "must_have")
	c.MatchedNiceHave, c.MissingNiceHave = matchRequirements(job.NiceToHave, tech, "nice_to_have")
	c.Experience = compareExperience(cv, job)
	c.Education = compareEducation(cv, job)
	c.Management = compareManagement(cv, job)
	return c
}

// skippedRequirement reports requirements owned by the education,
// management or experience comparisons.
func skippedRequirement(req string) bool {
	switch {
	case strings.Contains(req, "degree") || strings.Contains(req, "bachelor") || strings.Contains(req, "master"):
		return true
	case strings.Contains(req, "management") || strings.Contains(req, "lead"):
		return true
	case strings.Contains(req, "years") &&
		(strings.Contains(req, "experience") || strings.Contains(req, "backend") || strings.Contains(req, "engineering")):
		return true
	}
	return false
}

func matchRequirements(reqs, tech []string, reqType string) (matched, missing []RequirementMatch) {
	matched = []RequirementMatch{}
	missing = []RequirementMatch{}
	for _, req := range reqs {
		lower := strings.ToLower(req)
		if strings.TrimSpace(lower) == "" || skippedRequirement(lower) {
			continue
		}

		found := false
		for _, t := range tech {
			if strings.Contains(lower, t) || strings.Contains(t, lower) {
				matched = append(matched, RequirementMatch{
					Requirement:     req,
					Status:          StatusExactMatch,
					Evidence:        "CV lists: " + t,
					RequirementType: reqType,
				})
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, RequirementMatch{
				Requirement:     req,
				Status:          StatusNotFound,
				Evidence:        "Not in CV",
				RequirementType: reqType,
			})
		}
	}
	return matched, missing
}

// requiredYears is the largest "N+ years" figure among the must-haves, falling
// back to the matrix's experience_years.
func requiredYears(job Requirements) int {
	years := 0
	for _, req := range job.MustHave {
		if m := yearsPattern.FindStringSubmatch(strings.ToLower(req)); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > years {
				years = n
			}
		}
	}
	if years == 0 && job.ExperienceYears > 0 {
		years = int(job.ExperienceYears)
	}
	return years
}

func compareExperience(cv CVFacts, job Requirements) ExperienceMatch {
	cvYears := cv.YearsExperienceTotal
	need := requiredYears(job)
	if need == 0 {
		return ExperienceMatch{
			Requirement: "No experience requirement",
			Status:      StatusMet,
			Evidence:    "N/A",
			CVYears:     cvYears,
		}
	}

	status := StatusNotMet
	if cvYears >= float64(need) {
		status = StatusMet
	}
	return ExperienceMatch{
		Requirement:   fmt.Sprintf("%d+ years experience", need),
		Status:        status,
		Evidence:      fmt.Sprintf("CV: %s years, Required: %d years", formatYears(cvYears), need),
		CVYears:       cvYears,
		RequiredYears: need,
	}
}

func formatYears(y float64) string {
	return strconv.FormatFloat(y, 'f', -1, 64)
}

func degreeRequirement(job Requirements) (text, level string, orEquivalent bool) {
	candidates := job.MustHave
	if job.Education != "" {
		candidates = append(append([]string{}, job.MustHave...), job.Education)
	}
	for _, req := range candidates {
		lower := strings.ToLower(req)
		if !(strings.Contains(lower, "degree") || strings.Contains(lower, "bachelor") ||
			strings.Contains(lower, "master") || strings.Contains(lower, "phd")) {
			continue
		}
		switch {
		case strings.Contains(lower, "bachelor"):
			level = "Bachelor"
		case strings.Contains(lower, "master"):
			level = "Master"
		case strings.Contains(lower, "phd") || strings.Contains(lower, "doctorate"):
			level = "PhD"
		default:
			level = "Bachelor"
		}
		return req, level, strings.Contains(lower, "or equivalent")
	}
	return "", "", false
}

// compareEducation treats "or equivalent" as an equivalent educational
// qualification; experience alone never satisfies a degree requirement.
func compareEducation(cv CVFacts, job Requirements) EducationMatch {
	text, level, orEquivalent := degreeRequirement(job)
	if level == "" {
		return EducationMatch{
			Requirement: "No degree required",
			Status:      StatusMet,
			Evidence:    "N/A",
		}
	}

	hasDegree := hasFormalDegree(cv.Education)
	hasEquivalent := hasEquivalentEducation(cv.Education)

	m := EducationMatch{
		Requirement:            text,
		HasFormalDegree:        hasDegree,
		HasEquivalentEducation: hasEquivalent,
		OrEquivalentAllowed:    orEquivalent,
	}
	switch {
	case hasDegree:
		m.Status = StatusMet
		m.Evidence = "Has formal degree (Bachelor's or higher)"
	case hasEquivalent && orEquivalent:
		m.Status = StatusMet
		m.Evidence = "Has equivalent educational qualification (e.g., Associates, technical degree, bootcamp)"
	case orEquivalent:
		m.Status = StatusNotMet
		m.Evidence = "No formal degree or equivalent educational qualification"
	default:
		m.Status = StatusNotMet
		m.Evidence = "No formal degree (strict Bachelor's requirement, no equivalents allowed)"
	}
	if m.Requirement == "" {
		m.Requirement = level + " degree"
	}
	return m
}

func hasFormalDegree(education []Education) bool {
	for _, e := range education {
		if containsAny(strings.ToLower(e.Degree), formalDegreeKeywords) {
			return true
		}
	}
	return false
}

func hasEquivalentEducation(education []Education) bool {
	for _, e := range education {
		combined := strings.ToLower(e.Degree + " " + e.Institution + " " + e.Field)
		if containsAny(combined, equivalentEducationKeywords) {
			return true
		}
	}
	return false
}

func compareManagement(cv CVFacts, job Requirements) ManagementMatch {
	if !job.Management.Required {
		return ManagementMatch{Requirement: "No management required", Status: StatusMet, Evidence: "N/A"}
	}

	hasMgmt := false
	teamMention := ""
	for _, sig := range cv.SenioritySignals {
		lower := strings.ToLower(sig)
		if containsAny(lower, managementKeywords) {
			hasMgmt = true
		}
		if teamMention == "" && strings.Contains(lower, "team of") {
			teamMention = sig
		}
	}

	requirement := "Management experience"
	if job.Management.TeamSize > 0 {
		requirement = fmt.Sprintf("Management experience (team of %d)", job.Management.TeamSize)
	}

	m := ManagementMatch{Requirement: requirement, Status: StatusNotMet, Evidence: "No management or leadership signals found"}
	if hasMgmt {
		m.Status = StatusMet
		m.Evidence = "Has leadership/management experience"
		if teamMention != "" {
			m.Evidence = "Has management experience: " + teamMention
		}
	}
	return m
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
