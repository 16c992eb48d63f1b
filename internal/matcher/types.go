package matcher

import "time"

const (
	Version       = "4.0"
	ScoringMethod = "v4.0 (base + transferability)"

	StatusExactMatch = "EXACT_MATCH"
	StatusNotFound   = "NOT_FOUND"
	StatusMet        = "MET"
	StatusNotMet     = "NOT_MET"
)

type Education struct {
	Degree      string `json:"degree"`
	Field       string `json:"field"`
	Institution string `json:"institution"`
	Year        string `json:"year"`
}

type Experience struct {
	Title            string   `json:"title"`
	Company          string   `json:"company"`
	StartYear        *int     `json:"start_year"`
	EndYear          *int     `json:"end_year"`
	DurationYears    float64  `json:"duration_years"`
	Responsibilities []string `json:"responsibilities"`
	Technologies     []string `json:"technologies"`
}

type Project struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Technologies []string `json:"technologies"`
	URL          string   `json:"url,omitempty"`
}

type Certification struct {
	Name   string `json:"name"`
	Issuer string `json:"issuer,omitempty"`
	Year   string `json:"year,omitempty"`
}

// CVFacts is what the CV explicitly states, extracted without inference.
type CVFacts struct {
	Summary        string          `json:"summary,omitempty"`
	Skills         []string        `json:"skills"`
	Languages      []string        `json:"languages"`
	Frameworks     []string        `json:"frameworks"`
	CloudPlatforms []string        `json:"cloud_platforms"`
	Databases      []string        `json:"databases"`
	Tools          []string        `json:"tools"`
	Education      []Education     `json:"education"`
	Experience     []Experience    `json:"experience"`
	Projects       []Project       `json:"projects"`
	Certifications []Certification `json:"certifications"`

	YearsExperienceTotal float64  `json:"years_experience_total"`
	SenioritySignals     []string `json:"seniority_signals"`
	DomainExpertise      []string `json:"domain_expertise"`
	SoftSkills           []string `json:"soft_skills"`
}

type Management struct {
	Required bool `json:"required"`
	TeamSize int  `json:"team_size,omitempty"`
}

// Requirements is a job's requirements matrix.
type Requirements struct {
	MustHave        []string   `json:"must_have"`
	NiceToHave      []string   `json:"nice_to_have"`
	ExperienceYears float64    `json:"experience_years"`
	Education       string     `json:"education,omitempty"`
	Management      Management `json:"management"`
	RoleLevel       string     `json:"role_level"`
	Domain          string     `json:"domain,omitempty"`
}

// Empty reports whether nothing can be matched against.
func (r *Requirements) Empty() bool {
	return r == nil || (len(r.MustHave) == 0 && len(r.NiceToHave) == 0 &&
		r.ExperienceYears == 0 && r.Education == "" && !r.Management.Required && r.RoleLevel == "")
}

type Job struct {
	Title        string
	Requirements *Requirements
}

type RequirementMatch struct {
	Requirement     string `json:"requirement"`
	Status          string `json:"status"`
	Evidence        string `json:"evidence"`
	RequirementType string `json:"requirement_type"`
}

type ExperienceMatch struct {
	Requirement   string  `json:"requirement"`
	Status        string  `json:"status"`
	Evidence      string  `json:"evidence"`
	CVYears       float64 `json:"cv_years"`
	RequiredYears int     `json:"required_years"`
}

type EducationMatch struct {
	Requirement            string `json:"requirement"`
	Status                 string `json:"status"`
	Evidence               string `json:"evidence"`
	HasFormalDegree        bool   `json:"has_formal_degree"`
	HasEquivalentEducation bool   `json:"has_equivalent_education"`
	OrEquivalentAllowed    bool   `json:"or_equivalent_allowed"`
}

type ManagementMatch struct {
	Requirement string `json:"requirement"`
	Status      string `json:"status"`
	Evidence    string `json:"evidence"`
}

type Comparison struct {
	MatchedMustHave []RequirementMatch `json:"matched_must_have"`
	MissingMustHave []RequirementMatch `json:"missing_must_have"`
	MatchedNiceHave []RequirementMatch `json:"matched_nice_have"`
	MissingNiceHave []RequirementMatch `json:"missing_nice_have"`
	Experience      ExperienceMatch    `json:"experience_match"`
	Education       EducationMatch     `json:"education_match"`
	Management      ManagementMatch    `json:"management_match"`
}

type Breakdown struct {
	MatchedMust int `json:"matched_must_count"`
	TotalMust   int `json:"total_must_count"`
	MatchedNice int `json:"matched_nice_count"`
	TotalNice   int `json:"total_nice_count"`
}

type BaseScores struct {
	Skills         int       `json:"skills_score"`
	Experience     int       `json:"experience_score"`
	Qualifications int       `json:"qualifications_score"`
	Breakdown      Breakdown `json:"breakdown"`
}

type Assessment struct {
	Requirement          string  `json:"requirement"`
	TransferabilityScore float64 `json:"transferability_score"`
	Reasoning            string  `json:"reasoning"`
	RampUpTime           string  `json:"ramp_up_time"`
}

type FinalScores struct {
	Overall        int          `json:"overall_score"`
	Skills         int          `json:"skills_score"`
	Experience     int          `json:"experience_score"`
	Qualifications int          `json:"qualifications_score"`
	BaseSkills     int          `json:"base_skills_score"`
	Transfer       []Assessment `json:"transferability_details"`
	ScoringMethod  string       `json:"scoring_method"`
}

type Explanation struct {
	Strengths       []string `json:"strengths"`
	Gaps            []string `json:"gaps"`
	Recommendations []string `json:"recommendations"`
}

// Result is the analysis stored with a match and returned to clients.
type Result struct {
	OverallScore        int `json:"overall_score"`
	SkillsScore         int `json:"skills_score"`
	ExperienceScore     int `json:"experience_score"`
	QualificationsScore int `json:"qualifications_score"`
	BaseSkillsScore     int `json:"base_skills_score"`

	ScoringMethod string `json:"scoring_method"`

	MatchedSkills         []string `json:"matched_skills"`
	MissingSkills         []string `json:"missing_skills"`
	MatchedQualifications []string `json:"matched_qualifications"`
	MissingQualifications []string `json:"missing_qualifications"`

	Strengths       []string `json:"strengths"`
	Gaps            []string `json:"gaps"`
	Recommendations []string `json:"recommendations"`

	TransferabilityDetails []Assessment `json:"transferability_details"`

	AnalyzedAt     time.Time `json:"analyzed_at"`
	MatcherVersion string    `json:"matcher_version"`
}
