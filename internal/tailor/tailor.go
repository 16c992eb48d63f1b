package tailor

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/tailorjob/backend/internal/matcher"
	"github.com/tailorjob/backend/internal/providers/llm"
)

var (
	emailPattern    = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phonePattern    = regexp.MustCompile(`\+?\d[\d ().\-]{7,}\d`)
	linkedinPattern = regexp.MustCompile(`(?i)(?:https?://)?(?:[a-z]{2,3}\.)?linkedin\.com/in/[A-Za-z0-9_\-%]+/?`)
)

// Contact holds the personal details printed at the top of a CV.
type Contact struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	LinkedIn string `json:"linkedin,omitempty"`
}

func (c Contact) fields() map[string]string {
	return map[string]string{"name": c.Name, "email": c.Email, "phone": c.Phone, "linkedin": c.LinkedIn}
}

// ContactFromText scans raw CV text for contact details. The name is the
// first short line that is not itself a contact detail.
func ContactFromText(text string) Contact {
	var c Contact
	c.Email = emailPattern.FindString(text)
	c.LinkedIn = strings.TrimSuffix(linkedinPattern.FindString(text), "/")
	if m := phonePattern.FindString(text); m != "" {
		c.Phone = strings.TrimSpace(m)
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(line) <= 60 && !emailPattern.MatchString(line) && !phonePattern.MatchString(line) &&
			!linkedinPattern.MatchString(line) && !strings.ContainsAny(line, ":|") {
			c.Name = line
		}
		break
	}
	return c
}

// MergeContact sets each contact field the content lacks.
func MergeContact(content map[string]any, c Contact) {
	for k, v := range c.fields() {
		if v == "" {
			continue
		}
		if cur, ok := content[k].(string); ok && strings.TrimSpace(cur) != "" {
			continue
		}
		content[k] = v
	}
}

// Input is everything the tailoring prompt needs.
type Input struct {
	Facts          matcher.CVFacts
	Contact        Contact
	JobTitle       string
	JobDescription string
	Requirements   *matcher.Requirements
	Analysis       *matcher.Result
}

type Tailorer struct {
	provider llm.Provider
	log      *logrus.Entry
}

func New(p llm.Provider, log *logrus.Entry) *Tailorer {
	return &Tailorer{provider: p, log: log}
}

func (t *Tailorer) Configured() bool { return t.provider != nil }

// Tailor rewrites the CV for the job and returns the tailored document with
// contact details merged in. Without a model the facts are laid out unchanged.
func (t *Tailorer) Tailor(ctx context.Context, in Input) (map[string]any, error) {
	if t.provider == nil {
		out := Fallback(in)
		MergeContact(out, in.Contact)
		return out, nil
	}

	prompt, err := tailoringPrompt(in)
	if err != nil {
		return nil, err
	}
	raw, err := t.provider.Generate(ctx, llm.Request{
		System:      "You are an expert CV writer. You never invent experience, skills or qualifications. Return valid JSON only.",
		Prompt:      prompt,
		Temperature: 0.3,
		MaxTokens:   4000,
		JSON:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("tailor generate: %w", err)
	}
	out, err := llm.DecodeObject(raw)
	if err != nil {
		return nil, fmt.Errorf("tailor decode: %w", err)
	}
	MergeContact(out, in.Contact)
	if t.log != nil {
		t.log.WithField("model", t.provider.Model()).Debug("cv tailored")
	}
	return out, nil
}

// Fallback builds the document straight from the facts.
func Fallback(in Input) map[string]any {
	f := in.Facts
	experience := make([]map[string]any, 0, len(f.Experience))
	for _, e := range f.Experience {
		experience = append(experience, map[string]any{
			"title":        e.Title,
			"company":      e.Company,
			"period":       period(e),
			"years":        e.DurationYears,
			"description":  nonNil(e.Responsibilities),
			"technologies": nonNil(e.Technologies),
		})
	}
	education := make([]map[string]any, 0, len(f.Education))
	for _, e := range f.Education {
		education = append(education, map[string]any{
			"degree": e.Degree, "field": e.Field, "institution": e.Institution, "year": e.Year,
		})
	}
	certs := make([]string, 0, len(f.Certifications))
	for _, c := range f.Certifications {
		certs = append(certs, c.Name)
	}
	return map[string]any{
		"summary": f.Summary,
		"skills": map[string]any{
			"languages":   nonNil(f.Languages),
			"frameworks":  nonNil(f.Frameworks),
			"tools":       nonNil(append(append(append([]string{}, f.Tools...), f.CloudPlatforms...), f.Databases...)),
			"soft_skills": nonNil(f.SoftSkills),
			"other":       nonNil(f.Skills),
		},
		"experience":             experience,
		"education":              education,
		"certifications":         certs,
		"total_years_experience": f.YearsExperienceTotal,
	}
}

func period(e matcher.Experience) string {
	switch {
	case e.StartYear != nil && e.EndYear != nil:
		return fmt.Sprintf("%d-%d", *e.StartYear, *e.EndYear)
	case e.StartYear != nil:
		return fmt.Sprintf("%d-present", *e.StartYear)
	default:
		return ""
	}
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func tailoringPrompt(in Input) (string, error) {
	req, err := json.MarshalIndent(in.Requirements, "", "  ")
	if err != nil {
		return "", err
	}
	facts, err := json.MarshalIndent(in.Facts, "", "  ")
	if err != nil {
		return "", err
	}
	var strengths, recommendations []string
	if in.Analysis != nil {
		strengths, recommendations = in.Analysis.Strengths, in.Analysis.Recommendations
	}
	s, _ := json.MarshalIndent(nonNil(strengths), "", "  ")
	r, _ := json.MarshalIndent(nonNil(recommendations), "", "  ")

	title := in.JobTitle
	if title == "" {
		title = "Unknown Position"
	}
	return fmt.Sprintf(tailoringTemplate, title, in.JobDescription, req, facts, s, r), nil
}

const tailoringTemplate = `Tailor this CV to maximize fit for the target job.

TARGET JOB:
Title: %s
Description: %s

REQUIREMENTS:
%s

ORIGINAL CV FACTS:
%s

MATCH ANALYSIS INSIGHTS:
Strengths: %s
Recommendations: %s

TAILORING STRATEGY:
1. Professional summary: rewrite it around the skills and experience most relevant to this job.
2. Experience: put the achievements that match the requirements first, keep metrics (team size, scale, performance gains) where the CV states them.
3. Skills: keep every existing skill, ordered by relevance to the requirements, related skills grouped.
4. Education and certifications: keep as-is.

RULES:
- Do NOT add skills or experience that are not in the original CV.
- Do NOT remove any experience or education entries.
- Keep dates, companies and titles exactly as given.

Return JSON with this structure:
{
  "name": "Full Name",
  "email": "email@example.com",
  "phone": "+1234567890",
  "linkedin": "linkedin.com/in/username",
  "summary": "Tailored professional summary",
  "skills": {
    "languages": ["most relevant first"],
    "frameworks": ["ordered by relevance"],
    "tools": ["ordered by relevance"],
    "soft_skills": ["relevant soft skills"]
  },
  "experience": [
    {
      "title": "Job Title",
      "company": "Company Name",
      "period": "2021-2025",
      "years": 4,
      "description": ["achievement relevant to the job"],
      "technologies": ["technologies used"]
    }
  ],
  "education": [
    {"degree": "Degree", "field": "Field", "institution": "University", "year": "2015"}
  ],
  "certifications": ["all certifications"],
  "total_years_experience": 10
}`
