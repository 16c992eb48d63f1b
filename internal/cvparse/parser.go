package cvparse

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/tailorjob/backend/internal/matcher"
	"github.com/tailorjob/backend/internal/providers/llm"
)

// maxPromptChars bounds the CV text sent to the model.
const maxPromptChars = 30000

type ExperienceEntry struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Period      string `json:"period"`
	Description string `json:"description"`
}

type EducationEntry struct {
	Degree      string `json:"degree"`
	Institution string `json:"institution"`
	Year        string `json:"year"`
	Field       string `json:"field"`
}

// Sections is the display structure stored in cv_sections.
type Sections struct {
	Summary        string            `json:"summary"`
	Skills         []string          `json:"skills"`
	Experience     []ExperienceEntry `json:"experience"`
	Education      []EducationEntry  `json:"education"`
	Certifications []string          `json:"certifications"`
}

// FallbackSections is stored when no model is configured so the CV still reaches parsed.
func FallbackSections() Sections {
	return Sections{
		Summary:        "AI parsing not configured",
		Skills:         []string{"Please configure the AI provider"},
		Experience:     []ExperienceEntry{},
		Education:      []EducationEntry{},
		Certifications: []string{},
	}
}

type Parser struct {
	provider llm.Provider
	log      *logrus.Entry
}

func NewParser(p llm.Provider, log *logrus.Entry) *Parser {
	return &Parser{provider: p, log: log}
}

// Configured reports whether AI parsing is available.
func (p *Parser) Configured() bool { return p.provider != nil }

// ParseSections turns raw CV text into display sections, keeping details verbatim.
func (p *Parser) ParseSections(ctx context.Context, text string) (Sections, error) {
	if p.provider == nil {
		return FallbackSections(), nil
	}
	raw, err := p.provider.Generate(ctx, llm.Request{
		System:      "You are a CV parser that returns only valid JSON.",
		Prompt:      sectionsPrompt(truncate(text)),
		Temperature: 0.1,
		MaxTokens:   4000,
		JSON:        true,
	})
	if err != nil {
		return Sections{}, fmt.Errorf("parse cv with ai: %w", err)
	}
	data, err := llm.DecodeObject(raw)
	if err != nil {
		return Sections{}, fmt.Errorf("parse cv with ai: %w", err)
	}
	return sectionsFrom(data), nil
}

// ExtractFacts pulls only explicitly stated facts for the matcher. Without a model
// the facts are derived from already parsed sections.
func (p *Parser) ExtractFacts(ctx context.Context, text string, sections Sections) (matcher.CVFacts, error) {
	if p.provider == nil {
		return FactsFromSections(sections), nil
	}
	raw, err := p.provider.Generate(ctx, llm.Request{
		System:      "You are a fact extraction engine. Return only valid JSON with no commentary.",
		Prompt:      factsPrompt(truncate(text)),
		Temperature: 0,
		MaxTokens:   2000,
		JSON:        true,
	})
	if err != nil {
		return matcher.CVFacts{}, fmt.Errorf("extract cv facts: %w", err)
	}
	data, err := llm.DecodeObject(raw)
	if err != nil {
		return matcher.CVFacts{}, fmt.Errorf("extract cv facts: %w", err)
	}
	facts := factsFrom(data)
	if facts.Summary == "" {
		facts.Summary = sections.Summary
	}
	if p.log != nil {
		p.log.WithFields(logrus.Fields{
			"skills":      len(facts.Skills),
			"jobs":        len(facts.Experience),
			"years_total": facts.YearsExperienceTotal,
		}).Debug("cv facts extracted")
	}
	return facts, nil
}

// Embed returns the CV embedding, or nil when no model is configured.
func (p *Parser) Embed(ctx context.Context, text string) ([]float32, error) {
	if p.provider == nil {
		return nil, nil
	}
	return p.provider.Embed(ctx, truncate(text))
}

// FactsFromSections is the no-model fallback: every listed skill counts, nothing is inferred.
func FactsFromSections(s Sections) matcher.CVFacts {
	facts := matcher.CVFacts{
		Summary:        s.Summary,
		Skills:         append([]string(nil), s.Skills...),
		Languages:      []string{},
		Frameworks:     []string{},
		CloudPlatforms: []string{},
		Databases:      []string{},
		Tools:          []string{},
	}
	for _, e := range s.Experience {
		facts.Experience = append(facts.Experience, matcher.Experience{
			Title:            e.Title,
			Company:          e.Company,
			Responsibilities: nonEmpty(strings.Split(e.Description, "\n")),
		})
	}
	for _, e := range s.Education {
		facts.Education = append(facts.Education, matcher.Education{
			Degree:      e.Degree,
			Field:       e.Field,
			Institution: e.Institution,
			Year:        e.Year,
		})
	}
	for _, c := range s.Certifications {
		facts.Certifications = append(facts.Certifications, matcher.Certification{Name: c})
	}
	return facts
}

// Seniority labels a CV from explicit signals first, then total years.
func Seniority(f matcher.CVFacts) string {
	signals := strings.ToLower(strings.Join(f.SenioritySignals, " "))
	switch {
	case strings.Contains(signals, "principal"), strings.Contains(signals, "staff"):
		return "principal"
	case strings.Contains(signals, "lead"), strings.Contains(signals, "led "), strings.Contains(signals, "managed"):
		return "lead"
	case strings.Contains(signals, "senior"):
		return "senior"
	}
	switch y := f.YearsExperienceTotal; {
	case y <= 0:
		return "unknown"
	case y < 2:
		return "junior"
	case y < 5:
		return "mid"
	default:
		return "senior"
	}
}

func sectionsFrom(data map[string]any) Sections {
	s := Sections{
		Summary:        llm.CoerceString(data["summary"]),
		Skills:         llm.CoerceStrings(data["skills"]),
		Certifications: llm.CoerceStrings(data["certifications"]),
		Experience:     []ExperienceEntry{},
		Education:      []EducationEntry{},
	}
	for _, e := range llm.CoerceObjects(data["experience"]) {
		s.Experience = append(s.Experience, ExperienceEntry{
			Title:       llm.CoerceString(e["title"]),
			Company:     llm.CoerceString(e["company"]),
			Period:      llm.CoerceString(e["period"]),
			Description: llm.CoerceString(e["description"]),
		})
	}
	for _, e := range llm.CoerceObjects(data["education"]) {
		s.Education = append(s.Education, EducationEntry{
			Degree:      llm.CoerceString(e["degree"]),
			Institution: llm.CoerceString(e["institution"]),
			Year:        llm.CoerceString(e["year"]),
			Field:       llm.CoerceString(e["field"]),
		})
	}
	if s.Skills == nil {
		s.Skills = []string{}
	}
	if s.Certifications == nil {
		s.Certifications = []string{}
	}
	return s
}

func factsFrom(data map[string]any) matcher.CVFacts {
	f := matcher.CVFacts{
		Summary:              llm.CoerceString(data["summary"]),
		Skills:               llm.CoerceStrings(data["skills"]),
		Languages:            llm.CoerceStrings(data["languages"]),
		Frameworks:           llm.CoerceStrings(data["frameworks"]),
		CloudPlatforms:       llm.CoerceStrings(data["cloud_platforms"]),
		Databases:            llm.CoerceStrings(data["databases"]),
		Tools:                llm.CoerceStrings(data["tools"]),
		YearsExperienceTotal: llm.FloatOr(data["years_experience_total"], 0),
		SenioritySignals:     llm.CoerceStrings(data["seniority_signals"]),
		DomainExpertise:      llm.CoerceStrings(data["domain_expertise"]),
		SoftSkills:           llm.CoerceStrings(data["soft_skills"]),
	}
	for _, e := range llm.CoerceObjects(data["education"]) {
		ed := matcher.Education{
			Degree:      llm.CoerceString(e["degree"]),
			Field:       llm.CoerceString(e["field"]),
			Institution: llm.CoerceString(e["institution"]),
			Year:        llm.CoerceString(e["year"]),
		}
		if ed != (matcher.Education{}) {
			f.Education = append(f.Education, ed)
		}
	}
	for _, e := range llm.CoerceObjects(data["experience"]) {
		f.Experience = append(f.Experience, matcher.Experience{
			Title:            llm.CoerceString(e["title"]),
			Company:          llm.CoerceString(e["company"]),
			StartYear:        optionalYear(e["start_year"]),
			EndYear:          optionalYear(e["end_year"]),
			DurationYears:    llm.FloatOr(e["duration_years"], 0),
			Responsibilities: llm.CoerceStrings(e["responsibilities"]),
			Technologies:     llm.CoerceStrings(e["technologies"]),
		})
	}
	for _, e := range llm.CoerceObjects(data["projects"]) {
		f.Projects = append(f.Projects, matcher.Project{
			Name:         llm.CoerceString(e["name"]),
			Description:  llm.CoerceString(e["description"]),
			Technologies: llm.CoerceStrings(e["technologies"]),
			URL:          llm.CoerceString(e["url"]),
		})
	}
	switch certs := data["certifications"].(type) {
	case []any:
		for _, c := range certs {
			if m, ok := c.(map[string]any); ok {
				if name := llm.CoerceString(m["name"]); name != "" {
					f.Certifications = append(f.Certifications, matcher.Certification{
						Name:   name,
						Issuer: llm.CoerceString(m["issuer"]),
						Year:   llm.CoerceString(m["year"]),
					})
				}
				continue
			}
			if name := llm.CoerceString(c); name != "" {
				f.Certifications = append(f.Certifications, matcher.Certification{Name: name})
			}
		}
	}
	return f
}

func optionalYear(v any) *int {
	y := llm.FloatOr(v, 0)
	if y <= 0 {
		return nil
	}
	n := int(y)
	return &n
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func truncate(text string) string {
	if len(text) <= maxPromptChars {
		return text
	}
	return text[:maxPromptChars]
}
