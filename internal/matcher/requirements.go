package matcher

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/tailorjob/backend/internal/providers/llm"
)

const maxRequirementChars = 12000

var roleLevels = []string{"principal", "staff", "lead", "senior", "mid", "junior", "intern"}

// plainSkills are canonical skill names that have no alias entry.
var plainSkills = []string{
	"docker", "graphql", "terraform", "java", "kotlin", "rust", "ruby", "php", "scala", "swift",
	"redis", "mysql", "elasticsearch", "linux", "rest", "grpc", "sql", "django", "flask", "rails",
}

// RequirementsExtractor turns a job description into a requirements matrix.
type RequirementsExtractor struct {
	provider   llm.Provider
	normalizer *SkillNormalizer
	log        *logrus.Entry
}

func NewRequirementsExtractor(p llm.Provider, log *logrus.Entry) *RequirementsExtractor {
	return &RequirementsExtractor{provider: p, normalizer: NewSkillNormalizer(), log: log}
}

// Extract asks the model for the matrix and falls back to keyword rules when
// no model is configured or its answer is unusable.
func (r *RequirementsExtractor) Extract(ctx context.Context, title, description string) Requirements {
	if r.provider != nil {
		req, err := r.extractAI(ctx, title, description)
		if err == nil && !req.Empty() {
			return req
		}
		if r.log != nil {
			r.log.WithError(err).WithField("title", title).Warn("requirements extraction failed, using keyword rules")
		}
	}
	return r.Keywords(title, description)
}

func (r *RequirementsExtractor) extractAI(ctx context.Context, title, description string) (Requirements, error) {
	if len(description) > maxRequirementChars {
		description = description[:maxRequirementChars]
	}
	raw, err := r.provider.Generate(ctx, llm.Request{
		System: "You extract hiring requirements from job postings. " +
			"Only list what the posting states. Return valid JSON only.",
		Prompt:      requirementsPrompt(title, description),
		Temperature: 0.1,
		MaxTokens:   2000,
		JSON:        true,
	})
	if err != nil {
		return Requirements{}, err
	}
	data, err := llm.DecodeObject(raw)
	if err != nil {
		return Requirements{}, err
	}

	req := Requirements{
		MustHave:        llm.CoerceStrings(data["must_have"]),
		NiceToHave:      llm.CoerceStrings(data["nice_to_have"]),
		ExperienceYears: llm.FloatOr(data["experience_years"], 0),
		Education:       llm.CoerceString(data["education"]),
		RoleLevel:       strings.ToLower(llm.CoerceString(data["role_level"])),
		Domain:          llm.CoerceString(data["domain"]),
	}
	if m, ok := data["management"].(map[string]any); ok {
		req.Management.Required = llm.CoerceBool(m["required"])
		req.Management.TeamSize = int(llm.FloatOr(m["team_size"], 0))
	}
	if req.MustHave == nil {
		req.MustHave = []string{}
	}
	if req.NiceToHave == nil {
		req.NiceToHave = []string{}
	}
	return req, nil
}

// Keywords builds a coarse matrix from known skill aliases, a years pattern
// and title seniority words.
func (r *RequirementsExtractor) Keywords(title, description string) Requirements {
	text := r.normalizer.Requirement(title + "\n" + description)

	seen := map[string]bool{}
	must := []string{}
	candidates := append([]string{}, plainSkills...)
	for _, canon := range skillAliases {
		candidates = append(candidates, canon)
	}
	for _, canon := range candidates {
		if seen[canon] || !containsWord(text, canon) {
			continue
		}
		seen[canon] = true
		must = append(must, canon)
	}
	sort.Strings(must)

	req := Requirements{MustHave: must, NiceToHave: []string{}, RoleLevel: roleLevel(title)}
	if m := yearsPattern.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			req.ExperienceYears = float64(n)
		}
	}
	for _, kw := range []string{"bachelor", "master", "phd", "degree"} {
		if strings.Contains(text, kw) {
			req.Education = educationSentence(text, kw)
			break
		}
	}
	req.Management.Required = containsAny(text, []string{"manage a team", "people management", "direct reports", "line management"})
	return req
}

func roleLevel(title string) string {
	t := strings.ToLower(title)
	for _, lvl := range roleLevels {
		if strings.Contains(t, lvl) {
			return lvl
		}
	}
	if strings.Contains(t, "sr.") || strings.Contains(t, "sr ") {
		return "senior"
	}
	return "mid"
}

// educationSentence returns the sentence of text that mentions kw.
func educationSentence(text, kw string) string {
	i := strings.Index(text, kw)
	start := strings.LastIndexAny(text[:i], ".\n") + 1
	end := strings.IndexAny(text[i:], ".\n")
	if end < 0 {
		end = len(text) - i
	}
	return strings.TrimSpace(text[start : i+end])
}

func containsWord(text, word string) bool {
	for i := 0; ; {
		j := strings.Index(text[i:], word)
		if j < 0 {
			return false
		}
		at := i + j
		end := at + len(word)
		if (at == 0 || !isWordByte(text[at-1])) && (end == len(text) || !isWordByte(text[end])) {
			return true
		}
		i = at + 1
	}
}

func requirementsPrompt(title, description string) string {
	return fmt.Sprintf(`Extract the requirements matrix for this job.

JOB TITLE: %s

JOB DESCRIPTION:
%s

Return JSON:
{
  "must_have": ["explicitly required skills or qualifications"],
  "nice_to_have": ["preferred or bonus skills"],
  "experience_years": 0,
  "education": "degree requirement sentence, empty if none",
  "management": {"required": false, "team_size": 0},
  "role_level": "junior|mid|senior|lead|principal",
  "domain": "short business domain, e.g. fintech"
}

Rules:
- Keep each requirement short (a skill or a short phrase).
- A requirement goes in must_have only when the posting marks it required.
- experience_years is the minimum stated, 0 when not stated.`, title, description)
}
