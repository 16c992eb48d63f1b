package matcher

import (
	"sort"
	"strings"
)

// skillAliases maps common spellings to one canonical skill name.
var skillAliases = map[string]string{
	// languages
	"golang":     "go",
	"go lang":    "go",
	"javascript": "js",
	"typescript": "ts",
	"node.js":    "nodejs",
	"node":       "nodejs",
	"python3":    "python",
	"python 3":   "python",
	"c++":        "cpp",
	"c#":         "csharp",
	".net":       "dotnet",

	// frontend
	"react.js":   "react",
	"reactjs":    "react",
	"react js":   "react",
	"angular.js": "angular",
	"angularjs":  "angular",
	"angular js": "angular",
	"vue.js":     "vue",
	"vuejs":      "vue",
	"vue js":     "vue",
	"next.js":    "nextjs",

	// backend
	"express.js":  "express",
	"expressjs":   "express",
	"spring boot": "spring",
	"springboot":  "spring",

	// cloud
	"aws":                   "amazon web services",
	"amazon web services":   "amazon web services",
	"gcp":                   "google cloud",
	"google cloud platform": "google cloud",
	"google cloud":          "google cloud",
	"azure cloud services":  "azure",
	"microsoft azure":       "azure",

	// databases
	"postgres":             "postgresql",
	"mongo":                "mongodb",
	"mssql":                "sql server",
	"sql server":           "sql server",
	"microsoft sql server": "sql server",

	// devops
	"k8s":            "kubernetes",
	"github actions": "github actions",
	"gitlab ci":      "gitlab ci",

	// data
	"spark":        "apache spark",
	"apache spark": "apache spark",
	"athena":       "aws athena",
	"aws athena":   "aws athena",
	"drill":        "apache drill",
	"apache drill": "apache drill",
	"kafka":        "apache kafka",
	"apache kafka": "apache kafka",
}

// SkillNormalizer folds skill spellings onto canonical names.
type SkillNormalizer struct {
	aliases []string // longest first
}

func NewSkillNormalizer() *SkillNormalizer {
	keys := make([]string, 0, len(skillAliases))
	for k := range skillAliases {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return &SkillNormalizer{aliases: keys}
}

// Skill lower-cases s and maps it to its canonical name.
func (n *SkillNormalizer) Skill(s string) string {
	lower := strings.ToLower(strings.TrimSpace(s))
	if canon, ok := skillAliases[lower]; ok {
		return canon
	}
	return lower
}

func (n *SkillNormalizer) skills(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if v := n.Skill(s); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Requirement lower-cases a requirement sentence and canonicalises every alias
// that appears in it as a whole word. Replacement is a single left-to-right pass
// preferring the longest alias, so canonical names are never rewritten twice.
func (n *SkillNormalizer) Requirement(req string) string {
	lower := strings.ToLower(strings.TrimSpace(req))
	if lower == "" {
		return lower
	}

	var b strings.Builder
	b.Grow(len(lower))
	for i := 0; i < len(lower); {
		if i == 0 || !isWordByte(lower[i-1]) {
			if alias, ok := n.aliasAt(lower, i); ok {
				b.WriteString(skillAliases[alias])
				i += len(alias)
				continue
			}
		}
		b.WriteByte(lower[i])
		i++
	}
	return b.String()
}

func (n *SkillNormalizer) aliasAt(s string, i int) (string, bool) {
	for _, alias := range n.aliases {
		if !strings.HasPrefix(s[i:], alias) {
			continue
		}
		end := i + len(alias)
		if end < len(s) && isWordByte(s[end]) && isWordByte(alias[len(alias)-1]) {
			continue
		}
		return alias, true
	}
	return "", false
}

func isWordByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9'
}

// CV returns a copy of facts with every technology field normalized.
func (n *SkillNormalizer) CV(facts CVFacts) CVFacts {
	out := facts
	out.Skills = n.skills(facts.Skills)
	out.Languages = n.skills(facts.Languages)
	out.Frameworks = n.skills(facts.Frameworks)
	out.CloudPlatforms = n.skills(facts.CloudPlatforms)
	out.Databases = n.skills(facts.Databases)
	out.Tools = n.skills(facts.Tools)

	if facts.Experience != nil {
		out.Experience = make([]Experience, len(facts.Experience))
		for i, e := range facts.Experience {
			e.Technologies = n.skills(e.Technologies)
			out.Experience[i] = e
		}
	}
	if facts.Projects != nil {
		out.Projects = make([]Project, len(facts.Projects))
		for i, p := range facts.Projects {
			p.Technologies = n.skills(p.Technologies)
			out.Projects[i] = p
		}
	}
	return out
}

// Job returns a copy of the requirements with must/nice lists normalized.
func (n *SkillNormalizer) Job(req Requirements) Requirements {
	out := req
	out.MustHave = make([]string, 0, len(req.MustHave))
	for _, r := range req.MustHave {
		out.MustHave = append(out.MustHave, n.Requirement(r))
	}
	out.NiceToHave = make([]string, 0, len(req.NiceToHave))
	for _, r := range req.NiceToHave {
		out.NiceToHave = append(out.NiceToHave, n.Requirement(r))
	}
	return out
}

// AllTech is the sorted union of the CV's technology fields.
func AllTech(facts CVFacts) []string {
	seen := map[string]struct{}{}
	for _, list := range [][]string{facts.Skills, facts.Languages, facts.Frameworks, facts.CloudPlatforms, facts.Databases, facts.Tools} {
		for _, s := range list {
			if s = strings.TrimSpace(s); s != "" {
				seen[s] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
