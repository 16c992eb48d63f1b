package cvparse

import "fmt"

const sectionsTemplate = `Extract all structured information from the CV below.
Do not summarize or shorten anything: descriptions are reused later for tailoring, so keep every
responsibility, achievement, metric, project name and technology as written.

Return only a JSON object with this structure:
{
  "summary": "full professional summary",
  "skills": ["every skill, tool, technology and language mentioned"],
  "experience": [{"title": "", "company": "", "period": "Start - End", "description": "complete description with bullet points"}],
  "education": [{"degree": "", "institution": "", "year": "", "field": ""}],
  "certifications": [""]
}

CV text:
%s`

const factsTemplate = `Extract only facts that appear in the CV text. Never infer or guess.
If something is not written, return null or [].
Do not derive technologies from job descriptions and do not assume durations that are not stated.

Return only JSON:
{
  "skills": [], "languages": [], "frameworks": [], "cloud_platforms": [], "databases": [], "tools": [],
  "education": [{"degree": null, "field": null, "institution": null, "year": null}],
  "experience": [{"title": "", "company": "", "start_year": null, "end_year": null, "duration_years": null,
                  "responsibilities": [], "technologies": []}],
  "projects": [{"name": "", "description": "", "technologies": [], "url": null}],
  "certifications": [{"name": "", "issuer": null, "year": null}],
  "years_experience_total": null,
  "seniority_signals": [],
  "domain_expertise": [],
  "soft_skills": []
}

Fields:
- languages: programming languages only. frameworks: web or mobile frameworks.
- cloud_platforms: AWS, Azure, GCP and similar. databases: PostgreSQL, MongoDB and similar.
- tools: Git, Docker, Kubernetes and similar.
- experience.end_year is null for the current role; duration_years only when dates allow it.
- experience.technologies: only technologies named in that role.
- seniority_signals: exact phrases such as "Senior", "Lead", "Led team of 5 engineers".
  A plain "Software Engineer at X" yields no signal.
- domain_expertise and soft_skills: only when stated explicitly.

CV text:
%s`

func sectionsPrompt(text string) string { return fmt.Sprintf(sectionsTemplate, text) }

func factsPrompt(text string) string { return fmt.Sprintf(factsTemplate, text) }
