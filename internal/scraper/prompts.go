package scraper

import (
	"encoding/json"
	"fmt"
)

const extractionTemplate = `Extract and structure the job posting in the text below.%s

Write a description organised for CV tailoring, with these markdown sections:
## About the Role
## Key Responsibilities
## Required Qualifications
## Preferred Qualifications
## Technical Skills
Use bullet points and include every qualification, requirement and skill mentioned.

Text:
%s

Return only JSON: {"title": "...", "company": "...", "description": "..."}`

func extractionPrompt(text string, hint Posting) string {
	var hintText string
	if !hint.empty() {
		b, _ := json.Marshal(hint)
		hintText = fmt.Sprintf("\nPartial data found: %s\nUse it as a starting point but take full details from the text.", b)
	}
	return fmt.Sprintf(extractionTemplate, hintText, text)
}
