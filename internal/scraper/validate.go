package scraper

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	minDescriptionChars = 50
	loginPhraseLimit    = 3
)

var invalidTitleWords = []string{
	"login", "sign in", "sign up", "log in", "signin", "register", "authentication",
	"error", "404", "403", "access denied", "page not found", "redirect", "loading", "please wait",
}

var invalidTitlePatterns = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(invalidTitleWords))
	for i, w := range invalidTitleWords {
		out[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(w) + `\b`)
	}
	return out
}()

// a real title like "Senior Engineer - Login Systems" is still a job
var jobTitleWords = []string{"engineer", "developer", "manager", "analyst", "designer", "lead", "senior", "junior"}

var loginPhrases = []string{
	"user agreement", "privacy policy", "cookie policy", "forgot password", "create account",
	"sign in with", "enter your email", "enter your password", "reset password",
}

var (
	emailInputName = regexp.MustCompile(`(?i)^(email|username)$`)
	signInButton   = regexp.MustCompile(`(?i)sign in|log in`)
)

// validate rejects login, error and navigation pages that slipped through extraction.
func validate(doc *html.Node, raw string, p Posting) error {
	title := strings.ToLower(p.Title)
	company := strings.ToLower(p.Company)
	desc := strings.ToLower(p.Description)

	for i, re := range invalidTitlePatterns {
		if !re.MatchString(title) || containsAny(title, jobTitleWords) {
			continue
		}
		return fmt.Errorf("Invalid job posting - the page title contains '%s'. "+
			"This appears to be a login, error, or navigation page. "+
			"Please use a direct link to a specific job posting.", invalidTitleWords[i])
	}

	if company != "" && company == title && strings.Contains(company, "linkedin") {
		return errors.New("Invalid job posting - this appears to be a site navigation page, not a job posting. " +
			"Please use a direct link to a specific job posting.")
	}

	hits := 0
	for _, phrase := range loginPhrases {
		if strings.Contains(desc, phrase) {
			hits++
		}
	}
	if hits >= loginPhraseLimit {
		return errors.New("This appears to be a login or authentication page, not a job posting. " +
			"Please use the direct job posting URL instead of a collection or list page.")
	}

	if strings.Contains(strings.ToLower(raw), "linkedin.com") && hasLoginForm(doc) {
		return errors.New("This LinkedIn URL requires login. " +
			"Please open the job in LinkedIn, then copy the direct job URL " +
			"(it should look like: linkedin.com/jobs/view/[job-id])")
	}

	if len(desc) < minDescriptionChars {
		return errors.New("The job description is missing or extremely short. " +
			"This may not be a valid job posting URL. " +
			"Please use the direct link to a specific job posting.")
	}
	return nil
}

func hasLoginForm(doc *html.Node) bool {
	var email, password, button bool
	walk(doc, func(n *html.Node) bool {
		switch n.DataAtom {
		case atom.Input:
			switch {
			case attr(n, "type") == "password":
				password = true
			case attr(n, "type") == "email", emailInputName.MatchString(attr(n, "name")):
				email = true
			}
		case atom.Button:
			if signInButton.MatchString(nodeText(n)) {
				button = true
			}
		}
		return true
	})
	return email && password && button
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
