// Package scraper turns a job posting URL into a title, company and description.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"

	"github.com/tailorjob/backend/internal/cache"
	"github.com/tailorjob/backend/internal/providers/llm"
	"github.com/tailorjob/backend/internal/utils"
)

const (
	maxTextChars    = 8000
	completeDescMin = 100
	defaultTTL      = 6 * time.Hour
	userAgent       = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"
)

var ErrInvalidURL = errors.New("Please provide a valid http(s) job posting URL.")

// Posting is the job data extracted from a page.
type Posting struct {
	Title         string `json:"title"`
	Company       string `json:"company"`
	Description   string `json:"description"`
	ExternalJobID string `json:"external_job_id,omitempty"`
}

func (p Posting) complete() bool {
	return p.Title != "" && p.Company != "" && len(p.Description) > completeDescMin
}

func (p Posting) empty() bool {
	return p.Title == "" && p.Company == "" && p.Description == ""
}

type Scraper struct {
	http     *resty.Client
	provider llm.Provider
	cache    cache.Cache
	ttl      time.Duration
	log      *logrus.Entry
}

// New builds a Scraper. provider and c may be nil: pages then need structured data,
// and nothing is cached.
func New(provider llm.Provider, c cache.Cache, log *logrus.Entry) *Scraper {
	client := resty.New().
		SetTimeout(30*time.Second).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10)).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		SetHeader("Accept-Language", "en-US,en;q=0.9")
	return &Scraper{http: client, provider: provider, cache: c, ttl: defaultTTL, log: log}
}

// Scrape fetches and extracts a posting. Successful results are cached per URL.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) (Posting, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Posting{}, ErrInvalidURL
	}
	key := cache.ScrapeKey(utils.SHA256Hex([]byte(u.String())))
	return cache.Remember(ctx, s.cache, key, s.ttl, func(ctx context.Context) (Posting, error) {
		return s.scrape(ctx, u.String())
	})
}

func (s *Scraper) scrape(ctx context.Context, pageURL string) (Posting, error) {
	raw, err := s.fetch(ctx, pageURL)
	if err != nil {
		return Posting{}, err
	}
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return Posting{}, fmt.Errorf("Failed to fetch job posting: %w", err)
	}

	structured := structuredData(doc)
	if structured.complete() {
		s.log.WithField("title", structured.Title).Info("job extracted from structured data")
		return structured, validate(doc, raw, structured)
	}

	if s.provider == nil {
		if structured.empty() {
			return Posting{}, errors.New("Could not find job details on this page and AI extraction is not configured.")
		}
		return structured, validate(doc, raw, structured)
	}

	text := utils.Truncate(cleanText(doc), maxTextChars, "...")
	posting, err := s.extract(ctx, text, structured)
	if err != nil {
		return Posting{}, err
	}
	if posting.ExternalJobID == "" {
		posting.ExternalJobID = structured.ExternalJobID
	}
	s.log.WithField("title", posting.Title).Info("job extracted with ai")
	return posting, validate(doc, raw, posting)
}

func (s *Scraper) fetch(ctx context.Context, pageURL string) (string, error) {
	resp, err := s.http.R().SetContext(ctx).Get(pageURL)
	if err != nil {
		var ne net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
			return "", errors.New("Connection timeout while fetching job posting. The site may be slow or unreachable.")
		}
		s.log.WithError(err).WithField("url", pageURL).Warn("job page fetch failed")
		return "", errors.New("Cannot connect to job posting site. Please check the URL and try again.")
	}
	if resp.IsError() {
		return "", fmt.Errorf("Failed to fetch job posting: HTTP %d", resp.StatusCode())
	}
	return resp.String(), nil
}

func (s *Scraper) extract(ctx context.Context, text string, hint Posting) (Posting, error) {
	raw, err := s.provider.Generate(ctx, llm.Request{
		System:      "You extract structured data from job postings. Always return valid JSON.",
		Prompt:      extractionPrompt(text, hint),
		Temperature: 0.3,
		MaxTokens:   2000,
		JSON:        true,
	})
	if err != nil {
		return Posting{}, fmt.Errorf("Failed to extract job data: %w", err)
	}
	data, err := llm.DecodeObject(raw)
	if err != nil {
		return Posting{}, errors.New("Failed to extract job data: Invalid AI response format")
	}
	for _, k := range []string{"title", "company", "description"} {
		if _, ok := data[k]; !ok {
			return Posting{}, errors.New("Failed to extract job data: Missing required fields in extracted data")
		}
	}
	return Posting{
		Title:       llm.CoerceString(data["title"]),
		Company:     llm.CoerceString(data["company"]),
		Description: llm.CoerceString(data["description"]),
	}, nil
}
