package scraper

import (
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// structuredData reads JSON-LD JobPosting first, then OpenGraph and plain meta tags.
func structuredData(doc *html.Node) Posting {
	var (
		p        Posting
		ldFound  bool
		title    string
		ogTitle  string
		ogDesc   string
		siteName string
		company  string
	)
	walk(doc, func(n *html.Node) bool {
		switch n.DataAtom {
		case atom.Script:
			if ldFound || !strings.EqualFold(attr(n, "type"), "application/ld+json") {
				return false
			}
			if jp, ok := jobPosting(nodeText(n)); ok {
				p, ldFound = jp, true
			}
			return false
		case atom.Meta:
			content := strings.TrimSpace(attr(n, "content"))
			switch {
			case attr(n, "property") == "og:title":
				ogTitle = content
			case attr(n, "property") == "og:description":
				ogDesc = content
			case attr(n, "property") == "og:site_name":
				siteName = content
			case strings.EqualFold(attr(n, "name"), "company"):
				company = content
			}
		case atom.Title:
			if title == "" {
				title = strings.TrimSpace(nodeText(n))
			}
			return false
		}
		return true
	})
	if ldFound {
		return p
	}

	p.Title = ogTitle
	if ogDesc != "" {
		p.Description = ogDesc
		// "Senior Engineer at Acme · Remote"
		if _, after, ok := strings.Cut(ogDesc, " at "); ok {
			p.Company = strings.TrimSpace(strings.SplitN(after, " ·", 2)[0])
		}
	}
	if p.Title == "" && title != "" {
		// "Job Title - Company | Site"
		t := strings.SplitN(title, "|", 2)[0]
		p.Title = strings.TrimSpace(strings.SplitN(t, "-", 2)[0])
	}
	if p.Company == "" {
		if company != "" {
			p.Company = company
		} else {
			p.Company = siteName
		}
	}
	return p
}

// jobPosting finds a JobPosting in a JSON-LD block (object, list or @graph).
func jobPosting(raw string) (Posting, bool) {
	if !gjson.Valid(raw) {
		return Posting{}, false
	}
	root := gjson.Parse(raw)
	var candidates []gjson.Result
	switch {
	case root.IsArray():
		candidates = root.Array()
	case root.Get("@graph").IsArray():
		candidates = root.Get("@graph").Array()
	default:
		candidates = []gjson.Result{root}
	}
	for _, c := range candidates {
		if !isJobPosting(c.Get("@type")) {
			continue
		}
		org := c.Get("hiringOrganization")
		company := org.Get("name").String()
		if org.Type == gjson.String {
			company = org.String()
		}
		id := c.Get("identifier.value").String()
		if c.Get("identifier").Type == gjson.String {
			id = c.Get("identifier").String()
		}
		return Posting{
			Title:         strings.TrimSpace(c.Get("title").String()),
			Company:       strings.TrimSpace(company),
			Description:   htmlToText(c.Get("description").String()),
			ExternalJobID: strings.TrimSpace(id),
		}, true
	}
	return Posting{}, false
}

func isJobPosting(t gjson.Result) bool {
	if t.IsArray() {
		for _, v := range t.Array() {
			if v.String() == "JobPosting" {
				return true
			}
		}
		return false
	}
	return t.String() == "JobPosting"
}

// htmlToText renders the HTML fragments that JSON-LD descriptions usually carry.
func htmlToText(s string) string {
	if !strings.Contains(s, "<") {
		return strings.TrimSpace(html.UnescapeString(s))
	}
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return cleanText(doc)
}

var skipped = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Nav: true, atom.Footer: true, atom.Header: true,
	atom.Aside: true, atom.Iframe: true, atom.Noscript: true, atom.Svg: true,
}

var noiseMarkers = []string{"cookie", "banner", "modal", "popup", "advertisement", "navigation", "menu", "sidebar"}

var blocks = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Li: true, atom.Br: true, atom.Tr: true, atom.Section: true,
	atom.Article: true, atom.Title: true, atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.Ul: true, atom.Ol: true,
}

// cleanText drops page chrome and returns one trimmed line per text block.
func cleanText(doc *html.Node) string {
	var b strings.Builder
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode && (skipped[n.DataAtom] || noisy(n)) {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
		if n.Type == html.ElementNode && blocks[n.DataAtom] {
			b.WriteString("\n")
		}
	}
	visit(doc)

	var lines []string
	for _, l := range strings.Split(b.String(), "\n") {
		if l = strings.Join(strings.Fields(l), " "); l != "" {
			lines = append(lines, l)
		}
	}
	return strings.Join(lines, "\n")
}

func noisy(n *html.Node) bool {
	class := strings.ToLower(attr(n, "class"))
	id := strings.ToLower(attr(n, "id"))
	if class == "" && id == "" {
		return false
	}
	for _, m := range noiseMarkers {
		if strings.Contains(class, m) || strings.Contains(id, m) {
			return true
		}
	}
	return false
}

// walk visits element nodes depth first; fn returns false to skip children.
func walk(n *html.Node, fn func(*html.Node) bool) {
	if n.Type == html.ElementNode && !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}
