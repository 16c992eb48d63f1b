package tailor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/tailorjob/backend/internal/matcher"
	"github.com/tailorjob/backend/internal/models"
	"github.com/tailorjob/backend/internal/providers/llm"
)

type stubProvider struct {
	reqs   []llm.Request
	answer string
	chunks []string
	err    error
}

func (s *stubProvider) Generate(_ context.Context, req llm.Request) (string, error) {
	s.reqs = append(s.reqs, req)
	return s.answer, s.err
}

func (s *stubProvider) StreamAnswer(_ context.Context, req llm.Request) (<-chan string, <-chan error) {
	s.reqs = append(s.reqs, req)
	out := make(chan string, len(s.chunks))
	errs := make(chan error, 1)
	for _, c := range s.chunks {
		out <- c
	}
	close(out)
	if s.err != nil {
		errs <- s.err
	}
	close(errs)
	return out, errs
}

func (s *stubProvider) Embed(context.Context, string) ([]float32, error) { return nil, nil }
func (s *stubProvider) Model() string                                    { return "stub" }
func (s *stubProvider) Close() error                                     { return nil }

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

const cvText = `Jane Doe
jane.doe@example.com | +44 7700 900123
https://www.linkedin.com/in/janedoe/

Experience
Backend Engineer, Acme 2019 - 2023`

func TestContactFromText(t *testing.T) {
	c := ContactFromText(cvText)
	if c.Name != "Jane Doe" {
		t.Errorf("name = %q", c.Name)
	}
	if c.Email != "jane.doe@example.com" {
		t.Errorf("email = %q", c.Email)
	}
	if c.Phone != "+44 7700 900123" {
		t.Errorf("phone = %q", c.Phone)
	}
	if c.LinkedIn != "https://www.linkedin.com/in/janedoe" {
		t.Errorf("linkedin = %q", c.LinkedIn)
	}
}

func TestContactFromTextSkipsContactLineAsName(t *testing.T) {
	c := ContactFromText("jane@example.com\nJane Doe")
	if c.Name != "" {
		t.Errorf("name = %q, want empty", c.Name)
	}
	if c.Email != "jane@example.com" {
		t.Errorf("email = %q", c.Email)
	}
}

func TestMergeContactKeepsModelValues(t *testing.T) {
	content := map[string]any{"name": "J. Doe", "email": " "}
	MergeContact(content, Contact{Name: "Jane Doe", Email: "jane@example.com"})

	if content["name"] != "J. Doe" {
		t.Errorf("name overwritten: %v", content["name"])
	}
	if content["email"] != "jane@example.com" {
		t.Errorf("email = %v", content["email"])
	}
	if _, ok := content["phone"]; ok {
		t.Error("empty phone should not be set")
	}
}

func TestTailorWithProvider(t *testing.T) {
	p := &stubProvider{answer: "```json\n{\"summary\": \"Go engineer\", \"email\": \"\"}\n```"}
	tl := New(p, testLogger())

	out, err := tl.Tailor(context.Background(), Input{
		Facts:        matcher.CVFacts{Skills: []string{"go"}},
		Contact:      Contact{Name: "Jane Doe", Email: "jane@example.com"},
		JobTitle:     "Platform Engineer",
		Requirements: &matcher.Requirements{MustHave: []string{"go"}},
		Analysis:     &matcher.Result{Strengths: []string{"Strong Go background"}},
	})
	if err != nil {
		t.Fatalf("tailor: %v", err)
	}
	if out["summary"] != "Go engineer" || out["name"] != "Jane Doe" || out["email"] != "jane@example.com" {
		t.Errorf("unexpected output: %v", out)
	}
	if len(p.reqs) != 1 || !p.reqs[0].JSON || p.reqs[0].Temperature != 0.3 {
		t.Fatalf("unexpected request: %+v", p.reqs)
	}
	prompt := p.reqs[0].Prompt
	for _, want := range []string{"Title: Platform Engineer", "Strong Go background", `"must_have"`} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestTailorProviderError(t *testing.T) {
	tl := New(&stubProvider{err: errors.New("quota")}, testLogger())
	if _, err := tl.Tailor(context.Background(), Input{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestTailorFallback(t *testing.T) {
	start, end := 2019, 2023
	tl := New(nil, testLogger())
	out, err := tl.Tailor(context.Background(), Input{
		Facts: matcher.CVFacts{
			Summary:    "Backend engineer",
			Languages:  []string{"go"},
			Experience: []matcher.Experience{{Title: "Engineer", Company: "Acme", StartYear: &start, EndYear: &end}},
		},
		Contact: Contact{Name: "Jane Doe"},
	})
	if err != nil {
		t.Fatalf("tailor: %v", err)
	}
	if out["summary"] != "Backend engineer" || out["name"] != "Jane Doe" {
		t.Errorf("unexpected output: %v", out)
	}
	exp := out["experience"].([]map[string]any)
	if len(exp) != 1 || exp[0]["period"] != "2019-2023" {
		t.Errorf("experience = %v", exp)
	}
}

func TestReplyStreamsAnswerAndDecodesUpdate(t *testing.T) {
	p := &stubProvider{chunks: []string{
		"Sure, I moved ", "Kubernetes up.\n<<<UPD", "ATED_CV>>>\n{\"summary\":", " \"new\"}",
	}}
	tl := New(p, testLogger())

	var streamed strings.Builder
	reply, err := tl.Reply(context.Background(), ChatInput{
		JobTitle: "SRE",
		Content:  map[string]any{"summary": "old"},
		History:  []models.ChatMessage{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "hello"}},
		Message:  "Put Kubernetes first",
	}, func(s string) { streamed.WriteString(s) })
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if got := streamed.String(); got != "Sure, I moved Kubernetes up.\n" {
		t.Errorf("streamed = %q", got)
	}
	if reply.Message != "Sure, I moved Kubernetes up." {
		t.Errorf("message = %q", reply.Message)
	}
	if reply.Updated == nil || reply.Updated["summary"] != "new" {
		t.Errorf("updated = %v", reply.Updated)
	}
	if !strings.Contains(p.reqs[0].Prompt, "assistant: hello") || !strings.Contains(p.reqs[0].Prompt, "user: Put Kubernetes first") {
		t.Errorf("prompt missing history: %s", p.reqs[0].Prompt)
	}
}

func TestReplyWithoutUpdate(t *testing.T) {
	p := &stubProvider{chunks: []string{"Looks good ", "<<"}}
	tl := New(p, testLogger())

	var streamed strings.Builder
	reply, err := tl.Reply(context.Background(), ChatInput{Message: "ok?"}, func(s string) { streamed.WriteString(s) })
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if streamed.String() != "Looks good <<" {
		t.Errorf("streamed = %q", streamed.String())
	}
	if reply.Updated != nil || reply.Message != "Looks good <<" {
		t.Errorf("reply = %+v", reply)
	}
}

func TestReplyNotConfigured(t *testing.T) {
	_, err := New(nil, testLogger()).Reply(context.Background(), ChatInput{Message: "hi"}, nil)
	if !errors.Is(err, llm.ErrNotConfigured) {
		t.Fatalf("err = %v", err)
	}
}

func TestSplitReplyDropsBrokenUpdate(t *testing.T) {
	r := SplitReply("Done.\n" + UpdateMarker + "\nnot json")
	if r.Message != "Done." || r.Updated != nil {
		t.Errorf("reply = %+v", r)
	}
}
