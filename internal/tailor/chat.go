package tailor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tailorjob/backend/internal/models"
	"github.com/tailorjob/backend/internal/providers/llm"
)

// UpdateMarker separates the chat answer from a revised CV document.
const UpdateMarker = "<<<UPDATED_CV>>>"

const maxHistory = 20

// ChatInput is one user turn in a tailoring conversation.
type ChatInput struct {
	JobTitle string
	Content  map[string]any
	History  []models.ChatMessage
	Message  string
}

// ChatReply is the assistant turn; Updated is set when the model revised the CV.
type ChatReply struct {
	Message string
	Updated map[string]any
}

// Reply streams the assistant answer through onChunk. Text after UpdateMarker
// is decoded as the revised document and never forwarded.
func (t *Tailorer) Reply(ctx context.Context, in ChatInput, onChunk func(string)) (ChatReply, error) {
	if t.provider == nil {
		return ChatReply{}, llm.ErrNotConfigured
	}
	prompt, err := chatPrompt(in)
	if err != nil {
		return ChatReply{}, err
	}
	chunks, errs := t.provider.StreamAnswer(ctx, llm.Request{
		System: "You help a candidate refine a CV tailored to a job. Answer briefly. " +
			"Never invent experience, skills or qualifications.",
		Prompt:      prompt,
		Temperature: 0.4,
		MaxTokens:   4000,
	})

	f := &markerFilter{emit: onChunk}
	full, err := llm.Collect(ctx, chunks, errs, f.write)
	if err != nil {
		return ChatReply{}, fmt.Errorf("chat stream: %w", err)
	}
	f.flush()
	return SplitReply(full), nil
}

// SplitReply separates the answer text from an optional revised document.
// A revision that does not decode is dropped and the answer kept.
func SplitReply(full string) ChatReply {
	i := strings.Index(full, UpdateMarker)
	if i < 0 {
		return ChatReply{Message: strings.TrimSpace(full)}
	}
	r := ChatReply{Message: strings.TrimSpace(full[:i])}
	if doc, err := llm.DecodeObject(full[i+len(UpdateMarker):]); err == nil && len(doc) > 0 {
		r.Updated = doc
	}
	return r
}

// markerFilter forwards streamed text up to UpdateMarker, holding back a tail
// that could be the start of a marker split across chunks.
type markerFilter struct {
	emit    func(string)
	pending string
	done    bool
}

func (f *markerFilter) write(chunk string) {
	if f.done || f.emit == nil {
		return
	}
	f.pending += chunk
	if i := strings.Index(f.pending, UpdateMarker); i >= 0 {
		if i > 0 {
			f.emit(f.pending[:i])
		}
		f.pending = ""
		f.done = true
		return
	}
	keep := partialMarker(f.pending)
	if out := f.pending[:len(f.pending)-keep]; out != "" {
		f.emit(out)
	}
	f.pending = f.pending[len(f.pending)-keep:]
}

func (f *markerFilter) flush() {
	if !f.done && f.pending != "" && f.emit != nil {
		f.emit(f.pending)
	}
	f.pending = ""
}

// partialMarker is the length of the longest suffix of s that prefixes UpdateMarker.
func partialMarker(s string) int {
	n := len(UpdateMarker) - 1
	if n > len(s) {
		n = len(s)
	}
	for ; n > 0; n-- {
		if strings.HasSuffix(s, UpdateMarker[:n]) {
			return n
		}
	}
	return 0
}

func chatPrompt(in ChatInput) (string, error) {
	doc, err := json.MarshalIndent(in.Content, "", "  ")
	if err != nil {
		return "", err
	}
	history := in.History
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}
	var b strings.Builder
	for _, m := range history {
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return fmt.Sprintf(chatTemplate, in.JobTitle, doc, b.String(), in.Message, UpdateMarker), nil
}

const chatTemplate = `TARGET JOB: %s

CURRENT TAILORED CV (JSON):
%s

CONVERSATION SO FAR:
%s
user: %s

Answer the user. If they ask for a change to the CV, answer first, then write %s on its own line
followed by the complete revised CV as JSON in the same structure. Otherwise do not write the marker.`
