package generation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lysyi3m/content-calendar/app/database"
)

const systemInstruction = `You write marketing content for a scheduled content calendar.
Answer with a single JSON object and nothing else, using the keys
"title", "text", "variants", "hashtags" and "cta".
"variants" holds alternative texts, carousel slides or thread posts.
"hashtags" holds tags without spaces. Omit keys you have nothing for.`

var contentTypeHints = map[string]string{
	"post":       "A single social media post. Put the full post in text.",
	"story":      "A short story caption, one or two sentences in text.",
	"reel":       "A short video script in text with a strong first line.",
	"short":      "A short video script in text with a strong first line.",
	"carousel":   "An intro caption in text and one entry in variants per slide, at least two slides.",
	"article":    "A blog article with a title and the full body in text.",
	"email":      "An email with the subject line as title and the body in text.",
	"newsletter": "A newsletter issue with a title and the body in text.",
	"thread":     "A thread with one entry in variants per post, at least two posts.",
}

// BuildPrompt renders the user prompt for one generation request.
func BuildPrompt(req Request) string {
	var b strings.Builder

	hint, ok := contentTypeHints[req.ContentType]
	if !ok {
		hint = "Put the full content in text."
	}
	fmt.Fprintf(&b, "Write a %s for the %s channel. %s\n", req.ContentType, req.Channel, hint)

	field := func(label, value string) {
		if value = strings.TrimSpace(value); value != "" {
			fmt.Fprintf(&b, "%s: %s\n", label, value)
		}
	}
	if !req.ScheduledAt.IsZero() {
		field("Publication time", req.ScheduledAt.Format("Monday, 2 January 2006 15:04 MST"))
	}
	field("Plan", req.PlanName)
	field("Campaign context", req.CampaignContext)
	field("Topic", req.Topic)
	field("Hook", req.Hook)
	field("Call to action", req.CTA)
	field("Audience persona", req.Persona)
	field("Customer journey stage", req.CJMStage)
	field("Goal", req.Goal)

	if req.SourceExcerpt != "" {
		fmt.Fprintf(&b, "\nSource material (%s):\n%s\n", req.SourceURL, req.SourceExcerpt)
	}

	if req.Feedback != "" {
		if req.Previous != nil {
			prev, _ := json.Marshal(req.Previous)
			fmt.Fprintf(&b, "\nPrevious version:\n%s\n", prev)
		}
		fmt.Fprintf(&b, "\nRevise the content according to this feedback:\n%s\n", req.Feedback)
	}

	return b.String()
}

type generatedPayload struct {
	Title    string   `json:"title"`
	Text     string   `json:"text"`
	Variants []string `json:"variants"`
	Hashtags []string `json:"hashtags"`
	CTA      string   `json:"cta"`
}

// ParseResponse decodes the generator's JSON answer. A surrounding Markdown
// code fence is tolerated.
func ParseResponse(raw string) (database.GeneratedContent, error) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	if s == "" {
		return database.GeneratedContent{}, fmt.Errorf("empty response")
	}

	var payload generatedPayload
	if err := json.Unmarshal([]byte(s), &payload); err != nil {
		return database.GeneratedContent{}, fmt.Errorf("failed to decode response: %w", err)
	}

	return database.GeneratedContent{
		Title:    payload.Title,
		Text:     payload.Text,
		Variants: payload.Variants,
		Hashtags: payload.Hashtags,
		CTA:      payload.CTA,
	}, nil
}
