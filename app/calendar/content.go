package calendar

import (
	"strings"

	"github.com/lysyi3m/content-calendar/app/database"
	"github.com/lysyi3m/content-calendar/app/errs"
)

type contentShape struct {
	needsTitle  bool
	needsText   bool
	minVariants int
}

var contentShapes = map[string]contentShape{
	"post":       {needsText: true},
	"story":      {needsText: true},
	"reel":       {needsText: true},
	"short":      {needsText: true},
	"carousel":   {needsText: true, minVariants: 2},
	"article":    {needsTitle: true, needsText: true},
	"email":      {needsTitle: true, needsText: true},
	"newsletter": {needsTitle: true, needsText: true},
	"thread":     {minVariants: 2},
}

// NormalizeContent trims generated content and checks the fields required by
// the item's content type. Unknown content types only need text.
func NormalizeContent(contentType string, c database.GeneratedContent) (database.GeneratedContent, error) {
	out := database.GeneratedContent{
		Title: strings.TrimSpace(c.Title),
		Text:  strings.TrimSpace(c.Text),
		CTA:   strings.TrimSpace(c.CTA),
	}
	for _, v := range c.Variants {
		if v = strings.TrimSpace(v); v != "" {
			out.Variants = append(out.Variants, v)
		}
	}
	for _, h := range c.Hashtags {
		h = strings.TrimSpace(h)
		h = strings.Join(strings.Fields(h), "")
		if h == "" || h == "#" {
			continue
		}
		if !strings.HasPrefix(h, "#") {
			h = "#" + h
		}
		out.Hashtags = append(out.Hashtags, h)
	}

	shape, ok := contentShapes[contentType]
	if !ok {
		shape = contentShape{needsText: true}
	}

	if contentType == "thread" && out.Text == "" && len(out.Variants) > 0 {
		out.Text = out.Variants[0]
	}

	if shape.needsTitle && out.Title == "" {
		return out, errs.Validation("content", "%s content requires a title", contentType)
	}
	if shape.needsText && out.Text == "" {
		return out, errs.Validation("content", "%s content requires text", contentType)
	}
	if len(out.Variants) < shape.minVariants {
		return out, errs.Validation("content", "%s content requires at least %d variants", contentType, shape.minVariants)
	}
	if out.Text == "" {
		return out, errs.Validation("content", "generated text is empty")
	}

	return out, nil
}
