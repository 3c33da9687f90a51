package calendar

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/lysyi3m/content-calendar/app/database"
	"github.com/lysyi3m/content-calendar/app/errs"
)

func TestNormalizeContent(t *testing.T) {
	got, err := NormalizeContent("post", database.GeneratedContent{
		Title:    "  ",
		Text:     "  Spring sale starts today \n",
		Variants: []string{"", " short one "},
		Hashtags: []string{"sale", "#spring", " ", "#", "big deal"},
		CTA:      " Shop now ",
	})
	if err != nil {
		t.Fatal(err)
	}

	want := database.GeneratedContent{
		Text:     "Spring sale starts today",
		Variants: []string{"short one"},
		Hashtags: []string{"#sale", "#spring", "#bigdeal"},
		CTA:      "Shop now",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("NormalizeContent mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeContentRequiredFields(t *testing.T) {
	tests := []struct {
		contentType string
		content     database.GeneratedContent
		wantErr     bool
	}{
		{"post", database.GeneratedContent{Text: "hello"}, false},
		{"post", database.GeneratedContent{Title: "only a title"}, true},
		{"article", database.GeneratedContent{Text: "body"}, true},
		{"article", database.GeneratedContent{Title: "T", Text: "body"}, false},
		{"newsletter", database.GeneratedContent{Title: "T", Text: "body"}, false},
		{"carousel", database.GeneratedContent{Text: "intro", Variants: []string{"slide 1"}}, true},
		{"carousel", database.GeneratedContent{Text: "intro", Variants: []string{"slide 1", "slide 2"}}, false},
		{"thread", database.GeneratedContent{Variants: []string{"1/2", "2/2"}}, false},
		{"thread", database.GeneratedContent{Text: "one tweet"}, true},
		{"podcast", database.GeneratedContent{Text: "notes"}, false},
		{"podcast", database.GeneratedContent{}, true},
	}

	for _, tt := range tests {
		_, err := NormalizeContent(tt.contentType, tt.content)
		if tt.wantErr && !errors.Is(err, errs.ErrValidation) {
			t.Errorf("%s %+v: expected validation error, got %v", tt.contentType, tt.content, err)
		}
		if !tt.wantErr && err != nil {
			t.Errorf("%s %+v: expected no error, got %v", tt.contentType, tt.content, err)
		}
	}
}

func TestNormalizeContentThreadDefaultsText(t *testing.T) {
	got, err := NormalizeContent("thread", database.GeneratedContent{Variants: []string{"first", "second"}})
	if err != nil {
		t.Fatal(err)
	}
	if got.Text != "first" {
		t.Errorf("Expected thread text to default to the first variant, got %q", got.Text)
	}
}
