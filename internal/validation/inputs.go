package validation

import (
	"net/url"
	"strings"

	"localeloop/internal/apperr"

	"github.com/goccy/go-json"
)

type PlaceInput struct {
	Name        string   `json:"name" validate:"required"`
	Description string   `json:"description" validate:"required"`
	Category    string   `json:"category" validate:"required"`
	MapURL      string   `json:"mapUrl" validate:"required,url"`
	Address     string   `json:"address"`
	Image       string   `json:"image"`
	Latitude    *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude   *float64 `json:"longitude" validate:"omitempty,longitude"`
}

type LoopInput struct {
	Title       string       `json:"title" validate:"required,max=100"`
	Description string       `json:"description" validate:"required,max=500"`
	City        string       `json:"city" validate:"required"`
	CoverImage  string       `json:"coverImage"`
	Tags        []string     `json:"tags"`
	Published   bool         `json:"published"`
	Places      []PlaceInput `json:"places" validate:"min=1,dive"`
}

type CommentInput struct {
	Content string `json:"content" validate:"required,max=500"`
	LoopID  string `json:"loopId" validate:"required"`
	UserID  string `json:"userId" validate:"required"`
}

type RegisterInput struct {
	Name     string `json:"name" validate:"required,min=2,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,hasupper,haslower,hasdigit"`
}

// Loop normalises tags and validates the payload.
func Loop(in *LoopInput) error {
	in.Tags = normalizeTags(in.Tags)
	return Struct(in)
}

func Comment(in CommentInput) error {
	return Struct(in)
}

func Register(in *RegisterInput) error {
	in.Email = strings.TrimSpace(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	return Struct(in)
}

// normalizeTags 去掉空白和重复，保留首次出现的顺序
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// LoopFromForm decodes a form submission. tags and places arrive as JSON
// strings and published is true only for the literal "true".
func LoopFromForm(form url.Values) (LoopInput, error) {
	in := LoopInput{
		Title:       form.Get("title"),
		Description: form.Get("description"),
		City:        form.Get("city"),
		CoverImage:  form.Get("coverImage"),
		Published:   form.Get("published") == "true",
	}
	if raw := form.Get("tags"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &in.Tags); err != nil {
			return in, apperr.Wrap(apperr.ValidationFailed, "Tags must be a JSON array of strings", err)
		}
	}
	if raw := form.Get("places"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &in.Places); err != nil {
			return in, apperr.Wrap(apperr.ValidationFailed, "Places must be a JSON array", err)
		}
	}
	return in, nil
}
