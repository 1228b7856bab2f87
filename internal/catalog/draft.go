package catalog

import (
	"fmt"
	"strings"

	"github.com/mmcdole/marquee/internal/domain"
)

// Draft is a title form before its assets are uploaded
type Draft struct {
	Title       string
	Description string
	Type        domain.TitleType
	Video       *domain.Handle
	CoverImage  *domain.Handle
}

// Validate checks the form before any network call. Every field is required.
func (d Draft) Validate() error {
	var missing []string
	if strings.TrimSpace(d.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(d.Description) == "" {
		missing = append(missing, "description")
	}
	if d.Type == "" {
		missing = append(missing, "type")
	}
	if d.Video == nil {
		missing = append(missing, "video")
	}
	if d.CoverImage == nil {
		missing = append(missing, "cover image")
	}
	if len(missing) > 0 {
		return domain.NewValidationError("", fmt.Sprintf("all fields required (missing %s)", strings.Join(missing, ", ")))
	}

	if !d.Type.Valid() {
		return domain.NewValidationError("type", fmt.Sprintf("must be %q or %q", domain.TitleTypeMovie, domain.TitleTypeSeries))
	}
	for field, h := range map[string]*domain.Handle{"video": d.Video, "cover image": d.CoverImage} {
		if !h.Usable() {
			return &domain.ValidationError{Field: field, Reason: "select the file again", Err: domain.ErrHandleUnusable}
		}
	}
	return nil
}

// DraftFrom prefills a draft from an existing title, keeping its stored assets
func DraftFrom(t domain.Title) Draft {
	return Draft{
		Title:       t.Title,
		Description: t.Description,
		Type:        t.Type,
		Video:       t.Video,
		CoverImage:  t.CoverImage,
	}
}
