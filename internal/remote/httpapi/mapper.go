package httpapi

import (
	"net/url"
	"strings"

	"github.com/mmcdole/marquee/internal/domain"
)

// MapTitles converts wire titles to domain titles
func MapTitles(dtos []TitleDTO, baseURL string) []domain.Title {
	titles := make([]domain.Title, 0, len(dtos))
	for _, dto := range dtos {
		titles = append(titles, MapTitle(dto, baseURL))
	}
	return titles
}

// MapTitle converts a wire title, resolving relative asset URLs against baseURL
func MapTitle(dto TitleDTO, baseURL string) domain.Title {
	return domain.Title{
		ID:            domain.TitleID(dto.ID),
		Title:         dto.Title,
		Description:   dto.Description,
		Type:          domain.TitleType(dto.TitleType),
		Video:         domain.FromURL(resolveURL(baseURL, dto.VideoURL)),
		CoverImage:    domain.FromURL(resolveURL(baseURL, dto.CoverImageURL)),
		AverageRating: dto.AverageRating,
		RatingCount:   dto.RatingCount,
	}
}

// MapTitleInput converts an input whose assets are already stored
func MapTitleInput(input domain.TitleInput) (TitleInputDTO, error) {
	video, err := input.Video.ResolveURL()
	if err != nil {
		return TitleInputDTO{}, err
	}
	cover, err := input.CoverImage.ResolveURL()
	if err != nil {
		return TitleInputDTO{}, err
	}
	return TitleInputDTO{
		Title:         input.Title,
		Description:   input.Description,
		TitleType:     string(input.Type),
		VideoURL:      video,
		CoverImageURL: cover,
	}, nil
}

func resolveURL(baseURL, ref string) string {
	if ref == "" || baseURL == "" {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil || u.IsAbs() {
		return ref
	}
	base, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}
