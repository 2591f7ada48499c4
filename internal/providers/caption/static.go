package caption

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// StaticCaptioner produces a deterministic caption from the item's location.
// It serves as the fallback when no API-backed captioner is configured.
type StaticCaptioner struct{}

func NewStaticCaptioner() *StaticCaptioner {
	return &StaticCaptioner{}
}

func (s *StaticCaptioner) GenerateCaption(ctx context.Context, prompt, location string) (Caption, error) {
	if err := ctx.Err(); err != nil {
		return Caption{}, err
	}
	c := cases.Title(language.Und)
	place := strings.TrimSpace(location)
	if place == "" {
		place = "somewhere new"
	}
	text := fmt.Sprintf("Chasing light in %s ✨", c.String(place))
	tags := []string{"travel", "wanderlust"}
	for _, word := range strings.Fields(place) {
		word = strings.Trim(word, ",.")
		if len(word) > 2 {
			tags = append(tags, strings.ToLower(word))
		}
	}
	return Caption{Text: text, Hashtags: NormalizeHashtags(tags)}, nil
}

var _ Captioner = (*StaticCaptioner)(nil)
