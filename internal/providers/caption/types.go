package caption

import (
	"context"
	"strings"
)

// Caption is the text a captioner produced for one content item.
type Caption struct {
	Text     string
	Hashtags []string
}

// Captioner is the contract implemented by all caption providers.
type Captioner interface {
	GenerateCaption(ctx context.Context, prompt, location string) (Caption, error)
}

// NormalizeHashtags lowercases tags and ensures the leading '#'.
func NormalizeHashtags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if !strings.HasPrefix(tag, "#") {
			tag = "#" + tag
		}
		out = append(out, strings.ToLower(tag))
	}
	return out
}
