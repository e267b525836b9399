package nodes

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/Chative-core-poc-v1/researcher/internal/agent/model"
)

// MaxSourcesPerTask caps the source references kept from one search.
const MaxSourcesPerTask = 5

var urlPattern = regexp.MustCompile(`https?://[^\s<>"'()\[\]{}]+`)

// GetResearchTopic renders the conversation as the research topic. A single
// message is used verbatim; longer histories become a User/Assistant transcript.
func GetResearchTopic(messages []*schema.Message) string {
	if len(messages) == 1 && messages[0] != nil {
		return messages[0].Content
	}
	var b strings.Builder
	for _, msg := range messages {
		if msg == nil {
			continue
		}
		switch msg.Role {
		case schema.User:
			b.WriteString("User: " + msg.Content + "\n")
		case schema.Assistant:
			b.WriteString("Assistant: " + msg.Content + "\n")
		}
	}
	return b.String()
}

// GetCurrentDate formats today's date like "January 2, 2006".
func GetCurrentDate() string {
	return time.Now().Format("January 2, 2006")
}

// ExtractSourceReferences finds http(s) URLs in raw search text and returns
// up to MaxSourcesPerTask unique references in order of first appearance.
func ExtractSourceReferences(taskID int, raw string) []model.SourceReference {
	seen := make(map[string]bool)
	refs := make([]model.SourceReference, 0, MaxSourcesPerTask)
	for _, candidate := range urlPattern.FindAllString(raw, -1) {
		link := strings.TrimRight(candidate, ".,;:!?")
		if seen[link] {
			continue
		}
		u, err := url.Parse(link)
		if err != nil || u.Host == "" {
			continue
		}
		seen[link] = true
		refs = append(refs, model.SourceReference{
			Label:    u.Host,
			ShortURL: fmt.Sprintf("source-%d-%d", taskID, len(refs)),
			Value:    link,
		})
		if len(refs) == MaxSourcesPerTask {
			break
		}
	}
	return refs
}
