package parsers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	errx "github.com/Chative-core-poc-v1/researcher/internal/core/error"
	logx "github.com/Chative-core-poc-v1/researcher/pkg/logger"
)

// basic safety limits to avoid pathological inputs
const (
	maxContentLen = 128 * 1024 // 128KB
	maxErrSnippet = 200        // limit error snippet size
)

// local reasoning models often prefix their answer with a think block
var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// ParseStructured decodes the JSON object embedded in a model response into T.
// Surrounding prose, markdown code fences and think blocks are ignored; the
// object spans from the first '{' to the last '}'.
func ParseStructured[T any](content string) (out *T, err error) {
	// panic safety
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "structured_parser").Msgf("panic recovered: %v", r)
			err = errx.New(fmt.Errorf("structured parser panic"), http.StatusInternalServerError, errx.SystemErrorMessage)
			out = nil
		}
	}()

	if len(content) > maxContentLen {
		logx.Warn().
			Str("component", "structured_parser").
			Int("max_len", maxContentLen).
			Int("orig_len", len(content)).
			Msg("structured output exceeds size limit")
		return nil, errx.WrapModel(fmt.Errorf("structured output too large: %d bytes", len(content)))
	}

	body, ok := extractJSONObject(content)
	if !ok {
		return nil, errx.WrapModel(fmt.Errorf("no JSON object in model output: %q", safeSnippet(content)))
	}

	var v T
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return nil, errx.WrapModel(fmt.Errorf("decode structured output: %w (output: %q)", err, safeSnippet(body)))
	}
	return &v, nil
}

// StripThinking removes think blocks and surrounding whitespace from free text output.
func StripThinking(content string) string {
	return strings.TrimSpace(thinkBlock.ReplaceAllString(content, ""))
}

func extractJSONObject(content string) (string, bool) {
	content = thinkBlock.ReplaceAllString(content, "")
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return "", false
	}
	return content[start : end+1], true
}

// --- helpers ---

func safeSnippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxErrSnippet {
		return s
	}
	return s[:maxErrSnippet]
}
