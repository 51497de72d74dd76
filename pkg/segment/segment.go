// Package segment turns raw recipe text into an ordered list of atomic
// instruction strings.
package segment

import (
	"context"
	"regexp"
	"strings"

	"github.com/korjavin/mise/pkg/logger"
)

const (
	// MinFragment is the length under which a split fragment is merged back
	// into the previous fragment of the same line
	MinFragment = 18
	// MinStep is the length a step must exceed to be kept
	MinStep = 3
)

// Segmenter splits a paragraph of text into task descriptions
type Segmenter interface {
	Segment(ctx context.Context, text string) ([]string, error)
}

// SegmenterFunc adapts a function to Segmenter
type SegmenterFunc func(ctx context.Context, text string) ([]string, error)

// Segment calls f
func (f SegmenterFunc) Segment(ctx context.Context, text string) ([]string, error) {
	return f(ctx, text)
}

// Lexical is the local rule-based segmenter. It never fails.
type Lexical struct{}

// Segment implements Segmenter
func (Lexical) Segment(_ context.Context, text string) ([]string, error) {
	return Split(text), nil
}

var (
	listMarker = regexp.MustCompile(`(?i)^\s*(?:(?:step\s*)?\d{1,2}\s*[.):]\s*|[-*+]\s+|\(\d{1,2}\)\s*)`)
	headerLine = regexp.MustCompile(`(?i)^\s*#{0,6}\s*(ingredients|directions|method|instructions|preparation|steps|to serve|for serving|notes|equipment)\s*:?\s*(.*)$`)
	listHeader = regexp.MustCompile(`(?i)^\s*#{0,6}\s*(ingredients|equipment|you will need)\s*:?\s*$`)
	markdown   = regexp.MustCompile(`^\s*#{1,6}\s*\S`)
	forThe     = regexp.MustCompile(`(?i)^\s*(?:for|to make) the [^:]{1,40}:\s*(.*)$`)
	stepSplit  = regexp.MustCompile(`(?i)\s*;\s*(?:and then\s+|then\s+)?|,?\s+and then\s+|,?\s+then\s+`)
)

// a sentence ends where a terminator is followed by a capitalized word
var sentenceEnd = regexp.MustCompile(`[.!?]\s+[A-Z]`)

// Split normalizes text and returns candidate instruction strings, each
// longer than MinStep characters
func Split(text string) []string {
	var steps []string
	skipping := false
	for _, line := range strings.Split(Normalize(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			skipping = false
			continue
		}
		// lines under an ingredient or equipment header are not steps
		if m := listHeader.FindStringSubmatch(line); m != nil {
			skipping = true
			continue
		}
		if skipping {
			if !isHeader(line) {
				continue
			}
			skipping = false
		}
		line = stripHeader(line)
		line = strings.TrimSpace(listMarker.ReplaceAllString(line, ""))
		if line == "" {
			continue
		}
		for _, sentence := range Sentences(line) {
			for _, frag := range SplitLine(sentence) {
				if len(frag) > MinStep {
					steps = append(steps, frag)
				}
			}
		}
	}
	return steps
}

// stripHeader drops header-only lines and keeps the content of "To serve: ..."
// and "For the sauce: ..."
func stripHeader(line string) string {
	if markdown.MatchString(line) {
		return ""
	}
	if m := forThe.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1])
	}
	m := headerLine.FindStringSubmatch(line)
	if m == nil {
		return line
	}
	rest := strings.TrimSpace(m[2])
	// "Method the rice" is not a header; require a colon or nothing after it
	if rest != "" && !strings.Contains(line[:len(line)-len(m[2])], ":") {
		return line
	}
	return rest
}

func isHeader(line string) bool {
	return markdown.MatchString(line) || forThe.MatchString(line) || headerLine.MatchString(line)
}

// Sentences splits a line into sentences, keeping each terminator with its
// sentence. Parenthetical spans are never split.
func Sentences(line string) []string {
	masked := maskParens(line)
	var out []string
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(masked, -1) {
		if part := strings.TrimSpace(line[start : loc[0]+1]); part != "" {
			out = append(out, part)
		}
		start = loc[1] - 1
	}
	if part := strings.TrimSpace(line[start:]); part != "" {
		out = append(out, part)
	}
	return out
}

// SplitLine splits one line on semicolons and sequencing conjunctions,
// never inside parentheses, and merges short fragments into the previous one
func SplitLine(line string) []string {
	masked := maskParens(line)
	var parts []string
	last := 0
	for _, loc := range stepSplit.FindAllStringIndex(masked, -1) {
		parts = append(parts, line[last:loc[0]])
		last = loc[1]
	}
	parts = append(parts, line[last:])

	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(p), ",;"))
		if p == "" {
			continue
		}
		if len(p) < MinFragment && len(out) > 0 {
			out[len(out)-1] = out[len(out)-1] + "; " + p
			continue
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return []string{strings.TrimSpace(line)}
	}
	return out
}

// maskParens replaces every byte inside a parenthetical span with 'x' so
// that split patterns cannot match there. Byte length is preserved.
func maskParens(s string) string {
	b := []byte(s)
	depth := 0
	for i, c := range b {
		switch {
		case c == '(':
			depth++
		case c == ')' && depth > 0:
			depth--
		case depth > 0:
			b[i] = 'x'
		}
	}
	return string(b)
}

// WithFallback returns a Segmenter that tries primary and uses fallback when
// primary fails or returns nothing
func WithFallback(primary, fallback Segmenter, log *logger.Logger) Segmenter {
	if log == nil {
		log = logger.New("segment")
	}
	return SegmenterFunc(func(ctx context.Context, text string) ([]string, error) {
		if primary != nil {
			steps, err := primary.Segment(ctx, text)
			if err == nil && len(clean(steps)) > 0 {
				return clean(steps), nil
			}
			if err != nil {
				log.Warn("Primary segmenter failed, using local rules: %v", err)
			} else {
				log.Warn("Primary segmenter returned no steps, using local rules")
			}
		}
		return fallback.Segment(ctx, text)
	})
}

func clean(steps []string) []string {
	var out []string
	for _, s := range steps {
		s = strings.TrimSpace(s)
		if len(s) > MinStep {
			out = append(out, s)
		}
	}
	return out
}
