package chain

import (
	"regexp"
	"strings"

	"github.com/korjavin/mise/pkg/models"
	"github.com/korjavin/mise/pkg/segment"
)

// section is a contiguous span of recipe text that becomes one chain
type section struct {
	title  string
	marker string
	text   string
}

var (
	markdownHeader = regexp.MustCompile(`^\s*#{1,6}\s*(.+?)\s*:?\s*$`)
	forTheHeader   = regexp.MustCompile(`(?i)^\s*((?:for|to make) the [^:]{1,40}|to serve|to finish|for serving)\s*:\s*(.*)$`)
	colonHeader    = regexp.MustCompile(`^\s*([A-Z][A-Za-z ,&'-]{1,40}):\s*$`)
	temporalOpener = regexp.MustCompile(`(?i)^\s*(meanwhile|at the same time|while (?:that|the|it|this)\b|in a separate\b)`)
	sentenceMarker = regexp.MustCompile(`(?i)[.!?]\s+(meanwhile|at the same time|while (?:that|the|it|this)\b|in a separate\b)`)
	quantityLine   = regexp.MustCompile(`(?i)^\s*(?:[-*•]\s*)?(?:\d+(?:[./]\d+)?(?:\s+\d+/\d+)?|(?:a|an|one|two|three)\s+(?:cups?|tbsp|tsp|tablespoons?|teaspoons?|cloves?|cans?|pinch|handful|bunch|sticks?))\b`)
	numberedStep   = regexp.MustCompile(`(?i)^\s*(?:step\s*)?\d{1,2}\s*[.):]\s+\D`)
	ingredientHead = regexp.MustCompile(`(?i)^(ingredients|equipment|you will need|shopping list)\b`)
	genericHead    = regexp.MustCompile(`(?i)^(directions|method|instructions|preparation|steps|notes)$`)
)

// headerTitle returns the title of a header line and any content following it
func headerTitle(line string) (title, rest string, ok bool) {
	if m := markdownHeader.FindStringSubmatch(line); m != nil && strings.HasPrefix(strings.TrimSpace(line), "#") {
		return m[1], "", true
	}
	if m := forTheHeader.FindStringSubmatch(line); m != nil {
		return m[1], strings.TrimSpace(m[2]), true
	}
	if m := colonHeader.FindStringSubmatch(line); m != nil && len(strings.Fields(m[1])) <= 5 {
		return m[1], "", true
	}
	return "", "", false
}

// HasHeaders reports whether text contains section header lines
func HasHeaders(text string) bool {
	for _, line := range strings.Split(segment.Normalize(text), "\n") {
		if title, _, ok := headerTitle(line); ok && !ingredientHead.MatchString(title) && !genericHead.MatchString(title) {
			return true
		}
	}
	return false
}

// HasNarrativeCues reports whether text has several paragraphs or a
// temporal marker
func HasNarrativeCues(text string) bool {
	if len(paragraphs(segment.Normalize(text))) > 1 {
		return true
	}
	for _, line := range strings.Split(text, "\n") {
		if temporalOpener.MatchString(line) || sentenceMarker.MatchString(line) {
			return true
		}
	}
	return false
}

func paragraphs(text string) []string {
	var out []string
	var cur []string
	flush := func() {
		if len(cur) > 0 {
			out = append(out, strings.Join(cur, "\n"))
			cur = nil
		}
	}
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		cur = append(cur, line)
	}
	flush()
	return out
}

// headerSections splits text on header lines and temporal-opener lines
func headerSections(text string) []section {
	var out []section
	cur := section{}
	var body []string
	flush := func() {
		cur.text = strings.TrimSpace(strings.Join(body, "\n"))
		if cur.text != "" {
			out = append(out, cur)
		}
		body = nil
	}
	for _, line := range strings.Split(segment.Normalize(text), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if title, rest, ok := headerTitle(line); ok {
			flush()
			cur = section{title: strings.TrimSpace(title)}
			if genericHead.MatchString(cur.title) {
				cur.title = ""
			}
			if rest != "" {
				body = append(body, rest)
			}
			continue
		}
		if m := temporalOpener.FindStringSubmatch(line); m != nil && len(body) > 0 {
			flush()
			cur = section{marker: strings.ToLower(m[1])}
		}
		body = append(body, line)
	}
	flush()
	return dropIngredientLists(out)
}

// narrativeSections splits text on paragraph breaks, header lines and
// sentences that open with a temporal marker
func narrativeSections(text string) []section {
	var out []section
	for _, para := range paragraphs(segment.Normalize(text)) {
		for _, s := range headerSections(para) {
			out = append(out, splitOnMarkers(s)...)
		}
	}
	return dropIngredientLists(out)
}

func splitOnMarkers(s section) []section {
	if s.marker == "" {
		if m := temporalOpener.FindStringSubmatch(s.text); m != nil {
			s.marker = strings.ToLower(m[1])
		}
	}
	locs := sentenceMarker.FindAllStringSubmatchIndex(s.text, -1)
	if len(locs) == 0 {
		return []section{s}
	}
	var out []section
	start := 0
	marker := s.marker
	for _, loc := range locs {
		cut := loc[2]
		// keep the sentence terminator with the previous sentence
		if part := strings.TrimSpace(s.text[start : loc[0]+1]); part != "" {
			out = append(out, section{title: s.title, marker: marker, text: part})
		}
		start = cut
		marker = strings.ToLower(s.text[loc[2]:loc[3]])
	}
	if part := strings.TrimSpace(s.text[start:]); part != "" {
		out = append(out, section{title: s.title, marker: marker, text: part})
	}
	return out
}

func dropIngredientLists(in []section) []section {
	var out []section
	for _, s := range in {
		if ingredientHead.MatchString(s.title) || isIngredientList(s.text) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// isIngredientList reports whether most lines of text read like quantities
func isIngredientList(text string) bool {
	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return false
	}
	n := 0
	for _, l := range lines {
		if quantityLine.MatchString(l) && !numberedStep.MatchString(l) && len(strings.Fields(l)) <= 6 {
			n++
		}
	}
	return n*2 > len(lines)
}

// assign places every task in the section whose text contains it, then in
// the first section its text contains, falling back to the section sharing
// the most words. Sections are scanned forward
// from the last assignment so repeated phrases keep recipe order.
func assign(sections []section, tasks []models.Task) [][]int {
	out := make([][]int, len(sections))
	if len(sections) == 0 {
		return out
	}
	lower := make([]string, len(sections))
	for i, s := range sections {
		lower[i] = strings.ToLower(s.text)
	}
	cursor := 0
	for ti, t := range tasks {
		text := strings.ToLower(strings.TrimSpace(t.Text))
		best := -1
		for i := cursor; i < len(sections); i++ {
			if strings.Contains(lower[i], text) {
				best = i
				break
			}
		}
		// a task spanning whole sections belongs to the first of them
		for i := cursor; best < 0 && i < len(sections); i++ {
			if strings.Contains(text, lower[i]) {
				best = i
			}
		}
		if best < 0 {
			bestScore := 0.0
			for i := range sections {
				if score := overlap(text, lower[i]); score > bestScore {
					best, bestScore = i, score
				}
			}
		}
		if best < 0 {
			continue
		}
		out[best] = append(out[best], ti)
		if best > cursor {
			cursor = best
		}
	}
	return out
}

var wordRe = regexp.MustCompile(`[a-z]{3,}`)

// overlap is the share of the task's words found in the section
func overlap(task, sectionText string) float64 {
	words := wordRe.FindAllString(task, -1)
	if len(words) == 0 {
		return 0
	}
	set := make(map[string]bool)
	for _, w := range wordRe.FindAllString(sectionText, -1) {
		set[w] = true
	}
	hit := 0
	for _, w := range words {
		if set[w] {
			hit++
		}
	}
	return float64(hit) / float64(len(words))
}
