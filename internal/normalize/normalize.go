// Package normalize turns raw free-text recipe steps into structured,
// actionable units: compound instructions are split, timer durations
// extracted, and each step classified as active or monitor-only.
//
// Normalize is pure and deterministic. It never fails: malformed or
// empty text degrades to a placeholder step.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mirepoix/souschef/internal/domain"
)

// placeholderText replaces steps whose raw text is empty.
const placeholderText = "No instruction provided."

// connectives are tried in priority order; the first one present in
// the text splits it. Sub-steps are never re-split — a step with
// several chained connectives beyond the first recognized class splits
// only once. Recipes may rely on the resulting granularity, so this
// limitation is deliberate.
var connectives = []*regexp.Regexp{
	regexp.MustCompile(`(?i),\s*then\b[,\s]*`),
	regexp.MustCompile(`(?i)\.\s*next\b[,\s]*`),
	regexp.MustCompile(`(?i)\.\s*after\s+that\b[,\s]*`),
	regexp.MustCompile(`;\s+`),
}

// Normalize converts ordered raw steps into ordered normalized steps.
// Indices are a dense 0-based renumbering across all sub-steps; only
// the first sub-step of a split group keeps the image reference.
func Normalize(raw []domain.RawStep) []domain.NormalizedStep {
	var out []domain.NormalizedStep

	for _, rs := range raw {
		text := strings.TrimSpace(rs.Text)
		if text == "" {
			out = append(out, buildStep(len(out), placeholderText, rs.ImageRef))
			continue
		}

		for i, sub := range splitCompound(text) {
			imageRef := ""
			if i == 0 {
				imageRef = rs.ImageRef
			}
			out = append(out, buildStep(len(out), sub, imageRef))
		}
	}

	return out
}

func buildStep(index int, text, imageRef string) domain.NormalizedStep {
	return domain.NormalizedStep{
		ID:                 fmt.Sprintf("step-%d", index+1),
		Index:              index,
		Text:               text,
		TimerSeconds:       ExtractDuration(text),
		RequiresUserAction: RequiresUserAction(text),
		ImageRef:           imageRef,
	}
}

// splitCompound splits text on the first matching connective class.
// Returns the trimmed, non-empty sub-texts in order.
func splitCompound(text string) []string {
	for _, re := range connectives {
		if !re.MatchString(text) {
			continue
		}
		parts := re.Split(text, -1)
		var subs []string
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				subs = append(subs, p)
			}
		}
		if len(subs) > 0 {
			return subs
		}
	}
	return []string{text}
}

// ── Duration extraction ──────────────────────────────────────────

const (
	secsPerMinute = 60
	secsPerHour   = 3600
)

// durationRule pairs a pattern with an extractor. Rules are evaluated
// in order and the first class that matches anywhere in the text wins,
// even if a later class would also match elsewhere.
type durationRule struct {
	re      *regexp.Regexp
	seconds func(m []string) int
}

var durationRules = []durationRule{
	// Verb-prefixed forms: "simmer for 10 minutes".
	{
		regexp.MustCompile(`(?i)\b[a-z]+\s+for\s+(\d+)\s*(?:minutes?|mins?)\b`),
		func(m []string) int { return atoi(m[1]) * secsPerMinute },
	},
	{
		regexp.MustCompile(`(?i)\b[a-z]+\s+for\s+(\d+)\s*(?:hours?|hrs?)\b`),
		func(m []string) int { return atoi(m[1]) * secsPerHour },
	},
	{
		regexp.MustCompile(`(?i)\b[a-z]+\s+for\s+(\d+)\s*(?:seconds?|secs?)\b`),
		func(m []string) int { return atoi(m[1]) },
	},
	// Numeric ranges: "5-10 minutes" → average of the bounds.
	{
		regexp.MustCompile(`(?i)\b(\d+)\s*(?:-|–|—|to)\s*(\d+)\s*(minutes?|mins?|hours?|hrs?)\b`),
		func(m []string) int { return (atoi(m[1]) + atoi(m[2])) * unitMultiplier(m[3]) / 2 },
	},
	// "about/approximately N minutes|hours".
	{
		regexp.MustCompile(`(?i)\b(?:about|approximately|around|roughly)\s+(\d+)\s*(minutes?|mins?|hours?|hrs?)\b`),
		func(m []string) int { return atoi(m[1]) * unitMultiplier(m[2]) },
	},
	// Bare units, unanchored to a verb. Minutes and hours before
	// seconds so "10m" style fragments don't land in the wrong class.
	{
		regexp.MustCompile(`(?i)\b(\d+)\s*(?:minutes?|mins?|m)\b`),
		func(m []string) int { return atoi(m[1]) * secsPerMinute },
	},
	{
		regexp.MustCompile(`(?i)\b(\d+)\s*(?:hours?|hrs?|h)\b`),
		func(m []string) int { return atoi(m[1]) * secsPerHour },
	},
	{
		regexp.MustCompile(`(?i)\b(\d+)\s*(?:seconds?|secs?|s)\b`),
		func(m []string) int { return atoi(m[1]) },
	},
}

// ExtractDuration returns the timer duration named in the text in
// seconds, or 0 when no duration is found.
func ExtractDuration(text string) int {
	for _, rule := range durationRules {
		if m := rule.re.FindStringSubmatch(text); m != nil {
			return rule.seconds(m)
		}
	}
	return 0
}

func unitMultiplier(unit string) int {
	if strings.HasPrefix(strings.ToLower(unit), "h") {
		return secsPerHour
	}
	return secsPerMinute
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// ── User-action classification ───────────────────────────────────

// actionVerbs are imperatives the cook performs with their hands.
var actionVerbs = []string{
	"add", "stir", "mix", "chop", "season", "pour", "slice", "dice",
	"whisk", "combine", "place", "flip", "remove", "drain", "serve",
	"cut", "spread", "sprinkle", "fold", "knead", "brush", "toss",
	"grate", "peel", "mash", "beat", "transfer", "arrange", "garnish",
	"heat", "sear", "preheat", "crack", "press", "roll", "squeeze",
}

// passiveKeywords signal monitoring or waiting rather than doing.
var passiveKeywords = []string{
	"simmer", "cook", "rest", "wait", "until", "boil", "bake", "roast",
	"rise", "chill", "cool", "reduce", "thicken", "marinate", "sit",
	"steep", "soak",
}

var (
	clauseSplit = regexp.MustCompile(`[.!?;]+`)
	actionRe    = regexp.MustCompile(`(?i)\b(` + strings.Join(actionVerbs, "|") + `)\b`)
	passiveRe   = regexp.MustCompile(`(?i)\b(` + strings.Join(passiveKeywords, "|") + `)\b`)
	actionSet   = buildSet(actionVerbs)
)

func buildSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// RequiresUserAction classifies a step as active (the cook must do
// something) or passive (monitor-only). A clause starting with an
// action imperative classifies immediately; otherwise a global tally
// of action vs passive keywords decides, active only on a strict
// majority. Ties and all-zero counts are passive.
func RequiresUserAction(text string) bool {
	for _, clause := range clauseSplit.Split(text, -1) {
		fields := strings.Fields(clause)
		if len(fields) == 0 {
			continue
		}
		first := strings.ToLower(strings.Trim(fields[0], `"'(,`))
		if _, ok := actionSet[first]; ok {
			return true
		}
	}

	actions := len(actionRe.FindAllString(text, -1))
	passives := len(passiveRe.FindAllString(text, -1))
	return actions > passives
}
