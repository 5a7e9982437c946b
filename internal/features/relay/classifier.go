package relay

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

type ThreatTag string

const (
	TagLink     ThreatTag = "link"
	TagMention  ThreatTag = "mention"
	TagFlood    ThreatTag = "flood"
	TagShouting ThreatTag = "shouting"
)

// Classifier flags content that should cost more rate-limit budget. It never
// blocks content on its own.
type Classifier interface {
	Scan(text string) []ThreatTag
}

type NoopClassifier struct{}

func (NoopClassifier) Scan(string) []ThreatTag { return nil }

var (
	linkPattern    = regexp.MustCompile(`(?i)(https?://|www\.|t\.me/|telegram\.me/)`)
	mentionPattern = regexp.MustCompile(`(^|\s)@[A-Za-z][A-Za-z0-9_]{4,31}`)
)

const (
	floodRun       = 10
	shoutingMinLen = 20
)

// PatternClassifier tags links, mentions, long runs of one character and
// mostly upper-case text.
type PatternClassifier struct{}

func (PatternClassifier) Scan(text string) []ThreatTag {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var tags []ThreatTag
	if linkPattern.MatchString(text) {
		tags = append(tags, TagLink)
	}
	if mentionPattern.MatchString(text) {
		tags = append(tags, TagMention)
	}
	if hasRun(text, floodRun) {
		tags = append(tags, TagFlood)
	}
	if isShouting(text) {
		tags = append(tags, TagShouting)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

func hasRun(text string, n int) bool {
	var prev rune
	count := 0
	for _, r := range text {
		if r == prev && !unicode.IsSpace(r) {
			count++
			if count >= n {
				return true
			}
			continue
		}
		prev = r
		count = 1
	}
	return false
}

func isShouting(text string) bool {
	upper, letters := 0, 0
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.IsUpper(r) {
			upper++
		}
	}
	return letters >= shoutingMinLen && upper*10 >= letters*8
}
