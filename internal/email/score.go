package email

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// Message is the subset of a mail row the heuristics read.
type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

// SpamAssessment is the per-message spam result.
type SpamAssessment struct {
	Score  int      `json:"score" yaml:"score"`
	IsSpam bool     `json:"is_spam" yaml:"is_spam"`
	Hits   []string `json:"hits,omitempty" yaml:"hits,omitempty"`
}

var (
	replyPrefixRe = regexp.MustCompile(`(?i)^\s*((re|fwd?|aw|wg)\s*(\[\d+\])?\s*:\s*)+`)
	spaceRe       = regexp.MustCompile(`\s+`)
	addrRe        = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+`)
)

// threadIDLen is the hex width of thread identifiers.
const threadIDLen = 12

// NormalizeSubject strips reply/forward prefixes, collapses whitespace and case-folds.
func NormalizeSubject(subject string) string {
	s := replyPrefixRe.ReplaceAllString(subject, "")
	s = spaceRe.ReplaceAllString(strings.TrimSpace(s), " ")
	// Casers are stateful; one per call.
	return cases.Fold().String(s)
}

// ThreadID hashes the normalized subject to a fixed-width identifier.
func ThreadID(subject string) string {
	sum := sha256.Sum256([]byte(NormalizeSubject(subject)))
	return hex.EncodeToString(sum[:])[:threadIDLen]
}

// SenderAddress extracts the bare address from a From header value.
func SenderAddress(from string) string {
	if m := addrRe.FindString(from); m != "" {
		return strings.ToLower(m)
	}
	return strings.ToLower(strings.TrimSpace(from))
}

// SenderDomain returns the part after '@', lowercased.
func SenderDomain(from string) string {
	addr := SenderAddress(from)
	if i := strings.LastIndex(addr, "@"); i >= 0 {
		return addr[i+1:]
	}
	return ""
}

// PriorityScore starts at the base, adds per urgent keyword, subtracts per
// promotional keyword, adds the internal-domain bonus, and clamps to [0,100].
func PriorityScore(m Message, cfg Config) int {
	subj := strings.ToLower(m.Subject)
	score := cfg.PriorityBase
	score += cfg.PriorityUrgentWeight * countHits(subj, cfg.UrgentKeywords, nil)
	score -= cfg.PriorityPromoWeight * countHits(subj, cfg.PromoKeywords, nil)
	if domain := SenderDomain(m.From); domain != "" {
		for _, d := range cfg.InternalDomains {
			d = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(d), "@"))
			if d != "" && (domain == d || strings.HasSuffix(domain, "."+d)) {
				score += cfg.PriorityInternalBonus
				break
			}
		}
	}
	return clamp(score)
}

// AssessSpam sums the weighted heuristics, clamps to [0,100], and flags the
// message at or above cfg.SpamThreshold.
func AssessSpam(m Message, cfg Config) SpamAssessment {
	var hits []string
	subj := strings.ToLower(m.Subject)
	score := weightSubjectKeyword * countHits(subj, cfg.SpamSubjectKeywords, &hits)
	if allCaps(m.Subject) {
		score += weightAllCaps
		hits = append(hits, "all-caps subject")
	}
	if strings.Count(m.Subject, "!") > 2 {
		score += weightExclamation
		hits = append(hits, "exclamation marks")
	}
	if strings.Count(m.Subject, "?") > 3 {
		score += weightQuestion
		hits = append(hits, "question marks")
	}
	score += weightDomain * countHits(SenderDomain(m.From), cfg.SpamDomainPatterns, &hits)

	addr := SenderAddress(m.From)
	for _, p := range cfg.GenericSenderPrefixes {
		if p = strings.ToLower(p); p != "" && strings.HasPrefix(addr, p) {
			score += weightGenericSender
			hits = append(hits, p)
		}
	}

	body := strings.ToLower(m.Body)
	score += weightBodyPhrase * countHits(body, cfg.SpamBodyPhrases, &hits)
	head := body
	if r := []rune(head); len(r) > greetingWindow {
		head = string(r[:greetingWindow])
	}
	score += weightGreeting * countHits(head, cfg.GenericGreetings, &hits)

	score = clamp(score)
	return SpamAssessment{Score: score, IsSpam: score >= cfg.SpamThreshold, Hits: hits}
}

// countHits counts distinct keywords contained in s.
func countHits(s string, keywords []string, hits *[]string) int {
	n := 0
	for _, k := range keywords {
		k = strings.ToLower(k)
		if k != "" && strings.Contains(s, k) {
			n++
			if hits != nil {
				*hits = append(*hits, k)
			}
		}
	}
	return n
}

func allCaps(s string) bool {
	letters := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			if unicode.IsLower(r) {
				return false
			}
			letters++
		}
	}
	return letters >= minCapsLetters
}

func clamp(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
