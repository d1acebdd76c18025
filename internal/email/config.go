// Package email derives thread, response-time, priority and spam columns for
// mailbox-shaped tables.
package email

// Config holds the hand-tuned weights and vocabularies. They are defaults to
// be overridden from configuration, not derived values.
type Config struct {
	SpamThreshold int `mapstructure:"spam_threshold" yaml:"spam_threshold"`

	PriorityBase          int      `mapstructure:"priority_base" yaml:"priority_base"`
	PriorityUrgentWeight  int      `mapstructure:"priority_urgent_weight" yaml:"priority_urgent_weight"`
	PriorityPromoWeight   int      `mapstructure:"priority_promo_weight" yaml:"priority_promo_weight"`
	PriorityInternalBonus int      `mapstructure:"priority_internal_bonus" yaml:"priority_internal_bonus"`
	InternalDomains       []string `mapstructure:"internal_domains" yaml:"internal_domains"`
	UrgentKeywords        []string `mapstructure:"urgent_keywords" yaml:"urgent_keywords"`
	PromoKeywords         []string `mapstructure:"promo_keywords" yaml:"promo_keywords"`

	SpamSubjectKeywords   []string `mapstructure:"spam_subject_keywords" yaml:"spam_subject_keywords"`
	SpamDomainPatterns    []string `mapstructure:"spam_domain_patterns" yaml:"spam_domain_patterns"`
	GenericSenderPrefixes []string `mapstructure:"generic_sender_prefixes" yaml:"generic_sender_prefixes"`
	SpamBodyPhrases       []string `mapstructure:"spam_body_phrases" yaml:"spam_body_phrases"`
	GenericGreetings      []string `mapstructure:"generic_greetings" yaml:"generic_greetings"`
}

// Spam heuristic weights.
const (
	weightSubjectKeyword = 10
	weightAllCaps        = 15
	weightExclamation    = 5
	weightQuestion       = 3
	weightDomain         = 10
	weightGenericSender  = 8
	weightBodyPhrase     = 5
	weightGreeting       = 3

	greetingWindow = 100
	minCapsLetters = 5
)

// DefaultConfig returns the stock weights and keyword lists.
func DefaultConfig() Config {
	return Config{
		SpamThreshold:         70,
		PriorityBase:          50,
		PriorityUrgentWeight:  20,
		PriorityPromoWeight:   15,
		PriorityInternalBonus: 10,
		UrgentKeywords: []string{
			"urgent", "asap", "important", "critical", "immediately", "deadline",
			"action required", "emergency", "high priority",
		},
		PromoKeywords: []string{
			"sale", "discount", "offer", "newsletter", "promotion", "deal",
			"coupon", "webinar", "% off",
		},
		SpamSubjectKeywords: []string{
			"free", "winner", "click here", "act now", "limited time", "congratulations",
			"cash", "prize", "guarantee", "risk-free", "no cost", "lottery",
			"claim your", "million dollars", "viagra",
		},
		SpamDomainPatterns: []string{
			"promo.", "marketing.", "deals.", "offers.", "bulk.", ".xyz", ".top", ".click", ".loan",
		},
		GenericSenderPrefixes: []string{
			"noreply@", "no-reply@", "donotreply@", "do-not-reply@", "info@",
			"marketing@", "newsletter@", "notifications@",
		},
		SpamBodyPhrases: []string{
			"unsubscribe", "click below", "limited offer", "act now", "100% free",
			"no obligation", "wire transfer", "verify your account", "you have been selected",
			"earn money",
		},
		GenericGreetings: []string{
			"dear customer", "dear friend", "dear sir", "dear madam", "dear user",
			"valued customer", "hello friend", "dear beneficiary",
		},
	}
}
