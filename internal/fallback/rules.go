package fallback

import "regexp"

// Rule scores a sentence by Weight when Pattern matches anywhere in it.
type Rule struct {
	Family  string
	Pattern *regexp.Regexp
	Weight  int
}

// Rule families, strongest signal first.
const (
	FamilyFinancial = "financial"
	FamilyEvent     = "event"
	FamilyEntity    = "entity"
	FamilyGeneric   = "generic"
)

// Rules is the default business-signal table.
var Rules = []Rule{
	{FamilyFinancial, regexp.MustCompile(`[$€£¥]\s?\d[\d,.]*|\b\d[\d,.]*\s?(?:million|billion|trillion)\b`), 5},
	{FamilyFinancial, regexp.MustCompile(`\d(?:[\d.,]*)\s?%|(?i)\bper ?cent\b`), 5},
	{FamilyFinancial, regexp.MustCompile(`(?i)\b(?:rais(?:e|es|ed|ing)|funding|revenues?|profits?|valuation|investments?|earnings|series [a-f])\b`), 5},
	{FamilyEvent, regexp.MustCompile(`(?i)\b(?:partner(?:s|ed|ing|ship|ships)?|acquir(?:e|es|ed|ing)|acquisitions?|launch(?:es|ed|ing)?|approv(?:al|e|es|ed)|announc(?:e|es|ed|ing)|merg(?:e|es|ed|er)|expand(?:s|ed|ing)?|expansion|ipo)\b`), 3},
	{FamilyEntity, regexp.MustCompile(`\b(?:Inc|Corp|Corporation|LLC|Ltd|PLC|GmbH)\b`), 2},
	{FamilyEntity, regexp.MustCompile(`\b(?:CEO|CFO|CTO|COO|CMO)\b|(?i)\bchief (?:executive|financial|technology) officer\b`), 2},
	{FamilyEntity, regexp.MustCompile(`\b(?:FDA|SEC|FTC|EMA|DOJ|CMS|NIH)\b`), 2},
	{FamilyGeneric, regexp.MustCompile(`(?i)\b(?:compan(?:y|ies)|markets?|customers?|business(?:es)?|industry|platforms?|products?|startups?)\b`), 1},
}

// Score sums the weights of every rule in Rules that matches the sentence.
func Score(sentence string) int {
	return ScoreWith(Rules, sentence)
}

// ScoreWith is Score over an explicit rule table.
func ScoreWith(rules []Rule, sentence string) int {
	total := 0
	for _, r := range rules {
		if r.Pattern.MatchString(sentence) {
			total += r.Weight
		}
	}
	return total
}
