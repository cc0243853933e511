package scripture

import (
	"regexp"
	"strings"
)

// bookMentionRe matches sentences that already name a book; those are left
// to the explicit parser.
var bookMentionRe = regexp.MustCompile(`(?i)\b(?:` + strings.Join([]string{
	`Genesis|Gen`, `Exodus|Ex|Exod`, `Leviticus|Lev`,
	`Numbers|Num`, `Deuteronomy|Deut|Dt`, `Joshua|Josh`,
	`Judges|Judg`, `Ruth`, `1\s*Samuel|First\s*Samuel|1\s*Sam`,
	`2\s*Samuel|Second\s*Samuel|2\s*Sam`, `1\s*Kings|First\s*Kings|1\s*Kgs`,
	`2\s*Kings|Second\s*Kings|2\s*Kgs`, `1\s*Chronicles|1\s*Chr`,
	`2\s*Chronicles|2\s*Chr`, `Ezra`, `Nehemiah|Neh`,
	`Esther|Est`, `Job`, `Psalms?|Ps|Psa`,
	`Proverbs|Prov`, `Ecclesiastes|Eccl`, `Song\s*of\s*Solomon|Song`,
	`Isaiah|Isa`, `Jeremiah|Jer`, `Lamentations|Lam`,
	`Ezekiel|Ezek`, `Daniel|Dan`, `Hosea|Hos`,
	`Joel`, `Amos`, `Obadiah|Obad`, `Jonah`,
	`Micah|Mic`, `Nahum|Nah`, `Habakkuk|Hab`,
	`Zephaniah|Zeph`, `Haggai|Hag`, `Zechariah|Zech`,
	`Malachi|Mal`, `Matthew|Matt|Mt`, `Mark|Mk`,
	`Luke|Lk`, `John|Jn`, `Acts`,
	`Romans|Rom`, `1\s*Corinthians|First\s*Corinthians|1\s*Cor`,
	`2\s*Corinthians|Second\s*Corinthians|2\s*Cor`, `Galatians|Gal`,
	`Ephesians|Eph`, `Philippians|Phil`, `Colossians|Col`,
	`1\s*Thessalonians|1\s*Thess`, `2\s*Thessalonians|2\s*Thess`,
	`1\s*Timothy|1\s*Tim`, `2\s*Timothy|2\s*Tim`,
	`Titus|Tit`, `Philemon|Philem`, `Hebrews|Heb`,
	`James|Jas`, `1\s*Peter|First\s*Peter|1\s*Pet`,
	`2\s*Peter|Second\s*Peter|2\s*Pet`, `1\s*John|First\s*John|1\s*Jn`,
	`2\s*John|Second\s*John|2\s*Jn`, `3\s*John|Third\s*John|3\s*Jn`,
	`Jude`, `Revelation|Rev`,
}, "|") + `)\b`)

// quoteIndicators introduce a quotation. Order matters: the first one present
// in a sentence is the split point.
var quoteIndicators = []string{
	"says", "said", "scripture", "bible", "word", "verse",
	"written", "reads", "tells us", "reminds us", "teaches",
}

var biblicalWords = []string{"lord", "god", "heaven", "blessed", "righteous", "faith", "love"}

var sentenceRe = regexp.MustCompile(`[^.?!]+[.?!]*`)

// ParaphraseConfig tunes [DetectParaphrases]. Zero fields take defaults.
type ParaphraseConfig struct {
	// MinQuoteChars is the length a quote after an indicator must exceed.
	// Default: 20.
	MinQuoteChars int
	// MinSentenceChars is the length an indicator-free sentence must exceed.
	// Default: 30.
	MinSentenceChars int
	// MinWords is the word count an indicator-free sentence must exceed.
	// Default: 5.
	MinWords int
}

// DefaultParaphraseConfig returns the default thresholds.
func DefaultParaphraseConfig() ParaphraseConfig {
	return ParaphraseConfig{MinQuoteChars: 20, MinSentenceChars: 30, MinWords: 5}
}

func (c ParaphraseConfig) withDefaults() ParaphraseConfig {
	d := DefaultParaphraseConfig()
	if c.MinQuoteChars <= 0 {
		c.MinQuoteChars = d.MinQuoteChars
	}
	if c.MinSentenceChars <= 0 {
		c.MinSentenceChars = d.MinSentenceChars
	}
	if c.MinWords <= 0 {
		c.MinWords = d.MinWords
	}
	return c
}

// DetectParaphrases returns sentences or sentence tails of text that look
// like quoted or paraphrased Scripture, in order of appearance.
//
// Sentences that name a book are skipped. A sentence containing a quote
// indicator ("says", "the word", "it is written") contributes the text after
// the indicator. Other long sentences contribute themselves when they contain
// a biblical keyword such as "lord" or "faith".
func DetectParaphrases(text string, cfg ParaphraseConfig) []string {
	cfg = cfg.withDefaults()

	var out []string
	for _, sent := range sentenceRe.FindAllString(text, -1) {
		sent = strings.TrimSpace(sent)
		if sent == "" || bookMentionRe.MatchString(sent) {
			continue
		}
		lower := strings.ToLower(sent)

		if i, ind := firstIndicator(lower); i >= 0 {
			// Lowercasing ASCII indicators keeps byte offsets aligned only
			// for ASCII text; fall back to the lowercase tail otherwise.
			tail := lower[i+len(ind):]
			if len(lower) == len(sent) {
				tail = sent[i+len(ind):]
			}
			quote := strings.Trim(tail, ` ,"'`)
			if len(quote) > cfg.MinQuoteChars {
				out = append(out, quote)
			}
			continue
		}

		if len(sent) > cfg.MinSentenceChars && len(strings.Fields(sent)) > cfg.MinWords && containsAny(lower, biblicalWords) {
			out = append(out, sent)
		}
	}
	return out
}

// firstIndicator returns the position and value of the first indicator, in
// list order, that occurs in lower.
func firstIndicator(lower string) (int, string) {
	for _, ind := range quoteIndicators {
		if i := strings.Index(lower, ind); i >= 0 {
			return i, ind
		}
	}
	return -1, ""
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
