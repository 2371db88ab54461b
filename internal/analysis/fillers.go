package analysis

import "strings"

// FillerResult is the outcome of filler detection over a span of text.
type FillerResult struct {
	// Count is the number of filler occurrences, phrases and words combined.
	Count int

	// Instances lists every match in detection order: all phrase matches first
	// (in lexicon order), then single-word matches in token order.
	Instances []string
}

// DetectFillers counts filler phrases and words in text. Tokens consumed by a
// phrase match are never counted again as single filler words.
func (l *Lexicon) DetectFillers(text string) FillerResult {
	return l.detectFillers(Tokenize(text))
}

func (l *Lexicon) detectFillers(tokens []string) FillerResult {
	consumed := make([]bool, len(tokens))
	var res FillerResult

	for _, phrase := range l.fillerPhrases {
		literal := strings.Join(phrase, " ")
		for i := 0; i+len(phrase) <= len(tokens); {
			if !isFree(consumed, i, len(phrase)) || !equalAt(tokens, i, phrase) {
				i++
				continue
			}
			for k := range phrase {
				consumed[i+k] = true
			}
			res.Instances = append(res.Instances, literal)
			i += len(phrase)
		}
	}

	for i, t := range tokens {
		if !consumed[i] && l.IsFillerWord(t) {
			res.Instances = append(res.Instances, t)
		}
	}

	res.Count = len(res.Instances)
	return res
}

func isFree(consumed []bool, at, n int) bool {
	for k := 0; k < n; k++ {
		if consumed[at+k] {
			return false
		}
	}
	return true
}
