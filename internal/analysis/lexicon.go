package analysis

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Lexicon holds the classification tables used during checkpoint analysis.
// Entries are normalised when the lexicon is compiled, so a YAML file may use
// any casing or punctuation.
type Lexicon struct {
	FillerPhrases []string `yaml:"filler_phrases"`
	FillerWords   []string `yaml:"filler_words"`
	WeakPhrases   []string `yaml:"weak_phrases"`
	PowerWords    []string `yaml:"power_words"`

	fillerPhrases [][]string
	fillerWords   map[string]struct{}
	weakPhrases   [][]string
	powerWords    map[string]struct{}
}

// DefaultLexicon returns the built-in interview coaching lexicon.
func DefaultLexicon() *Lexicon {
	lex := &Lexicon{
		FillerPhrases: []string{"you know", "i mean", "kind of", "sort of", "i guess"},
		FillerWords:   []string{"um", "uh", "like", "so", "actually", "basically", "literally", "yeah", "right"},
		WeakPhrases:   []string{"maybe", "probably", "i think", "perhaps", "possibly"},
		PowerWords: []string{
			"achieved", "implemented", "developed", "led", "created",
			"solved", "improved", "built", "delivered", "designed",
			"managed", "increased", "reduced", "optimized",
		},
	}
	// The defaults are known to be valid.
	_ = lex.compile()
	return lex
}

// ParseLexicon decodes a YAML lexicon from r. Sections that are absent keep the
// built-in defaults.
func ParseLexicon(r io.Reader) (*Lexicon, error) {
	lex := DefaultLexicon()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(lex); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode lexicon: %w", err)
	}
	if err := lex.compile(); err != nil {
		return nil, err
	}
	return lex, nil
}

// LoadLexicon reads a YAML lexicon file.
func LoadLexicon(path string) (*Lexicon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open lexicon: %w", err)
	}
	defer f.Close()

	lex, err := ParseLexicon(f)
	if err != nil {
		return nil, fmt.Errorf("lexicon %s: %w", path, err)
	}
	return lex, nil
}

// compile normalises every entry and builds the lookup structures.
func (l *Lexicon) compile() error {
	var err error
	if l.fillerPhrases, err = phraseTokens("filler_phrases", l.FillerPhrases); err != nil {
		return err
	}
	if l.weakPhrases, err = phraseTokens("weak_phrases", l.WeakPhrases); err != nil {
		return err
	}
	if l.fillerWords, err = wordSet("filler_words", l.FillerWords); err != nil {
		return err
	}
	if l.powerWords, err = wordSet("power_words", l.PowerWords); err != nil {
		return err
	}
	return nil
}

func phraseTokens(section string, entries []string) ([][]string, error) {
	out := make([][]string, 0, len(entries))
	for _, e := range entries {
		tokens := Tokenize(e)
		if len(tokens) == 0 {
			return nil, fmt.Errorf("%s: entry %q is empty after normalisation", section, e)
		}
		out = append(out, tokens)
	}
	return out, nil
}

func wordSet(section string, entries []string) (map[string]struct{}, error) {
	set := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		w := Normalize(e)
		if w == "" || strings.Contains(w, " ") {
			return nil, fmt.Errorf("%s: entry %q must be a single word", section, e)
		}
		set[w] = struct{}{}
	}
	return set, nil
}

// IsFillerWord reports whether the normalised token is a single-word filler.
func (l *Lexicon) IsFillerWord(token string) bool {
	_, ok := l.fillerWords[token]
	return ok
}

// IsPowerWord reports whether the normalised token is a strong verb.
func (l *Lexicon) IsPowerWord(token string) bool {
	_, ok := l.powerWords[token]
	return ok
}

// WeakCount returns how many distinct weak-hedge entries occur in tokens.
// Repeating the same hedge does not raise the count.
func (l *Lexicon) WeakCount(tokens []string) int {
	count := 0
	for _, phrase := range l.weakPhrases {
		if containsSequence(tokens, phrase) {
			count++
		}
	}
	return count
}

// PowerCount returns the number of tokens found in the power-word table.
func (l *Lexicon) PowerCount(tokens []string) int {
	count := 0
	for _, t := range tokens {
		if l.IsPowerWord(t) {
			count++
		}
	}
	return count
}

func containsSequence(tokens, seq []string) bool {
	for i := 0; i+len(seq) <= len(tokens); i++ {
		if equalAt(tokens, i, seq) {
			return true
		}
	}
	return false
}

func equalAt(tokens []string, at int, seq []string) bool {
	for k, s := range seq {
		if tokens[at+k] != s {
			return false
		}
	}
	return true
}
