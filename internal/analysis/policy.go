package analysis

import (
	"fmt"
	"math/rand/v2"
	"sync"
)

// Category is the severity of a feedback message as shown to the client.
type Category string

const (
	CategoryWarning Category = "warning"
	CategoryInfo    Category = "info"
	CategorySuccess Category = "success"
)

// Tier identifies which rule of the feedback cascade produced a message.
type Tier int

const (
	TierFillerOverload Tier = iota + 1
	TierWeakLanguage
	TierTooFast
	TierFillerAwareness
	TierQuickPace
	TierSlowPace
	TierStrongVocabulary
	TierClarity
	TierGoodPacing
	TierEncouragement
)

var tierNames = map[Tier]string{
	TierFillerOverload:   "filler_overload",
	TierWeakLanguage:     "weak_language",
	TierTooFast:          "too_fast",
	TierFillerAwareness:  "filler_awareness",
	TierQuickPace:        "quick_pace",
	TierSlowPace:         "slow_pace",
	TierStrongVocabulary: "strong_vocabulary",
	TierClarity:          "clarity",
	TierGoodPacing:       "good_pacing",
	TierEncouragement:    "encouragement",
}

func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// Category returns the severity associated with the tier.
func (t Tier) Category() Category {
	switch t {
	case TierFillerOverload, TierWeakLanguage, TierTooFast:
		return CategoryWarning
	case TierFillerAwareness, TierQuickPace, TierSlowPace:
		return CategoryInfo
	default:
		return CategorySuccess
	}
}

// Feedback is a single coaching message produced at a checkpoint.
type Feedback struct {
	Tier     Tier     `json:"-"`
	Category Category `json:"type"`
	Message  string   `json:"message"`
}

// Message pools. Selection within a pool goes through the policy's Chooser.
var (
	fillerOverloadMessages = []string{
		"Too many fillers - pause when thinking",
		"Reduce 'um', 'like', 'you know' - use pauses",
		"Watch the filler words - be more direct",
		"Try replacing fillers with brief silence",
	}
	strongVocabularyMessages = []string{
		"Strong action-oriented language!",
		"Excellent professional vocabulary!",
		"Great use of impactful words!",
	}
	clarityMessages = []string{
		"Excellent clarity - minimal fillers!",
		"Very articulate and clear!",
		"Clean and professional delivery!",
	}
	goodPacingMessages = []string{
		"Perfect pacing - keep it up!",
		"Great speaking speed!",
		"Excellent rhythm and flow!",
	}
	encouragementMessages = []string{
		"Excellent clarity!",
		"You sound confident!",
		"Strong technical explanation!",
		"Great answer structure!",
		"Very professional tone!",
		"Well articulated!",
		"Impressive depth of knowledge!",
		"Clear and concise!",
		"You're doing great!",
		"Perfect pacing!",
	}
)

const (
	weakLanguageMessage = "Be more assertive - avoid 'I think', 'maybe'"
	tooFastMessage      = "Slow down - take your time to breathe"
	quickPaceMessage    = "Pace is a bit quick - you can slow down"
	slowPaceMessage     = "Pick up the pace - add more energy"
)

// Cascade thresholds.
const (
	fillerOverloadMin  = 4
	weakLanguageMin    = 2
	tooFastWPM         = 190
	fillerAwarenessMin = 2
	quickPaceWPM       = 170
	slowPaceWPM        = 90
	slowPaceMinWords   = 10
	strongVocabMin     = 2
	clarityMaxFillers  = 1
	idealPaceLowWPM    = 110
	idealPaceHighWPM   = 160
)

// Chooser picks an index in [0, n). n is always at least 1.
type Chooser func(n int) int

// RandomChooser returns a Chooser backed by the global random source.
func RandomChooser() Chooser {
	return func(n int) int { return rand.IntN(n) }
}

// SeededChooser returns a deterministic Chooser. It is safe for concurrent use.
func SeededChooser(seed uint64) Chooser {
	var mu sync.Mutex
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return func(n int) int {
		mu.Lock()
		defer mu.Unlock()
		return r.IntN(n)
	}
}

// FirstChooser always selects the first pool entry.
func FirstChooser() Chooser {
	return func(int) int { return 0 }
}

// Policy maps window metrics to exactly one feedback message.
type Policy struct {
	choose Chooser
}

// NewPolicy creates a Policy. A nil chooser selects RandomChooser.
func NewPolicy(choose Chooser) *Policy {
	if choose == nil {
		choose = RandomChooser()
	}
	return &Policy{choose: choose}
}

// Tier evaluates the ordered rule cascade. The first matching rule wins; the
// result depends only on the metrics.
func (p *Policy) Tier(m WindowMetrics) Tier {
	switch {
	case m.FillerCount >= fillerOverloadMin:
		return TierFillerOverload
	case m.WeakCount >= weakLanguageMin:
		return TierWeakLanguage
	case m.WPM > tooFastWPM:
		return TierTooFast
	case m.FillerCount >= fillerAwarenessMin:
		return TierFillerAwareness
	case m.WPM > quickPaceWPM:
		return TierQuickPace
	case m.WPM < slowPaceWPM && m.WordCount > slowPaceMinWords:
		return TierSlowPace
	case m.PowerCount >= strongVocabMin:
		return TierStrongVocabulary
	case m.FillerCount <= clarityMaxFillers:
		return TierClarity
	case IdealPace(m.WPM):
		return TierGoodPacing
	default:
		return TierEncouragement
	}
}

// Evaluate returns the feedback message for the window.
func (p *Policy) Evaluate(m WindowMetrics) Feedback {
	tier := p.Tier(m)
	fb := Feedback{Tier: tier, Category: tier.Category()}

	switch tier {
	case TierFillerOverload:
		fb.Message = p.pick(fillerOverloadMessages)
	case TierWeakLanguage:
		fb.Message = weakLanguageMessage
	case TierTooFast:
		fb.Message = tooFastMessage
	case TierFillerAwareness:
		fb.Message = fmt.Sprintf("Noticed %d fillers - try pausing instead", m.FillerCount)
	case TierQuickPace:
		fb.Message = quickPaceMessage
	case TierSlowPace:
		fb.Message = slowPaceMessage
	case TierStrongVocabulary:
		fb.Message = p.pick(strongVocabularyMessages)
	case TierClarity:
		fb.Message = p.pick(clarityMessages)
	case TierGoodPacing:
		fb.Message = p.pick(goodPacingMessages)
	default:
		fb.Message = p.pick(encouragementMessages)
	}
	return fb
}

func (p *Policy) pick(pool []string) string {
	i := p.choose(len(pool))
	if i < 0 || i >= len(pool) {
		i = 0
	}
	return pool[i]
}

// IdealPace reports whether wpm lies in the 110–160 band.
func IdealPace(wpm float64) bool {
	return wpm >= idealPaceLowWPM && wpm <= idealPaceHighWPM
}
