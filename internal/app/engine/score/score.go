// internal/app/engine/score/score.go

// Package score computes pairwise roommate compatibility. It is pure: two
// students' survey answers, optional per-trait weights, and optional
// personality profiles go in; an integer 0-100, a short explanation, and a
// tag list come out. Malformed or missing inputs degrade to "absent" and
// never fail the call.
package score

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/hallmatch/hallmatch/internal/domain/models"
)

// Weights maps trait keys to relative importance. Missing keys weigh 1.0.
type Weights map[string]float64

// Result is one pairing's compatibility verdict.
type Result struct {
	Score       int
	Explanation string
	Tags        []string
}

// Blend constants: lifestyle dominates, personality refines.
const (
	lifestyleWeight   = 0.65
	personalityWeight = 0.35
)

// Explanation thresholds.
const (
	lifestyleHighlight   = 0.55
	personalityHighlight = 0.65
)

type traitShape int

const (
	shapeOrdinal traitShape = iota
	shapeNumeric
	shapeMapped
)

type traitDef struct {
	key     string
	label   string
	shape   traitShape
	order   []string           // shapeOrdinal: position in this list, normalized by len-1
	minVal  float64            // shapeNumeric
	maxVal  float64            // shapeNumeric
	anchors map[string]float64 // shapeMapped: values mapped to [0,1] anchor points
}

// The six fixed lifestyle traits. Unknown survey keys are ignored.
var lifestyleTraits = []traitDef{
	{
		key:   "sleep_schedule",
		label: "sleep schedules",
		shape: shapeOrdinal,
		order: []string{"early_bird", "flexible", "night_owl"},
	},
	{
		key:   "cleanliness",
		label: "cleanliness standards",
		shape: shapeOrdinal,
		order: []string{"relaxed", "average", "tidy", "spotless"},
	},
	{
		key:   "noise_tolerance",
		label: "noise preferences",
		shape: shapeOrdinal,
		order: []string{"silent", "quiet", "moderate", "lively"},
	},
	{
		key:   "guests_frequency",
		label: "guest habits",
		shape: shapeOrdinal,
		order: []string{"never", "rarely", "sometimes", "often"},
	},
	{
		key:     "study_location",
		label:   "study routines",
		shape:   shapeMapped,
		anchors: map[string]float64{"room": 0.0, "mixed": 0.5, "library": 1.0},
	},
	{
		key:    "temperature_preference",
		label:  "temperature preferences",
		shape:  shapeNumeric,
		minVal: 60,
		maxVal: 80,
	},
}

type personalityTrait struct {
	key   string
	label string
	get   func(*models.PersonalityProfile) float64
}

var personalityTraits = []personalityTrait{
	{"openness", "openness", func(p *models.PersonalityProfile) float64 { return p.Openness }},
	{"conscientiousness", "conscientiousness", func(p *models.PersonalityProfile) float64 { return p.Conscientiousness }},
	{"extraversion", "social energy", func(p *models.PersonalityProfile) float64 { return p.Extraversion }},
	{"agreeableness", "agreeableness", func(p *models.PersonalityProfile) float64 { return p.Agreeableness }},
	{"neuroticism", "emotional stability", func(p *models.PersonalityProfile) float64 { return p.Neuroticism }},
}

// Agreeableness gaps past this size signal conflict risk, not just
// distance, so the similarity takes a flat penalty.
const (
	agreeablenessGapLimit = 35.0
	agreeablenessPenalty  = 0.8
)

// Neuroticism blends closeness with a both-low bonus: two calm roommates
// beat two equally anxious ones.
const (
	neuroticismSimilarityShare = 0.65
	neuroticismBothLowShare    = 0.35
)

type traitScore struct {
	key        string
	label      string
	similarity float64
	weight     float64
}

// Compatibility scores a pair of students.
func Compatibility(a, b map[string]string, weights Weights, aProf, bProf *models.PersonalityProfile) Result {
	lifestyle := lifestyleScores(a, b, weights)
	lifestyleMean, lifestyleOK := weightedMean(lifestyle)
	if !lifestyleOK {
		// No overlapping answers: neutral rather than hostile.
		lifestyleMean = 0.5
	}

	var final float64
	var personality []traitScore
	if aProf != nil && bProf != nil {
		personality = personalityScores(aProf, bProf, weights)
		personalityMean, _ := weightedMean(personality)
		final = lifestyleWeight*lifestyleMean + personalityWeight*personalityMean
	} else {
		final = lifestyleMean
	}

	explanation, tags := explain(lifestyle, personality)
	return Result{
		Score:       int(math.Round(final * 100)),
		Explanation: explanation,
		Tags:        tags,
	}
}

func lifestyleScores(a, b map[string]string, weights Weights) []traitScore {
	var scores []traitScore
	for _, def := range lifestyleTraits {
		av, aok := a[def.key]
		bv, bok := b[def.key]
		if !aok || !bok {
			// Missing on either side: skipped, not zero-filled.
			continue
		}
		sim, ok := similarity(def, av, bv)
		if !ok {
			continue
		}
		scores = append(scores, traitScore{
			key:        def.key,
			label:      def.label,
			similarity: sim,
			weight:     weightFor(weights, def.key),
		})
	}
	return scores
}

func similarity(def traitDef, av, bv string) (float64, bool) {
	switch def.shape {
	case shapeOrdinal:
		ai, aok := indexOf(def.order, av)
		bi, bok := indexOf(def.order, bv)
		if !aok || !bok {
			return 0, false
		}
		span := float64(len(def.order) - 1)
		if span == 0 {
			return 1, true
		}
		return 1 - math.Abs(float64(ai)-float64(bi))/span, true

	case shapeNumeric:
		af, aerr := strconv.ParseFloat(strings.TrimSpace(av), 64)
		bf, berr := strconv.ParseFloat(strings.TrimSpace(bv), 64)
		if aerr != nil || berr != nil {
			return 0, false
		}
		span := def.maxVal - def.minVal
		if span <= 0 {
			return 0, false
		}
		d := math.Abs(af-bf) / span
		if d > 1 {
			d = 1
		}
		return 1 - d, true

	case shapeMapped:
		ap, aok := def.anchors[av]
		bp, bok := def.anchors[bv]
		if !aok || !bok {
			return 0, false
		}
		return 1 - math.Abs(ap-bp), true
	}
	return 0, false
}

func personalityScores(a, b *models.PersonalityProfile, weights Weights) []traitScore {
	scores := make([]traitScore, 0, len(personalityTraits))
	for _, tr := range personalityTraits {
		av := clamp(tr.get(a), 0, 100)
		bv := clamp(tr.get(b), 0, 100)
		gap := math.Abs(av - bv)
		sim := 1 - gap/100

		switch tr.key {
		case "agreeableness":
			if gap > agreeablenessGapLimit {
				sim *= agreeablenessPenalty
			}
		case "neuroticism":
			bothLow := 1 - (av+bv)/2/100
			sim = neuroticismSimilarityShare*sim + neuroticismBothLowShare*bothLow
		}

		scores = append(scores, traitScore{
			key:        tr.key,
			label:      tr.label,
			similarity: sim,
			weight:     weightFor(weights, tr.key),
		})
	}
	return scores
}

func weightedMean(scores []traitScore) (float64, bool) {
	var sum, wsum float64
	for _, s := range scores {
		sum += s.similarity * s.weight
		wsum += s.weight
	}
	if wsum == 0 {
		return 0, false
	}
	return sum / wsum, true
}

func weightFor(w Weights, key string) float64 {
	if w == nil {
		return 1
	}
	v, ok := w[key]
	if !ok || v <= 0 {
		return 1
	}
	return v
}

func indexOf(list []string, v string) (int, bool) {
	for i, s := range list {
		if s == v {
			return i, true
		}
	}
	return 0, false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// explain builds the short natural-language summary: the 1-3 strongest
// lifestyle traits and 1-2 strongest personality dimensions, with a
// generic fallback when nothing clears the bar.
func explain(lifestyle, personality []traitScore) (string, []string) {
	topLife := topScores(lifestyle, lifestyleHighlight, 3)
	topPers := topScores(personality, personalityHighlight, 2)

	var tags []string
	for _, s := range topLife {
		tags = append(tags, s.key)
	}
	for _, s := range topPers {
		tags = append(tags, s.key)
	}

	var parts []string
	if len(topLife) > 0 {
		parts = append(parts, "You have similar "+joinLabels(topLife)+".")
	}
	if len(topPers) > 0 {
		parts = append(parts, fmt.Sprintf("Your %s profiles align well.", joinLabels(topPers)))
	}
	if len(parts) == 0 {
		return "You have different habits that could balance each other out.", tags
	}
	return strings.Join(parts, " "), tags
}

func topScores(scores []traitScore, threshold float64, limit int) []traitScore {
	var top []traitScore
	for _, s := range scores {
		if s.similarity >= threshold {
			top = append(top, s)
		}
	}
	sort.SliceStable(top, func(i, j int) bool { return top[i].similarity > top[j].similarity })
	if len(top) > limit {
		top = top[:limit]
	}
	return top
}

func joinLabels(scores []traitScore) string {
	labels := make([]string, len(scores))
	for i, s := range scores {
		labels[i] = s.label
	}
	switch len(labels) {
	case 1:
		return labels[0]
	case 2:
		return labels[0] + " and " + labels[1]
	default:
		return strings.Join(labels[:len(labels)-1], ", ") + ", and " + labels[len(labels)-1]
	}
}
