package checks

import "math"

// LighthouseCategories are the scores the lighthouse rule takes the minimum over.
var LighthouseCategories = []string{
	"performance",
	"accessibility",
	"bestPractices",
	"seo",
	"pwa",
}

func lighthouseRule(t LighthouseThresholds) Rule {
	return Rule{
		Kind: KindLighthouse,
		Name: "Lighthouse",
		Evaluate: func(p Payload) Verdict {
			return evaluateLighthouse(p.Meta, t)
		},
	}
}

func evaluateLighthouse(meta Meta, t LighthouseThresholds) Verdict {
	lowest, ok := MinLighthouseScore(meta)
	if !ok {
		return Verdict{}
	}

	switch {
	case lowest < t.Poor:
		return Verdict{Status: StatusWarning, Message: "Poor scores."}
	case lowest < t.Good:
		return Verdict{Status: StatusWarning, Message: "Some scores could be improved."}
	default:
		return Verdict{Status: StatusSuccess, Message: "Excellent scores!"}
	}
}

// MinLighthouseScore returns the lowest category score, ignoring categories
// that are missing or null. Scores may sit under meta.scores or directly in
// meta. ok is false when no category has a score.
func MinLighthouseScore(meta Meta) (float64, bool) {
	scores, nested := meta.Object("scores")
	if !nested {
		scores = meta
	}

	lowest := math.Inf(1)
	found := false
	for _, category := range LighthouseCategories {
		v, ok := scores.Float(category)
		if !ok {
			continue
		}
		found = true
		if v < lowest {
			lowest = v
		}
	}

	if !found {
		return 0, false
	}
	return lowest, true
}
