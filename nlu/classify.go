package nlu

import (
	"context"
	"fmt"

	"github.com/agext/levenshtein"

	"github.com/convograph/convograph/types"
)

// UpdateIntentByCandidate re-resolves msg.Intent against a restricted
// candidate set. Candidates are scored three ways and the best evidence
// wins: the existing ranking from the full parse, the classifier run on the
// candidates' own examples, and a near-duplicate check that rescues
// utterances one ASR slip away from a known example.
func UpdateIntentByCandidate(ctx context.Context, classifier IntentClassifier, msg *types.Message, candidates []string, threshold float64) error {
	if len(candidates) == 0 {
		msg.Intent = ""
		msg.IntentConfidence = 0
		return nil
	}

	scores := make(map[string]float64, len(candidates))
	group := make(map[string][]string)
	for _, id := range candidates {
		if score, ok := msg.IntentRanking[id]; ok {
			scores[id] = score
		}
		if examples := msg.IntentExamples[id]; len(examples) > 0 {
			group[id] = examples
		}
	}

	if classifier != nil && len(group) > 0 {
		topn, err := classifier.Classify(ctx, msg.Text, group)
		if err != nil {
			return fmt.Errorf("classify candidates: %w", err)
		}
		for id, topScores := range topn {
			for _, s := range topScores {
				if s > scores[id] {
					scores[id] = s
				}
			}
		}
	}

	// Same-length utterances within edit distance noise of an example count
	// as at least a threshold-clearing match.
	text := []rune(msg.Text)
	for id, examples := range group {
		for _, ex := range examples {
			if len([]rune(ex)) != len(text) {
				continue
			}
			if levenshtein.Similarity(msg.Text, ex, levenshtein.NewParams()) > 0.75 && scores[id] < 0.5 {
				scores[id] = 0.5
			}
		}
	}

	msg.IntentRanking = scores
	msg.UpdateIntent()
	if msg.IntentRanking[msg.Intent] < threshold {
		msg.Intent = ""
		msg.IntentConfidence = 0
	}
	return nil
}
