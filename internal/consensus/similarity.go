package consensus

import (
	"strings"

	"sealevel/backend/internal/consensus/contract"
)

// similarityThreshold is the Jaccard score two texts must exceed to land in
// the same response group.
const similarityThreshold = 0.7

// vote pairs one successful response with its provider's configured weight.
type vote struct {
	response *contract.ProviderResponse
	weight   float64
}

// responseGroup is one cluster of textually similar responses. The first
// response to open the group stays its representative.
type responseGroup struct {
	representative *contract.ProviderResponse
	repTokens      map[string]struct{}
	members        []*contract.ProviderResponse
	weight         float64
}

func tokenize(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, word := range strings.Fields(strings.ToLower(text)) {
		set[word] = struct{}{}
	}
	return set
}

// jaccard returns |intersection| / |union| of two word sets. Two empty sets
// score zero, not one.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for word := range a {
		if _, ok := b[word]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// clusterResponses groups votes by similarity to each group's representative.
// A vote joins the first group it exceeds the threshold against, so input
// order decides representatives.
func clusterResponses(votes []vote) []*responseGroup {
	var groups []*responseGroup
	for _, v := range votes {
		tokens := tokenize(v.response.Text)
		placed := false
		for _, g := range groups {
			if jaccard(tokens, g.repTokens) > similarityThreshold {
				g.members = append(g.members, v.response)
				g.weight += v.weight
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, &responseGroup{
				representative: v.response,
				repTokens:      tokens,
				members:        []*contract.ProviderResponse{v.response},
				weight:         v.weight,
			})
		}
	}
	return groups
}
