// Package scoring computes the per-example quality metrics stored in
// dataset-eval files.
package scoring

import (
	"math"
	"regexp"
	"strings"
)

var (
	whitespace = regexp.MustCompile(`\s+`)
	firstToken = regexp.MustCompile(`[a-z0-9]+`)
	nonAlnum   = regexp.MustCompile(`[^a-z0-9]+`)
)

// Normalize lowercases, trims and collapses runs of whitespace.
func Normalize(s string) string {
	return whitespace.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), " ")
}

var yesNo = map[string]string{
	"yes": "yes", "true": "yes", "y": "yes", "1": "yes",
	"no": "no", "false": "no", "n": "no", "0": "no",
}

// NormalizeYesNo maps a free-form answer to "yes" or "no" when its first
// token is an obvious synonym, otherwise returns the normalized text.
func NormalizeYesNo(s string) string {
	n := Normalize(s)
	tok := firstToken.FindString(n)
	if tok == "" {
		tok = n
	}
	if v, ok := yesNo[tok]; ok {
		return v
	}
	switch {
	case strings.HasPrefix(n, "yes"), strings.HasPrefix(n, "true"):
		return "yes"
	case strings.HasPrefix(n, "no"), strings.HasPrefix(n, "false"):
		return "no"
	}
	return n
}

const (
	bleuOrder   = 4
	bleuEpsilon = 0.1
)

// SentenceBLEU scores hyp against a single reference over whitespace
// tokens: uniform 1..4-gram weights, brevity penalty, and epsilon smoothing
// for n-gram orders with no matches. No unigram overlap scores 0.
func SentenceBLEU(hyp, ref string) float64 {
	h, r := strings.Fields(hyp), strings.Fields(ref)
	if len(h) == 0 {
		return 0
	}
	var logSum float64
	for n := 1; n <= bleuOrder; n++ {
		matches, total := clippedMatches(h, r, n)
		if n == 1 && matches == 0 {
			return 0
		}
		denom := float64(max(total, 1))
		p := float64(matches) / denom
		if matches == 0 {
			p = bleuEpsilon / denom
		}
		logSum += math.Log(p) / bleuOrder
	}
	return brevityPenalty(len(h), len(r)) * math.Exp(logSum)
}

func clippedMatches(hyp, ref []string, n int) (matches, total int) {
	refCounts := ngrams(ref, n)
	for g, c := range ngrams(hyp, n) {
		total += c
		matches += min(c, refCounts[g])
	}
	return matches, total
}

func ngrams(tokens []string, n int) map[string]int {
	counts := map[string]int{}
	for i := 0; i+n <= len(tokens); i++ {
		counts[strings.Join(tokens[i:i+n], "\x00")]++
	}
	return counts
}

func brevityPenalty(hypLen, refLen int) float64 {
	if hypLen > refLen {
		return 1
	}
	if hypLen == 0 {
		return 0
	}
	return math.Exp(1 - float64(refLen)/float64(hypLen))
}

// RougeL is the ROUGE-L F-measure between hyp and ref. Both sides are
// lowercased and split on anything that is not a letter or digit.
func RougeL(hyp, ref string) float64 {
	h, r := rougeTokens(hyp), rougeTokens(ref)
	if len(h) == 0 || len(r) == 0 {
		return 0
	}
	l := float64(lcs(h, r))
	if l == 0 {
		return 0
	}
	p, rec := l/float64(len(h)), l/float64(len(r))
	return 2 * p * rec / (p + rec)
}

func rougeTokens(s string) []string {
	return strings.Fields(nonAlnum.ReplaceAllString(strings.ToLower(s), " "))
}

func lcs(a, b []string) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := range a {
		for j := range b {
			if a[i] == b[j] {
				cur[j+1] = prev[j] + 1
			} else {
				cur[j+1] = max(cur[j], prev[j+1])
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// Scores is one example's quality metrics.
type Scores struct {
	BLEU  float64
	Rouge float64
	Pass1 float64
}

// BestOf scores hyp against every reference after normalization and keeps
// the pair with the highest BLEU+ROUGE sum. Pass1 is 1 when hyp exactly
// matches any reference.
func BestOf(hyp string, refs []string) Scores {
	h := Normalize(hyp)
	var best Scores
	for _, ref := range refs {
		r := Normalize(ref)
		b, rl := SentenceBLEU(h, r), RougeL(h, r)
		if b+rl > best.BLEU+best.Rouge {
			best.BLEU, best.Rouge = b, rl
		}
	}
	best.Pass1 = Pass1(hyp, refs)
	return best
}

// Pass1 is 1 when the normalized hypothesis equals any normalized reference.
func Pass1(hyp string, refs []string) float64 {
	h := Normalize(hyp)
	for _, ref := range refs {
		if h == Normalize(ref) {
			return 1
		}
	}
	return 0
}

// Round rounds to the given number of decimal places, as stored in eval files.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
