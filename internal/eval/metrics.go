// Package eval scores ranked retrieval results against known relevant photos.
package eval

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Case is one labelled query: the photo paths a good search should return.
type Case struct {
	Query    string   `yaml:"query"`
	Relevant []string `yaml:"relevant"`
}

// LoadCases reads a YAML list of cases.
func LoadCases(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cases []Case
	if err := yaml.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i, c := range cases {
		if c.Query == "" {
			return nil, fmt.Errorf("case %d: empty query", i)
		}
	}
	return cases, nil
}

// Scores holds the metrics of one ranked result list.
type Scores struct {
	Precision float64
	Recall    float64
	MRR       float64
	NDCG      float64
}

// Score evaluates retrieved paths against the relevant set with binary gains.
func Score(retrieved, relevant []string) Scores {
	s := Scores{
		Precision: PrecisionAtK(retrieved, relevant),
		Recall:    RecallAtK(retrieved, relevant),
	}

	set := toSet(relevant)
	for i, r := range retrieved {
		if set[r] {
			s.MRR = 1.0 / float64(i+1)
			break
		}
	}

	gains := make([]float64, len(retrieved))
	for i, r := range retrieved {
		if set[r] {
			gains[i] = 1
		}
	}
	ideal := make([]float64, min(len(relevant), len(retrieved)))
	for i := range ideal {
		ideal[i] = 1
	}
	s.NDCG = NDCG(gains, ideal)
	return s
}

// Mean averages a set of scores. It returns zero scores for an empty slice.
func Mean(all []Scores) Scores {
	var m Scores
	if len(all) == 0 {
		return m
	}
	for _, s := range all {
		m.Precision += s.Precision
		m.Recall += s.Recall
		m.MRR += s.MRR
		m.NDCG += s.NDCG
	}
	n := float64(len(all))
	m.Precision /= n
	m.Recall /= n
	m.MRR /= n
	m.NDCG /= n
	return m
}

func PrecisionAtK(retrieved, relevant []string) float64 {
	if len(retrieved) == 0 {
		return 0
	}
	set := toSet(relevant)
	hits := 0
	for _, r := range retrieved {
		if set[r] {
			hits++
		}
	}
	return float64(hits) / float64(len(retrieved))
}

func RecallAtK(retrieved, relevant []string) float64 {
	if len(relevant) == 0 {
		return 0
	}
	set := toSet(relevant)
	hits := 0
	for _, r := range retrieved {
		if set[r] {
			hits++
		}
	}
	return float64(hits) / float64(len(relevant))
}

func ReciprocalRank(retrieved []string, relevant string) float64 {
	for i, r := range retrieved {
		if r == relevant {
			return 1.0 / float64(i+1)
		}
	}
	return 0
}

func NDCG(scores, ideal []float64) float64 {
	idcg := dcg(ideal)
	if idcg == 0 {
		return 0
	}
	return dcg(scores) / idcg
}

func dcg(scores []float64) float64 {
	total := 0.0
	for i, score := range scores {
		total += score / math.Log2(float64(i+2))
	}
	return total
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, it := range items {
		set[it] = true
	}
	return set
}
