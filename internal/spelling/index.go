// Package spelling finds likely misspellings in the visible text of a page.
package spelling

import (
	"sort"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
)

// DefaultMaxDistance bounds the edit distance of a suggestion.
const DefaultMaxDistance = 2

// DefaultFrequency is the weight given to words added at runtime.
const DefaultFrequency = 100

// Suggestion is the best dictionary match for a word.
type Suggestion struct {
	Term     string
	Distance int
	Known    bool // false when nothing within the distance bound exists
}

// Index looks up single lowercase words.
type Index interface {
	Lookup(word string) (Suggestion, error)
}

// WordIndex is an in-memory dictionary bucketed by word length so a lookup
// only compares against words that can be within the distance bound.
type WordIndex struct {
	mu          sync.RWMutex
	freq        map[string]int
	byLen       map[int][]string
	maxDistance int
}

func NewWordIndex(maxDistance int) *WordIndex {
	if maxDistance <= 0 {
		maxDistance = DefaultMaxDistance
	}
	return &WordIndex{
		freq:        make(map[string]int),
		byLen:       make(map[int][]string),
		maxDistance: maxDistance,
	}
}

// Add registers word with the given frequency. Re-adding keeps the higher one.
func (x *WordIndex) Add(word string, frequency int) {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if old, ok := x.freq[word]; ok {
		if frequency > old {
			x.freq[word] = frequency
		}
		return
	}
	x.freq[word] = frequency
	n := len([]rune(word))
	x.byLen[n] = append(x.byLen[n], word)
}

// Len returns the number of dictionary words.
func (x *WordIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.freq)
}

// Lookup returns word itself when known, otherwise the closest word within
// the distance bound, preferring frequent words and then alphabetical order.
func (x *WordIndex) Lookup(word string) (Suggestion, error) {
	word = strings.ToLower(word)

	x.mu.RLock()
	defer x.mu.RUnlock()

	if _, ok := x.freq[word]; ok {
		return Suggestion{Term: word, Known: true}, nil
	}

	n := len([]rune(word))
	var candidates []Suggestion
	for l := n - x.maxDistance; l <= n+x.maxDistance; l++ {
		for _, w := range x.byLen[l] {
			d := levenshtein.ComputeDistance(word, w)
			if d <= x.maxDistance {
				candidates = append(candidates, Suggestion{Term: w, Distance: d, Known: true})
			}
		}
	}
	if len(candidates) == 0 {
		return Suggestion{Term: word}, nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		if fa, fb := x.freq[a.Term], x.freq[b.Term]; fa != fb {
			return fa > fb
		}
		return a.Term < b.Term
	})
	return candidates[0], nil
}

// overlay answers from a per-call word list first and from base otherwise.
// The closer match wins; on equal distance the base dictionary is preferred.
type overlay struct {
	base  Index
	extra *WordIndex
}

func withExtras(base Index, words []string) Index {
	if len(words) == 0 {
		return base
	}
	extra := NewWordIndex(DefaultMaxDistance)
	if w, ok := base.(*WordIndex); ok {
		extra.maxDistance = w.maxDistance
	}
	for _, word := range words {
		extra.Add(word, DefaultFrequency)
	}
	if extra.Len() == 0 {
		return base
	}
	return overlay{base: base, extra: extra}
}

func (o overlay) Lookup(word string) (Suggestion, error) {
	own, _ := o.extra.Lookup(word)
	if own.Known && own.Distance == 0 {
		return own, nil
	}
	s, err := o.base.Lookup(word)
	if err != nil {
		return Suggestion{}, err
	}
	if own.Known && (!s.Known || own.Distance < s.Distance) {
		return own, nil
	}
	return s, nil
}
