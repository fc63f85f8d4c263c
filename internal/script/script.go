// Package script classifies the writing system of names and transliterates
// between Latin and Greek.
package script

import (
	"unicode"
)

// Script is a writing system label.
type Script string

const (
	Latin        Script = "LATIN"
	Greek        Script = "GREEK"
	Cyrillic     Script = "CYRILLIC"
	Arabic       Script = "ARABIC"
	Hebrew       Script = "HEBREW"
	Han          Script = "CJK"
	Undetermined Script = "UND"
)

var tables = []struct {
	script Script
	table  *unicode.RangeTable
}{
	{Latin, unicode.Latin},
	{Greek, unicode.Greek},
	{Cyrillic, unicode.Cyrillic},
	{Arabic, unicode.Arabic},
	{Hebrew, unicode.Hebrew},
	{Han, unicode.Han},
}

// Classify returns the writing system of s. Any Cyrillic letter makes the
// whole string Cyrillic; otherwise the script with the most letters wins,
// ties going to the script seen first. Strings without letters are
// Undetermined.
func Classify(s string) Script {
	counts := make(map[Script]int)
	var order []Script

	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		sc := letterScript(r)
		if sc == Cyrillic {
			return Cyrillic
		}
		if counts[sc] == 0 {
			order = append(order, sc)
		}
		counts[sc]++
	}

	best := Undetermined
	for _, sc := range order {
		if counts[sc] > counts[best] {
			best = sc
		}
	}
	return best
}

func letterScript(r rune) Script {
	for _, t := range tables {
		if unicode.Is(t.table, r) {
			return t.script
		}
	}
	return Undetermined
}

// Set is a set of scripts.
type Set map[Script]struct{}

// ClassifyAll returns the scripts of every string in names.
func ClassifyAll(names []string) Set {
	set := make(Set, len(names))
	for _, n := range names {
		set[Classify(n)] = struct{}{}
	}
	return set
}

// Has reports whether s is in the set.
func (set Set) Has(s Script) bool {
	_, ok := set[s]
	return ok
}

// Intersects reports whether the two sets share a script.
func (set Set) Intersects(other Set) bool {
	for s := range set {
		if other.Has(s) {
			return true
		}
	}
	return false
}
