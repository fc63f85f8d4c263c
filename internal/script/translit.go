package script

import (
	"unicode"

	"github.com/mozillazg/go-unidecode"
)

// Transliterator converts names between scripts.
type Transliterator interface {
	// ToLatin romanizes s.
	ToLatin(s string) string
	// ToGreek renders Latin letters of s with their Greek counterparts.
	ToGreek(s string) string
}

// Default is the transliterator used for name scoring.
var Default Transliterator = Greeklish{}

// Greeklish transliterates using ASCII romanization in one direction and a
// greeklish letter table in the other.
type Greeklish struct{}

// ToLatin romanizes s with unidecode.
func (Greeklish) ToLatin(s string) string {
	return unidecode.Unidecode(s)
}

// Digraphs are matched before single letters.
var latinDigraphs = map[string]rune{
	"th": 'θ',
	"ch": 'χ',
	"kh": 'χ',
	"ps": 'ψ',
	"ks": 'ξ',
	"ph": 'φ',
}

var latinLetters = map[rune]rune{
	'a': 'α', 'b': 'β', 'c': 'κ', 'd': 'δ', 'e': 'ε', 'f': 'φ', 'g': 'γ',
	'h': 'η', 'i': 'ι', 'j': 'ζ', 'k': 'κ', 'l': 'λ', 'm': 'μ', 'n': 'ν',
	'o': 'ο', 'p': 'π', 'q': 'κ', 'r': 'ρ', 's': 'σ', 't': 'τ', 'u': 'υ',
	'v': 'β', 'w': 'ω', 'x': 'ξ', 'y': 'υ', 'z': 'ζ',
}

// ToGreek maps Latin letters to Greek, keeping case, turning a word-final
// sigma into its final form and passing every other rune through.
func (Greeklish) ToGreek(s string) string {
	src := []rune(s)
	out := make([]rune, 0, len(src))

	for i := 0; i < len(src); i++ {
		r := src[i]
		lower := unicode.ToLower(r)

		if i+1 < len(src) {
			pair := string([]rune{lower, unicode.ToLower(src[i+1])})
			if g, ok := latinDigraphs[pair]; ok {
				out = append(out, withCase(g, r))
				i++
				continue
			}
		}
		if g, ok := latinLetters[lower]; ok {
			out = append(out, withCase(g, r))
			continue
		}
		out = append(out, r)
	}

	return finalSigma(string(out))
}

func withCase(g, like rune) rune {
	if unicode.IsUpper(like) {
		return unicode.ToUpper(g)
	}
	return g
}

func finalSigma(s string) string {
	rs := []rune(s)
	for i, r := range rs {
		if r != 'σ' {
			continue
		}
		if i+1 == len(rs) || !unicode.IsLetter(rs[i+1]) {
			rs[i] = 'ς'
		}
	}
	return string(rs)
}
