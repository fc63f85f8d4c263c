package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "café bar αθηνα", Normalize("  Café-Bar  ΑΘΗΝΑ "))
	assert.Equal(t, "museum", Normalize("MUSEUM!"))
	assert.Equal(t, "", Normalize("!!! ---"))
	assert.Equal(t, "a1 b2", Normalize("a1\tb2"))
}

func TestMetrics(t *testing.T) {
	assert.InDelta(t, 0.0, Levenshtein("ab", "ba"), 1e-9)
	assert.InDelta(t, 0.5, Damerau("ab", "ba"), 1e-9)
	assert.InDelta(t, 1-3.0/7.0, Levenshtein("kitten", "sitting"), 1e-9)
	assert.InDelta(t, 0.961, JaroWinkler("martha", "marhta"), 0.001)
	assert.InDelta(t, 1.0, Levenshtein("", ""), 1e-9)
	assert.InDelta(t, 1.0, Levenshtein("Μουσείο", "Μουσείο"), 1e-9)
}

func TestMetricByName(t *testing.T) {
	m, err := MetricByName("")
	require.NoError(t, err)
	assert.Nil(t, m)

	for _, name := range []string{MetricLevenshtein, MetricJaroWinkler, MetricDamerau} {
		m, err := MetricByName(name)
		require.NoError(t, err, name)
		assert.InDelta(t, 1.0, m("museum", "museum"), 1e-9, name)
	}

	_, err = MetricByName("cosine")
	assert.ErrorContains(t, err, "cosine")
}

func TestRatio(t *testing.T) {
	s := NewScorer(nil)
	assert.Equal(t, 100, s.Ratio("abc", "abc"))
	assert.Equal(t, 0, s.Ratio("", "abc"))
	assert.Equal(t, 0, s.Ratio("abc", ""))
	kitten := s.Ratio("kitten", "sitting")
	assert.Greater(t, kitten, 50)
	assert.Less(t, kitten, 70)
}

func TestRatio_Metric(t *testing.T) {
	s := NewScorer(Levenshtein)
	assert.Equal(t, 57, s.Ratio("kitten", "sitting"))
	assert.Equal(t, 0, s.Ratio("", "sitting"))
	assert.Equal(t, 100, NewScorer(Damerau).Ratio("ab", "ab"))
}

func TestPartialRatio(t *testing.T) {
	s := NewScorer(nil)
	assert.Equal(t, 100, s.PartialRatio("york", "new york"))
	assert.Equal(t, 100, s.PartialRatio("new york", "york"))
	assert.Equal(t, 0, s.PartialRatio("", "york"))
	assert.Less(t, s.PartialRatio("yolk", "new york"), 100)
}

func TestTokenSortRatio(t *testing.T) {
	s := NewScorer(nil)
	assert.Equal(t, 100, s.TokenSortRatio("museum acropolis", "Acropolis Museum"))
	assert.Equal(t, 0, s.TokenSortRatio("", "Acropolis"))
}

func TestTokenSortRatio_Metric(t *testing.T) {
	s := NewScorer(JaroWinkler)
	assert.Equal(t, 100, s.TokenSortRatio("museum acropolis", "Acropolis Museum"))
	assert.Equal(t, 0, s.TokenSortRatio("", "Acropolis"))
}

func TestTokenSetRatio_Greek(t *testing.T) {
	s := NewScorer(nil)
	assert.Equal(t, 100, s.TokenSetRatio("Μουσείο Ακρόπολης", "μουσείο ακρόπολης"))
	assert.Equal(t, 100, s.TokenSetRatio("Μουσείο Ακρόπολης", "Νέο Μουσείο Ακρόπολης"))
	assert.Less(t, s.TokenSetRatio("Μουσείο Ακρόπολης", "Φούρνος Ωμέγα"), 50)
}

func TestNameRatio(t *testing.T) {
	set := NewScorer(nil)
	assert.Equal(t, 100, set.NameRatio("Acropolis Museum", "New Acropolis Museum"))

	sorted := NewScorer(Levenshtein)
	assert.Equal(t, 100, sorted.NameRatio("museum acropolis", "Acropolis Museum"))
	assert.Less(t, sorted.NameRatio("Acropolis Museum", "New Acropolis Museum"), 100)
}

func TestTokenSetRatio(t *testing.T) {
	s := NewScorer(nil)
	assert.Equal(t, 100, s.TokenSetRatio("Acropolis Museum", "New Acropolis Museum"))
	assert.Equal(t, 100, s.TokenSetRatio("museum museum", "Museum"))
	assert.Equal(t, 0, s.TokenSetRatio("abc", "xyz"))
	assert.Equal(t, 0, s.TokenSetRatio("", "xyz"))

	near := s.TokenSetRatio("Acropolis Museum", "Mouseio Akropoles")
	far := s.TokenSetRatio("Acropolis Museum", "Bakery Omega")
	assert.Greater(t, near, far)
}

func TestWRatio(t *testing.T) {
	s := NewScorer(nil)
	assert.Equal(t, 100, s.WRatio("museum", "museum"))
	assert.Equal(t, 100, s.WRatio("MUSEUM!", "museum"))
	assert.Equal(t, 0, s.WRatio("museum", ""))
	assert.Equal(t, 0, s.WRatio("???", "museum"))

	// The partial comparison is scaled down for strings of very different length.
	partial := s.WRatio("cafe", "cafe and restaurant in the old town")
	assert.Greater(t, partial, 0)
	assert.Less(t, partial, 100)
}

func TestExtractOne(t *testing.T) {
	s := NewScorer(nil)

	m, ok := ExtractOne("museum", []string{"culture", "museum", ""}, s.WRatio)
	require.True(t, ok)
	assert.Equal(t, 1, m.Index)
	assert.Equal(t, "museum", m.Choice)
	assert.Equal(t, 100, m.Score)
}

func TestExtractOne_FirstWinsTies(t *testing.T) {
	s := NewScorer(nil)
	m, ok := ExtractOne("abc", []string{"abc", "ABC"}, s.Ratio)
	require.True(t, ok)
	assert.Equal(t, 0, m.Index)
}

func TestExtractOne_Empty(t *testing.T) {
	s := NewScorer(nil)

	_, ok := ExtractOne("abc", nil, s.Ratio)
	assert.False(t, ok)

	m, ok := ExtractOne("!!!", []string{"x", "y"}, s.Ratio)
	require.True(t, ok)
	assert.Equal(t, 0, m.Index)
	assert.Equal(t, 0, m.Score)
}
