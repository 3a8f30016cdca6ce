package metrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFleschKincaidGrade(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
	}{
		{"empty", "", 0},
		{"punctuation only", "... !!", 0},
		{"one short sentence", "The cat sat.", -2.62},
		{"two sentences", "Agencies must publish rules. See section 5!", 4.32},
		{"digits add no syllables", "Section 12 applies.", 1.31},
		{"no terminal punctuation", "The cat sat", -2.62},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, FleschKincaidGrade(tt.text), 0.001)
		})
	}
}

func TestCountSyllables(t *testing.T) {
	assert.Equal(t, 3, countSyllables("Agencies"))
	assert.Equal(t, 2, countSyllables("section"))
	assert.Equal(t, 0, countSyllables("5"), "tokens without vowels add no syllables")
	assert.Equal(t, 0, countSyllables("12"))
	assert.Equal(t, 1, countSyllables("rhythm"), "y is a vowel")
}

func TestWordCountAndChecksum(t *testing.T) {
	assert.Equal(t, 0, WordCount("   "))
	assert.Equal(t, 4, WordCount(" one two\tthree\nfour "))
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", Checksum(""))
	assert.Len(t, Checksum("§ 1.1"), 32)
}

func TestFleschKincaidMeasure(t *testing.T) {
	m := FleschKincaid{}.Measure("The cat sat.")
	assert.Equal(t, 3, m.WordCount)
	assert.InDelta(t, -2.62, m.Readability, 0.001)
	assert.Equal(t, Checksum("The cat sat."), m.Checksum)
}

func TestCachedEngine(t *testing.T) {
	calls := 0
	var mu sync.Mutex
	inner := EngineFunc(func(text string) TextMetrics {
		mu.Lock()
		calls++
		mu.Unlock()
		return FleschKincaid{}.Measure(text)
	})

	cached, err := NewCachedEngine(inner, 2)
	require.NoError(t, err)

	first := cached.Measure("The cat sat.")
	second := cached.Measure("The cat sat.")
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
	assert.Equal(t, uint64(1), cached.Hits())
	assert.Equal(t, uint64(1), cached.Misses())

	cached.Measure("b")
	cached.Measure("c")
	assert.Equal(t, 2, cached.Len(), "cache is bounded")
	assert.Equal(t, 3, calls)
}

func TestCachedEngine_Concurrent(t *testing.T) {
	cached, err := NewCachedEngine(FleschKincaid{}, 16)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				cached.Measure("See part 3.")
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(400), cached.Hits()+cached.Misses())
}

func TestNewCachedEngine_Errors(t *testing.T) {
	_, err := NewCachedEngine(nil, 10)
	assert.Error(t, err)

	_, err = NewCachedEngine(FleschKincaid{}, 0)
	assert.Error(t, err)
}

func TestNewEngine(t *testing.T) {
	plain, err := NewEngine(0)
	require.NoError(t, err)
	assert.IsType(t, FleschKincaid{}, plain)

	cached, err := NewEngine(8)
	require.NoError(t, err)
	assert.IsType(t, &CachedEngine{}, cached)
}
