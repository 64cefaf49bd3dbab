package parallel

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRowsCoversEveryRowOnce(t *testing.T) {
	for _, n := range []int{0, 1, 100, 1000, 1001} {
		counts := make([]int, n)
		var mu sync.Mutex
		calls := 0
		Rows(n, Config{Workers: 4, MinRows: 50}, func(start, end int) {
			mu.Lock()
			calls++
			mu.Unlock()
			for i := start; i < end; i++ {
				counts[i]++
			}
		})
		for i, c := range counts {
			assert.Equal(t, 1, c, "n=%d row %d", n, i)
		}
		if n >= 1000 {
			assert.Equal(t, 4, calls, "n=%d", n)
		}
	}
}

func TestRowsInlineForSmallInputs(t *testing.T) {
	var ranges [][2]int
	Rows(10, Config{Workers: 8, MinRows: 64}, func(start, end int) {
		ranges = append(ranges, [2]int{start, end})
	})
	assert.Equal(t, [][2]int{{0, 10}}, ranges)

	ranges = nil
	Rows(500, Config{Workers: 1}, func(start, end int) {
		ranges = append(ranges, [2]int{start, end})
	})
	assert.Equal(t, [][2]int{{0, 500}}, ranges)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.GreaterOrEqual(t, cfg.Workers, 1)
	assert.Positive(t, cfg.MinRows)
}
