package pipeline

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paragraphsOf(n int) string {
	paras := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		paras = append(paras, fmt.Sprintf("Paragraph number %d of the story.", i))
	}
	return strings.Join(paras, "\n\n")
}

func TestSplitPages(t *testing.T) {
	tests := []struct {
		paragraphs int
		wantPages  []int // paragraphs per page
	}{
		{1, []int{1}},
		{3, []int{3}},
		{4, []int{3, 1}},
		{6, []int{3, 3}},
		{7, []int{3, 3, 1}},
		{8, []int{3, 3, 2}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_paragraphs", tt.paragraphs), func(t *testing.T) {
			pages := SplitPages(paragraphsOf(tt.paragraphs))
			require.Len(t, pages, len(tt.wantPages))
			total := 0
			for i, page := range pages {
				got := len(strings.Split(page, "\n\n"))
				assert.Equal(t, tt.wantPages[i], got, "page %d", i+1)
				total += got
			}
			// Every paragraph lands on exactly one page, in order.
			assert.Equal(t, tt.paragraphs, total)
			assert.Contains(t, pages[0], "Paragraph number 1 ")
			lastPage := pages[len(pages)-1]
			assert.Contains(t, lastPage, fmt.Sprintf("Paragraph number %d ", tt.paragraphs))
		})
	}
}

func TestSplitPages_NormalizesWhitespace(t *testing.T) {
	text := "First para.\r\n\r\nSecond para.\n\n   \n\nThird para.\n\n"
	pages := SplitPages(text)
	require.Len(t, pages, 1)
	assert.Equal(t, "First para.\n\nSecond para.\n\nThird para.", pages[0])
}

func TestSplitPages_EmptyText(t *testing.T) {
	assert.Empty(t, SplitPages("   \n\n  "))
}

func TestSplitHalves(t *testing.T) {
	tests := []struct {
		total, first int
	}{
		{2, 1},
		{4, 2},
		{5, 3},
		{7, 4},
	}
	for _, tt := range tests {
		paras := Paragraphs(paragraphsOf(tt.total))
		first, second := SplitHalves(paras)
		assert.Len(t, first, tt.first, "total %d", tt.total)
		assert.Len(t, second, tt.total-tt.first, "total %d", tt.total)
	}
}
