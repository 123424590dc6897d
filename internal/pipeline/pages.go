package pipeline

import "strings"

// paragraphsPerPage controls how much text one narration chunk carries.
const paragraphsPerPage = 3

// Paragraphs splits story text into trimmed, non-empty paragraphs.
func Paragraphs(text string) []string {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, para := range strings.Split(normalized, "\n\n") {
		if p := strings.TrimSpace(para); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SplitPages groups story text into pages of up to three paragraphs each.
// A trailing partial group becomes its own page rather than being folded
// into the previous one.
func SplitPages(text string) []string {
	paras := Paragraphs(text)
	var pages []string
	for i := 0; i < len(paras); i += paragraphsPerPage {
		end := i + paragraphsPerPage
		if end > len(paras) {
			end = len(paras)
		}
		pages = append(pages, strings.Join(paras[i:end], "\n\n"))
	}
	return pages
}

// SplitHalves divides paragraphs for variant fan-out: the first half is
// shared verbatim across variants, the second is regenerated per branch.
// Odd counts put the extra paragraph in the first half.
func SplitHalves(paras []string) (first, second []string) {
	mid := (len(paras) + 1) / 2
	return paras[:mid], paras[mid:]
}
