package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tellatale/engine/internal/catalog"
	"github.com/tellatale/engine/internal/fault"
	"github.com/tellatale/engine/pkg/models"
)

const storySystem = `You are a warm, imaginative children's storyteller.
Write gentle, age-appropriate stories with a clear beginning, middle and happy ending.
Never include violence, scary imagery, injury, death or anything a young child could find distressing.
Write plain prose in short paragraphs separated by blank lines. No headings, no lists, no markdown.`

// storyUserPrompt assembles the main generation prompt from the project's
// hero fields and resolved theme.
func storyUserPrompt(proj *models.Project, theme catalog.Theme) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a %s bedtime story in %s about %s.\n", proj.Length, languageOf(proj), theme.Subject)
	fmt.Fprintf(&b, "The hero is %s, a %d-year-old child (%s).\n", proj.HeroName, proj.HeroAge, proj.HeroPronouns)
	if proj.HeroAnimal != "" {
		fmt.Fprintf(&b, "%s is accompanied by a loyal %s.\n", proj.HeroName, proj.HeroAnimal)
	}
	if proj.HeroColor != "" {
		fmt.Fprintf(&b, "%s's favorite color is %s; weave it into the story.\n", proj.HeroName, ColorName(proj.HeroColor))
	}
	if proj.Difficulty > 0 {
		fmt.Fprintf(&b, "Use vocabulary suitable for reading level %d of 5.\n", proj.Difficulty)
	}
	if proj.CustomPrompt != "" {
		fmt.Fprintf(&b, "Additional wishes from the family: %s\n", proj.CustomPrompt)
	}
	return b.String()
}

// remixUserPrompt asks the model to continue a shared first half down one
// narrative branch.
func remixUserPrompt(proj *models.Project, firstHalf string, choice catalog.Choice) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Here is the first half of a children's story about %s:\n\n%s\n\n", proj.HeroName, firstHalf)
	fmt.Fprintf(&b, "Continue and finish the story in %s, following this branch: %s.\n", languageOf(proj), choice.Description)
	b.WriteString("Do not repeat the first half. Keep the same tone and characters and end happily.\n")
	return b.String()
}

const metadataSystem = `You summarise children's stories for a library catalogue.
Respond with a single JSON object and nothing else:
{"title": "...", "synopsis": "...", "tags": ["...", "..."]}
The title is at most six words. The synopsis is two or three sentences. Give three to five lowercase single-word tags.`

func metadataUserPrompt(fullText string) string {
	return "Summarise this story:\n\n" + fullText
}

// storyMetadata is the parsed stage-2 summary.
type storyMetadata struct {
	Title    string   `json:"title"`
	Synopsis string   `json:"synopsis"`
	Tags     []string `json:"tags"`
}

// parseMetadata decodes the metadata completion, tolerating markdown code
// fences around the JSON object.
func parseMetadata(raw string) (storyMetadata, error) {
	const op = "pipeline.parse_metadata"

	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	var meta storyMetadata
	if err := json.Unmarshal([]byte(s), &meta); err != nil {
		return storyMetadata{}, fault.New(fault.ContentFault, op, fmt.Errorf("decode metadata: %w", err))
	}
	meta.Title = strings.TrimSpace(meta.Title)
	meta.Synopsis = strings.TrimSpace(meta.Synopsis)
	for i, tag := range meta.Tags {
		meta.Tags[i] = strings.ToLower(strings.TrimSpace(tag))
	}
	return meta, nil
}

// coverPrompt builds the image-generation prompt from the hero fields and
// the art style's enhancer template.
func coverPrompt(proj *models.Project, theme catalog.Theme, enhancer string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Children's book cover illustration: %s, a happy %d-year-old child", proj.HeroName, proj.HeroAge)
	if proj.HeroAnimal != "" {
		fmt.Fprintf(&b, " with a friendly %s", proj.HeroAnimal)
	}
	fmt.Fprintf(&b, ", in %s.", theme.Subject)
	if proj.HeroColor != "" {
		fmt.Fprintf(&b, " Prominent use of the color %s.", strings.ToLower(ColorName(proj.HeroColor)))
	}
	fmt.Fprintf(&b, " Style: %s. No text or lettering in the image.", enhancer)
	return b.String()
}

func languageOf(proj *models.Project) string {
	if proj.Language == "" {
		return "English"
	}
	return proj.Language
}
