package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_EnhancersCoverAllSixStyles(t *testing.T) {
	c := Default()
	for _, style := range []string{"anime", "watercolor", "pixar", "papercut", "african_folktale", "clay"} {
		assert.NotEmpty(t, c.Enhancers[style], "missing enhancer for %s", style)
		assert.NotEmpty(t, c.ArtStyles[style], "missing display name for %s", style)
	}
}

func TestTheme_UnknownCodeFallsBack(t *testing.T) {
	c := Default()
	th := c.Theme("volcano")
	assert.Equal(t, "volcano", th.Name)
	assert.Contains(t, th.Subject, "volcano")
	assert.Empty(t, th.Choices)
}

func TestEnhancer_FallsBackToStyleName(t *testing.T) {
	c := Default()
	assert.Equal(t, "sketch", c.Enhancer("sketch"))
	assert.NotEqual(t, "watercolor", c.Enhancer("watercolor"))
}

func TestChoice(t *testing.T) {
	c := Default()
	ch, ok := c.Choice("forest", "old_oak")
	require.True(t, ok)
	assert.Equal(t, "Visit the old oak", ch.Name)

	_, ok = c.Choice("forest", "nope")
	assert.False(t, ok)
}

func TestDefaultVoice_IsFirstEntry(t *testing.T) {
	c := Default()
	require.NotEmpty(t, c.Voices)
	assert.Equal(t, c.Voices[0], c.DefaultVoice())
}

func TestLoadFile_OverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	content := `
themes:
  dinosaur:
    name: Dino Valley
    subject: a stomping trip through a sunny dinosaur valley
    choices:
      - id: nest
        name: Guard the nest
        description: the hero keeps three speckled eggs warm
voices: [luna]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	c, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Dino Valley", c.Theme("dinosaur").Name)
	// Defaults survive the overlay.
	assert.Equal(t, "Enchanted Forest", c.Theme("forest").Name)
	assert.Equal(t, "luna", c.DefaultVoice())
}

func TestLoadFile_EmptyPathReturnsDefaults(t *testing.T) {
	c, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, Default().Voices, c.Voices)
}
