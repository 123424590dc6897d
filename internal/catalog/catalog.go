// Package catalog holds the static theme, art-style and narrator-voice
// catalogues. Defaults ship in code; deployments may overlay them from a
// YAML file named in the configuration.
package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Choice is one narrative branch a theme offers for variant fan-out.
type Choice struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Theme describes one story theme.
type Theme struct {
	Name    string   `yaml:"name"`
	Subject string   `yaml:"subject"`
	Choices []Choice `yaml:"choices"`
}

// Catalog is the full content catalogue the pipeline draws from.
type Catalog struct {
	Themes map[string]Theme `yaml:"themes"`
	// ArtStyles maps style codes to display names.
	ArtStyles map[string]string `yaml:"art_styles"`
	// Enhancers maps style codes to cover-prompt style templates. Styles
	// without an enhancer fall back to their display name.
	Enhancers map[string]string `yaml:"enhancers"`
	// Voices lists narrator voice ids; the first entry is the default.
	Voices []string `yaml:"voices"`
}

// Default returns the built-in catalogue.
func Default() *Catalog {
	return &Catalog{
		Themes: map[string]Theme{
			"forest": {
				Name:    "Enchanted Forest",
				Subject: "a gentle adventure through an enchanted forest full of friendly creatures",
				Choices: []Choice{
					{ID: "fireflies", Name: "Follow the fireflies", Description: "the hero follows a trail of glowing fireflies deeper into the woods"},
					{ID: "old_oak", Name: "Visit the old oak", Description: "the hero climbs the talking oak tree to see the whole forest"},
					{ID: "river", Name: "Cross the singing river", Description: "the hero builds a tiny raft and floats down the singing river"},
				},
			},
			"ocean": {
				Name:    "Ocean Voyage",
				Subject: "a cheerful voyage across a sparkling ocean with sea friends",
				Choices: []Choice{
					{ID: "coral", Name: "Dive to the coral city", Description: "the hero dives down to a glowing coral city"},
					{ID: "island", Name: "Land on the giggle island", Description: "the hero explores an island where everything giggles"},
					{ID: "whale", Name: "Ride the kind whale", Description: "the hero rides on the back of a kind old whale"},
				},
			},
			"space": {
				Name:    "Starry Space Trip",
				Subject: "a cozy trip between friendly stars and soft-glowing planets",
				Choices: []Choice{
					{ID: "moon", Name: "Picnic on the moon", Description: "the hero has a picnic with moon bunnies"},
					{ID: "comet", Name: "Chase the comet", Description: "the hero follows a slow, sparkly comet"},
					{ID: "starlight", Name: "Collect starlight", Description: "the hero gathers starlight in a little jar"},
				},
			},
			"castle": {
				Name:    "Friendly Castle",
				Subject: "a playful day inside a friendly castle full of kind helpers",
				Choices: []Choice{
					{ID: "tower", Name: "Climb the tall tower", Description: "the hero climbs the spiral stairs to ring the happy bell"},
					{ID: "kitchen", Name: "Help in the kitchen", Description: "the hero bakes giant cookies with the castle cook"},
					{ID: "garden", Name: "Explore the maze garden", Description: "the hero finds the fountain at the heart of the maze garden"},
				},
			},
		},
		ArtStyles: map[string]string{
			"anime":            "Anime",
			"watercolor":       "Watercolor",
			"pixar":            "Pixar-style 3D",
			"papercut":         "Papercut Collage",
			"african_folktale": "African Folktale Art",
			"clay":             "Claymation",
		},
		Enhancers: map[string]string{
			"anime":            "vibrant anime illustration, soft cel shading, big expressive eyes, studio-quality background",
			"watercolor":       "dreamy watercolor painting, soft washes of color, gentle paper texture, storybook style",
			"pixar":            "polished 3D render in a friendly animated-film style, warm cinematic lighting, expressive characters",
			"papercut":         "layered papercut collage, bold shapes, visible paper texture, handcrafted depth",
			"african_folktale": "rich folktale illustration, warm earth tones, bold patterns, traditional motifs",
			"clay":             "charming claymation scene, soft studio lighting, visible fingerprints in the clay, stop-motion feel",
		},
		Voices: []string{"nova", "fable", "alloy", "shimmer"},
	}
}

// LoadFile overlays catalogue entries from a YAML file onto the defaults.
// Missing sections keep their default values.
func LoadFile(path string) (*Catalog, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	var overlay Catalog
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("parse catalog file: %w", err)
	}
	for id, theme := range overlay.Themes {
		c.Themes[id] = theme
	}
	for id, name := range overlay.ArtStyles {
		c.ArtStyles[id] = name
	}
	for id, tmpl := range overlay.Enhancers {
		c.Enhancers[id] = tmpl
	}
	if len(overlay.Voices) > 0 {
		c.Voices = overlay.Voices
	}
	return c, nil
}

// Theme resolves a theme code, falling back to a neutral theme for unknown
// codes so a stale client cannot wedge the pipeline.
func (c *Catalog) Theme(code string) Theme {
	if t, ok := c.Themes[code]; ok {
		return t
	}
	return Theme{Name: code, Subject: "a gentle adventure about " + code}
}

// StyleName resolves an art-style code to its display name.
func (c *Catalog) StyleName(code string) string {
	if name, ok := c.ArtStyles[code]; ok {
		return name
	}
	return code
}

// Enhancer resolves the cover-prompt enhancer for a style, falling back to
// the style's display name.
func (c *Catalog) Enhancer(code string) string {
	if e, ok := c.Enhancers[code]; ok {
		return e
	}
	return c.StyleName(code)
}

// Choice finds a theme choice by id.
func (c *Catalog) Choice(themeCode, choiceID string) (Choice, bool) {
	for _, ch := range c.Theme(themeCode).Choices {
		if ch.ID == choiceID {
			return ch, true
		}
	}
	return Choice{}, false
}

// DefaultVoice returns the first catalogue voice.
func (c *Catalog) DefaultVoice() string {
	if len(c.Voices) == 0 {
		return ""
	}
	return c.Voices[0]
}
