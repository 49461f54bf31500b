package coverart

import (
	"fmt"
	"math/rand"
	"strings"
)

// baseNegativePrompt steers the model away from common generation artifacts.
// Always sent; genre negatives are appended on top.
const baseNegativePrompt = "low quality, blurry, pixelated, distorted, artifacts, " +
	"text, watermark, signature, logo, extra limbs, missing limbs, " +
	"deformed hands, bad anatomy, cropped, out of frame, " +
	"duplicate, error, jpeg artifacts, ugly, morbid, mutilated, " +
	"bad proportions, cloned face, disfigured, " +
	"cut off, low contrast, underexposed, overexposed, " +
	"bad art, beginner, amateur, distorted face, blur, grain"

var genreNegativePrompts = map[string]string{
	"electronic": "realistic photography, vintage, organic textures",
	"rock":       "colorful, happy, soft lighting, pastel colors",
	"pop":        "dark, gloomy, grunge, distressed, vintage",
	"hip hop":    "rural, nature, soft, cute, classical",
	"jazz":       "modern, futuristic, bright colors, cartoon, childish",
	"classical":  "colorful, casual, modern, grunge, street art",
}

var genreTemplates = map[string]string{
	"electronic": "Album cover for '%s' by %s, " +
		"futuristic cyberpunk aesthetic, neon synthwave style, " +
		"electric blue and purple lighting, high-tech digital art, " +
		"intricate circuit patterns, holographic effects, " +
		"professional album artwork, ultra-detailed, 8k resolution",
	"rock": "Album cover for '%s' by %s, " +
		"edgy rock aesthetic, grunge style, " +
		"dramatic high contrast lighting, dark moody atmosphere, " +
		"distressed textures, bold graphic design, " +
		"professional album artwork, high detail, 8k",
	"pop": "Album cover for '%s' by %s, " +
		"colorful pop art style, vibrant and energetic, " +
		"glossy surfaces, geometric shapes, trendy graphics, " +
		"professional album artwork, high detail, 8k resolution",
	"hip hop": "Album cover for '%s' by %s, " +
		"urban hip hop style, street art aesthetic, " +
		"gold and black color scheme, luxury items, " +
		"graffiti elements, professional album artwork, " +
		"high detail, 8k resolution",
	"jazz": "Album cover for '%s' by %s, " +
		"sophisticated jazz aesthetic, art deco style, " +
		"warm sepia tones, vinyl record texture, " +
		"smoke effects, professional album artwork, " +
		"high detail, 8k resolution",
	"classical": "Album cover for '%s' by %s, " +
		"elegant classical aesthetic, minimalist design, " +
		"black and gold color scheme, orchestral elements, " +
		"professional album artwork, high detail, 8k resolution",
}

var genreContext = map[string]string{
	"electronic": "futuristic, high-tech, cyberpunk aesthetic",
	"rock":       "edgy, high contrast, dramatic",
	"pop":        "colorful, vibrant, energetic",
	"hip hop":    "urban, street, luxury",
	"jazz":       "sophisticated, warm, moody",
	"classical":  "elegant, minimal, orchestral",
}

var qualityEnhancers = []string{
	"high quality", "detailed", "sharp focus", "professional",
	"masterpiece", "ultra-detailed", "intricate details",
	"HDR", "cinematic lighting", "dramatic composition",
}

// BuildPrompt assembles the generation prompt for a track. A non-empty
// custom prompt is enhanced with track context rather than replaced; without
// one the genre template drives the style, falling back to the pop template.
func BuildPrompt(title, artist, genre, customPrompt string) string {
	if strings.TrimSpace(customPrompt) != "" {
		return enhanceCustomPrompt(title, artist, genre, customPrompt)
	}

	g := strings.ToLower(strings.TrimSpace(genre))
	template, ok := genreTemplates[g]
	if !ok {
		template = genreTemplates["pop"]
	}
	prompt := fmt.Sprintf(template, title, artist)

	picks := rand.Perm(len(qualityEnhancers))[:4]
	for _, i := range picks {
		prompt += ", " + qualityEnhancers[i]
	}
	return prompt
}

func enhanceCustomPrompt(title, artist, genre, custom string) string {
	prompt := strings.TrimSpace(custom)

	if !strings.Contains(prompt, title) && !strings.Contains(prompt, artist) {
		prompt = fmt.Sprintf("Album cover for '%s' by %s, %s", title, artist, prompt)
	}

	g := strings.ToLower(strings.TrimSpace(genre))
	if ctx, ok := genreContext[g]; ok && !strings.Contains(strings.ToLower(prompt), ctx) {
		prompt = prompt + ", " + ctx
	}

	for _, term := range []string{"professional album artwork", "high quality", "detailed", "8k resolution"} {
		if !strings.Contains(strings.ToLower(prompt), term) {
			prompt = prompt + ", " + term
		}
	}
	return prompt
}

// NegativePromptFor combines the base negative prompt with the genre's, if
// one exists.
func NegativePromptFor(genre string) string {
	g := strings.ToLower(strings.TrimSpace(genre))
	if extra, ok := genreNegativePrompts[g]; ok {
		return baseNegativePrompt + ", " + extra
	}
	return baseNegativePrompt
}
