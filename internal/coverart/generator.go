package coverart

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"

	"github.com/hashicorp/go-hclog"

	"github.com/djpapzin/papzincrew/internal/config"
)

// Generator calls the Pollinations image API. No API key is required; the
// service renders the prompt encoded into the request path.
type Generator struct {
	baseURL string
	width   int
	height  int
	client  *http.Client
	logger  hclog.Logger
}

func NewGenerator(cfg *config.CoverArtConfig, logger hclog.Logger) *Generator {
	return &Generator{
		baseURL: cfg.GeneratorURL,
		width:   cfg.GeneratorWidth,
		height:  cfg.GeneratorHeight,
		client:  &http.Client{Timeout: cfg.RequestTimeout},
		logger:  logger.Named("art-generator"),
	}
}

// Generate renders one cover image for the prompt and returns the raw image
// bytes. The negative prompt keeps generation artifacts out of the result.
func (g *Generator) Generate(ctx context.Context, prompt, negativePrompt string) ([]byte, error) {
	seed := rand.Intn(1000000)

	params := url.Values{}
	params.Set("width", fmt.Sprintf("%d", g.width))
	params.Set("height", fmt.Sprintf("%d", g.height))
	params.Set("model", "flux")
	params.Set("seed", fmt.Sprintf("%d", seed))
	params.Set("nologo", "yes")
	params.Set("negative_prompt", negativePrompt)

	requestURL := fmt.Sprintf("%s/%s?%s", g.baseURL, url.PathEscape(prompt), params.Encode())

	g.logger.Debug("requesting cover art", "seed", seed, "prompt", prompt)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build generation request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cover art request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cover art service returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read generated image: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("cover art service returned empty image")
	}

	g.logger.Info("generated cover art", "bytes", len(data), "seed", seed)
	return data, nil
}
