package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
)

// GenerateImage asks the provider for one image and returns the URL it is
// hosted at. Provider URLs expire, so callers ingest them before keeping
// them.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	model := c.cfg.ImageModel
	if model == "" {
		model = "dall-e-3"
	}
	size := c.cfg.ImageSize
	if size == "" {
		size = "1024x1024"
	}

	keyState := c.getBestKey()
	if keyState == nil {
		return "", &ReplyError{Model: model, Err: fmt.Errorf("no API keys configured")}
	}
	client := c.getClient(keyState.Key)

	resp, err := client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          openai.ImageModel(model),
		N:              openai.Int(1),
		Size:           openai.ImageGenerateParamsSize(size),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatURL,
	})
	if err != nil {
		c.recordFailure(keyState)
		return "", &ReplyError{Model: model, Err: err}
	}
	if resp == nil || len(resp.Data) == 0 || resp.Data[0].URL == "" {
		c.recordFailure(keyState)
		return "", &ReplyError{Model: model, Err: fmt.Errorf("no image url in response")}
	}

	c.recordSuccess(keyState)
	return resp.Data[0].URL, nil
}
