package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultHFInferenceURL = "https://router.huggingface.co/hf-inference/models"
	DefaultImageModel     = "black-forest-labs/FLUX.1-schnell"

	maxImageBytes = 32 << 20
)

var ErrNotAnImage = errors.New("response is not a decodable image")

// ToPNG decodes any registered image format and re-encodes it as PNG.
func ToPNG(raw []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAnImage, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// HuggingFaceImage calls a text-to-image model on the HF inference API. The
// response body is the encoded image.
type HuggingFaceImage struct {
	BaseURL string
	Token   string
	Model   string
	Client  *http.Client
}

func NewHuggingFaceImage(baseURL, token, model string) *HuggingFaceImage {
	if baseURL == "" {
		baseURL = DefaultHFInferenceURL
	}
	if model == "" {
		model = DefaultImageModel
	}
	return &HuggingFaceImage{
		BaseURL: baseURL,
		Token:   token,
		Model:   model,
		Client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (p *HuggingFaceImage) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	b, err := json.Marshal(map[string]string{"inputs": prompt})
	if err != nil {
		return nil, err
	}
	url := strings.TrimRight(p.BaseURL, "/") + "/" + strings.TrimLeft(p.Model, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "image/png")
	if p.Token != "" {
		req.Header.Set("Authorization", "Bearer "+p.Token)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus("huggingface", resp); err != nil {
		return nil, err
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, err
	}
	return ToPNG(raw)
}

// OpenAIImage generates through the OpenAI images endpoint with base64 output.
type OpenAIImage struct {
	client *openai.Client
	model  string
	size   string
}

func NewOpenAIImage(baseURL, apiKey, model string) *OpenAIImage {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.CreateImageModelDallE3
	}
	return &OpenAIImage{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		size:   openai.CreateImageSize1024x1024,
	}
}

func (p *OpenAIImage) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	resp, err := p.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          p.model,
		N:              1,
		Size:           p.size,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, ErrEmptyResponse
	}
	raw, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("decode b64 image: %w", err)
	}
	return ToPNG(raw)
}
