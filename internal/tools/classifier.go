package tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ClassifierTool calls a hosted Gradio prediction Space that labels a brain
// scan (notumor, meningioma, ...). The tool takes a local image path, sends
// the image inline, and returns the predicted label.
type ClassifierTool struct {
	spaceID    string
	endpoint   string
	httpClient *http.Client
}

// ClassifierOption configures the ClassifierTool.
type ClassifierOption func(*ClassifierTool)

// WithSpaceID selects the hosted Space, e.g. "acme/Brain-Tumor-Classification".
func WithSpaceID(id string) ClassifierOption {
	return func(c *ClassifierTool) {
		c.spaceID = id
	}
}

// WithClassifierEndpoint overrides the derived Space URL. Used by tests.
func WithClassifierEndpoint(endpoint string) ClassifierOption {
	return func(c *ClassifierTool) {
		c.endpoint = endpoint
	}
}

// NewClassifierTool creates a classifier tool for the given Space.
func NewClassifierTool(opts ...ClassifierOption) *ClassifierTool {
	c := &ClassifierTool{
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.endpoint == "" && c.spaceID != "" {
		c.endpoint = spaceEndpoint(c.spaceID)
	}
	return c
}

// spaceEndpoint derives the hosted prediction URL from a Space id.
// "owner/Repo-Name" becomes "https://owner-repo-name.hf.space/run/predict".
func spaceEndpoint(spaceID string) string {
	sub := strings.ToLower(strings.ReplaceAll(spaceID, "/", "-"))
	return fmt.Sprintf("https://%s.hf.space/run/predict", sub)
}

func (c *ClassifierTool) Name() ToolType { return ToolBrainTumor }

func (c *ClassifierTool) Validate(req *Request) error {
	if req.Tool != ToolBrainTumor {
		return fmt.Errorf("wrong tool type: expected %s, got %s", ToolBrainTumor, req.Tool)
	}
	if strings.TrimSpace(req.Input) == "" {
		return fmt.Errorf("image path cannot be empty")
	}
	if c.endpoint == "" {
		return fmt.Errorf("classifier space not configured")
	}
	return nil
}

func (c *ClassifierTool) Execute(ctx context.Context, req *Request) (*Result, error) {
	start := time.Now()
	path := strings.TrimSpace(req.Input)

	data, err := os.ReadFile(path)
	if err != nil {
		return &Result{
			Tool:     ToolBrainTumor,
			Success:  false,
			Error:    fmt.Sprintf("read image: %v", err),
			Duration: time.Since(start),
		}, fmt.Errorf("read image: %w", err)
	}

	label, err := c.predict(ctx, data)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("classifier call failed")
		return &Result{
			Tool:     ToolBrainTumor,
			Success:  false,
			Error:    fmt.Sprintf("predict: %v", err),
			Duration: time.Since(start),
		}, err
	}

	log.Info().Str("label", label).Dur("took", time.Since(start)).Msg("classifier prediction")

	return &Result{
		Tool:     ToolBrainTumor,
		Success:  true,
		Output:   fmt.Sprintf("The classifier predicts: %s", label),
		Duration: time.Since(start),
		Metadata: map[string]interface{}{"label": label},
	}, nil
}

// Gradio prediction API types.
type gradioPredictRequest struct {
	Data []string `json:"data"`
}

type gradioPredictResponse struct {
	Data []json.RawMessage `json:"data"`
}

func (c *ClassifierTool) predict(ctx context.Context, image []byte) (string, error) {
	payload := gradioPredictRequest{
		Data: []string{"data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image)},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, strings.NewReader(string(body)))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("api call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("api returned status %d", resp.StatusCode)
	}

	var predictResp gradioPredictResponse
	if err := json.NewDecoder(resp.Body).Decode(&predictResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(predictResp.Data) == 0 {
		return "", fmt.Errorf("empty prediction")
	}

	// The first output is the label, either as a bare string or as a
	// Gradio label object with a "label" field.
	var label string
	if err := json.Unmarshal(predictResp.Data[0], &label); err == nil {
		return label, nil
	}
	var labelObj struct {
		Label string `json:"label"`
	}
	if err := json.Unmarshal(predictResp.Data[0], &labelObj); err == nil && labelObj.Label != "" {
		return labelObj.Label, nil
	}
	return "", fmt.Errorf("unrecognized prediction payload")
}
