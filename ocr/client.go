// Package ocr consumes an external text-recognition capability and turns
// recognized note text into provisional task drafts.
package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/angelluvianoolivares/SmartTaskManager/domain"
)

// Recognizer extracts full text from image bytes.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte, languageHint string) (string, error)
}

// VisionClient talks to a Vision-style images:annotate endpoint. Requests
// carry the base64 image and a language hint; responses carry the recognized
// full text or an error description.
type VisionClient struct {
	endpoint string
	apiKey   string
	httpc    *http.Client
}

func NewVisionClient(endpoint, apiKey string) *VisionClient {
	return &VisionClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpc:    &http.Client{Timeout: 30 * time.Second},
	}
}

type annotateRequest struct {
	Requests []annotateEntry `json:"requests"`
}

type annotateEntry struct {
	Image        annotateImage     `json:"image"`
	Features     []annotateFeature `json:"features"`
	ImageContext imageContext      `json:"imageContext"`
}

type annotateImage struct {
	Content string `json:"content"`
}

type annotateFeature struct {
	Type       string `json:"type"`
	MaxResults int    `json:"maxResults"`
}

type imageContext struct {
	LanguageHints []string `json:"languageHints,omitempty"`
}

type annotateResponse struct {
	Responses []struct {
		FullTextAnnotation *struct {
			Text string `json:"text"`
		} `json:"fullTextAnnotation"`
	} `json:"responses"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *VisionClient) Recognize(ctx context.Context, image []byte, languageHint string) (string, error) {
	entry := annotateEntry{
		Image:    annotateImage{Content: base64.StdEncoding.EncodeToString(image)},
		Features: []annotateFeature{{Type: "DOCUMENT_TEXT_DETECTION", MaxResults: 1}},
	}
	if languageHint != "" {
		entry.ImageContext.LanguageHints = []string{languageHint}
	}

	payload, err := json.Marshal(annotateRequest{Requests: []annotateEntry{entry}})
	if err != nil {
		return "", err
	}

	url := c.endpoint
	if c.apiKey != "" {
		url += "?key=" + c.apiKey
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result annotateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if result.Error != nil {
		return "", fmt.Errorf("text recognition rejected: %s", result.Error.Message)
	}
	if len(result.Responses) == 0 || result.Responses[0].FullTextAnnotation == nil {
		return "", nil
	}
	return result.Responses[0].FullTextAnnotation.Text, nil
}

// Extractor turns a photographed note into a task draft. It never fails:
// recognition errors and unusable text resolve to best-effort defaults, and
// the draft is always confirmed by the user before becoming a task.
type Extractor struct {
	rec    Recognizer
	logger *log.Logger
}

func NewExtractor(rec Recognizer, logger *log.Logger) *Extractor {
	if rec == nil {
		panic("ocr.NewExtractor: recognizer is required")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Extractor{rec: rec, logger: logger}
}

func (e *Extractor) ExtractTask(ctx context.Context, image []byte, languageHint, folder string) domain.TaskDraft {
	text, err := e.rec.Recognize(ctx, image, languageHint)
	if err != nil {
		e.logger.WithError(err).Warn("text recognition failed, falling back to defaults")
		text = ""
	}
	return domain.ExtractDraft(text, folder)
}
