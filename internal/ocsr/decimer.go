// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ocsr recognizes chemical structures in figure images through an
// optical structure recognition service.
package ocsr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/zouly-group/tadf-workbench/internal/httputil"
	"github.com/zouly-group/tadf-workbench/pkg/types"
)

// DefaultThreshold separates ok from low_confidence predictions.
const DefaultThreshold = 0.7

// minEncodingLen is the shortest encoding accepted as a structure.
const minEncodingLen = 3

// Prediction is the recognition result for one image.
type Prediction struct {
	Encoding   string                `json:"encoding" yaml:"encoding"`
	Confidence float64               `json:"confidence" yaml:"confidence"`
	Status     types.StructureStatus `json:"status" yaml:"status"`
	Error      string                `json:"error,omitempty" yaml:"error,omitempty"`
}

// Recognizer predicts the structure drawn in an image file.
type Recognizer interface {
	Recognize(ctx context.Context, imagePath string) (Prediction, error)
}

// DecimerClient posts images to a DECIMER-style prediction endpoint that
// answers {"smiles": ..., "token_confidences": [...]}.
type DecimerClient struct {
	url       string
	apiKey    string
	threshold float64
	http      *http.Client
	policy    httputil.Policy
}

// NewDecimerClient returns a client for cfg.
func NewDecimerClient(cfg types.RecognitionConfig) *DecimerClient {
	threshold := cfg.ConfidenceThreshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &DecimerClient{
		url:       cfg.URL,
		apiKey:    cfg.APIKey,
		threshold: threshold,
		http:      httputil.NewClient(cfg.HTTPConfig),
		policy:    httputil.PolicyFrom(cfg.HTTPConfig),
	}
}

type decimerResponse struct {
	Smiles           string            `json:"smiles"`
	TokenConfidences []json.RawMessage `json:"token_confidences"`
}

// Recognize implements Recognizer. Transport and HTTP failures are errors;
// an answer that fails validation is a parse_failed prediction.
func (c *DecimerClient) Recognize(ctx context.Context, imagePath string) (Prediction, error) {
	image, err := os.ReadFile(imagePath)
	if err != nil {
		return Prediction{}, fmt.Errorf("reading image: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", filepath.Base(imagePath))
	if err != nil {
		return Prediction{}, err
	}
	if _, err := part.Write(image); err != nil {
		return Prediction{}, err
	}
	if err := mw.Close(); err != nil {
		return Prediction{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body.Bytes()))
	if err != nil {
		return Prediction{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := httputil.DoWithRetry(ctx, c.http, req, c.policy)
	if err != nil {
		return Prediction{}, fmt.Errorf("calling recognizer: %w", err)
	}
	if err := httputil.CheckResponse(resp); err != nil {
		return Prediction{}, fmt.Errorf("calling recognizer: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Prediction{}, fmt.Errorf("reading recognizer response: %w", err)
	}
	var dr decimerResponse
	if err := json.Unmarshal(data, &dr); err != nil {
		return Prediction{}, fmt.Errorf("decoding recognizer response: %w", err)
	}

	p := Prediction{
		Encoding:   strings.TrimSpace(dr.Smiles),
		Confidence: meanConfidence(dr.TokenConfidences),
	}
	p.Status, p.Error = c.status(p)
	return p, nil
}

// status applies the validity check, then the confidence threshold.
func (c *DecimerClient) status(p Prediction) (types.StructureStatus, string) {
	switch {
	case p.Encoding == "":
		return types.StructureParseFailed, "empty encoding"
	case len(p.Encoding) < minEncodingLen:
		return types.StructureParseFailed, "encoding too short"
	case p.Confidence < c.threshold:
		return types.StructureLowConfidence, ""
	default:
		return types.StructureOK, ""
	}
}

// meanConfidence averages token confidences given either as numbers or as
// {"confidence": n} objects. No tokens means zero confidence.
func meanConfidence(tokens []json.RawMessage) float64 {
	if len(tokens) == 0 {
		return 0
	}
	var sum float64
	for _, raw := range tokens {
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			var obj struct {
				Confidence float64 `json:"confidence"`
			}
			if json.Unmarshal(raw, &obj) == nil {
				v = obj.Confidence
			}
		}
		sum += v
	}
	return sum / float64(len(tokens))
}
