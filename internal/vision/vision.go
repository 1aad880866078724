// Package vision is a client for the label-image vision model, including
// pre-request image resizing and lenient JSON repair of the model's output.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	apperrors "github.com/aerocristobal/label-verify/infrastructure/errors"
	"github.com/aerocristobal/label-verify/infrastructure/resilience"
	"github.com/aerocristobal/label-verify/internal/model"
)

const (
	maxDimension    = 1024
	resizeByteLimit = 800_000
	jpegQuality     = 85
	requestTimeout  = 30 * time.Second
	maxTokens       = 512
)

const prompt = "Analyze this beverage label image and extract the following fields as JSON: " +
	"brand_name, class_type (e.g. Wine, Distilled Spirits, Malt Beverage), " +
	"abv (alcohol by volume as a number), net_contents, " +
	"country_of_origin, government_warning. " +
	"Return ONLY valid JSON with these exact field names."

// Client calls a hosted vision model to extract structured label fields
// from a beverage label image.
type Client struct {
	http     *http.Client
	endpoint string
	apiKey   string
	breaker  *resilience.CircuitBreaker
}

// New constructs a vision-model client against endpoint, authenticated
// with a bearer token. Outbound calls are protected by a circuit breaker
// so a failing vision backend doesn't pile up worker retries against it.
func New(endpoint, apiKey string) *Client {
	return &Client{
		http:     &http.Client{Timeout: requestTimeout},
		endpoint: endpoint,
		apiKey:   apiKey,
		breaker:  resilience.New(resilience.StrictServiceCBConfig(nil)),
	}
}

type requestBody struct {
	Image     []byte `json:"image"`
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"max_tokens"`
}

type envelope struct {
	Result  *envelopeResult   `json:"result"`
	Success *bool             `json:"success"`
	Errors  []json.RawMessage `json:"errors"`
}

type envelopeResult struct {
	Description *string `json:"description"`
}

// rawFields is a lenient intermediate shape where ABV may arrive as a
// string (e.g. "13.5%").
type rawFields struct {
	BrandName         string `json:"brand_name"`
	ClassType         string `json:"class_type"`
	ABV               string `json:"abv"`
	NetContents       string `json:"net_contents"`
	CountryOfOrigin   string `json:"country_of_origin"`
	GovernmentWarning string `json:"government_warning"`
}

// Extract resizes imageBytes if necessary, sends it to the vision model,
// and parses the result into structured label fields.
func (c *Client) Extract(ctx context.Context, imageBytes []byte) (*model.ExtractedLabelFields, error) {
	resized, err := resizeIfNeeded(imageBytes)
	if err != nil {
		return nil, apperrors.VisionImageProcessingError(err)
	}

	body, err := json.Marshal(requestBody{Image: resized, Prompt: prompt, MaxTokens: maxTokens})
	if err != nil {
		return nil, apperrors.VisionImageProcessingError(err)
	}

	respBody, err := c.doRequest(ctx, body)
	if err != nil {
		return nil, apperrors.VisionHTTPError(err)
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, apperrors.VisionAPIError("failed to parse vision model envelope: " + err.Error())
	}
	if env.Success != nil && !*env.Success {
		return nil, apperrors.VisionAPIError("vision model reported failure")
	}
	if env.Result == nil || env.Result.Description == nil {
		return nil, apperrors.VisionAPIError("vision model response missing description")
	}

	return parseDescription(*env.Result.Description)
}

// doRequest performs the vision model round trip under a circuit breaker
// and exponential backoff, since outbound calls to the hosted model are
// the least reliable leg of extraction.
func (c *Client) doRequest(ctx context.Context, body []byte) ([]byte, error) {
	var respBody []byte

	breakerErr := c.breaker.Execute(ctx, func() error {
		return resilience.Retry(ctx, resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 50 * time.Millisecond,
			MaxDelay:     500 * time.Millisecond,
			Multiplier:   2.0,
			Jitter:       0.2,
		}, func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+c.apiKey)

			resp, err := c.http.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			read, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return errStatus{resp.StatusCode}
			}
			respBody = read
			return nil
		})
	})
	if breakerErr != nil {
		return nil, breakerErr
	}
	return respBody, nil
}

type errStatus struct{ code int }

func (e errStatus) Error() string { return "vision model returned HTTP " + strconv.Itoa(e.code) }

// parseDescription repairs common LLM formatting quirks (markdown-escaped
// underscores, a trailing "%" on abv) before decoding structured fields.
func parseDescription(description string) (*model.ExtractedLabelFields, error) {
	cleaned := strings.TrimSpace(strings.ReplaceAll(description, `\_`, "_"))

	var raw rawFields
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, apperrors.VisionParseError(err)
	}

	abvStr := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw.ABV), "%"))
	abv, err := strconv.ParseFloat(abvStr, 64)
	if err != nil {
		abv = 0.0
	}

	return &model.ExtractedLabelFields{
		BrandName:         raw.BrandName,
		ClassType:         raw.ClassType,
		ABV:               abv,
		NetContents:       raw.NetContents,
		CountryOfOrigin:   raw.CountryOfOrigin,
		GovernmentWarning: raw.GovernmentWarning,
	}, nil
}

// resizeIfNeeded downscales an image whose longest side exceeds
// maxDimension or whose encoded size is at or above resizeByteLimit, using
// Lanczos-3 resampling, and re-encodes it as JPEG. Images that already fit
// pass through unchanged.
func resizeIfNeeded(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	longest := bounds.Dx()
	if bounds.Dy() > longest {
		longest = bounds.Dy()
	}
	if longest <= maxDimension && len(data) < resizeByteLimit {
		return data, nil
	}

	var newW, newH int
	if bounds.Dx() >= bounds.Dy() {
		newW = maxDimension
		newH = int(float64(bounds.Dy()) * float64(maxDimension) / float64(bounds.Dx()))
	} else {
		newH = maxDimension
		newW = int(float64(bounds.Dx()) * float64(maxDimension) / float64(bounds.Dy()))
	}

	resized := imaging.Resize(img, newW, newH, imaging.Lanczos)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, resized, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
