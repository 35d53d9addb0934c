package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/oshokin/catpoint/internal/logger"
)

// catLabel is the label name that marks a cat.
const catLabel = "cat"

// errUnexpectedStatus is returned when the labelling service answers with a non-2xx status.
var errUnexpectedStatus = errors.New("unexpected classifier response status")

// Label is one detection returned by the labelling service.
type Label struct {
	// Name is the detected object name, e.g. "Cat".
	Name string `json:"name"`
	// Confidence is the detection confidence in percent.
	Confidence float32 `json:"confidence"`
}

// labelsResponse is the body returned by the labelling service.
type labelsResponse struct {
	// Labels are the detections found in the frame.
	Labels []Label `json:"labels"`
}

// HTTP posts frames to a remote labelling service.
//
// The request body is the raw image with the minimum confidence passed as the
// min_confidence query parameter; the response is {"labels":[{"name","confidence"}]}.
type HTTP struct {
	// client is the configured resty client.
	client *resty.Client
	// endpoint is the URL frames are posted to.
	endpoint string
}

// NewHTTP creates an HTTP classifier for endpoint with the given request timeout.
func NewHTTP(endpoint string, timeout time.Duration) *HTTP {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(time.Second).
		SetHeader("Accept", "application/json")

	return &HTTP{
		client:   client,
		endpoint: endpoint,
	}
}

// ContainsCat posts the image and looks for a cat label at or above the threshold.
func (h *HTTP) ContainsCat(ctx context.Context, image []byte, confidenceThreshold float32) (bool, error) {
	if len(image) == 0 {
		return false, ErrEmptyImage
	}

	var result labelsResponse

	resp, err := h.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/octet-stream").
		SetQueryParam("min_confidence", fmt.Sprintf("%.2f", confidenceThreshold)).
		SetBody(image).
		SetResult(&result).
		Post(h.endpoint)
	if err != nil {
		return false, fmt.Errorf("call classifier: %w", err)
	}

	if resp.IsError() {
		return false, fmt.Errorf("%w: %d", errUnexpectedStatus, resp.StatusCode())
	}

	for _, label := range result.Labels {
		if strings.EqualFold(label.Name, catLabel) && label.Confidence >= confidenceThreshold {
			logger.DebugKV(ctx, "Cat label found", "confidence", label.Confidence)

			return true, nil
		}
	}

	return false, nil
}
