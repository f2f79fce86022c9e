package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"practicelab/internal/dataset/model"
	pkgerrors "practicelab/pkg/errors"
)

const defaultHTTPTimeout = 5 * time.Second

// HTTPConfig configures the content-service fetcher.
type HTTPConfig struct {
	BaseURL string        `yaml:"baseURL"`
	Timeout time.Duration `yaml:"timeout"`
	// Token is sent as a bearer token when set.
	Token string `yaml:"token"`
}

// HTTP fetches GET <base>/questions/{id}/dataset.
type HTTP struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHTTP(cfg HTTPConfig) (*HTTP, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("baseURL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHTTPTimeout
	}
	return &HTTP{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		client:  &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (h *HTTP) Fetch(ctx context.Context, questionID string) (any, error) {
	endpoint := fmt.Sprintf("%s/questions/%s/dataset", h.baseURL, url.PathEscape(questionID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request failed: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, pkgerrors.DatasetFetchFailed, "Fetching dataset for question %s failed", questionID)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, pkgerrors.Newf(pkgerrors.DatasetFetchFailed, "Fetching dataset for question %s returned status %d", questionID, resp.StatusCode)
	}
	body, err := readPayload(resp.Body)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.DatasetFetchFailed)
	}
	v, err := decodePayload(body)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.DatasetDecodeFailed)
	}
	return unwrapEnvelope(v), nil
}

// unwrapEnvelope returns data from a {code, message, data} response envelope.
func unwrapEnvelope(v any) any {
	obj, ok := v.(*model.Object)
	if !ok {
		return v
	}
	if _, hasCode := obj.Get("code"); !hasCode {
		return v
	}
	if data, ok := obj.Get("data"); ok {
		return data
	}
	return v
}
