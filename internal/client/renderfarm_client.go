package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/reelcut/api/internal/config"
)

// RenderFarm defines the remote render service operations
type RenderFarm interface {
	ListFunctions(ctx context.Context, region string) ([]FunctionInfo, error)
	DeployFunction(ctx context.Context, req *DeployFunctionRequest) (*FunctionInfo, error)
	DeploySite(ctx context.Context, req *DeploySiteRequest) (*SiteInfo, error)
	RenderVideo(ctx context.Context, req *RenderVideoRequest) (*RenderVideoResponse, error)
	GetRenderProgress(ctx context.Context, req *RenderProgressRequest) (*RenderProgress, error)
}

// RenderCanceler is implemented by farms that can stop a render server-side
type RenderCanceler interface {
	CancelRender(ctx context.Context, req *RenderProgressRequest) error
}

// FunctionInfo describes a deployed render function
type FunctionInfo struct {
	FunctionName     string `json:"functionName"`
	Version          string `json:"version,omitempty"`
	MemorySizeInMb   int    `json:"memorySizeInMb,omitempty"`
	TimeoutInSeconds int    `json:"timeoutInSeconds,omitempty"`
}

// DeployFunctionRequest deploys a render function with fixed resources
type DeployFunctionRequest struct {
	Region           string `json:"region"`
	TimeoutInSeconds int    `json:"timeoutInSeconds"`
	MemorySizeInMb   int    `json:"memorySizeInMb"`
}

// DeploySiteRequest publishes the composition bundle
type DeploySiteRequest struct {
	EntryPoint string `json:"entryPoint"`
	SiteName   string `json:"siteName"`
	Region     string `json:"region"`
}

// SiteInfo is a published composition bundle
type SiteInfo struct {
	ServeURL   string `json:"serveUrl"`
	SiteName   string `json:"siteName,omitempty"`
	BucketName string `json:"bucketName,omitempty"`
}

// RenderVideoRequest submits a render
type RenderVideoRequest struct {
	ServeURL        string          `json:"serveUrl"`
	CompositionID   string          `json:"composition"`
	InputProps      json.RawMessage `json:"inputProps"`
	Codec           string          `json:"codec"`
	ImageFormat     string          `json:"imageFormat"`
	JpegQuality     int             `json:"jpegQuality,omitempty"`
	CRF             int             `json:"crf,omitempty"`
	MaxRetries      int             `json:"maxRetries"`
	FramesPerLambda int             `json:"framesPerLambda"`
	Privacy         string          `json:"privacy"`
	Region          string          `json:"region"`
	FunctionName    string          `json:"functionName"`
	OutName         string          `json:"outName,omitempty"`
}

// RenderVideoResponse identifies a submitted render
type RenderVideoResponse struct {
	RenderID   string `json:"renderId"`
	BucketName string `json:"bucketName"`
}

// RenderProgressRequest addresses a submitted render
type RenderProgressRequest struct {
	RenderID     string `json:"renderId"`
	BucketName   string `json:"bucketName"`
	FunctionName string `json:"functionName"`
	Region       string `json:"region"`
}

// RenderProgress is one progress observation
type RenderProgress struct {
	Done                  bool     `json:"done"`
	FatalErrorEncountered bool     `json:"fatalErrorEncountered"`
	Errors                []string `json:"errors"`
	OverallProgress       *float64 `json:"overallProgress,omitempty"`
	TimeToFinish          *float64 `json:"timeToFinish,omitempty"` // milliseconds
	OutputFile            string   `json:"outputFile,omitempty"`
}

// RenderFarmClient implements RenderFarm over HTTP
type RenderFarmClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     hclog.Logger
}

// NewRenderFarmClient creates a new render farm API client
func NewRenderFarmClient(cfg *config.FarmConfig, logger hclog.Logger) *RenderFarmClient {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &RenderFarmClient{
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		logger:  logger.Named("farm"),
	}
}

// ListFunctions returns the render functions deployed in region
func (c *RenderFarmClient) ListFunctions(ctx context.Context, region string) ([]FunctionInfo, error) {
	var result struct {
		Functions []FunctionInfo `json:"functions"`
	}
	endpoint := "/v1/functions?region=" + url.QueryEscape(region)
	if err := c.get(ctx, endpoint, &result); err != nil {
		return nil, err
	}
	return result.Functions, nil
}

// DeployFunction deploys a new render function
func (c *RenderFarmClient) DeployFunction(ctx context.Context, req *DeployFunctionRequest) (*FunctionInfo, error) {
	var result FunctionInfo
	if err := c.post(ctx, "/v1/functions", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DeploySite publishes the composition bundle
func (c *RenderFarmClient) DeploySite(ctx context.Context, req *DeploySiteRequest) (*SiteInfo, error) {
	var result SiteInfo
	if err := c.post(ctx, "/v1/sites", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RenderVideo submits a render job
func (c *RenderFarmClient) RenderVideo(ctx context.Context, req *RenderVideoRequest) (*RenderVideoResponse, error) {
	var result RenderVideoResponse
	if err := c.post(ctx, "/v1/renders", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetRenderProgress retrieves the progress of a render job
func (c *RenderFarmClient) GetRenderProgress(ctx context.Context, req *RenderProgressRequest) (*RenderProgress, error) {
	endpoint := fmt.Sprintf("/v1/renders/%s/progress", url.PathEscape(req.RenderID))
	var result RenderProgress
	if err := c.post(ctx, endpoint, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CancelRender asks the farm to stop a render job
func (c *RenderFarmClient) CancelRender(ctx context.Context, req *RenderProgressRequest) error {
	endpoint := fmt.Sprintf("/v1/renders/%s/cancel", url.PathEscape(req.RenderID))
	return c.post(ctx, endpoint, req, nil)
}

// IsConfigured returns true if the client has valid configuration
func (c *RenderFarmClient) IsConfigured() bool {
	return c.baseURL != "" && c.apiKey != ""
}

// post sends a POST request with JSON body
func (c *RenderFarmClient) post(ctx context.Context, endpoint string, body interface{}, result interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(req, result)
}

// get sends a GET request and parses JSON response
func (c *RenderFarmClient) get(ctx context.Context, endpoint string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(req, result)
}

// doRequest executes an HTTP request and parses the response
func (c *RenderFarmClient) doRequest(req *http.Request, result interface{}) error {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.logger.Debug("request", "method", req.Method, "url", req.URL.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("request failed", "method", req.Method, "url", req.URL.String(), "error", err)
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Trace("response", "status", resp.StatusCode, "method", req.Method, "url", req.URL.String(), "body", string(respBody))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if result == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		c.logger.Warn("unmarshal error", "method", req.Method, "url", req.URL.String(), "error", err)
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}

// APIError is a non-2xx answer from the render farm
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("render farm API error (status %d): %s", e.StatusCode, e.Body)
}
