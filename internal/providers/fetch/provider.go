package fetch

import (
	"context"
	"fmt"

	"github.com/GriffinCanCode/scriptbridge/internal/logging"
	"github.com/GriffinCanCode/scriptbridge/internal/types"
	"go.uber.org/zap"
)

// Provider exposes the client as the "http" host service
type Provider struct {
	client *Client
	logger *logging.Logger
}

// NewProvider wraps client as a service provider
func NewProvider(client *Client, logger *logging.Logger) *Provider {
	return &Provider{client: client, logger: logger.Named("fetch")}
}

// Client returns the underlying client
func (p *Provider) Client() *Client {
	return p.client
}

// Definition returns service metadata
func (p *Provider) Definition() types.Service {
	return types.Service{
		ID:           "http",
		Name:         "HTTP Service",
		Description:  "Outbound HTTP with retry, rate limiting and per-host circuit breakers",
		Category:     types.CategoryHTTP,
		Capabilities: []string{"requests", "retry", "rate-limiting", "circuit-breaker"},
		Tools: []types.Tool{
			{
				ID:          "http.request",
				Name:        "Request",
				Description: "Perform an HTTP request",
				Parameters: []types.Parameter{
					{Name: "url", Type: "string", Description: "http or https URL", Required: true},
					{Name: "options", Type: "object", Description: "method, headers, body, form, formData, timeout (ms)", Required: false},
				},
				Returns: "object",
			},
			{
				ID:          "http.breakers",
				Name:        "Breaker States",
				Description: "Circuit state per upstream host",
				Parameters:  []types.Parameter{},
				Returns:     "object",
			},
		},
	}
}

// Execute runs a tool
func (p *Provider) Execute(ctx context.Context, toolID string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	switch toolID {
	case "http.request":
		return p.request(ctx, params, appCtx)
	case "http.breakers":
		states := p.client.Breakers()
		data := make(map[string]interface{}, len(states))
		for host, state := range states {
			data[host] = state
		}
		return types.Success(map[string]interface{}{"breakers": data})
	default:
		return types.Failure(fmt.Sprintf("unknown tool: %s", toolID))
	}
}

func (p *Provider) request(ctx context.Context, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	rawURL, err := types.GetString(params, "url", true)
	if err != nil {
		return types.Failure(err.Error())
	}

	req, err := ParseRequest(rawURL, types.GetMap(params, "options"))
	if err != nil {
		return types.Failure(err.Error())
	}

	resp, err := p.client.Do(ctx, req)
	if err != nil {
		logger := p.logger
		if appCtx.FromPlugin() {
			logger = logger.With(logging.Plugin(appCtx.PluginID, appCtx.SessionID)...)
		}
		logger.Debug("request failed", zap.String("url", rawURL), zap.Error(err))
		return types.Failure(err.Error())
	}

	return types.Success(resp.Map())
}
