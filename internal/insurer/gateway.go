package insurer

import (
	"sync"

	"github.com/jwalitptl/claims-api/internal/model"
)

// Gateway picks the client for a provider from its integration setting.
// Live clients are kept per provider so breaker state survives between calls.
type Gateway struct {
	sandbox Client
	cfg     HTTPConfig

	mu   sync.Mutex
	live map[string]*liveEntry
}

type liveEntry struct {
	baseURL string
	apiKey  string
	client  *HTTPClient
}

// NewGateway uses cfg for everything but BaseURL and APIKey, which come from settings.
func NewGateway(sandbox Client, cfg HTTPConfig) *Gateway {
	return &Gateway{
		sandbox: sandbox,
		cfg:     cfg,
		live:    make(map[string]*liveEntry),
	}
}

// Client resolves a setting whose API key is already decrypted. A nil setting
// means the provider was never configured.
func (g *Gateway) Client(setting *model.IntegrationSetting) (Client, error) {
	if setting == nil || !setting.Enabled {
		return nil, ErrIntegrationDisabled
	}

	switch setting.Environment {
	case model.EnvironmentLive:
		if setting.BaseURL == "" {
			return nil, ErrNotConnected
		}
		return g.liveClient(setting), nil
	default:
		return g.sandbox, nil
	}
}

func (g *Gateway) liveClient(setting *model.IntegrationSetting) *HTTPClient {
	g.mu.Lock()
	defer g.mu.Unlock()

	if e, ok := g.live[setting.Provider]; ok && e.baseURL == setting.BaseURL && e.apiKey == setting.APIKey {
		return e.client
	}

	cfg := g.cfg
	cfg.BaseURL = setting.BaseURL
	cfg.APIKey = setting.APIKey
	client := NewHTTPClient(setting.Provider, cfg)
	g.live[setting.Provider] = &liveEntry{baseURL: setting.BaseURL, apiKey: setting.APIKey, client: client}
	return client
}
