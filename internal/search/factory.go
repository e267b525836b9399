package search

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/Chative-core-poc-v1/researcher/internal/agent/model"
	errx "github.com/Chative-core-poc-v1/researcher/internal/core/error"
)

// Provider names accepted by New.
const (
	ProviderDuckDuckGo = "duckduckgo"
	ProviderBrave      = "brave"
	ProviderTavily     = "tavily"
)

// New builds the provider selected by cfg.
func New(cfg model.SearchConfig) (Provider, error) {
	client := &http.Client{Timeout: cfg.Timeout}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderDuckDuckGo:
		return NewDuckDuckGo(client), nil
	case ProviderBrave:
		if cfg.APIKey == "" {
			return nil, errx.WrapConfig(fmt.Errorf("search provider %q requires SEARCH_API_KEY", cfg.Provider))
		}
		return NewBrave(cfg.APIKey, client), nil
	case ProviderTavily:
		if cfg.APIKey == "" {
			return nil, errx.WrapConfig(fmt.Errorf("search provider %q requires SEARCH_API_KEY", cfg.Provider))
		}
		return NewTavily(cfg.APIKey, cfg.TavilyDepth, client), nil
	default:
		return nil, errx.WrapConfig(fmt.Errorf("unknown search provider %q", cfg.Provider))
	}
}
