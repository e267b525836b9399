// Package search provides the web search backends used by the research agent.
//
// Available providers:
//
//   - DuckDuckGo: free, no API key required (scrapes lite.duckduckgo.com)
//   - Brave: requires an API key sent as X-Subscription-Token
//   - Tavily: requires an API key, supports basic/advanced depth
//
// Providers return structured results; Render turns them into the raw text
// block handed to the summarization model.
//
//	provider, err := search.New(cfg)
//	results, err := provider.Search(ctx, "golang web frameworks")
//	raw := search.Render(results)
package search
