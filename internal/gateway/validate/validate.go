// Package validate rejects requests that would turn the gateway into an open
// relay. Upstream hosts and model families are allowlisted, and the provider
// implied by the endpoint must match the credential being used.
package validate

import (
	"net/url"
	"strings"

	"github.com/costpilot/gateway/internal/gateway/apierr"
)

// providerHosts maps allowlisted upstream hosts to their provider name.
var providerHosts = map[string]string{
	"api.openai.com":                    "openai",
	"api.anthropic.com":                 "anthropic",
	"generativelanguage.googleapis.com": "google",
}

// modelFamilies are the accepted model name prefixes.
var modelFamilies = []string{"gpt-", "o1-", "claude-", "gemini-"}

// Endpoint parses a caller-supplied upstream URL and returns the provider it
// resolves to. The host must exactly match an allowlisted provider host.
func Endpoint(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", apierr.InvalidEndpoint("endpoint is not a valid URL")
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return "", apierr.InvalidEndpoint("endpoint must be an http(s) URL")
	}
	provider, ok := providerHosts[u.Hostname()]
	if !ok {
		return "", apierr.InvalidEndpoint("endpoint host is not an allowed provider")
	}
	return provider, nil
}

// Model checks the declared model against the family allowlist by prefix.
func Model(model string) error {
	for _, prefix := range modelFamilies {
		if strings.HasPrefix(model, prefix) {
			return nil
		}
	}
	return apierr.UnsupportedModel(model)
}

// ProviderMatch requires the endpoint's provider to equal the provider the
// credential is stored for.
func ProviderMatch(endpointProvider, credentialProvider string) error {
	if endpointProvider != credentialProvider {
		return apierr.ProviderMismatch(endpointProvider, credentialProvider)
	}
	return nil
}
