package config

import (
	_ "embed"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/credit-cli/internal/model"
)

//go:embed providers.yaml
var providersYAML []byte

// DefaultProviders returns the embedded provider catalog.
func DefaultProviders() ([]model.ProviderSettings, error) {
	var list []model.ProviderSettings
	if err := yaml.Unmarshal(providersYAML, &list); err != nil {
		return nil, eris.Wrap(err, "config: parse provider catalog")
	}
	return list, nil
}
