// Package reputation provides the public-reputation signal. Social networks
// are not scraped; the signal is a fixed placeholder.
package reputation

import (
	"context"

	"github.com/sells-group/credit-cli/internal/model"
)

// PlaceholderNote is attached to every placeholder signal.
const PlaceholderNote = "Análise de redes sociais requer configuração de scraping adicional."

// Stub returns the placeholder signal for every company.
type Stub struct{}

// Assess returns the placeholder signal.
func (Stub) Assess(_ context.Context, _ model.Profile) model.ReputationSignal {
	return model.ReputationSignal{Note: PlaceholderNote}
}
