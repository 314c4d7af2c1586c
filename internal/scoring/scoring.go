// Package scoring implements the rule-based credit risk score. Score is a
// pure function: the same input and clock always yield the same result and
// the same reasons ledger.
package scoring

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/credit-cli/internal/model"
)

const baseScore = 50

// Input is everything the score depends on.
type Input struct {
	Profile         model.Profile
	Litigation      model.LitigationSummary
	Reputation      model.ReputationSignal
	RequestedAmount float64
	// DeclaredCapital overrides the profile's share capital when non-empty.
	DeclaredCapital string
}

// ledger accumulates the running score and the reasons in rule order.
type ledger struct {
	score   int
	reasons []model.Reason
}

func (l *ledger) add(m model.Marker, delta int, msg string) {
	l.score += delta
	l.reasons = append(l.reasons, model.Reason{Marker: m, Message: msg, Delta: delta})
}

var printer = message.NewPrinter(language.BrazilianPortuguese)

// Score evaluates the rules in fixed order against now's calendar year.
func Score(in Input, now time.Time) model.ScoreResult {
	l := &ledger{score: baseScore}

	registrationStatus(l, in.Profile.String(model.FieldRegistrationStatus))
	companyAge(l, in.Profile.String(model.FieldFoundedOn), now.Year())
	capitalAdequacy(l, capitalText(in), in.RequestedAmount)
	sizeTier(l, in.Profile.String(model.FieldSizeTier))
	litigation(l, in.Litigation.Count)
	reputation(l, in.Reputation)

	score := min(max(l.score, 0), 100)
	tier := TierFor(score)
	mult := MultiplierFor(score)

	return model.ScoreResult{
		Score:           score,
		Tier:            tier,
		Color:           tier.Color(),
		SuggestedAmount: SuggestedAmount(in.RequestedAmount, mult),
		Multiplier:      mult,
		Reasons:         l.reasons,
	}
}

func registrationStatus(l *ledger, status string) {
	if isActive(status) {
		l.add(model.MarkerPositive, 15, "Empresa ativa na Receita Federal")
		return
	}
	shown := strings.TrimSpace(status)
	if shown == "" {
		shown = "não informada"
	}
	l.add(model.MarkerNegative, -25, "Situação cadastral irregular: "+shown)
}

func companyAge(l *ledger, foundedOn string, year int) {
	foundedOn = strings.TrimSpace(foundedOn)
	if len(foundedOn) < 4 {
		return
	}
	founded, err := strconv.Atoi(foundedOn[:4])
	if err != nil {
		return
	}
	age := year - founded
	switch {
	case age >= 10:
		l.add(model.MarkerPositive, 15, fmt.Sprintf("Empresa com %d anos de atividade", age))
	case age >= 5:
		l.add(model.MarkerNeutral, 8, fmt.Sprintf("Empresa com %d anos de atividade", age))
	case age < 2:
		l.add(model.MarkerNegative, -10, fmt.Sprintf("Empresa jovem (%d anos)", age))
	}
}

func capitalText(in Input) string {
	if strings.TrimSpace(in.DeclaredCapital) != "" {
		return in.DeclaredCapital
	}
	switch v := in.Profile[model.FieldShareCapital].(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		return v
	default:
		return ""
	}
}

func capitalAdequacy(l *ledger, raw string, requested float64) {
	capital, ok := ParseCapital(raw)
	if !ok || !capital.IsPositive() || requested <= 0 {
		return
	}
	ratio := capital.Div(decimal.NewFromFloat(requested))
	switch {
	case ratio.GreaterThanOrEqual(decimal.NewFromInt(2)):
		l.add(model.MarkerPositive, 12, printer.Sprintf("Capital social (%.2f) sólido vs valor solicitado", capital.InexactFloat64()))
	case ratio.GreaterThanOrEqual(decimal.NewFromFloat(0.5)):
		l.add(model.MarkerNeutral, 5, "Capital social adequado em relação ao crédito")
	default:
		l.add(model.MarkerNegative, -8, "Capital social baixo para o crédito solicitado")
	}
}

func sizeTier(l *ledger, porte string) {
	switch classifySize(porte) {
	case sizeLarge:
		l.add(model.MarkerPositive, 10, "Grande empresa")
	case sizeMedium:
		l.add(model.MarkerNeutral, 5, "Empresa de médio porte")
	case sizeMicro:
		l.add(model.MarkerNeutral, -3, "Microempresa/MEI")
	}
}

func litigation(l *ledger, count int) {
	switch {
	case count > 10:
		l.add(model.MarkerNegative, -20, fmt.Sprintf("%d processos judiciais encontrados", count))
	case count > 3:
		l.add(model.MarkerNeutral, -10, fmt.Sprintf("%d processos judiciais encontrados", count))
	case count > 0:
		l.add(model.MarkerNeutral, -3, fmt.Sprintf("%d processo(s) judicial(is) encontrado(s)", count))
	default:
		l.add(model.MarkerPositive, 8, "Nenhum processo judicial identificado")
	}
}

func reputation(l *ledger, sig model.ReputationSignal) {
	if sig.Controversies {
		l.add(model.MarkerNegative, -10, "Controvérsias identificadas nas redes sociais")
	}
}

// TierFor maps a clamped score to its risk tier.
func TierFor(score int) model.Tier {
	switch {
	case score >= 75:
		return model.TierLow
	case score >= 50:
		return model.TierMedium
	case score >= 30:
		return model.TierHigh
	default:
		return model.TierVeryHigh
	}
}

// MultiplierFor maps a clamped score to the suggested-amount multiplier.
func MultiplierFor(score int) float64 {
	switch {
	case score >= 75:
		return 1.00
	case score >= 60:
		return 0.80
	case score >= 45:
		return 0.50
	case score >= 30:
		return 0.25
	default:
		return 0.00
	}
}

// SuggestedAmount is requested × multiplier rounded half away from zero to
// cents. Non-positive requests suggest nothing.
func SuggestedAmount(requested, multiplier float64) float64 {
	if requested <= 0 {
		return 0
	}
	return decimal.NewFromFloat(requested).Mul(decimal.NewFromFloat(multiplier)).Round(2).InexactFloat64()
}
