package narrative

import (
	"encoding/json"
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/credit-cli/internal/model"
)

// Rune caps for the prompt sections.
const (
	maxProfileRunes    = 3000
	maxLitigationRunes = 1000
	maxResearchRunes   = 2000
)

const analystPersona = "Você é um analista de crédito sênior especializado em empresas brasileiras."

const researchPersona = "Você é um pesquisador financeiro. Busque e resuma informações relevantes sobre empresas brasileiras. Seja objetivo e cite fontes."

const promptTemplate = `Você é um analista de crédito sênior especializado em empresas brasileiras.

Com base nos dados abaixo, faça uma análise detalhada e profissional:

DADOS DA EMPRESA:
%s

PROCESSOS JUDICIAIS:
%s

PESQUISA WEB / REPUTAÇÃO:
%s

SCORE CALCULADO: %d/100 — Risco: %s
VALOR SUGERIDO: R$ %s

Forneça obrigatoriamente cada uma das seções abaixo:

1. PERFIL DA EMPRESA
Descreva o porte, setor, tempo de mercado, estrutura societária e histórico geral.

2. ANÁLISE DOS SÓCIOS E CONTROLADORES
Avalie cada sócio: histórico, participação, faixa etária, qualificação e eventuais riscos pessoais.

3. RISCOS IDENTIFICADOS
Liste os principais riscos encontrados (judiciais, financeiros, reputacionais, setoriais).

4. PONTOS POSITIVOS
Liste os fatores que favorecem a concessão do crédito.

5. REPUTAÇÃO E PRESENÇA DIGITAL
Com base na pesquisa web, descreva como a empresa aparece publicamente, notícias relevantes e polêmicas.

6. RECOMENDAÇÃO FINAL
Seja direto: recomendar ou não o crédito, qual valor e quais condições/garantias sugerir.

Use linguagem profissional, clara e objetiva em português brasileiro.`

// PromptInput is what the narrative prompt embeds.
type PromptInput struct {
	Profile    model.Profile
	Litigation model.LitigationSummary
	Research   string
	Score      model.ScoreResult
}

var printer = message.NewPrinter(language.BrazilianPortuguese)

// BuildPrompt renders the analyst prompt with each section capped.
func BuildPrompt(in PromptInput) string {
	litigation := struct {
		Count       int                `json:"total_processos"`
		Proceedings []model.Proceeding `json:"processos,omitempty"`
	}{in.Litigation.Count, in.Litigation.Proceedings}

	return fmt.Sprintf(promptTemplate,
		capRunes(indentJSON(in.Profile), maxProfileRunes),
		capRunes(indentJSON(litigation), maxLitigationRunes),
		capRunes(in.Research, maxResearchRunes),
		in.Score.Score,
		in.Score.Tier.Label(),
		FormatAmount(in.Score.SuggestedAmount),
	)
}

// FormatAmount renders an amount the Brazilian way, e.g. 1.234,56.
func FormatAmount(v float64) string {
	return printer.Sprintf("%.2f", v)
}

func indentJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

func capRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
