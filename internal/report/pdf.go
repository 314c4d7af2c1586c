// Package report renders credit analyses as PDF reports and exports analysis
// lists as spreadsheets.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/credit-cli/internal/model"
)

// Disclaimer is printed in the footer of every report.
const Disclaimer = "Este relatório é de uso interno e não substitui análise jurídica especializada."

var (
	colorTitle   = &props.Color{Red: 15, Green: 23, Blue: 42}
	colorPrimary = &props.Color{Red: 30, Green: 64, Blue: 175}
	colorGray    = &props.Color{Red: 107, Green: 114, Blue: 128}
	colorRule    = &props.Color{Red: 226, Green: 232, Blue: 240}
	colorWhite   = &props.Color{Red: 255, Green: 255, Blue: 255}
)

var printer = message.NewPrinter(language.BrazilianPortuguese)

// Renderer writes PDF reports into a directory.
type Renderer struct {
	dir string
	now func() time.Time
}

// NewRenderer creates a Renderer writing into dir.
func NewRenderer(dir string) *Renderer {
	return &Renderer{dir: dir, now: time.Now}
}

// Render builds the PDF of a stored analysis and writes it to disk.
func (r *Renderer) Render(a *model.Analysis) (*model.Report, error) {
	doc, err := Build(a, r.now())
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "report: create dir %s", r.dir)
	}
	name := fmt.Sprintf("relatorio_%d_%s.pdf", a.ID, strings.SplitN(uuid.NewString(), "-", 2)[0])
	path := filepath.Join(r.dir, name)
	if err := os.WriteFile(path, doc, 0o644); err != nil {
		return nil, eris.Wrapf(err, "report: write %s", path)
	}
	return &model.Report{
		AnalysisID:  a.ID,
		Path:        path,
		SizeBytes:   int64(len(doc)),
		GeneratedAt: r.now().UTC(),
	}, nil
}

// Build renders the PDF document of an analysis.
func Build(a *model.Analysis, issued time.Time) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(20).WithRightMargin(20).
		WithTopMargin(20).WithBottomMargin(20).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Relatório de Análise de Crédito", true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(titleRows(issued)...)
	m.AddRows(sectionRow("1. IDENTIFICAÇÃO DA EMPRESA"))
	m.AddRows(identificationRows(a)...)
	m.AddRows(sectionRow("2. CRÉDITO SOLICITADO"))
	m.AddRows(creditRows(a.Request)...)
	m.AddRows(sectionRow("3. SCORE DE RISCO"))
	m.AddRows(scoreRows(a)...)
	m.AddRows(reasonRows(a.Score.Reasons)...)

	if partners := a.Profile.Partners(); len(partners) > 0 {
		m.AddRows(sectionRow("4. QUADRO SOCIETÁRIO (QSA)"))
		m.AddRows(partnerRows(partners)...)
	}

	m.AddRows(sectionRow("5. ANÁLISE DE INTELIGÊNCIA ARTIFICIAL"))
	for _, para := range strings.Split(a.Narrative.Text, "\n") {
		if strings.TrimSpace(para) == "" {
			m.AddRows(row.New(2))
			continue
		}
		m.AddAutoRow(col.New(12).Add(text.New(para, props.Text{Size: 9, Top: 1})))
	}

	m.AddRows(footerRows(a.ID, issued)...)

	doc, err := m.Generate()
	if err != nil {
		return nil, eris.Wrap(err, "report: generate pdf")
	}
	return doc.GetBytes(), nil
}

func titleRows(issued time.Time) []core.Row {
	return []core.Row{
		row.New(12).Add(col.New(12).Add(text.New("RELATÓRIO DE ANÁLISE DE CRÉDITO", props.Text{
			Style: fontstyle.Bold, Size: 18, Color: colorTitle,
		}))),
		row.New(6).Add(col.New(12).Add(text.New("Emitido em "+issued.Format("02/01/2006 às 15:04"), props.Text{
			Size: 8, Color: colorGray,
		}))),
		line.NewRow(2, props.Line{Color: colorPrimary, Thickness: 0.8}),
	}
}

func sectionRow(title string) core.Row {
	return row.New(12).Add(col.New(12).Add(text.New(title, props.Text{
		Style: fontstyle.Bold, Size: 12, Color: colorPrimary, Top: 5,
	})))
}

func kvRow(label, value string) core.Row {
	return row.New(7).Add(
		col.New(4).Add(text.New(label, props.Text{Style: fontstyle.Bold, Size: 9, Color: colorPrimary, Top: 1.5, Left: 1})),
		col.New(8).Add(text.New(value, props.Text{Size: 9, Top: 1.5})),
	)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func identificationRows(a *model.Analysis) []core.Row {
	p := a.Profile
	return []core.Row{
		kvRow("Razão Social", orDash(p.LegalName())),
		kvRow("Nome Fantasia", orDash(p.String(model.FieldTradeName))),
		kvRow("CNPJ", model.FormatCNPJ(a.Request.CNPJ)),
		kvRow("Situação", orDash(p.String(model.FieldRegistrationStatus))),
		kvRow("Porte", orDash(p.String(model.FieldSizeTier))),
		kvRow("Natureza Jurídica", orDash(p.String(model.FieldLegalNature))),
		kvRow("Município/UF", p.String(model.FieldMunicipality)+" / "+p.String(model.FieldState)),
		kvRow("Capital Social", "R$ "+orDash(p.String(model.FieldShareCapital))),
		kvRow("Início Atividade", orDash(p.String(model.FieldFoundedOn))),
		kvRow("CNAE Principal", orDash(p.String(model.FieldMainActivity))),
	}
}

// Money renders an amount as Brazilian reais, e.g. R$ 1.234,56.
func Money(v float64) string {
	return printer.Sprintf("R$ %.2f", v)
}

func creditRows(req model.CreditRequest) []core.Row {
	inst := PriceInstallment(req.RequestedAmount, req.MonthlyRate, req.Installments)
	return []core.Row{
		kvRow("Valor Solicitado", Money(req.RequestedAmount)),
		kvRow("Parcelas", fmt.Sprintf("%dx", req.Installments)),
		kvRow("Taxa de Juros", printer.Sprintf("%.2f%% a.m.", req.MonthlyRate)),
		kvRow("Parcela Estimada", Money(inst.Payment.InexactFloat64())),
		kvRow("Total a Pagar", Money(inst.Total.InexactFloat64())),
	}
}

func scoreRows(a *model.Analysis) []core.Row {
	s := a.Score
	return []core.Row{
		row.New(9).Add(
			col.New(4).Add(text.New("Score Final", props.Text{Style: fontstyle.Bold, Size: 11, Color: colorWhite, Top: 2, Left: 1})),
			col.New(8).Add(text.New(fmt.Sprintf("%d/100", s.Score), props.Text{Style: fontstyle.Bold, Size: 11, Color: colorWhite, Top: 2})),
		).WithStyle(&props.Cell{BackgroundColor: hexColor(s.Color)}),
		kvRow("Nível de Risco", s.Tier.Label()),
		kvRow("Valor Solicitado", Money(a.Request.RequestedAmount)),
		kvRow("Valor Sugerido", Money(s.SuggestedAmount)),
		kvRow("Percentual Aprovado", fmt.Sprintf("%.0f%%", s.Multiplier*100)),
	}
}

func reasonRows(reasons []model.Reason) []core.Row {
	rows := []core.Row{
		row.New(9).Add(col.New(12).Add(text.New("Fatores de Avaliação", props.Text{
			Style: fontstyle.Bold, Size: 10, Top: 3,
		}))),
	}
	for _, r := range reasons {
		color := colorGray
		switch r.Marker {
		case model.MarkerPositive:
			color = &props.Color{Red: 16, Green: 185, Blue: 129}
		case model.MarkerNegative:
			color = &props.Color{Red: 239, Green: 68, Blue: 68}
		}
		rows = append(rows, row.New(6).Add(
			col.New(10).Add(text.New(r.Message, props.Text{Size: 8.5, Top: 1, Left: 1})),
			col.New(2).Add(text.New(fmt.Sprintf("%+d", r.Delta), props.Text{
				Style: fontstyle.Bold, Size: 8.5, Top: 1, Align: align.Right, Color: color,
			})),
		))
	}
	return rows
}

func partnerRows(partners []model.Partner) []core.Row {
	h := func(label string, size int) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Color: colorWhite, Top: 1.5, Left: 1,
		}))
	}
	rows := []core.Row{
		row.New(7).Add(h("Nome", 4), h("CPF/CNPJ", 2), h("Qualificação", 3), h("Entrada", 2), h("Faixa", 1)).
			WithStyle(&props.Cell{BackgroundColor: colorPrimary}),
	}
	cell := func(v string, size int) core.Col {
		return col.New(size).Add(text.New(orDash(v), props.Text{Size: 7.5, Top: 1.5, Left: 1}))
	}
	for _, p := range partners {
		rows = append(rows, row.New(7).Add(
			cell(truncate(p.Name, 30), 4),
			cell(p.TaxID, 2),
			cell(truncate(p.Role, 25), 3),
			cell(p.EnteredOn, 2),
			cell(p.AgeBracket, 1),
		))
	}
	return rows
}

func footerRows(id int64, issued time.Time) []core.Row {
	return []core.Row{
		row.New(8),
		line.NewRow(2, props.Line{Color: colorRule, Thickness: 0.4}),
		row.New(5).Add(col.New(12).Add(text.New(
			fmt.Sprintf("Relatório gerado automaticamente | ID #%d | %s", id, issued.Format("02/01/2006 15:04")),
			props.Text{Size: 7.5, Color: colorGray},
		))),
		row.New(5).Add(col.New(12).Add(text.New(Disclaimer, props.Text{Size: 7.5, Color: colorGray}))),
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// hexColor parses a #rrggbb token; anything else falls back to the primary color.
func hexColor(s string) *props.Color {
	var r, g, b int
	if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &r, &g, &b); err != nil {
		return colorPrimary
	}
	return &props.Color{Red: r, Green: g, Blue: b}
}
