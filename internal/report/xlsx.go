package report

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/credit-cli/internal/model"
)

// ExportHeader is the first row of the analyses spreadsheet.
var ExportHeader = []string{
	"ID", "CNPJ", "Razão Social", "Nome Fantasia", "Valor Solicitado",
	"Valor Sugerido", "Score", "Risco", "IA", "Relatório", "Data",
}

// WriteXLSX writes analysis summaries as a single-sheet workbook.
func WriteXLSX(w io.Writer, list []model.AnalysisSummary) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Análises")
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range ExportHeader {
		header.AddCell().SetString(h)
	}

	for _, a := range list {
		r := sheet.AddRow()
		r.AddCell().SetInt64(a.ID)
		r.AddCell().SetString(model.FormatCNPJ(a.CNPJ))
		r.AddCell().SetString(a.LegalName)
		r.AddCell().SetString(a.TradeName)
		r.AddCell().SetFloatWithFormat(a.RequestedAmount, "#,##0.00")
		r.AddCell().SetFloatWithFormat(a.SuggestedAmount, "#,##0.00")
		r.AddCell().SetInt(a.Score)
		r.AddCell().SetString(a.Tier.Label())
		r.AddCell().SetString(a.Provider)
		r.AddCell().SetBool(a.HasReport)
		r.AddCell().SetDateTime(a.CreatedAt)
	}

	return eris.Wrap(f.Write(w), "xlsx: write workbook")
}
