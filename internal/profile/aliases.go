package profile

import "github.com/sells-group/credit-cli/internal/model"

// alias maps one vendor key path to a canonical key. Nested objects are
// addressed with dotted paths (e.g. "company.name").
type alias struct {
	path      string
	canonical string
}

// fieldAliases is the vendor → canonical table. When two paths of one payload
// map to the same canonical key, the one listed first wins.
var fieldAliases = []alias{
	// tax_id
	{"cnpj", model.FieldTaxID},
	{"taxId", model.FieldTaxID},

	// legal_name
	{"razao_social", model.FieldLegalName},
	{"company.name", model.FieldLegalName},

	// trade_name
	{"nome_fantasia", model.FieldTradeName},
	{"alias", model.FieldTradeName},

	// registration_status: the description wins over BrasilAPI's numeric code.
	{"descricao_situacao_cadastral", model.FieldRegistrationStatus},
	{"situacao_cadastral", model.FieldRegistrationStatus},
	{"status.text", model.FieldRegistrationStatus},
	{"situacao.nome", model.FieldRegistrationStatus},

	// founded_on
	{"data_inicio_atividade", model.FieldFoundedOn},
	{"abertura", model.FieldFoundedOn},
	{"founded", model.FieldFoundedOn},
	{"data_inicio", model.FieldFoundedOn},

	// share_capital
	{"capital_social", model.FieldShareCapital},
	{"company.equity", model.FieldShareCapital},

	// size_tier
	{"porte", model.FieldSizeTier},
	{"porte_empresa", model.FieldSizeTier},
	{"descricao_porte", model.FieldSizeTier},
	{"company.size.text", model.FieldSizeTier},

	// legal_nature
	{"natureza_juridica", model.FieldLegalNature},
	{"company.nature.text", model.FieldLegalNature},

	// municipality / state
	{"municipio", model.FieldMunicipality},
	{"address.city", model.FieldMunicipality},
	{"endereco.municipio", model.FieldMunicipality},
	{"uf", model.FieldState},
	{"address.state", model.FieldState},
	{"endereco.uf", model.FieldState},

	// email
	{"email", model.FieldEmail},
	{"correio_eletronico", model.FieldEmail},

	// main_activity
	{"cnae_fiscal_descricao", model.FieldMainActivity},
	{"cnae_principal", model.FieldMainActivity},
	{"mainActivity.text", model.FieldMainActivity},
	{"atividade_principal.descricao", model.FieldMainActivity},

	// partners (QSA)
	{"QSA", model.FieldPartners},
	{"qsa", model.FieldPartners},
	{"company.members", model.FieldPartners},
	{"socios", model.FieldPartners},
}

// partnerAlias maps a path inside one partner entry to a Partner field.
type partnerAlias struct {
	path  string
	field string
}

const (
	partnerName       = "name"
	partnerTaxID      = "tax_id"
	partnerRole       = "role"
	partnerEnteredOn  = "entered_on"
	partnerAgeBracket = "age_bracket"
	partnerIdentifier = "identifier"
)

var partnerAliases = []partnerAlias{
	{"nome_socio", partnerName},
	{"nome", partnerName},
	{"person.name", partnerName},
	{"name", partnerName},

	{"cnpj_cpf_socio", partnerTaxID},
	{"cnpj_cpf_do_socio", partnerTaxID},
	{"cpf_cnpj", partnerTaxID},
	{"person.taxId", partnerTaxID},

	{"qualificacao_socio", partnerRole},
	{"role.text", partnerRole},
	{"qualificacao", partnerRole},

	{"data_entrada_sociedade", partnerEnteredOn},
	{"since", partnerEnteredOn},
	{"data_entrada", partnerEnteredOn},

	{"faixa_etaria", partnerAgeBracket},
	{"person.age", partnerAgeBracket},

	{"identificador_socio", partnerIdentifier},
	{"identificador_de_socio", partnerIdentifier},
	{"person.type", partnerIdentifier},
}

func setPartnerField(p *model.Partner, field, v string) {
	switch field {
	case partnerName:
		p.Name = v
	case partnerTaxID:
		p.TaxID = v
	case partnerRole:
		p.Role = v
	case partnerEnteredOn:
		p.EnteredOn = v
	case partnerAgeBracket:
		p.AgeBracket = v
	case partnerIdentifier:
		p.Identifier = v
	}
}
