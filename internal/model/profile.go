package model

import (
	"encoding/json"
	"fmt"
	"maps"
	"strings"

	"github.com/rotisserie/eris"
)

// Canonical profile keys. Source payloads are mapped onto these by the
// profile merger; nothing downstream reads vendor field names.
const (
	FieldTaxID              = "tax_id"
	FieldLegalName          = "legal_name"
	FieldTradeName          = "trade_name"
	FieldRegistrationStatus = "registration_status"
	FieldFoundedOn          = "founded_on"
	FieldShareCapital       = "share_capital"
	FieldSizeTier           = "size_tier"
	FieldLegalNature        = "legal_nature"
	FieldMunicipality       = "municipality"
	FieldState              = "state"
	FieldEmail              = "email"
	FieldMainActivity       = "main_activity"
	FieldPartners           = "partners"
)

// ProfileFields lists every recognized canonical key in display order.
var ProfileFields = []string{
	FieldTaxID,
	FieldLegalName,
	FieldTradeName,
	FieldRegistrationStatus,
	FieldFoundedOn,
	FieldShareCapital,
	FieldSizeTier,
	FieldLegalNature,
	FieldMunicipality,
	FieldState,
	FieldEmail,
	FieldMainActivity,
	FieldPartners,
}

// Profile is the canonical company record built by the merger. Every key is
// optional. Values are strings, numbers or, for FieldPartners, []Partner.
// A Profile is not mutated after the merger returns it.
type Profile map[string]any

// Partner is one controlling person or entity from the partner list (QSA).
type Partner struct {
	Name       string `json:"name"`
	TaxID      string `json:"tax_id,omitempty"`
	Role       string `json:"role,omitempty"`
	EnteredOn  string `json:"entered_on,omitempty"`
	AgeBracket string `json:"age_bracket,omitempty"`
	Identifier string `json:"identifier,omitempty"`
}

// String returns the value at key rendered as text, or "" when absent.
func (p Profile) String(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", s), "0"), ".")
	default:
		return fmt.Sprint(v)
	}
}

// Partners returns the partner list, or nil when absent.
func (p Profile) Partners() []Partner {
	partners, _ := p[FieldPartners].([]Partner)
	return partners
}

// LegalName is shorthand for the legal (registered) name.
func (p Profile) LegalName() string {
	return p.String(FieldLegalName)
}

// Clone returns a copy that can be modified without touching p.
func (p Profile) Clone() Profile {
	out := maps.Clone(p)
	if out == nil {
		out = Profile{}
	}
	if partners := p.Partners(); partners != nil {
		out[FieldPartners] = append([]Partner(nil), partners...)
	}
	return out
}

// UnmarshalJSON restores the typed partner list after a round trip through
// storage or an API request body.
func (p *Profile) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Profile, len(raw))
	for k, v := range raw {
		if k == FieldPartners {
			var partners []Partner
			if err := json.Unmarshal(v, &partners); err != nil {
				return eris.Wrap(err, "profile: decode partners")
			}
			out[k] = partners
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return err
		}
		out[k] = val
	}
	*p = out
	return nil
}
