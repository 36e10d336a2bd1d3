package accounts

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

type chartFile struct {
	Accounts []struct {
		Code    string `yaml:"code"`
		Name    string `yaml:"name"`
		Type    string `yaml:"type"`
		Subtype string `yaml:"subtype"`
		System  bool   `yaml:"system"`
	} `yaml:"accounts"`
}

// LoadChart parses a YAML chart of accounts:
//
//	accounts:
//	  - {code: "1000", name: Cash, type: asset, subtype: Cash, system: true}
func LoadChart(r io.Reader) ([]Account, error) {
	var file chartFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("accounts: decode chart: %w", err)
	}
	seen := make(map[string]struct{}, len(file.Accounts))
	out := make([]Account, 0, len(file.Accounts))
	for i, entry := range file.Accounts {
		a := Account{
			Code:            strings.TrimSpace(entry.Code),
			Name:            strings.TrimSpace(entry.Name),
			Type:            AccountType(strings.ToUpper(strings.TrimSpace(entry.Type))),
			Subtype:         entry.Subtype,
			IsSystemAccount: entry.System,
		}
		if err := validate(a); err != nil {
			return nil, fmt.Errorf("accounts: chart entry %d: %w", i+1, err)
		}
		if _, dup := seen[a.Code]; dup {
			return nil, fmt.Errorf("accounts: chart entry %d: duplicate code %s", i+1, a.Code)
		}
		seen[a.Code] = struct{}{}
		out = append(out, a)
	}
	return out, nil
}
