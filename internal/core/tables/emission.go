package tables

import "github.com/JonMunkholm/emissions-import/internal/core"

func init() {
	core.Register(core.EntitySchema{
		Key:    EmissionKey,
		Label:  "Emissions",
		Table:  "emission",
		Source: "emissions.csv",
		Fields: []core.FieldSpec{
			{Name: "company_name", Required: true},
			{Name: "year", Type: core.FieldInteger, Required: true},
			{Name: "scope_1", Type: core.FieldFloat, Required: true},
			{Name: "scope_2_location", Type: core.FieldFloat},
			{Name: "scope_2_market", Type: core.FieldFloat},
			{Name: "scope_3", Type: core.FieldFloat},
			{Name: "unit"},
			{Name: "reporting_period_end", Type: core.FieldDate},
			{Name: "verified", Type: core.FieldBoolean},
			{Name: "source_url"},
		},
		// 10 columns x 5000 rows stays under the bind parameter limit.
		BatchSize: 5000,
		DependsOn: []string{CompanyKey},
	})
}
