package tables

import "github.com/JonMunkholm/emissions-import/internal/core"

// DuplicateStatus marks curated rows that repeat another company.
const DuplicateStatus = "duplicate"

func init() {
	core.Register(core.EntitySchema{
		Key:    CompanyKey,
		Label:  "Companies",
		Table:  "company",
		Source: "companies.csv",
		Fields: []core.FieldSpec{
			{Name: "name", Required: true},
			{Name: "industry", Required: true},
			{Name: "isic", Required: true},
			{Name: "lei", Required: true},
			{Name: "company_url", Required: true},
			{Name: "source_reports_page", Required: true},
			{Name: "hq_country", Required: true},
			{Name: "sbt_status"},
			{Name: "sbt_near_term_year", Type: core.FieldInteger},
			{Name: "sbt_near_term_target"},
			{Name: "net_zero_year", Type: core.FieldInteger},
		},
		Filter:    core.FieldNotEquals("status", DuplicateStatus),
		BatchSize: 100,
	})
}
