package tables

import "github.com/JonMunkholm/emissions-import/internal/core"

// targets.csv carries both reduction targets and net-zero commitments;
// the type column decides which table a row belongs to.
const (
	targetsSource    = "targets.csv"
	typeColumn       = "type"
	TargetType       = "target"
	CommitmentType   = "commitment"
	targetsBatchSize = 100
)

func init() {
	core.Register(core.EntitySchema{
		Key:    TargetKey,
		Label:  "Targets",
		Table:  "target",
		Source: targetsSource,
		Fields: []core.FieldSpec{
			{Name: "company_name", Required: true},
			{Name: "scope", Required: true},
			{Name: "base_year", Type: core.FieldInteger, Required: true},
			{Name: "target_year", Type: core.FieldInteger, Required: true},
			{Name: "reduction_pct", Type: core.FieldFloat},
			{Name: "status"},
			{Name: "set_on", Type: core.FieldDate},
		},
		Filter:        core.FieldEquals(typeColumn, TargetType),
		Discriminator: typeColumn,
		BatchSize:     targetsBatchSize,
		DependsOn:     []string{CompanyKey},
	})

	core.Register(core.EntitySchema{
		Key:    CommitmentKey,
		Label:  "Commitments",
		Table:  "commitment",
		Source: targetsSource,
		Fields: []core.FieldSpec{
			{Name: "company_name", Required: true},
			{Name: "commitment", Required: true},
			{Name: "target_year", Type: core.FieldInteger},
			{Name: "status"},
			{Name: "committed_on", Type: core.FieldDate},
		},
		Filter:        core.FieldEquals(typeColumn, CommitmentType),
		Discriminator: typeColumn,
		BatchSize:     targetsBatchSize,
		DependsOn:     []string{CompanyKey},
	})
}
