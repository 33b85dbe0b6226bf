package app

import "github.com/kart-io/sentinel-faq/pkg/infra/app/cliflag"

// CliOptions abstracts configuration options for reading parameters from the
// command line.
type CliOptions interface {
	// Flags returns flags for a specific server by section name.
	Flags() cliflag.NamedFlagSets
	// Complete fills in any fields not set that are required to have valid data.
	Complete() error
	// Validate checks whether the options are valid.
	Validate() error
}
