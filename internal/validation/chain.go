package validation

import (
	"log/slog"

	"terrasync/internal/platform/config"
	"terrasync/internal/vocabulary"
)

// DefaultChain builds the standard validator chain. Level 1 (schema and
// field shape) runs upstream in the container codec, so the chain starts at
// reference resolution.
func DefaultChain(rules config.Rules, vocabs *vocabulary.Service, logger *slog.Logger) []Validator {
	return []Validator{
		NewReferenceValidator(),
		NewEvidenceValidator(),
		NewHouseholdValidator(),
		NewSpatialValidator(rules.Bounds),
		NewClaimValidator(),
		NewVocabularyValidator(vocabs, logger),
		NewIdentifierValidator(rules.CompositeIDLength),
	}
}
