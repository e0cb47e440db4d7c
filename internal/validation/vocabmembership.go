package validation

import (
	"context"
	"fmt"
	"log/slog"

	"terrasync/internal/staging"
	"terrasync/internal/vocabulary"
	id "terrasync/pkg/domain"
)

// VocabularyValidator checks every coded field against the active
// vocabularies. Unknown codes are warnings, never errors: the device's
// vocabulary cache legitimately drifts from the server between syncs. A
// vocabulary the server does not know at all is skipped entirely.
type VocabularyValidator struct {
	vocabs *vocabulary.Service
	logger *slog.Logger
}

func NewVocabularyValidator(vocabs *vocabulary.Service, logger *slog.Logger) *VocabularyValidator {
	return &VocabularyValidator{vocabs: vocabs, logger: logger}
}

func (v *VocabularyValidator) Name() string { return "vocabulary-membership" }
func (v *VocabularyValidator) Level() int   { return 7 }

// codedField names one integer field and the vocabulary it draws from.
type codedField struct {
	vocab string
	field string
	code  func(r *staging.Record) int
}

var codedFields = map[id.EntityKind][]codedField{
	id.KindBuilding: {
		{vocab: "building_type", field: "type_code", code: func(r *staging.Record) int { return r.Building().TypeCode }},
	},
	id.KindUnit: {
		{vocab: "unit_use", field: "use_code", code: func(r *staging.Record) int { return r.Unit().UseCode }},
	},
	id.KindPerson: {
		{vocab: "gender", field: "gender_code", code: func(r *staging.Record) int { return r.Person().GenderCode }},
	},
	id.KindRelation: {
		{vocab: "relation_type", field: "relation_code", code: func(r *staging.Record) int { return r.Relation().RelationCode }},
	},
	id.KindEvidence: {
		{vocab: "evidence_kind", field: "kind_code", code: func(r *staging.Record) int { return r.Evidence().KindCode }},
	},
}

func (v *VocabularyValidator) Validate(ctx context.Context, set *RecordSet) LevelResult {
	// Fetch each referenced vocabulary once per run.
	loaded := make(map[string]*vocabulary.Vocabulary)
	for _, fields := range codedFields {
		for _, f := range fields {
			if _, ok := loaded[f.vocab]; ok {
				continue
			}
			vocab, err := v.vocabs.Lookup(ctx, f.vocab)
			if err != nil {
				v.logger.WarnContext(ctx, "vocabulary lookup failed, skipping membership check",
					"vocabulary", f.vocab, "error", err)
				vocab = nil
			}
			loaded[f.vocab] = vocab
		}
	}

	var t tally
	for kind, fields := range codedFields {
		for _, r := range set.Kind(kind) {
			t.checked++
			for _, f := range fields {
				code := f.code(r)
				if code == 0 {
					continue
				}
				vocab := loaded[f.vocab]
				if vocab == nil {
					continue
				}
				if !vocab.HasCode(code) {
					t.addWarning(r, staging.Finding{
						Code:  "VOCAB_UNKNOWN_CODE",
						Field: f.field,
						Message: fmt.Sprintf("code %d is not in vocabulary %s version %s",
							code, f.vocab, vocab.Version),
					})
				}
			}
		}
	}
	return t.result()
}
