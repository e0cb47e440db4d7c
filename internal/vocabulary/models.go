// Package vocabulary manages the versioned, bilingual controlled lists that
// coded fields reference, and decides whether a device's vocabulary cache is
// compatible with the server's.
package vocabulary

import id "terrasync/pkg/domain"

// Vocabulary is a versioned controlled list of coded values.
type Vocabulary struct {
	Name              string           `json:"name"`
	LabelEN           string           `json:"label_en"`
	LabelAR           string           `json:"label_ar"`
	Version           id.SemVer        `json:"version"`
	Category          string           `json:"category,omitempty"`
	IsSystem          bool             `json:"is_system"`
	AllowCustomValues bool             `json:"allow_custom_values"`
	Values            []VocabularyValue `json:"values"`
}

// VocabularyValue is one coded entry.
type VocabularyValue struct {
	Code    int    `json:"code"`
	LabelEN string `json:"label_en"`
	LabelAR string `json:"label_ar"`
	Order   int    `json:"order"`
}

// HasCode reports whether code exists in the vocabulary's active values.
func (v *Vocabulary) HasCode(code int) bool {
	for _, val := range v.Values {
		if val.Code == code {
			return true
		}
	}
	return false
}

// Snapshot is the full vocabulary set sent to a device during assignment
// download, plus the compact version map persisted on the sync session.
type Snapshot struct {
	Vocabularies []Vocabulary      `json:"vocabularies"`
	Versions     map[string]string `json:"versions"`
}
