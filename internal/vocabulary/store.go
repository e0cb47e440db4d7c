package vocabulary

import "context"

// Store persists vocabularies. The import core only reads; editing lives
// with the registry's administration side.
type Store interface {
	Get(ctx context.Context, name string) (*Vocabulary, error)
	ListActive(ctx context.Context) ([]Vocabulary, error)
	Save(ctx context.Context, vocab *Vocabulary) error
}
