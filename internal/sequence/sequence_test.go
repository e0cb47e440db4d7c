package sequence

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"
)

type SequenceSuite struct {
	suite.Suite
}

func TestSequenceSuite(t *testing.T) {
	suite.Run(t, new(SequenceSuite))
}

func (s *SequenceSuite) TestFormat() {
	s.Equal("PKG-000042", Format("PKG", 42))
	s.Equal("CNF-000001", Format("CNF", 1))
	s.Equal("PKG-1000000", Format("PKG", 1000000), "width grows past a million")
}

func (s *SequenceSuite) TestInMemoryCountersAreIndependent() {
	ctx := context.Background()
	seq := NewInMemory()

	for want := int64(1); want <= 3; want++ {
		n, err := seq.Next(ctx, "package")
		s.Require().NoError(err)
		s.Equal(want, n)
	}

	n, err := seq.Next(ctx, "conflict")
	s.Require().NoError(err)
	s.Equal(int64(1), n, "each name counts on its own")
}

func (s *SequenceSuite) TestInMemoryNeverRepeatsUnderContention() {
	ctx := context.Background()
	seq := NewInMemory()

	const workers = 16
	const perWorker = 50

	var mu sync.Mutex
	seen := make(map[int64]bool, workers*perWorker)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				n, err := seq.Next(ctx, "package")
				if err != nil {
					return
				}
				mu.Lock()
				seen[n] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	s.Len(seen, workers*perWorker)
}
