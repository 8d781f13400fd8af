package migrate

import (
	"context"
	"fmt"
	"sync"
)

// fakeStore is an in-memory Store for pipeline tests. It applies the
// customer identity rule (phone) regardless of kind, which is enough to
// exercise batching, index rewriting, and duplicate policy.
type fakeStore struct {
	mu     sync.Mutex
	phones map[string]bool
	nextID int64

	// rowErr, when set, rejects individual rows with a business error.
	rowErr func(Row) error

	// failScanCall / failImportCall make the Nth call (1-based) return a
	// transport error. 0 disables.
	failScanCall   int
	failImportCall int

	// gate, when set, blocks each scan call until a value is received.
	gate chan struct{}

	scanBatches   [][]Row
	importBatches [][]Row
}

func newFakeStore(existingPhones ...string) *fakeStore {
	s := &fakeStore{phones: make(map[string]bool), nextID: 0}
	for _, p := range existingPhones {
		s.phones[p] = true
	}
	return s
}

func (s *fakeStore) ScanDuplicates(ctx context.Context, kind EntityKind, rows []Row) (BatchScanResult, error) {
	if s.gate != nil {
		<-s.gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.scanBatches = append(s.scanBatches, rows)
	if s.failScanCall > 0 && len(s.scanBatches) == s.failScanCall {
		return BatchScanResult{}, fmt.Errorf("connection reset by peer")
	}

	var res BatchScanResult
	for i, row := range rows {
		if s.phones[row.Field("phone")] {
			res.DuplicateCount++
			res.Duplicates = append(res.Duplicates, DuplicateItem{
				RowIndex:    i,
				DisplayName: row.Field("name"),
				Identifier:  row.Field("phone"),
			})
		} else {
			res.NewCount++
		}
	}
	return res, nil
}

func (s *fakeStore) ImportChunk(ctx context.Context, kind EntityKind, rows []Row) (BatchCommitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.importBatches = append(s.importBatches, rows)
	if s.failImportCall > 0 && len(s.importBatches) == s.failImportCall {
		return BatchCommitResult{}, fmt.Errorf("connection reset by peer")
	}

	var res BatchCommitResult
	for n, row := range rows {
		res.Processed++
		if s.phones[row.Field("phone")] {
			continue // store skips duplicates silently
		}
		if s.rowErr != nil {
			if err := s.rowErr(row); err != nil {
				res.ErrorMessages = append(res.ErrorMessages, fmt.Sprintf("row %d: %v", n+1, err))
				continue
			}
		}
		s.nextID++
		s.phones[row.Field("phone")] = true
		res.Succeeded++
		res.AddedItems = append(res.AddedItems, InsertedItem{
			AssignedID:  s.nextID,
			DisplayName: row.Field("name"),
			Identifier:  row.Field("phone"),
		})
	}
	return res, nil
}

func (s *fakeStore) scanCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.scanBatches)
}

func (s *fakeStore) importCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.importBatches)
}

func (s *fakeStore) importedRows() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.importBatches {
		n += len(b)
	}
	return n
}

// makeRows builds n customer rows with unique phone numbers.
func makeRows(n int) []Row {
	rows := make([]Row, n)
	for i := range rows {
		rows[i] = Row{
			"name":  fmt.Sprintf("Person %d", i),
			"phone": fmt.Sprintf("9%09d", i),
		}
	}
	return rows
}
