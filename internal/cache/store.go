// Package cache keeps in-memory mirrors of spreadsheet sheets with
// read-through population and write-through mutation.
package cache

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// DefaultSheet addresses the spreadsheet's first sheet.
const DefaultSheet = ""

// Remote is the narrow contract against the spreadsheet store. All calls are
// remote and carry no transactional guarantee across them.
type Remote interface {
	ReadAll(ctx context.Context, sheet string) ([][]string, error)
	Append(ctx context.Context, sheet string, row []string) error
	UpdateRow(ctx context.Context, sheet string, rowNumber int, row []string) error
	SetHeaderCell(ctx context.Context, sheet string, index int, value string) error
	CreateSheet(ctx context.Context, title string) error
	DeleteRow(ctx context.Context, sheet string, rowNumber int) error
}

// Store mirrors one or more sheets. The mutex covers only the in-memory
// structures; remote calls happen outside it. Two concurrent writers to the
// same sheet can therefore interleave their remote calls. The last remote
// write determines remote truth and the mirror converges on the writer that
// patches last, or on the next Refresh. Accepted in exchange for reads that
// never block on the network.
type Store struct {
	remote Remote

	mu      sync.Mutex
	mirrors map[string][][]string
}

func NewStore(remote Remote) *Store {
	return &Store{
		remote:  remote,
		mirrors: make(map[string][][]string),
	}
}

// GetAll returns the mirror for the sheet, refreshing it first on a cold
// miss. Either the whole cached sheet is returned or a full refresh happens
// before returning, never a partial view.
func (s *Store) GetAll(ctx context.Context, sheet string) ([][]string, error) {
	s.mu.Lock()
	rows, ok := s.mirrors[sheet]
	s.mu.Unlock()
	if ok {
		return rows, nil
	}

	if _, err := s.Refresh(ctx, sheet); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mirrors[sheet], nil
}

// GetHeaders returns the header row, or an empty slice for an empty sheet.
func (s *Store) GetHeaders(ctx context.Context, sheet string) ([]string, error) {
	rows, err := s.GetAll(ctx, sheet)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []string{}, nil
	}
	return rows[0], nil
}

// Refresh re-fetches the entire sheet and replaces the mirror. Returns the
// number of rows fetched, header included.
func (s *Store) Refresh(ctx context.Context, sheet string) (int, error) {
	rows, err := s.remote.ReadAll(ctx, sheet)
	if err != nil {
		return 0, fmt.Errorf("refresh %q: %w", sheet, err)
	}

	s.mu.Lock()
	s.mirrors[sheet] = rows
	s.mu.Unlock()

	log.Debug().Str("sheet", sheet).Int("rows", len(rows)).Msg("Refreshed sheet mirror")
	return len(rows), nil
}

// AppendRow sends the append to the remote store, then extends the mirror.
// Without a mirror the whole sheet is refreshed instead. Returns the mirror's
// row count after the append.
func (s *Store) AppendRow(ctx context.Context, sheet string, values []string) (int, error) {
	if err := s.remote.Append(ctx, sheet, values); err != nil {
		return 0, fmt.Errorf("append to %q: %w", sheet, err)
	}

	s.mu.Lock()
	rows, ok := s.mirrors[sheet]
	if ok {
		row := make([]string, len(values))
		copy(row, values)
		s.mirrors[sheet] = append(rows, row)
		count := len(s.mirrors[sheet])
		s.mu.Unlock()
		return count, nil
	}
	s.mu.Unlock()

	return s.Refresh(ctx, sheet)
}

// UpdateRow sends the update for the 1-based row (header is row 1), then
// patches the mirror in place. A shorter value list is padded with empty
// strings so an observed row never shrinks. Without a mirror, or when the
// row lies outside it, the whole sheet is refreshed instead.
func (s *Store) UpdateRow(ctx context.Context, sheet string, rowNumber int, values []string) error {
	if rowNumber < 1 {
		return fmt.Errorf("invalid row number %d", rowNumber)
	}
	if err := s.remote.UpdateRow(ctx, sheet, rowNumber, values); err != nil {
		return fmt.Errorf("update row %d in %q: %w", rowNumber, sheet, err)
	}

	s.mu.Lock()
	rows, ok := s.mirrors[sheet]
	if ok && rowNumber <= len(rows) {
		prev := rows[rowNumber-1]
		width := len(prev)
		if len(values) > width {
			width = len(values)
		}
		row := make([]string, width)
		copy(row, values)
		rows[rowNumber-1] = row
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	_, err := s.Refresh(ctx, sheet)
	return err
}

// AddColumn appends a header cell remotely and refreshes the mirror, since a
// structural change invalidates in-place patching. Returns false without side
// effects when the column already exists.
func (s *Store) AddColumn(ctx context.Context, sheet, name string) (bool, error) {
	headers, err := s.GetHeaders(ctx, sheet)
	if err != nil {
		return false, err
	}
	for _, h := range headers {
		if h == name {
			return false, nil
		}
	}

	if err := s.remote.SetHeaderCell(ctx, sheet, len(headers)+1, name); err != nil {
		return false, fmt.Errorf("add column %q to %q: %w", name, sheet, err)
	}
	if _, err := s.Refresh(ctx, sheet); err != nil {
		return false, err
	}
	log.Info().Str("sheet", sheet).Str("column", name).Msg("Added column")
	return true, nil
}

// Invalidate drops the mirror so the next read repopulates.
func (s *Store) Invalidate(sheet string) {
	s.mu.Lock()
	delete(s.mirrors, sheet)
	s.mu.Unlock()
}
