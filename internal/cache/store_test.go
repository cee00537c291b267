package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRemote records calls and serves canned sheet data.
type fakeRemote struct {
	data map[string][][]string

	readCalls   int
	appendCalls int
	updateCalls int
	headerCalls []int

	appendErr error
	updateErr error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{data: make(map[string][][]string)}
}

func (f *fakeRemote) ReadAll(ctx context.Context, sheet string) ([][]string, error) {
	f.readCalls++
	rows := f.data[sheet]
	out := make([][]string, len(rows))
	for i, r := range rows {
		row := make([]string, len(r))
		copy(row, r)
		out[i] = row
	}
	return out, nil
}

func (f *fakeRemote) Append(ctx context.Context, sheet string, row []string) error {
	f.appendCalls++
	if f.appendErr != nil {
		return f.appendErr
	}
	f.data[sheet] = append(f.data[sheet], append([]string(nil), row...))
	return nil
}

func (f *fakeRemote) UpdateRow(ctx context.Context, sheet string, rowNumber int, row []string) error {
	f.updateCalls++
	if f.updateErr != nil {
		return f.updateErr
	}
	if rowNumber <= len(f.data[sheet]) {
		f.data[sheet][rowNumber-1] = append([]string(nil), row...)
	}
	return nil
}

func (f *fakeRemote) SetHeaderCell(ctx context.Context, sheet string, index int, value string) error {
	f.headerCalls = append(f.headerCalls, index)
	if len(f.data[sheet]) == 0 {
		f.data[sheet] = [][]string{{}}
	}
	header := f.data[sheet][0]
	for len(header) < index {
		header = append(header, "")
	}
	header[index-1] = value
	f.data[sheet][0] = header
	return nil
}

func (f *fakeRemote) CreateSheet(ctx context.Context, title string) error { return nil }

func (f *fakeRemote) DeleteRow(ctx context.Context, sheet string, rowNumber int) error {
	return nil
}

func seeded() *fakeRemote {
	remote := newFakeRemote()
	remote.data["People"] = [][]string{
		{"Имя", "Фамилия", "Дата рождения", "Телефон", "Адрес"},
		{"Анна", "Иванова", "1990-01-15", "123", "ул. Ленина"},
		{"Борис", "Петров", "1985-06-02", "456", "ул. Мира"},
	}
	return remote
}

func TestReadThroughFetchesOnce(t *testing.T) {
	remote := seeded()
	store := NewStore(remote)
	ctx := context.Background()

	rows, err := store.GetAll(ctx, "People")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	assert.Equal(t, 1, remote.readCalls)

	_, err = store.GetAll(ctx, "People")
	require.NoError(t, err)
	assert.Equal(t, 1, remote.readCalls, "second GetAll must not touch the remote")
}

func TestGetHeaders(t *testing.T) {
	store := NewStore(seeded())
	headers, err := store.GetHeaders(context.Background(), "People")
	require.NoError(t, err)
	assert.Equal(t, []string{"Имя", "Фамилия", "Дата рождения", "Телефон", "Адрес"}, headers)
}

func TestGetHeadersEmptySheet(t *testing.T) {
	store := NewStore(newFakeRemote())
	headers, err := store.GetHeaders(context.Background(), "Empty")
	require.NoError(t, err)
	assert.Empty(t, headers)
}

func TestRefreshReturnsRowCount(t *testing.T) {
	store := NewStore(seeded())
	count, err := store.Refresh(context.Background(), "People")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestAppendRowWriteThrough(t *testing.T) {
	remote := seeded()
	store := NewStore(remote)
	ctx := context.Background()

	_, err := store.GetAll(ctx, "People")
	require.NoError(t, err)

	count, err := store.AppendRow(ctx, "People", []string{"Вера", "Смирнова"})
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	assert.Equal(t, len(remote.data["People"]), count, "mirror and remote row counts must match")
	assert.Equal(t, 1, remote.readCalls, "warm append must not refetch")
}

func TestAppendRowRemoteFailure(t *testing.T) {
	remote := seeded()
	remote.appendErr = errors.New("quota exceeded")
	store := NewStore(remote)
	ctx := context.Background()

	_, err := store.GetAll(ctx, "People")
	require.NoError(t, err)

	_, err = store.AppendRow(ctx, "People", []string{"Вера"})
	require.Error(t, err)

	rows, _ := store.GetAll(ctx, "People")
	assert.Len(t, rows, 3, "mirror must not grow on remote failure")
}

func TestAppendRowColdStoreRefreshes(t *testing.T) {
	remote := seeded()
	store := NewStore(remote)

	count, err := store.AppendRow(context.Background(), "People", []string{"Вера", "Смирнова"})
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	assert.Equal(t, 1, remote.readCalls)
}

func TestUpdateRowPreservesWidth(t *testing.T) {
	remote := seeded()
	store := NewStore(remote)
	ctx := context.Background()

	_, err := store.GetAll(ctx, "People")
	require.NoError(t, err)

	// Row 3 currently has 5 cells; a 2-cell update must keep width 5.
	require.NoError(t, store.UpdateRow(ctx, "People", 3, []string{"Борис", "Сидоров"}))

	rows, _ := store.GetAll(ctx, "People")
	require.Len(t, rows[2], 5)
	assert.Equal(t, []string{"Борис", "Сидоров", "", "", ""}, rows[2])
}

func TestUpdateRowColdStoreRefreshes(t *testing.T) {
	remote := seeded()
	store := NewStore(remote)

	require.NoError(t, store.UpdateRow(context.Background(), "People", 2, []string{"Анна", "Иванова"}))
	assert.Equal(t, 1, remote.readCalls, "cold update falls back to a full refresh")
}

func TestUpdateRowRemoteFailureLeavesMirror(t *testing.T) {
	remote := seeded()
	store := NewStore(remote)
	ctx := context.Background()

	_, err := store.GetAll(ctx, "People")
	require.NoError(t, err)

	remote.updateErr = errors.New("boom")
	require.Error(t, store.UpdateRow(ctx, "People", 2, []string{"X"}))

	rows, _ := store.GetAll(ctx, "People")
	assert.Equal(t, "Анна", rows[1][0])
}

func TestAddColumnExisting(t *testing.T) {
	remote := seeded()
	store := NewStore(remote)

	added, err := store.AddColumn(context.Background(), "People", "Телефон")
	require.NoError(t, err)
	assert.False(t, added)
	assert.Empty(t, remote.headerCalls, "existing column must cause no remote write")
}

func TestAddColumnNew(t *testing.T) {
	remote := seeded()
	store := NewStore(remote)
	ctx := context.Background()

	added, err := store.AddColumn(ctx, "People", "Email")
	require.NoError(t, err)
	assert.True(t, added)
	require.Len(t, remote.headerCalls, 1)
	assert.Equal(t, 6, remote.headerCalls[0], "new header goes after the last existing one")

	headers, _ := store.GetHeaders(ctx, "People")
	assert.Contains(t, headers, "Email")
}

func TestInvalidateForcesRefetch(t *testing.T) {
	remote := seeded()
	store := NewStore(remote)
	ctx := context.Background()

	_, err := store.GetAll(ctx, "People")
	require.NoError(t, err)
	store.Invalidate("People")

	_, err = store.GetAll(ctx, "People")
	require.NoError(t, err)
	assert.Equal(t, 2, remote.readCalls)
}
