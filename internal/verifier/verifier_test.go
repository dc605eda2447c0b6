package verifier

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"surf-core/internal/coreapi"
	"surf-core/internal/storage"
)

func newTestVerifier(t *testing.T) *Verifier {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := storage.Open(dbPath, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return New(store, nil, nil)
}

func TestVerifyStructural_FilesExist(t *testing.T) {
	v := newTestVerifier(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	require.NoError(t, os.WriteFile(path, []byte("hi"), 0o644))

	res, err := v.VerifyStructural(context.Background(), "files_exist:"+path)
	require.NoError(t, err)
	require.True(t, res.Passed)

	_, err = v.VerifyStructural(context.Background(), "files_exist:"+filepath.Join(dir, "missing.txt"))
	require.Error(t, err)
}

func TestVerifyStructural_FilesNotEmpty(t *testing.T) {
	v := newTestVerifier(t)
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))

	res, err := v.VerifyStructural(context.Background(), "files_not_empty:"+empty)
	require.Error(t, err)
	require.False(t, res.Passed)
}

func TestVerifyStructural_FilesMatchListing(t *testing.T) {
	v := newTestVerifier(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("b"), 0o644))
	listing := filepath.Join(dir, "files.txt")
	require.NoError(t, os.WriteFile(listing, []byte("a.txt\nb.txt\n"), 0o644))

	res, err := v.VerifyStructural(context.Background(), "files_match_listing:"+listing)
	require.NoError(t, err)
	require.True(t, res.Passed)
}

func TestVerifyStructural_FilesMatchListingMismatch(t *testing.T) {
	v := newTestVerifier(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))
	listing := filepath.Join(dir, "files.txt")
	require.NoError(t, os.WriteFile(listing, []byte("a.txt\nb.txt\n"), 0o644))

	_, err := v.VerifyStructural(context.Background(), "files_match_listing:"+listing)
	require.Error(t, err)
}

func TestVerifyUIStructural(t *testing.T) {
	v := newTestVerifier(t)
	tree := coreapi.UITree{Root: coreapi.UINode{
		Role: "window", Name: "root",
		Children: []coreapi.UINode{{Role: "button", Name: "Submit", StableRefID: "r1"}},
	}}

	res, err := v.VerifyUIStructural(context.Background(), UICondition{Role: "button", Name: "Submit"}, tree)
	require.NoError(t, err)
	require.True(t, res.Passed)

	_, err = v.VerifyUIStructural(context.Background(), UICondition{Role: "button", Name: "Cancel"}, tree)
	require.Error(t, err)
}

type fakeAsker struct{ answer string }

func (f fakeAsker) Ask(ctx context.Context, question string) (string, error) { return f.answer, nil }

func TestVerifyVisual(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := storage.Open(dbPath, nil)
	require.NoError(t, err)
	defer store.Close()

	v := New(store, fakeAsker{answer: "YES, it is visible"}, nil)
	res, err := v.VerifyVisual(context.Background(), "Is the search bar visible?")
	require.NoError(t, err)
	require.True(t, res.Passed)

	v2 := New(store, fakeAsker{answer: "No"}, nil)
	_, err = v2.VerifyVisual(context.Background(), "Is the search bar visible?")
	require.Error(t, err)
}
