package ledger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propscout/propscout-cli/internal/model"
	"github.com/propscout/propscout-cli/internal/store"
)

const sampleLedger = `# Property Status Tracking

<!-- Status tags: [ ] = Not reviewed, [YES] = Interested -->

[ ] https://site.com/p/1
[YES] https://site.com/p/2
[NO] https://site.com/p/3
[MAYBE] https://site.com/p/4
[WAT] https://site.com/p/5
this line is not an entry
[YES]https://site.com/no-space-is-malformed
`

func TestParse(t *testing.T) {
	entries := Parse(sampleLedger)
	require.Len(t, entries, 4)

	assert.Equal(t, Entry{Status: model.StatusUnset, URL: "https://site.com/p/1"}, entries[0])
	assert.Equal(t, Entry{Status: model.StatusYes, URL: "https://site.com/p/2"}, entries[1])
	assert.Equal(t, Entry{Status: model.StatusNo, URL: "https://site.com/p/3"}, entries[2])
	assert.Equal(t, Entry{Status: model.StatusMaybe, URL: "https://site.com/p/4"}, entries[3])
}

func TestParseLastEntryWins(t *testing.T) {
	entries := Parse("[ ] https://site.com/p/1\n[YES] https://site.com/p/1\n")
	require.Len(t, entries, 1)
	assert.Equal(t, model.StatusYes, entries[0].Status)
}

func newSyncStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSync(t *testing.T) {
	s := newSyncStore(t)
	ctx := context.Background()

	for _, url := range []string{"https://site.com/p/1", "https://site.com/p/2"} {
		_, _, err := s.Upsert(ctx, url, model.FieldMap{"precio": float64(1)}, store.UpsertOptions{})
		require.NoError(t, err)
	}

	res, err := Sync(ctx, s, []Entry{
		{Status: model.StatusYes, URL: "https://site.com/p/1"},   // changed
		{Status: model.StatusUnset, URL: "https://site.com/p/2"}, // unchanged
		{Status: model.StatusNo, URL: "https://site.com/gone"},   // not stored
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 2, res.Skipped)

	rec, err := s.GetByURL(ctx, "https://site.com/p/1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusYes, rec.Status)
}

func TestAbsorb(t *testing.T) {
	existing := Parse("[YES] https://site.com/p/1\n")

	lines := Absorb(existing, []string{
		"https://site.com/p/1", // already tracked
		"https://site.com/p/2",
		"https://site.com/p/3",
		"https://site.com/p/2", // duplicate input
	})
	assert.Equal(t, []string{
		"[ ] https://site.com/p/2",
		"[ ] https://site.com/p/3",
	}, lines)
}

func TestLedgerFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "properties-status.md")

	entries, err := ReadLedgerFile(path)
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, AppendToLedgerFile(path, []string{"[ ] https://site.com/p/1"}))
	require.NoError(t, AppendToLedgerFile(path, []string{"[ ] https://site.com/p/2"}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "# Property Status Tracking")

	entries, err = ReadLedgerFile(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "https://site.com/p/1", entries[0].URL)

	// Appends never rewrite what the human already tagged.
	require.NoError(t, os.WriteFile(path, []byte("[YES] https://site.com/p/1\n"), 0o644))
	require.NoError(t, AppendToLedgerFile(path, []string{"[ ] https://site.com/p/9"}))
	entries, err = ReadLedgerFile(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.StatusYes, entries[0].Status)
}

func TestInboxFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "links-to-scrape.md")
	content := `# Links queued for scraping

https://site.com/p/1
not-a-url
<!-- comment -->
https://site.com/p/2
https://site.com/p/3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	urls, err := ReadInboxFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://site.com/p/1",
		"https://site.com/p/2",
		"https://site.com/p/3",
	}, urls)

	// Remove only the processed URLs; the failed one stays queued.
	require.NoError(t, RemoveFromInboxFile(path, []string{
		"https://site.com/p/1",
		"https://site.com/p/3",
	}))

	urls, err = ReadInboxFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://site.com/p/2"}, urls)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "# Links queued for scraping")
}

func TestInboxFileMissing(t *testing.T) {
	urls, err := ReadInboxFile(filepath.Join(t.TempDir(), "nope.md"))
	require.NoError(t, err)
	assert.Empty(t, urls)

	require.NoError(t, RemoveFromInboxFile(filepath.Join(t.TempDir(), "nope.md"), []string{"x"}))
}
