// Package ledger keeps the human review file and the database in sync.
// The ledger is a markdown file owned by a person: one `[TAG] url` line
// per listing, edited by hand. The tool only ever appends to it.
package ledger

import (
	"context"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/propscout/propscout-cli/internal/model"
	"github.com/propscout/propscout-cli/internal/store"
)

var entryRe = regexp.MustCompile(`^\[(.*?)\]\s+(https?://\S+)`)

// Entry is one parsed ledger line.
type Entry struct {
	Status model.Status
	URL    string
}

// Parse extracts entries from ledger text. Blank lines, comments and
// malformed lines are ignored; later entries for the same URL win.
func Parse(text string) []Entry {
	seen := make(map[string]int)
	var out []Entry

	for _, line := range strings.Split(text, "\n") {
		m := entryRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		status, ok := model.ParseStatus(m[1])
		if !ok {
			zap.L().Debug("skipping ledger line with unknown tag", zap.String("tag", m[1]))
			continue
		}
		entry := Entry{Status: status, URL: m[2]}
		if i, dup := seen[entry.URL]; dup {
			out[i] = entry
			continue
		}
		seen[entry.URL] = len(out)
		out = append(out, entry)
	}
	return out
}

// SyncResult summarizes a ledger-to-store sync.
type SyncResult struct {
	Updated int
	Skipped int // unchanged or not in the store
}

// Sync pushes ledger verdicts into the store. Entries whose record is
// missing (deleted, or never scraped) are skipped: the ledger stays the
// human's file and is never pruned here.
func Sync(ctx context.Context, st store.Store, entries []Entry) (SyncResult, error) {
	var res SyncResult
	for _, e := range entries {
		rec, err := st.GetByURL(ctx, e.URL)
		if err != nil {
			if eris.Is(err, store.ErrNotFound) {
				res.Skipped++
				continue
			}
			return res, eris.Wrapf(err, "ledger: sync %s", e.URL)
		}
		if rec.Status == e.Status {
			res.Skipped++
			continue
		}
		changed, err := st.UpdateStatus(ctx, e.URL, e.Status)
		if err != nil {
			return res, eris.Wrapf(err, "ledger: update %s", e.URL)
		}
		if changed {
			res.Updated++
		} else {
			res.Skipped++
		}
	}
	zap.L().Info("ledger sync complete",
		zap.Int("updated", res.Updated),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

// Absorb returns the ledger lines to append for URLs not yet tracked,
// preserving the given order. Existing entries are never rewritten.
func Absorb(existing []Entry, urls []string) []string {
	tracked := make(map[string]bool, len(existing))
	for _, e := range existing {
		tracked[e.URL] = true
	}

	var lines []string
	for _, u := range urls {
		if tracked[u] {
			continue
		}
		tracked[u] = true
		lines = append(lines, "["+model.StatusUnset.Tag()+"] "+u)
	}
	return lines
}
