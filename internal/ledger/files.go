package ledger

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

const ledgerHeader = `# Property Status Tracking

<!-- Status tags: [ ] = Not reviewed, [YES] = Interested, [NO] = Not interested, [MAYBE] = Maybe -->

`

// ReadLedgerFile parses the ledger file. A missing file is an empty ledger.
func ReadLedgerFile(path string) ([]Entry, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "ledger: read %s", path)
	}
	return Parse(string(raw)), nil
}

// AppendToLedgerFile appends lines to the ledger, creating it with its
// header when absent. Existing content is never touched.
func AppendToLedgerFile(path string, lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "ledger: mkdir for %s", path)
	}

	_, statErr := os.Stat(path)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return eris.Wrapf(err, "ledger: open %s", path)
	}
	defer func() { _ = f.Close() }()

	var sb strings.Builder
	if os.IsNotExist(statErr) {
		sb.WriteString(ledgerHeader)
	}
	for _, line := range lines {
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	if _, err := f.WriteString(sb.String()); err != nil {
		return eris.Wrapf(err, "ledger: append %s", path)
	}
	return nil
}

// ReadInboxFile returns the URLs queued for scraping, in file order.
// Comments, blank lines and non-URL lines are skipped.
func ReadInboxFile(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "ledger: read inbox %s", path)
	}

	var urls []string
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "<!--") {
			continue
		}
		if strings.HasPrefix(line, "http://") || strings.HasPrefix(line, "https://") {
			urls = append(urls, line)
		}
	}
	return urls, nil
}

// RemoveFromInboxFile drops the given URLs from the inbox, keeping every
// other line in place. URLs that failed to process stay queued.
func RemoveFromInboxFile(path string, urls []string) error {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return eris.Wrapf(err, "ledger: read inbox %s", path)
	}

	drop := make(map[string]bool, len(urls))
	for _, u := range urls {
		drop[u] = true
	}

	var kept []string
	for _, line := range strings.Split(string(raw), "\n") {
		if drop[strings.TrimSpace(line)] {
			continue
		}
		kept = append(kept, line)
	}
	out := strings.Join(kept, "\n")
	if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
		return eris.Wrapf(err, "ledger: write inbox %s", path)
	}
	return nil
}
