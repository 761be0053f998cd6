package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/wzshiming/gitassets/pkg/hash"
)

// HashMismatch is a data file whose content does not hash to its name.
type HashMismatch struct {
	Name     string
	Expected hash.Hash
	Actual   hash.Hash
}

// Report is the result of Validate.
type Report struct {
	// Entries is the number of data files checked.
	Entries        int
	HashMismatches []HashMismatch
	// Unexpected lists paths, relative to the store root, that do not
	// belong in the store.
	Unexpected []string
	// Stale lists staging files left behind by interrupted puts.
	Stale []string
}

// Valid reports whether the store is consistent. Stale staging files do
// not count against it.
func (r *Report) Valid() bool {
	return len(r.HashMismatches) == 0 && len(r.Unexpected) == 0
}

// Validate checks that every data file is named after the hash of its
// content and that nothing else lives in the store.
func (s *Store) Validate() (*Report, error) {
	report := &Report{}

	rootEntries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("reading store root: %w", err)
	}
	for _, entry := range rootEntries {
		switch entry.Name() {
		case dataDirName, stagingDirName, refDirName:
			if !entry.IsDir() {
				report.Unexpected = append(report.Unexpected, entry.Name())
			}
		case catalogName:
			if !entry.Type().IsRegular() {
				report.Unexpected = append(report.Unexpected, entry.Name())
			}
		default:
			report.Unexpected = append(report.Unexpected, entry.Name())
		}
	}

	dataEntries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return nil, fmt.Errorf("reading store data: %w", err)
	}
	for _, entry := range dataEntries {
		rel := filepath.Join(dataDirName, entry.Name())
		if !entry.Type().IsRegular() {
			report.Unexpected = append(report.Unexpected, rel)
			continue
		}
		expected, err := hash.Parse(entry.Name())
		if err != nil {
			report.Unexpected = append(report.Unexpected, rel)
			continue
		}
		actual, err := hashFile(filepath.Join(s.dataDir, entry.Name()))
		if err != nil {
			return nil, err
		}
		report.Entries++
		if actual != expected {
			report.HashMismatches = append(report.HashMismatches, HashMismatch{
				Name:     rel,
				Expected: expected,
				Actual:   actual,
			})
		}
	}

	stagingEntries, err := os.ReadDir(s.stagingDir)
	if err != nil {
		return nil, fmt.Errorf("reading store staging: %w", err)
	}
	for _, entry := range stagingEntries {
		report.Stale = append(report.Stale, filepath.Join(stagingDirName, entry.Name()))
	}

	sort.Strings(report.Unexpected)
	return report, nil
}

// Objects returns the cataloged objects ordered by hash.
func (s *Store) Objects() ([]Record, error) {
	if s.catalog == nil {
		return nil, nil
	}
	return s.catalog.List()
}

// Reindex rebuilds the catalog from the data directory. Files that are not
// named after a hash are skipped; Validate reports them.
func (s *Store) Reindex() (int, error) {
	if s.catalog == nil {
		return 0, nil
	}

	dataEntries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return 0, fmt.Errorf("reading store data: %w", err)
	}
	records := make([]Record, 0, len(dataEntries))
	for _, entry := range dataEntries {
		if !entry.Type().IsRegular() {
			continue
		}
		h, err := hash.Parse(entry.Name())
		if err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return 0, err
		}
		records = append(records, Record{
			Hash:     h,
			Size:     info.Size(),
			StoredAt: info.ModTime().UTC(),
		})
	}

	if err := s.catalog.Replace(records); err != nil {
		return 0, err
	}
	s.logger.Debug("rebuilt catalog", "objects", len(records))
	return len(records), nil
}

func hashFile(path string) (hash.Hash, error) {
	f, err := os.Open(path)
	if err != nil {
		return hash.Hash{}, fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer f.Close()

	hasher := hash.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return hash.Hash{}, fmt.Errorf("hashing %s: %w", path, err)
	}
	return hasher.Hash(), nil
}
