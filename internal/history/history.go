package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"

	"recast/internal/convert"
	"recast/internal/fileutil"
)

// entryPrefix namespaces history keys. Keys are
// "entry/<zero-padded unix nanos>-<uuid>" so byte order equals time order.
const entryPrefix = "entry/"

// DefaultMaxEntries caps the store when the caller passes no explicit limit.
const DefaultMaxEntries = 100

// Entry records one finished conversion. Entries are immutable once written
// except for the lazily generated thumbnail path.
type Entry struct {
	ID               string           `json:"id"`
	SourcePath       string           `json:"sourcePath"`
	SourceName       string           `json:"sourceName"`
	OutputPath       string           `json:"outputPath"`
	OutputFormat     string           `json:"outputFormat"`
	Settings         convert.Settings `json:"settings"`
	Status           convert.Status   `json:"status"`
	ErrorMessage     string           `json:"errorMessage,omitempty"`
	SourceDurationMs int64            `json:"sourceDurationMs"`
	OutputSizeBytes  int64            `json:"outputSizeBytes"`
	ElapsedMs        int64            `json:"elapsedMs"`
	CompletedAt      time.Time        `json:"completedAt"`
	ThumbnailPath    string           `json:"thumbnailPath,omitempty"`
}

// Stats summarizes the store contents.
type Stats struct {
	TotalEntries     int   `json:"totalEntries"`
	Completed        int   `json:"completed"`
	Failed           int   `json:"failed"`
	Cancelled        int   `json:"cancelled"`
	TotalOutputBytes int64 `json:"totalOutputBytes"`
	TotalElapsedMs   int64 `json:"totalElapsedMs"`
}

// Store persists conversion history in a Pebble database.
type Store struct {
	db         *pebble.DB
	maxEntries int

	mu sync.Mutex
}

// NewStore opens (or creates) the history database under dir. maxEntries
// bounds retention; values below 1 fall back to DefaultMaxEntries.
func NewStore(dir string, maxEntries int) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("history: directory required")
	}
	if maxEntries < 1 {
		maxEntries = DefaultMaxEntries
	}
	db, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("history: open store: %w", err)
	}
	return &Store{db: db, maxEntries: maxEntries}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add persists an entry, assigning its ID and completion timestamp when
// unset, then trims the oldest entries beyond the retention cap. The stored
// entry is returned.
func (s *Store) Add(entry Entry) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CompletedAt.IsZero() {
		entry.CompletedAt = time.Now().UTC()
	}
	if entry.SourceName == "" {
		entry.SourceName = filepath.Base(entry.SourcePath)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return Entry{}, fmt.Errorf("history: marshal entry: %w", err)
	}
	if err := s.db.Set(entryKey(entry), data, pebble.Sync); err != nil {
		return Entry{}, fmt.Errorf("history: persist entry: %w", err)
	}
	if err := s.trimLocked(); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// Get returns the entry with the given ID. The second return is false when
// no such entry exists.
func (s *Store) Get(id string) (Entry, bool, error) {
	_, entry, err := s.find(id)
	if err != nil {
		if errors.Is(err, errEntryNotFound) {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	return entry, true, nil
}

// List returns all entries newest first.
func (s *Store) List() ([]Entry, error) {
	iter, err := s.newEntryIter()
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var entries []Entry
	for valid := iter.Last(); valid; valid = iter.Prev() {
		var entry Entry
		if err := json.Unmarshal(iter.Value(), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Delete removes one entry by ID.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, entry, err := s.find(id)
	if err != nil {
		return err
	}
	if err := s.db.Delete(key, pebble.Sync); err != nil {
		return fmt.Errorf("history: delete entry: %w", err)
	}
	if entry.ThumbnailPath != "" {
		_ = fileutil.RemoveIfExists(entry.ThumbnailPath)
	}
	return nil
}

// Clear removes every entry along with any thumbnails they reference.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	iter, err := s.newEntryIter()
	if err != nil {
		return err
	}
	var thumbnails []string
	for valid := iter.First(); valid; valid = iter.Next() {
		var entry Entry
		if err := json.Unmarshal(iter.Value(), &entry); err != nil {
			continue
		}
		if entry.ThumbnailPath != "" {
			thumbnails = append(thumbnails, entry.ThumbnailPath)
		}
	}
	iter.Close()

	start, end := entryKeyBounds()
	if err := s.db.DeleteRange(start, end, pebble.Sync); err != nil {
		return fmt.Errorf("history: clear store: %w", err)
	}
	for _, path := range thumbnails {
		_ = fileutil.RemoveIfExists(path)
	}
	return nil
}

// SetThumbnail attaches a generated preview path to an existing entry. This
// is the only mutation entries support after being written.
func (s *Store) SetThumbnail(id, thumbnailPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, entry, err := s.find(id)
	if err != nil {
		return err
	}
	entry.ThumbnailPath = thumbnailPath
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("history: marshal entry: %w", err)
	}
	if err := s.db.Set(key, data, pebble.Sync); err != nil {
		return fmt.Errorf("history: update entry: %w", err)
	}
	return nil
}

// Stats aggregates the store contents in one pass.
func (s *Store) Stats() (Stats, error) {
	iter, err := s.newEntryIter()
	if err != nil {
		return Stats{}, err
	}
	defer iter.Close()

	var stats Stats
	for valid := iter.First(); valid; valid = iter.Next() {
		var entry Entry
		if err := json.Unmarshal(iter.Value(), &entry); err != nil {
			continue
		}
		stats.TotalEntries++
		switch entry.Status {
		case convert.StatusCompleted:
			stats.Completed++
		case convert.StatusFailed:
			stats.Failed++
		case convert.StatusCancelled:
			stats.Cancelled++
		}
		stats.TotalOutputBytes += entry.OutputSizeBytes
		stats.TotalElapsedMs += entry.ElapsedMs
	}
	return stats, nil
}

// Health verifies the database answers reads.
func (s *Store) Health() error {
	_, closer, err := s.db.Get([]byte("__health__"))
	if err != nil && !errors.Is(err, pebble.ErrNotFound) {
		return fmt.Errorf("history: health check: %w", err)
	}
	if closer != nil {
		_ = closer.Close()
	}
	return nil
}

var errEntryNotFound = errors.New("history: entry not found")

// find scans for the entry with the given ID. Keys embed the completion
// timestamp, so lookup by ID alone requires iteration; the store is capped,
// which keeps the scan small.
func (s *Store) find(id string) ([]byte, Entry, error) {
	iter, err := s.newEntryIter()
	if err != nil {
		return nil, Entry{}, err
	}
	defer iter.Close()

	suffix := []byte("-" + id)
	for valid := iter.First(); valid; valid = iter.Next() {
		key := iter.Key()
		if len(key) < len(suffix) || string(key[len(key)-len(suffix):]) != string(suffix) {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(iter.Value(), &entry); err != nil {
			return nil, Entry{}, fmt.Errorf("history: decode entry: %w", err)
		}
		owned := append([]byte(nil), key...)
		return owned, entry, nil
	}
	return nil, Entry{}, fmt.Errorf("%w: %s", errEntryNotFound, id)
}

func (s *Store) trimLocked() error {
	iter, err := s.newEntryIter()
	if err != nil {
		return err
	}
	defer iter.Close()

	var keys [][]byte
	var thumbnails []string
	for valid := iter.First(); valid; valid = iter.Next() {
		keys = append(keys, append([]byte(nil), iter.Key()...))
		var entry Entry
		thumbnail := ""
		if err := json.Unmarshal(iter.Value(), &entry); err == nil {
			thumbnail = entry.ThumbnailPath
		}
		thumbnails = append(thumbnails, thumbnail)
	}
	excess := len(keys) - s.maxEntries
	for i := 0; i < excess; i++ {
		if err := s.db.Delete(keys[i], pebble.Sync); err != nil {
			return fmt.Errorf("history: trim store: %w", err)
		}
		if thumbnails[i] != "" {
			_ = fileutil.RemoveIfExists(thumbnails[i])
		}
	}
	return nil
}

func (s *Store) newEntryIter() (*pebble.Iterator, error) {
	start, end := entryKeyBounds()
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: start, UpperBound: end})
	if err != nil {
		return nil, fmt.Errorf("history: iterate store: %w", err)
	}
	return iter, nil
}

func entryKey(entry Entry) []byte {
	return []byte(fmt.Sprintf("%s%020d-%s", entryPrefix, entry.CompletedAt.UnixNano(), entry.ID))
}

// entryKeyBounds returns the half-open key range covering every entry key;
// '0' is the byte after '/'.
func entryKeyBounds() ([]byte, []byte) {
	return []byte(entryPrefix), []byte("entry0")
}
