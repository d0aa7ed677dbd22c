package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wyhuang-tw/taichung-airmicro-viewer/internal/models"
	"github.com/wyhuang-tw/taichung-airmicro-viewer/internal/opendata"
)

// Filename is the snapshot artifact inside the data directory.
const Filename = "taichung_micro_latest.json"

// ErrNoSnapshot means no usable snapshot exists on disk. A missing file
// and an unparseable one are deliberately indistinguishable.
var ErrNoSnapshot = errors.New("no snapshot available")

// Snapshot is the persisted raw dataset plus its fetch metadata.
type Snapshot struct {
	SavedAtLocal string           `json:"saved_at_local"`
	SourceAPI    string           `json:"source_api"`
	Count        int              `json:"count"`
	Records      []map[string]any `json:"records"`

	// ModTime is the snapshot file's modification time, filled on read.
	ModTime time.Time `json:"-"`
}

// Store reads and writes the dataset snapshot in a directory.
type Store struct {
	Dir string
	Log logrus.FieldLogger
}

// NewStore builds a store rooted at dir.
func NewStore(dir string, log logrus.FieldLogger) *Store {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Store{Dir: dir, Log: log.WithField("component", "snapshot")}
}

// Path returns the snapshot file location.
func (s *Store) Path() string {
	return filepath.Join(s.Dir, Filename)
}

// Write atomically replaces the snapshot with the given raw records.
// The document is written to a temp file in the same directory and
// renamed over the old one, so readers never observe a partial snapshot.
func (s *Store) Write(records []map[string]any, sourceURL string, savedAt time.Time) error {
	if records == nil {
		records = []map[string]any{}
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	snap := Snapshot{
		SavedAtLocal: savedAt.Format(models.LocalTimeLayout),
		SourceAPI:    sourceURL,
		Count:        len(records),
		Records:      records,
	}

	// Keep CJK field names readable in the file.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&snap); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(s.Dir, Filename+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.Path()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace snapshot: %w", err)
	}

	s.Log.WithFields(logrus.Fields{"path": s.Path(), "records": len(records)}).Info("snapshot saved")
	return nil
}

// Read loads the snapshot, tolerating the alternate field spellings
// older fetchers wrote (fetched_at, used_api, nested meta.fetched_at)
// and even a bare record list. Any failure to produce a usable document
// reports ErrNoSnapshot.
func (s *Store) Read() (*Snapshot, error) {
	path := s.Path()

	fi, err := os.Stat(path)
	if err != nil {
		return nil, ErrNoSnapshot
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, ErrNoSnapshot
	}

	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		s.Log.WithError(err).WithField("path", path).Warn("snapshot unreadable")
		return nil, ErrNoSnapshot
	}

	snap := &Snapshot{
		Records: opendata.ExtractRecords(payload),
		ModTime: fi.ModTime(),
	}

	if obj, ok := payload.(map[string]any); ok {
		snap.SavedAtLocal = firstString(obj, "saved_at_local", "fetched_at")
		if snap.SavedAtLocal == "" {
			if meta, ok := obj["meta"].(map[string]any); ok {
				snap.SavedAtLocal = firstString(meta, "fetched_at", "saved_at_local")
			}
		}
		snap.SourceAPI = firstString(obj, "source_api", "used_api")
	}

	snap.Count = len(snap.Records)
	return snap, nil
}

// firstString returns the first non-blank string value under the given
// keys.
func firstString(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := obj[k].(string); ok {
			if t := strings.TrimSpace(v); t != "" {
				return t
			}
		}
	}
	return ""
}
