package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"ppbooks/noveltybot/logger"
	apperrors "ppbooks/noveltybot/pkg/errors"
)

// FileLedger stores the ledger as a JSON array of URLs
type FileLedger struct {
	path string
	log  *logger.Logger
}

// NewFileLedger creates a ledger backed by the JSON file at path
func NewFileLedger(path string) *FileLedger {
	return &FileLedger{
		path: path,
		log:  logger.ForLedger().WithField("path", path),
	}
}

// Path returns the ledger file location
func (l *FileLedger) Path() string {
	return l.path
}

// Load reads the ledger. A missing, empty or malformed file yields an empty set.
func (l *FileLedger) Load(_ context.Context) (URLSet, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			l.log.Warn().Msg("Ledger file not found, starting with an empty ledger")
		} else {
			l.log.Warn().Err(err).Msg("Ledger file unreadable, starting with an empty ledger")
		}
		return NewURLSet(), nil
	}

	if len(bytes.TrimSpace(data)) == 0 {
		l.log.Warn().Msg("Ledger file is empty, starting with an empty ledger")
		return NewURLSet(), nil
	}

	var urls []string
	if err := json.Unmarshal(data, &urls); err != nil {
		l.log.Warn().Err(err).Msg("Ledger file is corrupt, starting with an empty ledger")
		return NewURLSet(), nil
	}

	set := NewURLSet(urls...)
	l.log.Debug().Int("urls", set.Len()).Msg("Ledger loaded")
	return set, nil
}

// Save overwrites the ledger with set. The file is replaced atomically so a
// crash mid-write leaves the previous ledger intact.
func (l *FileLedger) Save(_ context.Context, set URLSet) error {
	data, err := json.MarshalIndent(set.Sorted(), "", "  ")
	if err != nil {
		return apperrors.NewLedger(l.path, "encode ledger", err)
	}

	dir := filepath.Dir(l.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(l.path)+".*.tmp")
	if err != nil {
		return apperrors.NewLedger(l.path, "create temp file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return apperrors.NewLedger(l.path, "write temp file", err)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.NewLedger(l.path, "close temp file", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		return apperrors.NewLedger(l.path, "replace ledger file", err)
	}

	l.log.Debug().Int("urls", set.Len()).Msg("Ledger saved")
	return nil
}
