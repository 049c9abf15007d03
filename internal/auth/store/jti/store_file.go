package jti

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"bureau/internal/auth/models"
	dErrors "bureau/pkg/domain-errors"
)

// FileStore keeps the registry as newline-delimited
// "jti,userId,createdAtEpoch" records. Appends are single O_APPEND
// writes, so rows stay atomic; deletes rewrite to a temp file in the
// same directory and rename over the original, which never corrupts
// concurrent readers.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFile constructs the store, failing with a storage error when the
// backing location cannot be created or written.
func NewFile(path string) (*FileStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "jti store directory is not creatable")
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "jti store file is not writable")
	}
	if err := f.Close(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "jti store file is not writable")
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Save(_ context.Context, record models.JTIRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to open jti store")
	}
	defer f.Close()

	line := fmt.Sprintf("%s,%s,%d\n", record.JTI, record.UserID, record.CreatedAt.Unix())
	if _, err := f.WriteString(line); err != nil {
		return dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to append jti record")
	}
	return nil
}

func (s *FileStore) Has(_ context.Context, jti uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readAll()
	if err != nil {
		return false, err
	}
	for _, r := range records {
		if r.JTI == jti {
			return true, nil
		}
	}
	return false, nil
}

func (s *FileStore) Delete(_ context.Context, jti uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.rewrite(func(r models.JTIRecord) bool {
		return r.JTI != jti
	})
	return err
}

func (s *FileStore) DeleteExpiredBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.rewrite(func(r models.JTIRecord) bool {
		return !r.CreatedAt.Before(cutoff)
	})
}

// rewrite keeps records matching keep, writing the survivors to a temp
// file and renaming it into place. A missing store file is a no-op.
func (s *FileStore) rewrite(keep func(models.JTIRecord) bool) (int, error) {
	records, err := s.readAll()
	if err != nil {
		return 0, err
	}
	if records == nil {
		return 0, nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".jti-*")
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to create jti rewrite file")
	}
	tmpName := tmp.Name()

	removed := 0
	w := bufio.NewWriter(tmp)
	for _, r := range records {
		if !keep(r) {
			removed++
			continue
		}
		if _, err := fmt.Fprintf(w, "%s,%s,%d\n", r.JTI, r.UserID, r.CreatedAt.Unix()); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return 0, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to write jti rewrite file")
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return 0, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to flush jti rewrite file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return 0, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to close jti rewrite file")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return 0, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to replace jti store file")
	}
	return removed, nil
}

// readAll parses the store file. Returns nil (no records, no error)
// when the file does not exist yet. Unparseable lines indicate a
// corrupt store and surface as storage failures.
func (s *FileStore) readAll() ([]models.JTIRecord, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to open jti store")
	}
	defer f.Close()

	records := make([]models.JTIRecord, 0, 16)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		record, err := parseLine(line)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to read jti store")
	}
	return records, nil
}

func parseLine(line string) (models.JTIRecord, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 3 {
		return models.JTIRecord{}, dErrors.New(dErrors.CodeStorageFailure, "corrupt jti record: "+line)
	}
	id, err := uuid.Parse(parts[0])
	if err != nil {
		return models.JTIRecord{}, dErrors.Wrap(err, dErrors.CodeStorageFailure, "corrupt jti id")
	}
	userID, err := uuid.Parse(parts[1])
	if err != nil {
		return models.JTIRecord{}, dErrors.Wrap(err, dErrors.CodeStorageFailure, "corrupt jti user id")
	}
	epoch, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return models.JTIRecord{}, dErrors.Wrap(err, dErrors.CodeStorageFailure, "corrupt jti timestamp")
	}
	return models.JTIRecord{
		JTI:       id,
		UserID:    userID,
		CreatedAt: time.Unix(epoch, 0).UTC(),
	}, nil
}
