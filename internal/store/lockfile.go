package store

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.uber.org/zap"

	"vibe/internal/fsutil"
	"vibe/internal/logging"
)

//go:embed schema/lock.schema.json
var lockSchemaBytes []byte

var (
	lockSchema     *jsonschema.Schema
	lockSchemaOnce sync.Once
	lockSchemaErr  error
)

// LoadStatus tells how a lock was obtained.
type LoadStatus string

const (
	StatusLoaded    LoadStatus = "loaded"
	StatusMissing   LoadStatus = "missing"
	StatusRecovered LoadStatus = "recovered"
)

// LoadResult carries the lock together with how it was obtained. Problem is
// set when Status is StatusRecovered.
type LoadResult struct {
	Lock    Lock
	Status  LoadStatus
	Problem error
}

func compiledLockSchema() (*jsonschema.Schema, error) {
	lockSchemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(lockSchemaBytes))
		if err != nil {
			lockSchemaErr = fmt.Errorf("LOCK_SCHEMA: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("lock.schema.json", doc); err != nil {
			lockSchemaErr = fmt.Errorf("LOCK_SCHEMA: %w", err)
			return
		}
		lockSchema, lockSchemaErr = c.Compile("lock.schema.json")
	})
	return lockSchema, lockSchemaErr
}

// ReadLock loads the lock at path. It never fails: a missing file yields an
// empty lock, and a file that does not parse or does not match the lock
// schema yields an empty lock with StatusRecovered.
func ReadLock(path string) LoadResult {
	blob, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return LoadResult{Lock: NewLock(), Status: StatusMissing}
		}
		return recovered(fmt.Errorf("LOCK_READ: %w", err))
	}
	if err := validateLock(blob); err != nil {
		return recovered(err)
	}
	var lock Lock
	if err := json.Unmarshal(blob, &lock); err != nil {
		return recovered(fmt.Errorf("LOCK_PARSE: %w", err))
	}
	if lock.Tools == nil {
		lock.Tools = map[string]InstalledItem{}
	}
	if lock.Rules == nil {
		lock.Rules = map[string]InstalledItem{}
	}
	return LoadResult{Lock: lock, Status: StatusLoaded}
}

func validateLock(blob []byte) error {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(blob))
	if err != nil {
		return fmt.Errorf("LOCK_PARSE: %w", err)
	}
	schema, err := compiledLockSchema()
	if err != nil {
		return err
	}
	if err := schema.Validate(inst); err != nil {
		return fmt.Errorf("LOCK_SCHEMA: %w", err)
	}
	return nil
}

func recovered(problem error) LoadResult {
	return LoadResult{Lock: NewLock(), Status: StatusRecovered, Problem: problem}
}

// WriteLock persists lock as indented JSON, creating parent directories.
func WriteLock(path string, lock Lock) error {
	if lock.Version == 0 {
		lock.Version = LockVersion
	}
	if lock.Tools == nil {
		lock.Tools = map[string]InstalledItem{}
	}
	if lock.Rules == nil {
		lock.Rules = map[string]InstalledItem{}
	}
	blob, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return fmt.Errorf("LOCK_ENCODE: %w", err)
	}
	if err := fsutil.AtomicWrite(path, append(blob, '\n'), 0o644); err != nil {
		return fmt.Errorf("LOCK_WRITE: %w", err)
	}
	return nil
}

// Store is the lock file of one workspace. It warns about a corrupt lock
// file the first time it is recovered and stays quiet afterwards.
type Store struct {
	path   string
	logger *zap.Logger
	warned sync.Once
}

func New(path string, logger *zap.Logger) *Store {
	return &Store{path: path, logger: logging.OrNop(logger)}
}

func (s *Store) Path() string { return s.path }

func (s *Store) Load() LoadResult {
	res := ReadLock(s.path)
	if res.Status == StatusRecovered {
		s.warned.Do(func() {
			s.logger.Warn("lock file unreadable, starting from an empty lock",
				zap.String("path", s.path), zap.Error(res.Problem))
		})
	}
	return res
}

func (s *Store) Save(lock Lock) error {
	return WriteLock(s.path, lock)
}
