// Package chunkstore stages in-flight chunked uploads on local disk.
//
// Layout: <root>/<fingerprint>/<chunkId>, one file per chunk, and
// <root>/.merged/<fingerprint><ext> for merged output. Chunks are content
// addressed, so a chunk that already exists is never rewritten.
package chunkstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"ai-knowledgebase-be/internal/entity"
)

const (
	tempPrefix    = ".partial-"
	mergedDirName = ".merged"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// WriteResult tells the caller whether the chunk was persisted by this call.
type WriteResult struct {
	ChunkId       string
	AlreadyExists bool
}

type Store struct {
	root string
}

func New(root string) *Store {
	return &Store{root: root}
}

func (s *Store) Root() string {
	return s.root
}

// ValidateIdentifier rejects anything that could escape the upload root or
// collide with the hidden temp and merged entries.
func ValidateIdentifier(id string) error {
	if id == "" || strings.HasPrefix(id, ".") || !identifierPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", entity.ErrInvalidIdentifier, id)
	}
	return nil
}

// SequenceIndex parses the numeric sequence component embedded in a chunk id
// ("<hash>-<n>"). The last dash-delimited component is used.
func SequenceIndex(chunkId string) (int, error) {
	idx := strings.LastIndex(chunkId, "-")
	if idx < 0 || idx == len(chunkId)-1 {
		return 0, fmt.Errorf("%w: chunk id %q has no sequence component", entity.ErrInvalidIdentifier, chunkId)
	}
	n, err := strconv.Atoi(chunkId[idx+1:])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: chunk id %q has a non-numeric sequence component", entity.ErrInvalidIdentifier, chunkId)
	}
	return n, nil
}

// Dir returns the staging directory of one upload session.
func (s *Store) Dir(fingerprint string) string {
	return filepath.Join(s.root, fingerprint)
}

// MergedDir holds merged files, apart from the staging directories.
func (s *Store) MergedDir() string {
	return filepath.Join(s.root, mergedDirName)
}

// MergedPath is where the merge of one upload session is written.
func (s *Store) MergedPath(fingerprint, ext string) string {
	return filepath.Join(s.MergedDir(), fingerprint+ext)
}

// WriteChunk persists data under chunkId unless it is already staged.
// sequenceIndex < 0 means the caller did not declare one; otherwise it must
// agree with the index embedded in chunkId.
func (s *Store) WriteChunk(fingerprint, chunkId string, sequenceIndex int, data []byte) (*WriteResult, error) {
	if err := ValidateIdentifier(fingerprint); err != nil {
		return nil, err
	}
	if err := ValidateIdentifier(chunkId); err != nil {
		return nil, err
	}
	embedded, err := SequenceIndex(chunkId)
	if err != nil {
		return nil, err
	}
	if sequenceIndex >= 0 && sequenceIndex != embedded {
		return nil, fmt.Errorf("%w: chunk id %q encodes index %d, request declared %d",
			entity.ErrInvalidIdentifier, chunkId, embedded, sequenceIndex)
	}

	dir := s.Dir(fingerprint)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create staging dir: %v", entity.ErrChunkWriteFailure, err)
	}

	target := filepath.Join(dir, chunkId)
	if _, err := os.Stat(target); err == nil {
		return &WriteResult{ChunkId: chunkId, AlreadyExists: true}, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: stat chunk: %v", entity.ErrChunkWriteFailure, err)
	}

	// Write to a hidden temp file first so a crashed write never looks like a staged chunk.
	tmp, err := os.CreateTemp(dir, tempPrefix+chunkId+"-*")
	if err != nil {
		return nil, fmt.Errorf("%w: create temp chunk: %v", entity.ErrChunkWriteFailure, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("%w: write chunk: %v", entity.ErrChunkWriteFailure, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("%w: close chunk: %v", entity.ErrChunkWriteFailure, err)
	}

	// Link fails when a concurrent duplicate won the race, which is the same outcome as the existence check.
	if err := os.Link(tmpName, target); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return &WriteResult{ChunkId: chunkId, AlreadyExists: true}, nil
		}
		if err := os.Rename(tmpName, target); err != nil {
			return nil, fmt.Errorf("%w: commit chunk: %v", entity.ErrChunkWriteFailure, err)
		}
	}

	return &WriteResult{ChunkId: chunkId}, nil
}

// ListChunks returns staged chunk ids ordered by sequence index. A missing
// staging directory means nothing was uploaded yet and yields an empty list.
func (s *Store) ListChunks(fingerprint string) ([]string, error) {
	if err := ValidateIdentifier(fingerprint); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.Dir(fingerprint))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, err
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), tempPrefix) {
			continue
		}
		ids = append(ids, e.Name())
	}
	SortBySequence(ids)
	return ids, nil
}

// Exists reports whether a staging directory exists for fingerprint.
func (s *Store) Exists(fingerprint string) bool {
	if ValidateIdentifier(fingerprint) != nil {
		return false
	}
	info, err := os.Stat(s.Dir(fingerprint))
	return err == nil && info.IsDir()
}

// Purge removes the staging directory of one upload session.
func (s *Store) Purge(fingerprint string) error {
	if err := ValidateIdentifier(fingerprint); err != nil {
		return err
	}
	return os.RemoveAll(s.Dir(fingerprint))
}

// Sweep removes staging directories and merged files untouched for longer
// than maxAge. Staging entries are reported by fingerprint, merged files as
// ".merged/<name>".
func (s *Store) Sweep(maxAge time.Duration, now time.Time) ([]string, error) {
	removed, err := sweepDir(s.root, maxAge, now, true)
	if err != nil {
		return removed, err
	}
	merged, err := sweepDir(s.MergedDir(), maxAge, now, false)
	for _, name := range merged {
		removed = append(removed, mergedDirName+"/"+name)
	}
	return removed, err
}

func sweepDir(dir string, maxAge time.Duration, now time.Time, dirs bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var removed []string
	for _, e := range entries {
		if e.IsDir() != dirs || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) < maxAge {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return removed, err
		}
		removed = append(removed, e.Name())
	}
	return removed, nil
}

// SortBySequence orders chunk ids numerically by their sequence component.
// Ids without a parseable component sort last, lexically.
func SortBySequence(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool {
		a, errA := SequenceIndex(ids[i])
		b, errB := SequenceIndex(ids[j])
		switch {
		case errA != nil && errB != nil:
			return ids[i] < ids[j]
		case errA != nil:
			return false
		case errB != nil:
			return true
		case a != b:
			return a < b
		default:
			return ids[i] < ids[j]
		}
	})
}
