package storage

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	logx "econbot/pkg/logx"
)

// fileStore keeps the state in two JSON documents:
//   - <prefix>.notified.json  ("<eventId>_<phase>" -> {sent_at, phase})
//   - <prefix>.pending.json   (eventId -> snapshot)
//
// Each document is replaced through a temp file and rename.
type fileStore struct {
	log          logx.Logger
	notifiedPath string
	pendingPath  string
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &fileStore{
		log:          log,
		notifiedPath: prefix + ".notified.json",
		pendingPath:  prefix + ".pending.json",
	}, nil
}

func (s *fileStore) Close() error { return nil }

func (s *fileStore) Load(ctx context.Context) (State, error) {
	_ = ctx
	st := NewState()
	if b, ok := s.read(s.notifiedPath); ok {
		if m, err := decodeNotified(b); err != nil {
			s.log.Warn("notified records unreadable, starting empty", logx.String("path", s.notifiedPath), logx.Err(err))
		} else {
			st.Notified = m
		}
	}
	if b, ok := s.read(s.pendingPath); ok {
		if m, err := decodePending(b); err != nil {
			s.log.Warn("pending results unreadable, starting empty", logx.String("path", s.pendingPath), logx.Err(err))
		} else {
			st.Pending = m
		}
	}
	return st, nil
}

func (s *fileStore) read(path string) ([]byte, bool) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false
	}
	if err != nil {
		s.log.Warn("state file unreadable, starting empty", logx.String("path", path), logx.Err(err))
		return nil, false
	}
	return b, true
}

// Save replaces the notified document, then the pending one. Each rename is
// atomic but the pair is not: if the second write fails, the new records
// sit next to the previous pending snapshot. That combination is safe to
// load since a record only suppresses a send and a stale pending entry
// either gets its post alert skipped by the record or expires.
func (s *fileStore) Save(ctx context.Context, st State) error {
	_ = ctx
	nb, err := encodeNotified(st.Notified)
	if err != nil {
		return err
	}
	pb, err := encodePending(st.Pending)
	if err != nil {
		return err
	}
	if err := writeAtomic(s.notifiedPath, nb); err != nil {
		return err
	}
	return writeAtomic(s.pendingPath, pb)
}

func writeAtomic(path string, b []byte) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
