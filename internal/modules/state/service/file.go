package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
)

// File: {"sl": <number>} in a flat file, replaced atomically via tmp+rename.
type File struct {
	path string
	mu   sync.Mutex
}

type record struct {
	SL *json.Number `json:"sl"`
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Path() string { return f.path }

func (f *File) Load(_ context.Context) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, err := os.ReadFile(f.path)
	if err != nil {
		return decimal.Zero, corrupt("read %s: %v", f.path, err)
	}
	var rec record
	if err := sonic.Unmarshal(b, &rec); err != nil {
		return decimal.Zero, corrupt("decode %s: %v", f.path, err)
	}
	if rec.SL == nil {
		return decimal.Zero, corrupt("%s: missing field sl", f.path)
	}
	return parseStopLoss(rec.SL.String())
}

func (f *File) Save(_ context.Context, stopLoss decimal.Decimal) error {
	if err := checkWritable(stopLoss); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saveLocked(stopLoss)
}

func (f *File) saveLocked(stopLoss decimal.Decimal) error {
	num := json.Number(stopLoss.String())
	b, err := sonic.Marshal(&record{SL: &num})
	if err != nil {
		return writeFailed("encode: %v", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return writeFailed("mkdir %s: %v", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return writeFailed("create temp in %s: %v", dir, err)
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op once renamed
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return writeFailed("write %s: %v", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return writeFailed("sync %s: %v", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return writeFailed("close %s: %v", tmpName, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return writeFailed("rename %s: %v", f.path, err)
	}
	return nil
}

func (f *File) Init(_ context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := os.Stat(f.path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, corrupt("stat %s: %v", f.path, err)
	}
	if err := f.saveLocked(decimal.Zero); err != nil {
		return false, err
	}
	return true, nil
}

func (f *File) Close() error { return nil }
