package repository

import (
	"fmt"
)

const (
	BackendSQLite = "sqlite"
	BackendKV     = "kv"
)

// Settings select and locate a backend
type Settings struct {
	Backend string
	DBPath  string
	KVDir   string
	KVCodec string
}

// Open returns the backend named by s.Backend
func Open(s Settings, opts Options) (Repository, error) {
	switch s.Backend {
	case "", BackendSQLite:
		return NewSQLiteRepository(s.DBPath, opts)
	case BackendKV:
		codec, err := NewCodec(s.KVCodec)
		if err != nil {
			return nil, err
		}
		storage, err := NewFileStorage(s.KVDir, "."+codec.Name())
		if err != nil {
			return nil, storageErr("open", err)
		}
		return NewKVRepository(storage, codec, opts), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", s.Backend)
	}
}
