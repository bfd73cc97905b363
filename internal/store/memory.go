package store

import (
	"context"
	"path"
	"sync"

	"owncheck/internal/model"
)

// Memory is an in-memory DeclarationStore, used by tests and by CLI
// fixture files. Declarations are keyed by (revision, directory).
type Memory struct {
	mu    sync.RWMutex
	decls map[string]model.Declaration
	bad   map[string]error // directories whose declaration fails to parse
}

func NewMemory() *Memory {
	return &Memory{
		decls: make(map[string]model.Declaration),
		bad:   make(map[string]error),
	}
}

func key(rev model.Revision, dir string) string {
	return rev.String() + ":" + path.Clean("/" + dir)
}

// Put stores a declaration for a directory at a revision.
func (m *Memory) Put(rev model.Revision, dir string, d model.Declaration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.Path = path.Clean("/" + dir)
	m.decls[key(rev, dir)] = d.Normalize()
}

// PutBroken marks a directory as carrying an unparseable declaration.
func (m *Memory) PutBroken(rev model.Revision, dir string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bad[key(rev, dir)] = err
}

func (m *Memory) Get(ctx context.Context, rev model.Revision, dir string) (model.Declaration, error) {
	if err := ctx.Err(); err != nil {
		return model.Declaration{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	k := key(rev, dir)
	if err, ok := m.bad[k]; ok {
		return model.Declaration{}, &ParseError{Revision: rev, Directory: dir, Err: err}
	}
	d, ok := m.decls[k]
	if !ok {
		return model.Declaration{}, ErrNotFound
	}
	return d, nil
}
