package sheets

import (
	"sync"

	"sheetchat/pkg/config"
)

// NameCache remembers which sheet name worked for a spreadsheet. Entries
// are never invalidated, so a renamed sheet keeps its stale entry.
type NameCache interface {
	Get(spreadsheetID string) (string, bool)
	Put(spreadsheetID, sheetName string) error
}

type MemoryNameCache struct {
	mu    sync.RWMutex
	names map[string]string
}

func NewMemoryNameCache() *MemoryNameCache {
	return &MemoryNameCache{names: make(map[string]string)}
}

func (m *MemoryNameCache) Get(spreadsheetID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	name, ok := m.names[spreadsheetID]
	return name, ok
}

func (m *MemoryNameCache) Put(spreadsheetID, sheetName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names[spreadsheetID] = sheetName
	return nil
}

type nameStore struct {
	Sheets map[string]string `toml:"sheets"`
}

// FileNameCache keeps the resolved names in a TOML file.
type FileNameCache struct {
	Filename string

	mu    sync.RWMutex
	store nameStore
}

// NewFileNameCache loads filename, creating an empty file if it is missing.
func NewFileNameCache(filename string) (*FileNameCache, error) {
	c := &FileNameCache{
		Filename: filename,
		store:    nameStore{Sheets: make(map[string]string)},
	}
	if err := config.LoadOrCreate(filename, &c.store); err != nil {
		return nil, err
	}
	if c.store.Sheets == nil {
		c.store.Sheets = make(map[string]string)
	}
	return c, nil
}

func (c *FileNameCache) Get(spreadsheetID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.store.Sheets[spreadsheetID]
	return name, ok
}

func (c *FileNameCache) Put(spreadsheetID, sheetName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Sheets[spreadsheetID] = sheetName
	return config.WriteTOML(c.Filename, c.store)
}
