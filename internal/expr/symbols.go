package expr

import "sync"

// SymbolTable is a process-wide {name -> id} / {id -> name} mapping.
// Symbols are allocated by name; ids are dense and stable for the
// lifetime of the process so that every state referencing a given id
// continues to mean the same thing.
type SymbolTable struct {
	mu        sync.RWMutex
	nameToID  map[string]uint32
	idToName  []string
	idToWidth []uint32
}

// NewSymbolTable creates an empty symbol table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		nameToID: make(map[string]uint32),
	}
}

// Intern returns the id for name, allocating a fresh dense id and
// recording width on first use. Subsequent calls with the same name
// ignore width and return the original id.
func (t *SymbolTable) Intern(name string, width uint32) uint32 {
	t.mu.RLock()
	if id, ok := t.nameToID[name]; ok {
		t.mu.RUnlock()
		return id
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.nameToID[name]; ok {
		return id
	}
	id := uint32(len(t.idToName))
	t.nameToID[name] = id
	t.idToName = append(t.idToName, name)
	t.idToWidth = append(t.idToWidth, width)
	return id
}

// Name returns the name registered for id.
func (t *SymbolTable) Name(id uint32) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if int(id) >= len(t.idToName) {
		return ""
	}
	return t.idToName[id]
}

// Width returns the bit-width recorded for id at its first Intern call.
func (t *SymbolTable) Width(id uint32) uint32 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if int(id) >= len(t.idToWidth) {
		return 0
	}
	return t.idToWidth[id]
}
