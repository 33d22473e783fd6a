package store

import "sync"

var _ TokenStore = (*Memory)(nil)

// Memory is a process-scoped TokenStore. Used when "remember me" is off:
// tokens disappear with the process.
type Memory struct {
	values map[string]string
	lock   sync.RWMutex
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	value, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (m *Memory) Set(key, value string) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.values[key] = value
	return nil
}

func (m *Memory) Remove(key string) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	delete(m.values, key)
	return nil
}
