package cache

import (
	"container/list"
	"time"
)

// entry is one cached value with its insertion timestamp.
type entry struct {
	key        string
	value      interface{}
	insertedAt time.Time
}

// fifoStore is a fixed-capacity ordered map with first-class
// evict-oldest behavior. Eviction order is insertion order (FIFO, not
// LRU): reads never reorder entries. Not goroutine-safe; the owning
// service serializes access.
type fifoStore struct {
	maxSize int
	order   *list.List // front = oldest inserted
	index   map[string]*list.Element
}

func newFifoStore(maxSize int) *fifoStore {
	if maxSize < 1 {
		maxSize = 1
	}
	return &fifoStore{
		maxSize: maxSize,
		order:   list.New(),
		index:   make(map[string]*list.Element),
	}
}

// get returns the entry for key without affecting eviction order.
func (s *fifoStore) get(key string) (*entry, bool) {
	elem, ok := s.index[key]
	if !ok {
		return nil, false
	}
	return elem.Value.(*entry), true
}

// set inserts or replaces a value. A replaced key keeps its position;
// a new key is appended and, when the store is full, exactly the
// oldest-inserted entry is evicted first. Returns the evicted key, if
// any.
func (s *fifoStore) set(key string, value interface{}, now time.Time) (evicted string, ok bool) {
	if elem, exists := s.index[key]; exists {
		e := elem.Value.(*entry)
		e.value = value
		e.insertedAt = now
		return "", false
	}

	if s.order.Len() >= s.maxSize {
		evicted, ok = s.evictOldest()
	}

	elem := s.order.PushBack(&entry{key: key, value: value, insertedAt: now})
	s.index[key] = elem
	return evicted, ok
}

// evictOldest removes the earliest-inserted entry.
func (s *fifoStore) evictOldest() (string, bool) {
	front := s.order.Front()
	if front == nil {
		return "", false
	}
	e := front.Value.(*entry)
	s.order.Remove(front)
	delete(s.index, e.key)
	return e.key, true
}

// remove deletes a specific key.
func (s *fifoStore) remove(key string) {
	if elem, ok := s.index[key]; ok {
		s.order.Remove(elem)
		delete(s.index, key)
	}
}

// clear drops every entry.
func (s *fifoStore) clear() {
	s.order.Init()
	s.index = make(map[string]*list.Element)
}

// len reports the number of entries.
func (s *fifoStore) len() int {
	return s.order.Len()
}

// each visits every entry in insertion order.
func (s *fifoStore) each(fn func(*entry)) {
	for elem := s.order.Front(); elem != nil; elem = elem.Next() {
		fn(elem.Value.(*entry))
	}
}

// setMaxSize updates capacity, evicting oldest entries as needed.
func (s *fifoStore) setMaxSize(maxSize int) {
	if maxSize < 1 {
		maxSize = 1
	}
	s.maxSize = maxSize
	for s.order.Len() > s.maxSize {
		s.evictOldest()
	}
}
