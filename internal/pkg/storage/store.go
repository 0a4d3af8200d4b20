// Copyright (c) e4s-cl-go authors. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package storage implements the transactional, JSON-file-backed document
// table the profile store is built on, grounded on the original tool's
// TinyDB-based local file storage: a flat table of int-keyed records, a
// small key/value meta area (used to remember which profile is selected),
// and a refcounting transaction that snapshots the table on its outermost
// entry and restores that snapshot if the outermost exit sees an error.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/e4s-cl/e4s-cl-go/pkg/e4serr"
)

// Record is a single document. It has no fixed schema; callers agree on
// field names (the profile store layers a schema on top).
type Record map[string]interface{}

type onDisk struct {
	Records map[string]Record     `json:"records"`
	Meta    map[string]interface{} `json:"meta"`
	NextID  int                    `json:"next_id"`
}

// Table is one transactional JSON document table backed by a single file.
type Table struct {
	mu       sync.Mutex
	path     string
	readOnly bool

	records map[int]Record
	meta    map[string]interface{}
	nextID  int

	txDepth  int
	snapshot *onDisk
}

// Open loads path if it exists, or starts an empty table otherwise. If
// path's directory cannot be written to, the table opens read-only: every
// read operation still works, but writes return ErrStorageReadOnly.
func Open(path string) (*Table, error) {
	t := &Table{
		path:    path,
		records: make(map[int]Record),
		meta:    make(map[string]interface{}),
		nextID:  1,
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var d onDisk
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("storage: corrupt table %s: %w", path, err)
		}
		t.loadDisk(&d)
	case os.IsNotExist(err):
		// fresh table; readonly-ness determined below by probing the dir.
	default:
		return nil, fmt.Errorf("storage: could not read %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.readOnly = true
	} else if probe := filepath.Join(filepath.Dir(path), ".e4s-cl-write-probe"); writeProbe(probe) != nil {
		t.readOnly = true
	}

	return t, nil
}

func writeProbe(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	f.Close()
	return os.Remove(path)
}

func (t *Table) loadDisk(d *onDisk) {
	for k, v := range d.Records {
		var id int
		fmt.Sscanf(k, "%d", &id)
		t.records[id] = v
	}
	if d.Meta != nil {
		t.meta = d.Meta
	}
	t.nextID = d.NextID
	if t.nextID == 0 {
		t.nextID = 1
	}
}

func (t *Table) toDisk() *onDisk {
	d := &onDisk{Records: make(map[string]Record, len(t.records)), Meta: t.meta, NextID: t.nextID}
	for id, rec := range t.records {
		d.Records[fmt.Sprintf("%d", id)] = rec
	}
	return d
}

func (t *Table) cloneState() *onDisk {
	d := t.toDisk()
	cp := &onDisk{Records: make(map[string]Record, len(d.Records)), Meta: make(map[string]interface{}, len(d.Meta)), NextID: d.NextID}
	for k, v := range d.Records {
		rv := make(Record, len(v))
		for fk, fv := range v {
			rv[fk] = fv
		}
		cp.Records[k] = rv
	}
	for k, v := range d.Meta {
		cp.Meta[k] = v
	}
	return cp
}

// persist writes the table to disk if not read-only and no transaction is
// currently open (writes inside a transaction are flushed once the
// outermost Commit returns).
func (t *Table) persist() error {
	if t.readOnly {
		return e4serr.NewStorageReadOnlyError(t.path)
	}
	d := t.toDisk()
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: marshal failed: %w", err)
	}
	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("storage: write failed: %w", err)
	}
	return os.Rename(tmp, t.path)
}

// Begin enters a transaction, snapshotting the table's state on the
// outermost call. It returns commit and rollback closures; exactly one of
// them must be called to leave the Idle/InTx state machine balanced.
//
//	Idle -> InTx(1) -> InTx(2) -> ... -> InTx(1) -> Committed | RolledBack -> Idle
func (t *Table) Begin() (commit func() error, rollback func() error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.txDepth++
	if t.txDepth == 1 {
		t.snapshot = t.cloneState()
	}

	return func() error {
			t.mu.Lock()
			defer t.mu.Unlock()
			t.txDepth--
			if t.txDepth == 0 {
				t.snapshot = nil
				return t.persist()
			}
			return nil
		}, func() error {
			t.mu.Lock()
			defer t.mu.Unlock()
			t.txDepth--
			if t.txDepth == 0 {
				t.records = make(map[int]Record)
				t.loadDisk(t.snapshot)
				t.snapshot = nil
				return t.persist()
			}
			return nil
		}
}

// matches reports whether rec has every key/value pair in keys.
func matches(rec Record, keys map[string]interface{}) bool {
	for k, v := range keys {
		if rv, ok := rec[k]; !ok || !equalJSON(rv, v) {
			return false
		}
	}
	return true
}

func equalJSON(a, b interface{}) bool {
	ab, _ := json.Marshal(a)
	bb, _ := json.Marshal(b)
	return string(ab) == string(bb)
}

// One returns the single record matching keys, or false if none (or more
// than one, which is treated as "not uniquely addressable") does.
func (t *Table) One(keys map[string]interface{}) (int, Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var id int
	var found Record
	count := 0
	for i, rec := range t.records {
		if matches(rec, keys) {
			id, found, count = i, rec, count+1
		}
	}
	if count != 1 {
		return 0, nil, false
	}
	return id, found, true
}

// Get returns the record with the given id.
func (t *Table) Get(id int) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[id]
	return rec, ok
}

// All returns every record, keyed by id.
func (t *Table) All() map[int]Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[int]Record, len(t.records))
	for k, v := range t.records {
		out[k] = v
	}
	return out
}

// Search returns every record for which pred returns true.
func (t *Table) Search(pred func(Record) bool) map[int]Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[int]Record)
	for id, rec := range t.records {
		if pred(rec) {
			out[id] = rec
		}
	}
	return out
}

// Match returns every record whose fields match every key/value pair
// given (an AND query, the default mode).
func (t *Table) Match(keys map[string]interface{}) map[int]Record {
	return t.Search(func(r Record) bool { return matches(r, keys) })
}

// Contains reports whether any record matches keys.
func (t *Table) Contains(keys map[string]interface{}) bool {
	return len(t.Match(keys)) > 0
}

// Count returns the number of records for which pred returns true.
func (t *Table) Count(pred func(Record) bool) int {
	return len(t.Search(pred))
}

// Create inserts data as a new record, after checking unique fields don't
// collide with an existing record, and returns its new id.
func (t *Table) Create(data Record, unique []string) (int, error) {
	t.mu.Lock()
	if t.readOnly {
		t.mu.Unlock()
		return 0, e4serr.NewStorageReadOnlyError(t.path)
	}
	for _, field := range unique {
		val, ok := data[field]
		if !ok {
			continue
		}
		for _, rec := range t.records {
			if equalJSON(rec[field], val) {
				t.mu.Unlock()
				return 0, e4serr.NewUniqueAttributeError("record", field)
			}
		}
	}
	id := t.nextID
	t.nextID++
	cp := make(Record, len(data))
	for k, v := range data {
		cp[k] = v
	}
	t.records[id] = cp
	inTx := t.txDepth > 0
	t.mu.Unlock()

	if inTx {
		return id, nil
	}
	return id, t.persistLocked()
}

func (t *Table) persistLocked() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.persist()
}

// Update merges data into every record matching keys.
func (t *Table) Update(data Record, keys map[string]interface{}) error {
	t.mu.Lock()
	if t.readOnly {
		t.mu.Unlock()
		return e4serr.NewStorageReadOnlyError(t.path)
	}
	for id, rec := range t.records {
		if !matches(rec, keys) {
			continue
		}
		for k, v := range data {
			rec[k] = v
		}
		t.records[id] = rec
	}
	inTx := t.txDepth > 0
	t.mu.Unlock()
	if inTx {
		return nil
	}
	return t.persistLocked()
}

// Unset removes fields from every record matching keys.
func (t *Table) Unset(fields []string, keys map[string]interface{}) error {
	t.mu.Lock()
	if t.readOnly {
		t.mu.Unlock()
		return e4serr.NewStorageReadOnlyError(t.path)
	}
	for id, rec := range t.records {
		if !matches(rec, keys) {
			continue
		}
		for _, f := range fields {
			delete(rec, f)
		}
		t.records[id] = rec
	}
	inTx := t.txDepth > 0
	t.mu.Unlock()
	if inTx {
		return nil
	}
	return t.persistLocked()
}

// Delete removes every record matching keys.
func (t *Table) Delete(keys map[string]interface{}) error {
	t.mu.Lock()
	if t.readOnly {
		t.mu.Unlock()
		return e4serr.NewStorageReadOnlyError(t.path)
	}
	for id, rec := range t.records {
		if matches(rec, keys) {
			delete(t.records, id)
		}
	}
	inTx := t.txDepth > 0
	t.mu.Unlock()
	if inTx {
		return nil
	}
	return t.persistLocked()
}

// Purge empties the table entirely, including meta.
func (t *Table) Purge() error {
	t.mu.Lock()
	if t.readOnly {
		t.mu.Unlock()
		return e4serr.NewStorageReadOnlyError(t.path)
	}
	t.records = make(map[int]Record)
	t.meta = make(map[string]interface{})
	t.nextID = 1
	inTx := t.txDepth > 0
	t.mu.Unlock()
	if inTx {
		return nil
	}
	return t.persistLocked()
}

// MetaGet reads a value from the table's small key/value meta area.
func (t *Table) MetaGet(key string) (interface{}, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.meta[key]
	return v, ok
}

// MetaSet writes a value into the meta area.
func (t *Table) MetaSet(key string, val interface{}) error {
	t.mu.Lock()
	if t.readOnly {
		t.mu.Unlock()
		return e4serr.NewStorageReadOnlyError(t.path)
	}
	t.meta[key] = val
	inTx := t.txDepth > 0
	t.mu.Unlock()
	if inTx {
		return nil
	}
	return t.persistLocked()
}

// MetaUnset removes a key from the meta area.
func (t *Table) MetaUnset(key string) error {
	t.mu.Lock()
	if t.readOnly {
		t.mu.Unlock()
		return e4serr.NewStorageReadOnlyError(t.path)
	}
	delete(t.meta, key)
	inTx := t.txDepth > 0
	t.mu.Unlock()
	if inTx {
		return nil
	}
	return t.persistLocked()
}

// ReadOnly reports whether the table rejected writes at Open time.
func (t *Table) ReadOnly() bool { return t.readOnly }
