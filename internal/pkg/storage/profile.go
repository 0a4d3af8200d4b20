// Copyright (c) e4s-cl-go authors. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/e4s-cl/e4s-cl-go/pkg/e4serr"
	"github.com/e4s-cl/e4s-cl-go/pkg/pathutil"
)

// Profile is the launch configuration a user names, selects and reuses
// across invocations: a container image, the backend to drive it with, the
// files and libraries to bind in, and optionally a Wi4MPI root and a
// sourced setup script.
type Profile struct {
	Name          string   `json:"name"`
	Backend       string   `json:"backend,omitempty"`
	Image         string   `json:"image,omitempty"`
	Files         []string `json:"files,omitempty"`
	Libraries     []string `json:"libraries,omitempty"`
	Source        string   `json:"source,omitempty"`
	Wi4MPI        string   `json:"wi4mpi,omitempty"`
	Wi4MPIOptions string   `json:"wi4mpi_options,omitempty"`
}

const selectedProfileKey = "selected_profile"

// ProfileStore wraps a Table with the Profile schema's own rules: names
// are unique, file paths are homogenized to POSIX form on write, and
// deleting the selected profile clears the selection.
type ProfileStore struct {
	table *Table
}

// OpenProfileStore opens (or creates) the profile table at path.
func OpenProfileStore(path string) (*ProfileStore, error) {
	t, err := Open(path)
	if err != nil {
		return nil, err
	}
	return &ProfileStore{table: t}, nil
}

func homogenize(p *Profile) {
	for i, f := range p.Files {
		p.Files[i] = pathutil.Normalize(f)
	}
	for i, l := range p.Libraries {
		l2 := pathutil.Normalize(l)
		p.Libraries[i] = l2
	}
}

func toRecord(p Profile) Record {
	return Record{
		"name": p.Name, "backend": p.Backend, "image": p.Image,
		"files": p.Files, "libraries": p.Libraries, "source": p.Source,
		"wi4mpi": p.Wi4MPI, "wi4mpi_options": p.Wi4MPIOptions,
	}
}

// toPartialRecord includes only p's non-zero fields, so that Update merges
// the caller's changes in without clobbering fields the caller left unset.
func toPartialRecord(p Profile) Record {
	r := Record{}
	if p.Name != "" {
		r["name"] = p.Name
	}
	if p.Backend != "" {
		r["backend"] = p.Backend
	}
	if p.Image != "" {
		r["image"] = p.Image
	}
	if p.Files != nil {
		r["files"] = p.Files
	}
	if p.Libraries != nil {
		r["libraries"] = p.Libraries
	}
	if p.Source != "" {
		r["source"] = p.Source
	}
	if p.Wi4MPI != "" {
		r["wi4mpi"] = p.Wi4MPI
	}
	if p.Wi4MPIOptions != "" {
		r["wi4mpi_options"] = p.Wi4MPIOptions
	}
	return r
}

func fromRecord(r Record) Profile {
	var p Profile
	if v, ok := r["name"].(string); ok {
		p.Name = v
	}
	if v, ok := r["backend"].(string); ok {
		p.Backend = v
	}
	if v, ok := r["image"].(string); ok {
		p.Image = v
	}
	if v, ok := r["source"].(string); ok {
		p.Source = v
	}
	if v, ok := r["wi4mpi"].(string); ok {
		p.Wi4MPI = v
	}
	if v, ok := r["wi4mpi_options"].(string); ok {
		p.Wi4MPIOptions = v
	}
	p.Files = toStringSlice(r["files"])
	p.Libraries = toStringSlice(r["libraries"])
	return p
}

func toStringSlice(v interface{}) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []interface{}:
		out := make([]string, 0, len(s))
		for _, e := range s {
			if str, ok := e.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

// Create inserts a new profile, homogenizing its file list and enforcing
// name uniqueness.
func (s *ProfileStore) Create(p Profile) (int, error) {
	homogenize(&p)
	return s.table.Create(toRecord(p), []string{"name"})
}

// Update merges p's non-zero fields into the profile matching name,
// re-homogenizing its file list if it was part of the update.
func (s *ProfileStore) Update(p Profile, name string) error {
	homogenize(&p)
	return s.table.Update(toPartialRecord(p), map[string]interface{}{"name": name})
}

// Get returns the profile named name.
func (s *ProfileStore) Get(name string) (int, Profile, bool) {
	id, rec, ok := s.table.One(map[string]interface{}{"name": name})
	if !ok {
		return 0, Profile{}, false
	}
	return id, fromRecord(rec), true
}

// List returns every profile.
func (s *ProfileStore) List() []Profile {
	var out []Profile
	for _, rec := range s.table.All() {
		out = append(out, fromRecord(rec))
	}
	return out
}

// Delete removes the profile named name. If it was the selected profile,
// the selection is cleared.
func (s *ProfileStore) Delete(name string) error {
	id, _, ok := s.table.One(map[string]interface{}{"name": name})
	if !ok {
		return e4serr.NewProfileSelectionError("no matching profile: " + name)
	}

	if selID, ok := s.selectedID(); ok && selID == id {
		if err := s.Unselect(); err != nil {
			return err
		}
	}
	return s.table.Delete(map[string]interface{}{"name": name})
}

// DeleteMatching deletes every profile whose name matches the '*'/'#'
// wildcard pattern, clearing the selection if it deletes the selected
// profile, and returns the names actually removed.
func (s *ProfileStore) DeleteMatching(pattern string) ([]string, error) {
	var names []string
	for _, p := range s.List() {
		names = append(names, p.Name)
	}
	matched, err := MatchNames(pattern, names)
	if err != nil {
		return nil, fmt.Errorf("storage: invalid pattern %q: %w", pattern, err)
	}
	for _, name := range matched {
		if err := s.Delete(name); err != nil {
			return nil, err
		}
	}
	return matched, nil
}

// Copy duplicates the profile named src under a new name dst, failing if
// src doesn't exist or dst is already taken.
func (s *ProfileStore) Copy(src, dst string) error {
	_, p, ok := s.Get(src)
	if !ok {
		return e4serr.NewProfileSelectionError("no matching profile: " + src)
	}
	p.Name = dst
	_, err := s.Create(p)
	return err
}

// EditResult reports which file/library additions Edit actually applied,
// versus which were already present (and therefore idempotently skipped).
type EditResult struct {
	AddedFiles     []string
	AddedLibraries []string
	AlreadyPresent []string
}

// Edit appends addFiles/addLibraries to the named profile, skipping any
// entry already present (by normalized path) so repeated invocations of
// the same edit are idempotent and report what they skipped.
func (s *ProfileStore) Edit(name string, addFiles, addLibraries []string) (*EditResult, error) {
	_, p, ok := s.Get(name)
	if !ok {
		return nil, e4serr.NewProfileSelectionError("no matching profile: " + name)
	}

	result := &EditResult{}
	p.Files, result.AddedFiles, result.AlreadyPresent = mergeUnique(p.Files, addFiles, result.AlreadyPresent)
	p.Libraries, result.AddedLibraries, result.AlreadyPresent = mergeUnique(p.Libraries, addLibraries, result.AlreadyPresent)

	if err := s.table.Update(toRecord(p), map[string]interface{}{"name": name}); err != nil {
		return nil, err
	}
	return result, nil
}

func mergeUnique(existing, additions, skipped []string) ([]string, []string, []string) {
	have := make(map[string]bool, len(existing))
	for _, e := range existing {
		have[pathutil.Normalize(e)] = true
	}
	var added []string
	for _, a := range additions {
		n := pathutil.Normalize(a)
		if have[n] {
			skipped = append(skipped, a)
			continue
		}
		have[n] = true
		existing = append(existing, n)
		added = append(added, n)
	}
	return existing, added, skipped
}

// dumpRecord mirrors Profile but with every scalar field a pointer, so
// marshaling it to JSON renders an unset field as null rather than
// omitting or zero-valuing it, per profile dump's on-disk contract.
type dumpRecord struct {
	Name          *string  `json:"name"`
	Backend       *string  `json:"backend"`
	Image         *string  `json:"image"`
	Files         []string `json:"files"`
	Libraries     []string `json:"libraries"`
	Source        *string  `json:"source"`
	Wi4MPI        *string  `json:"wi4mpi"`
	Wi4MPIOptions *string  `json:"wi4mpi_options"`
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Dump renders every profile as a JSON array, each a full record with null
// for unset scalars, the format `profile dump` writes to stdout.
func (s *ProfileStore) Dump() ([]byte, error) {
	profiles := s.List()
	out := make([]dumpRecord, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, dumpRecord{
			Name: strPtr(p.Name), Backend: strPtr(p.Backend), Image: strPtr(p.Image),
			Files: p.Files, Libraries: p.Libraries, Source: strPtr(p.Source),
			Wi4MPI: strPtr(p.Wi4MPI), Wi4MPIOptions: strPtr(p.Wi4MPIOptions),
		})
	}
	return json.MarshalIndent(out, "", "  ")
}

// Import reads Dump's JSON array format and creates one profile per
// element, skipping (and reporting) any name already present so a
// dump-then-import round-trip is idempotent against a partially-populated
// store.
func (s *ProfileStore) Import(data []byte) (created []string, skipped []string, err error) {
	var records []dumpRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, nil, fmt.Errorf("storage: invalid profile dump: %w", err)
	}

	for _, r := range records {
		p := Profile{Files: r.Files, Libraries: r.Libraries}
		if r.Name != nil {
			p.Name = *r.Name
		}
		if r.Backend != nil {
			p.Backend = *r.Backend
		}
		if r.Image != nil {
			p.Image = *r.Image
		}
		if r.Source != nil {
			p.Source = *r.Source
		}
		if r.Wi4MPI != nil {
			p.Wi4MPI = *r.Wi4MPI
		}
		if r.Wi4MPIOptions != nil {
			p.Wi4MPIOptions = *r.Wi4MPIOptions
		}

		if _, _, ok := s.Get(p.Name); ok {
			skipped = append(skipped, p.Name)
			continue
		}
		if _, err := s.Create(p); err != nil {
			return created, skipped, err
		}
		created = append(created, p.Name)
	}
	return created, skipped, nil
}

// Diff reports every field that differs between two profiles, formatted as
// one "field: a -> b" line per difference.
func (s *ProfileStore) Diff(a, b string) ([]string, error) {
	_, pa, ok := s.Get(a)
	if !ok {
		return nil, e4serr.NewProfileSelectionError("no matching profile: " + a)
	}
	_, pb, ok := s.Get(b)
	if !ok {
		return nil, e4serr.NewProfileSelectionError("no matching profile: " + b)
	}

	var diffs []string
	strField := func(name, va, vb string) {
		if va != vb {
			diffs = append(diffs, fmt.Sprintf("%s: %q -> %q", name, va, vb))
		}
	}
	listField := func(name string, va, vb []string) {
		if !equalStringSlices(va, vb) {
			diffs = append(diffs, fmt.Sprintf("%s: %v -> %v", name, va, vb))
		}
	}

	strField("backend", pa.Backend, pb.Backend)
	strField("image", pa.Image, pb.Image)
	strField("source", pa.Source, pb.Source)
	strField("wi4mpi", pa.Wi4MPI, pb.Wi4MPI)
	strField("wi4mpi_options", pa.Wi4MPIOptions, pb.Wi4MPIOptions)
	listField("files", pa.Files, pb.Files)
	listField("libraries", pa.Libraries, pb.Libraries)

	return diffs, nil
}

func equalStringSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Select marks name as the active profile.
func (s *ProfileStore) Select(name string) error {
	id, _, ok := s.table.One(map[string]interface{}{"name": name})
	if !ok {
		return e4serr.NewProfileSelectionError("no matching profile: " + name)
	}
	return s.table.MetaSet(selectedProfileKey, id)
}

// Unselect clears the active profile, if any.
func (s *ProfileStore) Unselect() error {
	return s.table.MetaUnset(selectedProfileKey)
}

func (s *ProfileStore) selectedID() (int, bool) {
	v, ok := s.table.MetaGet(selectedProfileKey)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// Selected returns the active profile, or ProfileSelectionError if none is
// selected.
func (s *ProfileStore) Selected() (Profile, error) {
	id, ok := s.selectedID()
	if !ok {
		return Profile{}, e4serr.NewProfileSelectionError("No profile selected")
	}
	rec, ok := s.table.Get(id)
	if !ok {
		return Profile{}, e4serr.NewProfileSelectionError("No profile selected")
	}
	return fromRecord(rec), nil
}

// DefaultPath returns the conventional profile storage path under a user's
// config home, used when no explicit storage path is configured.
func DefaultPath(configHome string) string {
	return filepath.Join(configHome, "profiles.json")
}
