// go-dmcomm
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-dmcomm.
//
// go-dmcomm is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-dmcomm is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-dmcomm; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package command

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	dmcomm "github.com/ZaparooProject/go-dmcomm"
	"gopkg.in/yaml.v3"
)

// ErrNotInLibrary is returned when a named conversation is missing
var ErrNotInLibrary = errors.New("conversation not in library")

// Entry is one named command in a library file
type Entry struct {
	Name        string `yaml:"name"`
	Command     string `yaml:"command"`
	Description string `yaml:"description,omitempty"`
}

type libraryFile struct {
	Conversations []Entry `yaml:"conversations"`
}

// Library holds named conversations loaded from YAML:
//
//	conversations:
//	  - name: datalink-give-10pt
//	    command: datalink-1-1301000010B100D5-1301000010B1B186
type Library struct {
	entries map[string]Entry
	parsed  map[string]dmcomm.Conversation
}

// LoadLibrary parses a YAML library. Every command is validated up front.
func LoadLibrary(r io.Reader) (*Library, error) {
	var file libraryFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode library: %w", err)
	}

	lib := &Library{
		entries: make(map[string]Entry, len(file.Conversations)),
		parsed:  make(map[string]dmcomm.Conversation, len(file.Conversations)),
	}
	for _, e := range file.Conversations {
		if e.Name == "" {
			return nil, fmt.Errorf("%w: entry for %q has no name", dmcomm.ErrInvalidCommand, e.Command)
		}
		if _, dup := lib.entries[e.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate name %q", dmcomm.ErrInvalidCommand, e.Name)
		}
		c, err := Parse(e.Command)
		if err != nil {
			return nil, fmt.Errorf("library entry %q: %w", e.Name, err)
		}
		c.Name = e.Name
		lib.entries[e.Name] = e
		lib.parsed[e.Name] = c
	}
	return lib, nil
}

// LoadLibraryFile reads a library from path
func LoadLibraryFile(path string) (*Library, error) {
	f, err := os.Open(path) //nolint:gosec // user-supplied library path
	if err != nil {
		return nil, fmt.Errorf("failed to open library: %w", err)
	}
	defer func() { _ = f.Close() }()
	return LoadLibrary(f)
}

// Get returns the named conversation
func (l *Library) Get(name string) (dmcomm.Conversation, error) {
	c, ok := l.parsed[name]
	if !ok {
		return dmcomm.Conversation{}, fmt.Errorf("%w: %q", ErrNotInLibrary, name)
	}
	return c, nil
}

// Entry returns the named entry as written in the file
func (l *Library) Entry(name string) (Entry, bool) {
	e, ok := l.entries[name]
	return e, ok
}

// Names lists the library's conversations in sorted order
func (l *Library) Names() []string {
	names := make([]string, 0, len(l.entries))
	for name := range l.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve looks s up in the library, falling back to parsing it as a
// command string. A nil library only parses.
func (l *Library) Resolve(s string) (dmcomm.Conversation, error) {
	if l != nil {
		if c, ok := l.parsed[s]; ok {
			return c, nil
		}
	}
	return Parse(s)
}

// Marshal writes the library back out as YAML
func (l *Library) Marshal() ([]byte, error) {
	file := libraryFile{}
	for _, name := range l.Names() {
		file.Conversations = append(file.Conversations, l.entries[name])
	}
	return yaml.Marshal(file)
}
