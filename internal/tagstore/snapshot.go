package tagstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Entry is one tracked file and its tags.
type Entry struct {
	Filename string   `json:"filename"`
	Tags     []string `json:"tags"`
}

// Snapshot is an immutable, ordered copy of the store. Accessors return
// copies, so holders can share a Snapshot across goroutines.
type Snapshot struct {
	entries []Entry
	index   map[string]int
}

// NewSnapshot builds a Snapshot from entries in order. A repeated filename
// keeps its first position and takes the last tags given for it. Nil tags
// become an empty list.
func NewSnapshot(entries []Entry) Snapshot {
	s := Snapshot{
		entries: make([]Entry, 0, len(entries)),
		index:   make(map[string]int, len(entries)),
	}
	for _, e := range entries {
		tags := cloneTags(e.Tags)
		if i, ok := s.index[e.Filename]; ok {
			s.entries[i].Tags = tags
			continue
		}
		s.index[e.Filename] = len(s.entries)
		s.entries = append(s.entries, Entry{Filename: e.Filename, Tags: tags})
	}
	return s
}

// Len returns the number of entries.
func (s Snapshot) Len() int { return len(s.entries) }

// Has reports whether filename is present.
func (s Snapshot) Has(filename string) bool {
	_, ok := s.index[filename]
	return ok
}

// Get returns a copy of the tags for filename.
func (s Snapshot) Get(filename string) ([]string, bool) {
	i, ok := s.index[filename]
	if !ok {
		return nil, false
	}
	return cloneTags(s.entries[i].Tags), true
}

// Names returns the filenames in insertion order.
func (s Snapshot) Names() []string {
	names := make([]string, len(s.entries))
	for i, e := range s.entries {
		names[i] = e.Filename
	}
	return names
}

// Entries returns a deep copy of the entries in insertion order.
func (s Snapshot) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	for i, e := range s.entries {
		out[i] = Entry{Filename: e.Filename, Tags: cloneTags(e.Tags)}
	}
	return out
}

// MarshalJSON encodes the snapshot as a JSON object whose key order is the
// insertion order.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range s.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Filename)
		if err != nil {
			return nil, err
		}
		tags := e.Tags
		if tags == nil {
			tags = []string{}
		}
		val, err := json.Marshal(tags)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object of filename to string array, keeping
// key order. Errors wrap ErrCorruptState.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	snap, err := DecodeSnapshot(data)
	if err != nil {
		return err
	}
	*s = snap
	return nil
}

// DecodeSnapshot parses a persisted tag document. A null tag list is read as
// empty. Anything other than a single object of filename to array of
// strings is rejected with ErrCorruptState.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return Snapshot{}, corrupt("read document start", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return Snapshot{}, corrupt("document is not an object", nil)
	}

	var entries []Entry
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Snapshot{}, corrupt("read key", err)
		}
		name, ok := tok.(string)
		if !ok {
			return Snapshot{}, corrupt("unexpected key token", nil)
		}

		var raw []any
		if err := dec.Decode(&raw); err != nil {
			return Snapshot{}, corrupt(fmt.Sprintf("tags for %q", name), err)
		}
		tags := make([]string, 0, len(raw))
		for _, v := range raw {
			tag, ok := v.(string)
			if !ok {
				return Snapshot{}, corrupt(fmt.Sprintf("tags for %q contain a non-string value", name), nil)
			}
			tags = append(tags, tag)
		}
		entries = append(entries, Entry{Filename: name, Tags: tags})
	}

	if _, err := dec.Token(); err != nil {
		return Snapshot{}, corrupt("read document end", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Snapshot{}, corrupt("trailing data after document", nil)
	}

	return NewSnapshot(entries), nil
}

func corrupt(msg string, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCorruptState, msg, err)
	}
	return fmt.Errorf("%w: %s", ErrCorruptState, msg)
}

func cloneTags(tags []string) []string {
	out := make([]string, len(tags))
	copy(out, tags)
	return out
}
