// Package trace decodes the ZIP-archived per-core instruction traces the
// simulator consumes (spec.md §6): one archive member per core, sorted
// lexicographically by member name, each a plain-text stream of
// "<label> <value>" records.
package trace

import (
	"archive/zip"
	"bufio"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/user-none/go-coherence"
)

// Load opens the ZIP archive at path and returns one coherence.Record
// slice per member, ordered by the members' sorted names (member i backs
// core i). archive/zip is stdlib rather than a pack dependency: no
// example repo in the retrieval set handles ZIP archives, so there's no
// ecosystem library to ground this on, and the format is simple enough
// that stdlib's reader is the idiomatic choice regardless.
func Load(path string) ([][]coherence.Record, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("trace: opening %q: %w", path, err)
	}
	defer r.Close()

	names := make([]string, 0, len(r.File))
	byName := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		names = append(names, f.Name)
		byName[f.Name] = f
	}
	sort.Strings(names)
	if len(names) == 0 {
		return nil, fmt.Errorf("trace: %q contains no core trace members", path)
	}

	out := make([][]coherence.Record, len(names))
	for i, name := range names {
		recs, err := decodeMember(byName[name])
		if err != nil {
			return nil, fmt.Errorf("trace: core %d (%q): %w", i, name, err)
		}
		out[i] = recs
	}
	return out, nil
}

func decodeMember(f *zip.File) ([]coherence.Record, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var recs []coherence.Record
	scanner := bufio.NewScanner(rc)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: want \"<label> <value>\", got %q", lineNo, line)
		}
		rec, err := decodeRecord(fields[0], fields[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		recs = append(recs, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

func decodeRecord(label, value string) (coherence.Record, error) {
	switch label {
	case "0", "1":
		addr, err := parseUint(value)
		if err != nil {
			return coherence.Record{}, fmt.Errorf("bad address %q: %w", value, err)
		}
		kind := coherence.RecordLoad
		if label == "1" {
			kind = coherence.RecordStore
		}
		return coherence.Record{Kind: kind, Addr: uint32(addr)}, nil
	default:
		n, err := parseUint(value)
		if err != nil {
			return coherence.Record{}, fmt.Errorf("bad cycle count %q: %w", value, err)
		}
		return coherence.Record{Kind: coherence.RecordOther, Cycles: int(n)}, nil
	}
}

// parseUint accepts either a "0x"-prefixed hex literal or a plain decimal
// value, matching spec.md §6's trace value grammar.
func parseUint(s string) (uint64, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return strconv.ParseUint(s[2:], 16, 64)
	}
	return strconv.ParseUint(s, 10, 64)
}
