package pilotmap

import (
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type xmlDoc struct {
	XMLName   xml.Name   `xml:"PilotMap"`
	Timestamp string     `xml:"timestamp,attr,omitempty"`
	Entries   []xmlEntry `xml:"map"`
}

type xmlEntry struct {
	UID      string `xml:"uid,attr"`
	PilotID  uint32 `xml:"pilot_id,attr"`
	Archived string `xml:"archived,attr,omitempty"`
}

// Read loads the map stored at path. A missing file yields an empty map.
// Any other failure also yields an empty map, together with the error so
// the caller can log it.
func Read(path string) (*Map, error) {
	m := New()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return m, fmt.Errorf("read pilot map: %w", err)
	}

	var doc xmlDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return New(), fmt.Errorf("parse pilot map %s: %w", path, err)
	}
	if doc.Timestamp != "" {
		if secs, err := strconv.ParseInt(doc.Timestamp, 10, 64); err == nil {
			m.Since = time.Unix(secs, 0)
		}
	}
	for _, x := range doc.Entries {
		if x.UID == "" || x.PilotID == 0 {
			continue
		}
		m.Insert(x.PilotID, x.UID, x.Archived == "1")
	}
	for _, e := range m.byPID {
		e.touched = false
	}
	return m, nil
}

// Write stores the map at path, replacing the previous file atomically.
func (m *Map) Write(path string) error {
	doc := xmlDoc{Timestamp: strconv.FormatInt(time.Now().Unix(), 10)}
	for _, e := range m.Entries() {
		if m.WriteTouchedOnly && !e.touched {
			continue
		}
		x := xmlEntry{UID: e.UID, PilotID: e.PilotID}
		if e.Archived {
			x.Archived = "1"
		}
		doc.Entries = append(doc.Entries, x)
	}

	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode pilot map: %w", err)
	}
	data = append([]byte(xml.Header), data...)
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create map dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write pilot map: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write pilot map: %w", err)
	}
	return nil
}
