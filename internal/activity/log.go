// Package activity keeps a local, append-only record of what the user did:
// maps created and deleted, edits made, sessions opened offline.
package activity

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/msalah0e/mindmap/internal/config"
)

// Entry represents a single activity log entry.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	MapID     string    `json:"map_id,omitempty"`
	Details   string    `json:"details,omitempty"`
}

// Path returns the log file location.
func Path() string {
	return filepath.Join(config.ConfigDir(), "activity.jsonl")
}

// Log appends an entry to the activity log.
func Log(action, mapID, details string) error {
	entry := Entry{
		Timestamp: time.Now(),
		Action:    action,
		MapID:     mapID,
		Details:   details,
	}
	path := Path()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(f, "%s\n", data)
	return err
}

// Read returns the last count entries, newest first. Zero means all.
// Malformed lines are skipped.
func Read(count int) ([]Entry, error) {
	f, err := os.Open(Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var entries []Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var e Entry
		if json.Unmarshal([]byte(line), &e) == nil {
			entries = append(entries, e)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	if count > 0 && len(entries) > count {
		entries = entries[:count]
	}
	return entries, nil
}

// Search finds entries whose action, map or details contain query,
// ignoring case.
func Search(query string, count int) ([]Entry, error) {
	all, err := Read(0)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(query)

	var results []Entry
	for _, e := range all {
		if strings.Contains(strings.ToLower(e.Action), q) ||
			strings.Contains(strings.ToLower(e.MapID), q) ||
			strings.Contains(strings.ToLower(e.Details), q) {
			results = append(results, e)
			if count > 0 && len(results) >= count {
				break
			}
		}
	}
	return results, nil
}

// Clear removes all log entries.
func Clear() error {
	err := os.Remove(Path())
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
