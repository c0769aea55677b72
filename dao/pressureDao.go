package dao

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"SmartHome.dashboard/models"
)

// MaxPressureEntries is three days of hourly samples.
const MaxPressureEntries = 72

// PressureHistory is the rolling barograph history (pressure_history_7inch.json).
type PressureHistory struct {
	path    string
	mu      sync.Mutex
	entries []models.PressureEntry
}

func NewPressureHistory(path string) *PressureHistory {
	return &PressureHistory{path: path}
}

// Load reads the history from disk. Legacy two-element rows are migrated by
// the entry decoder; a missing file leaves the history empty.
func (h *PressureHistory) Load() error {
	var entries []models.PressureEntry
	if err := readJSON(h.path, &entries); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load pressure history: %w", err)
	}
	if len(entries) > MaxPressureEntries {
		entries = entries[len(entries)-MaxPressureEntries:]
	}

	h.mu.Lock()
	h.entries = entries
	h.mu.Unlock()
	return nil
}

// Append adds an entry unless one with the same timestamp is already present.
// It reports whether the history changed.
func (h *PressureHistory) Append(e models.PressureEntry) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, existing := range h.entries {
		if existing.Timestamp == e.Timestamp {
			return false
		}
	}
	h.entries = append(h.entries, e)
	if len(h.entries) > MaxPressureEntries {
		h.entries = append([]models.PressureEntry(nil), h.entries[len(h.entries)-MaxPressureEntries:]...)
	}
	return true
}

func (h *PressureHistory) Entries() []models.PressureEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]models.PressureEntry(nil), h.entries...)
}

func (h *PressureHistory) Save() error {
	entries := h.Entries()
	if entries == nil {
		entries = []models.PressureEntry{}
	}
	return writeJSONAtomic(h.path, entries)
}
