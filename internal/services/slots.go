package services

import (
	"os"
	"strings"
)

// DefaultTimeSlots are the interview slots offered when none are configured.
var DefaultTimeSlots = []string{
	"Monday at 10 AM",
	"Tuesday at 2 PM",
	"Wednesday at 11 AM",
	"Thursday at 3 PM",
}

// fillerTokens carry no scheduling information; sharing only "at" with a
// catalog label must not select that slot.
var fillerTokens = map[string]bool{
	"at": true, "am": true, "pm": true, "on": true, "the": true, "a": true, "an": true,
}

// SlotCatalog is the ordered list of offered interview time slots
type SlotCatalog struct {
	slots []string
}

// NewSlotCatalog builds the catalog from INTERVIEW_SLOTS (comma-separated)
// or falls back to the default offering.
func NewSlotCatalog() *SlotCatalog {
	raw := os.Getenv("INTERVIEW_SLOTS")
	if raw == "" {
		return &SlotCatalog{slots: DefaultTimeSlots}
	}

	var slots []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			slots = append(slots, trimmed)
		}
	}
	if len(slots) == 0 {
		slots = DefaultTimeSlots
	}
	return &SlotCatalog{slots: slots}
}

// NewSlotCatalogWith builds a catalog from explicit labels (used in tests)
func NewSlotCatalogWith(slots []string) *SlotCatalog {
	return &SlotCatalog{slots: slots}
}

// Slots returns the catalog in offer order
func (sc *SlotCatalog) Slots() []string {
	return sc.slots
}

// List renders the catalog as a spoken enumeration
func (sc *SlotCatalog) List() string {
	return strings.Join(sc.slots, ", ")
}

// First returns the first offered slot
func (sc *SlotCatalog) First() string {
	if len(sc.slots) == 0 {
		return ""
	}
	return sc.slots[0]
}

// FindSlot returns the first catalog entry (in catalog order) that shares at
// least one meaningful token with the utterance, or "" when nothing matches.
// No match signals the caller to re-prompt with the full catalog rather than
// guess.
func (sc *SlotCatalog) FindSlot(utterance string) string {
	utteranceTokens := tokenize(utterance)
	if len(utteranceTokens) == 0 {
		return ""
	}

	for _, slot := range sc.slots {
		for token := range tokenize(slot) {
			if utteranceTokens[token] {
				return slot
			}
		}
	}
	return ""
}

func tokenize(text string) map[string]bool {
	tokens := make(map[string]bool)
	for _, field := range strings.Fields(strings.ToLower(text)) {
		token := strings.Trim(field, ".,!?;:")
		if token == "" || fillerTokens[token] {
			continue
		}
		tokens[token] = true
	}
	return tokens
}
