package services

import (
	"regexp"
	"strings"
)

// Intent labels, in evaluation priority order. The ordering matters because
// the categories overlap: "Yes, Tuesday at 2 PM" is a time mention first and
// a confirmation second.
const (
	IntentTimeMention          = "time_mention"
	IntentConfirmation         = "confirmation"
	IntentRejection            = "rejection"
	IntentCheckingAvailability = "checking_availability"
	IntentPoliteResponse       = "polite_response"
	IntentUnclear              = "unclear"
)

var (
	weekdayPattern = regexp.MustCompile(`\b(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`)
	clockPattern   = regexp.MustCompile(`\b\d{1,2}(:\d{2})?\s*(am|pm|a\.m\.|p\.m\.|o'?clock)\b|\bat\s+\d{1,2}\b`)
	dayPartPattern = regexp.MustCompile(`\b(morning|afternoon|evening|noon|midday|tonight)\b`)

	strongConfirmWords = []string{"confirm", "confirmed", "book it", "sounds good", "that works", "perfect", "absolutely", "definitely"}
	confirmWords       = []string{"yes", "yeah", "yep", "sure", "ok", "okay", "fine", "alright", "works for me", "available"}
	strongRejectWords  = []string{"not available", "can't make", "cannot make", "reschedule", "won't work", "not possible"}
	rejectWords        = []string{"no", "nope", "busy", "can't", "cannot", "unavailable", "another time", "some other time", "not interested"}
	checkingWords      = []string{"let me check", "check my calendar", "i'll check", "have to check", "hold on", "one moment", "give me a second", "not sure yet"}
	politeWords        = []string{"hello", "hi ", "hey", "thank", "thanks", "good morning", "good afternoon", "good evening", "who is this", "speaking"}

	// Single tokens that are unambiguous on their own
	yesSynonyms = map[string]bool{"yes": true, "yeah": true, "yep": true, "sure": true, "ok": true, "okay": true, "confirm": true, "fine": true}
	noSynonyms  = map[string]bool{"no": true, "nope": true, "nah": true, "busy": true}
)

// IntentClassifier maps a transcript to a coarse intent plus a confidence
// score. It is stateless and deterministic; callers are responsible for
// filtering empty or unusable input before invoking it.
type IntentClassifier struct{}

// NewIntentClassifier creates a new intent classifier
func NewIntentClassifier() *IntentClassifier {
	return &IntentClassifier{}
}

// Classify returns the detected intent and a confidence in [0,1].
// It is total: every input yields an intent, worst case "unclear".
func (ic *IntentClassifier) Classify(utterance string) (string, float64) {
	text := strings.ToLower(strings.TrimSpace(utterance))

	// 1. Time mentions beat everything else: they carry the most information.
	hasDay := weekdayPattern.MatchString(text)
	hasClock := clockPattern.MatchString(text)
	hasDayPart := dayPartPattern.MatchString(text)
	switch {
	case hasDay && hasClock:
		return IntentTimeMention, 0.95
	case hasDay:
		return IntentTimeMention, 0.8
	case hasClock:
		return IntentTimeMention, 0.75
	case hasDayPart:
		return IntentTimeMention, 0.6
	}

	// 2. Confirmation, with explicit negations checked in between so that
	// "not available" never matches the bare "available" confirm word.
	if containsAny(text, strongConfirmWords) {
		return IntentConfirmation, 0.95
	}
	if containsAny(text, strongRejectWords) {
		return IntentRejection, 0.9
	}
	if containsWordAny(text, confirmWords) {
		return IntentConfirmation, 0.85
	}

	// 3. Rejection
	if containsWordAny(text, rejectWords) {
		return IntentRejection, 0.8
	}

	// 4. Checking availability
	if containsAny(text, checkingWords) {
		return IntentCheckingAvailability, 0.75
	}

	// 5. Polite responses with no scheduling content
	if containsAny(text, politeWords) {
		return IntentPoliteResponse, 0.55
	}

	// 6. Fallback, confidence scaled by how much we heard
	tokens := strings.Fields(text)
	switch {
	case len(text) < 3:
		return IntentUnclear, 0.1
	case len(tokens) == 1:
		// Known single-word synonyms were caught above; anything left is noise
		if yesSynonyms[tokens[0]] {
			return IntentConfirmation, 0.8
		}
		if noSynonyms[tokens[0]] {
			return IntentRejection, 0.8
		}
		return IntentUnclear, 0.4
	case len(tokens) >= 2:
		return IntentUnclear, 0.5
	default:
		return IntentUnclear, 0.3
	}
}

// MentionsWeekday reports whether the utterance names a weekday directly,
// which lets the dialogue policy try the slot catalog opportunistically.
func (ic *IntentClassifier) MentionsWeekday(utterance string) bool {
	return weekdayPattern.MatchString(strings.ToLower(utterance))
}

func containsAny(text string, phrases []string) bool {
	for _, phrase := range phrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

// containsWordAny matches whole words only, so "no" does not fire on "know".
func containsWordAny(text string, words []string) bool {
	for _, word := range words {
		if strings.Contains(word, " ") {
			if strings.Contains(text, word) {
				return true
			}
			continue
		}
		for _, token := range strings.Fields(text) {
			if strings.Trim(token, ".,!?") == word {
				return true
			}
		}
	}
	return false
}
