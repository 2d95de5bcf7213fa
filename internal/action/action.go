// Package action defines the closed vocabulary of coping actions.
package action

import (
	"fmt"
	"strings"
)

// ID identifies one coping action.
type ID string

const (
	Breathing60s   ID = "breathing_60s"
	Grounding54321 ID = "grounding_54321"
	ReframePrompt  ID = "reframe_prompt"
	TinyTask       ID = "tiny_task"
	ShortWalk      ID = "short_walk"
	ReachOut       ID = "reach_out"
)

// Action is the display form of an ID.
type Action struct {
	ID    ID     `json:"id"`
	Label string `json:"label"`
	Short string `json:"short"`
	Emoji string `json:"emoji"`
}

// catalogue order is the canonical vocabulary order.
var catalogue = []Action{
	{ID: Breathing60s, Label: "60-second breathing", Short: "Breathe 4-7-8 for 60 seconds.", Emoji: "🫁"},
	{ID: Grounding54321, Label: "5-4-3-2-1 grounding", Short: "Name 5 things you see, 4 you feel, 3 you hear, 2 you smell, 1 you're okay about.", Emoji: "🌿"},
	{ID: ReframePrompt, Label: "Reframe prompt", Short: "What's one small step that would help right now? (Write or say it.)", Emoji: "💭"},
	{ID: TinyTask, Label: "2-minute cleanup", Short: "Pick one small thing (e.g. clear the desk, fill water) and do it for 2 minutes.", Emoji: "🧹"},
	{ID: ShortWalk, Label: "2-minute walk", Short: "Step outside or walk around the room for 2 minutes.", Emoji: "🚶"},
	{ID: ReachOut, Label: "Reach out", Short: "Copy a message to send to someone you trust.", Emoji: "💬"},
}

// aliases maps legacy labels found in older feedback exports.
var aliases = map[string]ID{
	"breathing": Breathing60s,
}

// All returns every action ID in canonical order.
func All() []ID {
	ids := make([]ID, len(catalogue))
	for i, a := range catalogue {
		ids[i] = a.ID
	}
	return ids
}

// Valid reports whether id is part of the vocabulary.
func Valid(id ID) bool {
	_, ok := index(id)
	return ok
}

// Parse resolves a raw label, including legacy aliases, to an ID.
func Parse(s string) (ID, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if id, ok := aliases[s]; ok {
		return id, nil
	}
	if Valid(ID(s)) {
		return ID(s), nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// Lookup returns the display entry for id.
func Lookup(id ID) (Action, bool) {
	i, ok := index(id)
	if !ok {
		return Action{}, false
	}
	return catalogue[i], true
}

// Order returns the canonical position of id, or -1.
func Order(id ID) int {
	i, ok := index(id)
	if !ok {
		return -1
	}
	return i
}

func index(id ID) (int, bool) {
	for i, a := range catalogue {
		if a.ID == id {
			return i, true
		}
	}
	return 0, false
}
