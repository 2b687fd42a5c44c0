package chat

import (
	"cmp"
	"slices"
)

// CompareMessages orders by Timestamp ascending, ties broken by ID.
func CompareMessages(a, b Message) int {
	if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// SortMessages sorts msgs in place into timeline order.
func SortMessages(msgs []Message) {
	slices.SortFunc(msgs, CompareMessages)
}

// IndexOf returns the index of the message with id, or -1.
func IndexOf(msgs []Message, id string) int {
	return slices.IndexFunc(msgs, func(m Message) bool { return m.ID == id })
}
