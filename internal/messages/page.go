package messages

import (
	"slices"

	"github.com/nextlevelbuilder/discordlite/internal/chat"
)

// Status is the outcome of the last load on a page.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusLoaded
	StatusLoadingMore
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusLoaded:
		return "loaded"
	case StatusLoadingMore:
		return "loading_more"
	case StatusFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Page is a snapshot of the engine's view of one channel. Messages is a copy
// owned by the caller.
type Page struct {
	ChannelID string
	Messages  []chat.Message
	HasMore   bool
	OldestID  string
	Status    Status
	Err       error // last load failure
	StreamErr error // last stream failure, cleared on attach
}

// page is the mutable state behind Page.
type page struct {
	Page
	ids map[string]struct{}
}

func newPage(channelID string) *page {
	return &page{Page: Page{ChannelID: channelID}, ids: make(map[string]struct{})}
}

func (p *page) snapshot() Page {
	s := p.Page
	s.Messages = slices.Clone(p.Messages)
	return s
}

func (p *page) replace(b Batch) {
	p.Messages = p.Messages[:0]
	clear(p.ids)
	for _, m := range b.Messages {
		if _, dup := p.ids[m.ID]; dup {
			continue
		}
		p.ids[m.ID] = struct{}{}
		p.Messages = append(p.Messages, m)
	}
	p.HasMore = b.HasMore
	p.OldestID = b.OldestID
}

// prepend puts an older batch in front, skipping ids already on the page.
// OldestID keeps naming the first message when the batch adds nothing.
func (p *page) prepend(b Batch) {
	older := make([]chat.Message, 0, len(b.Messages))
	for _, m := range b.Messages {
		if _, dup := p.ids[m.ID]; dup {
			continue
		}
		p.ids[m.ID] = struct{}{}
		older = append(older, m)
	}
	p.Messages = append(older, p.Messages...)
	p.HasMore = b.HasMore
	p.OldestID = ""
	if len(p.Messages) > 0 {
		p.OldestID = p.Messages[0].ID
	}
}

// apply merges one live event and reports whether the page changed.
func (p *page) apply(ev chat.MessageEvent) bool {
	switch ev.Type {
	case chat.EventCreate:
		if _, ok := p.ids[ev.Message.ID]; ok {
			return false
		}
		p.ids[ev.Message.ID] = struct{}{}
		p.Messages = append(p.Messages, ev.Message)
		return true
	case chat.EventUpdate:
		i := chat.IndexOf(p.Messages, ev.Message.ID)
		if i < 0 {
			return false
		}
		p.Messages[i] = ev.Message
		return true
	case chat.EventDelete:
		i := chat.IndexOf(p.Messages, ev.MessageID)
		if i < 0 {
			return false
		}
		p.Messages = slices.Delete(p.Messages, i, i+1)
		delete(p.ids, ev.MessageID)
		return true
	default:
		return false
	}
}
