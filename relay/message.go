// Package relay shares note presses between players over a websocket hub.
package relay

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/whyrusleeping/pianojam/notes"
	"github.com/whyrusleeping/pianojam/osc"
	"github.com/whyrusleeping/pianojam/record"
)

// Message is one relayed press or release, sent as "NOTE_ON,C4,sine".
type Message struct {
	Kind   record.Kind
	Note   notes.Key
	Timbre osc.Timbre
}

func (m Message) String() string {
	return m.Kind.String() + "," + string(m.Note) + "," + m.Timbre.String()
}

func ParseMessage(s string) (Message, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) < 3 {
		return Message{}, errors.Errorf("short message %q", s)
	}

	kind, err := record.ParseKind(parts[0])
	if err != nil {
		return Message{}, err
	}
	t, err := osc.ParseTimbre(parts[2])
	if err != nil {
		return Message{}, errors.Wrapf(err, "message %q", s)
	}
	note := notes.Key(strings.TrimSpace(parts[1]))
	if note == "" {
		return Message{}, errors.Errorf("message %q has no note", s)
	}
	return Message{Kind: kind, Note: note, Timbre: t}, nil
}
