package template

import (
	"strconv"

	"github.com/google/uuid"

	"github.com/vpbank/asynclog/internal/queue"
)

// Reserved slot names the dispatcher sets on every record, overriding any
// prior value a caller may have assigned them.
const (
	SlotMessage = "MSG"
	SlotLevel   = "LEVEL"
	SlotTime    = "TIME"
	// SlotRecordID is an optional reserved slot carrying a fresh identifier
	// per record.
	SlotRecordID = "_LOGGER_OPTIONS_UUID"
)

// Message wraps one Compiled template and permits replacing it wholesale or
// setting slot values by name.
type Message struct {
	compiled *Compiled

	// InjectRecordID controls whether Serialize populates SlotRecordID with a
	// fresh UUID. Disabled by default; the logger sets it on the base template
	// when configured to, and Clone carries it into every channel's copy.
	InjectRecordID bool
}

// NewMessage wraps an already-compiled template. Pass nil for an empty
// message (renders to "").
func NewMessage(c *Compiled) *Message {
	if c == nil {
		c, _ = Parse("")
	}
	return &Message{compiled: c}
}

// SetFormat reparses format and, only on success, replaces the message's
// template. On a BadFormatError the previous template is left unchanged.
func (m *Message) SetFormat(format string) error {
	c, err := Parse(format)
	if err != nil {
		return err
	}
	m.compiled = c
	return nil
}

// AdoptFrom replaces m's template and value state with a deep copy of
// other's. Assigning the same source twice is a no-op the second time.
func (m *Message) AdoptFrom(other *Message) {
	m.compiled = other.compiled.Clone()
}

// SetValue delegates to the underlying template, returning whether the named
// slot exists.
func (m *Message) SetValue(name, value string) bool {
	return m.compiled.SetValue(name, value)
}

// HasSlot reports whether the underlying template has a slot named name.
func (m *Message) HasSlot(name string) bool {
	return m.compiled.HasSlot(name)
}

// Clone returns a new Message with an independent deep copy of m's template
// and the same InjectRecordID setting.
func (m *Message) Clone() *Message {
	return &Message{compiled: m.compiled.Clone(), InjectRecordID: m.InjectRecordID}
}

// Serialize sets the reserved slots from rec (MSG, LEVEL, TIME, and
// optionally the record-ID slot) and renders the result.
func (m *Message) Serialize(rec *queue.Record) string {
	m.compiled.SetValue(SlotMessage, rec.Message)
	m.compiled.SetValue(SlotLevel, rec.Level.String())
	m.compiled.SetValue(SlotTime, strconv.FormatInt(rec.Timestamp, 10))
	if m.InjectRecordID {
		m.compiled.SetValue(SlotRecordID, uuid.NewString())
	}
	return m.compiled.Render()
}
