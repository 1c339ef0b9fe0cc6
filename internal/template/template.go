// Package template implements the format-template engine: parsing a
// "<NAME>" placeholder grammar once, resolving environment-variable slots
// eagerly at parse time, and rendering per-record and per-channel values at
// serialization time.
package template

import (
	"fmt"
	"os"
	"strings"
	"unicode"
)

// BadFormatError reports a malformed template string.
type BadFormatError struct {
	Format string
	Reason string
}

func (e *BadFormatError) Error() string {
	return fmt.Sprintf("template: bad format %q: %s", e.Format, e.Reason)
}

// slot is a single named placeholder together with its current value.
type slot struct {
	name  string
	value string
}

// Compiled is the parsed form of a format string: an alternating sequence of
// literal text and slots, texts[0], slots[0], texts[1], slots[1], ...,
// texts[len(slots)]. The invariant len(texts) == len(slots)+1 always holds.
type Compiled struct {
	texts []string
	slots []slot
}

// Parse compiles a format string. Whitespace is stripped before parsing.
// Slots whose name matches a defined environment variable are resolved
// immediately and collapsed into the surrounding text, disappearing from the
// compiled template.
func Parse(format string) (*Compiled, error) {
	stripped := stripWhitespace(format)
	if err := checkBrackets(stripped); err != nil {
		return nil, err
	}

	c := &Compiled{}
	rest := stripped
	for {
		open := strings.IndexByte(rest, '<')
		if open < 0 {
			c.texts = append(c.texts, rest)
			break
		}
		c.texts = append(c.texts, rest[:open])
		rest = rest[open+1:]
		closeIdx := strings.IndexByte(rest, '>')
		// checkBrackets already guaranteed a matching '>' exists.
		name := rest[:closeIdx]
		c.slots = append(c.slots, slot{name: name})
		rest = rest[closeIdx+1:]
	}

	c.resolveEnv()
	return c, nil
}

// resolveEnv walks slots from last to first, collapsing any slot whose name
// matches a defined environment variable into its surrounding text.
func (c *Compiled) resolveEnv() {
	for i := len(c.slots) - 1; i >= 0; i-- {
		val, ok := os.LookupEnv(c.slots[i].name)
		if !ok {
			continue
		}
		c.texts[i] = c.texts[i] + val + c.texts[i+1]
		c.texts = append(c.texts[:i+1], c.texts[i+2:]...)
		c.slots = append(c.slots[:i], c.slots[i+1:]...)
	}
}

// stripWhitespace removes every whitespace rune from s.
func stripWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// checkBrackets enforces the well-bracketed property: '<' increments a depth
// counter, '>' decrements it; the counter must stay in {0, 1} and end at 0.
func checkBrackets(s string) error {
	depth := 0
	for _, r := range s {
		switch r {
		case '<':
			depth++
		case '>':
			depth--
		}
		if depth > 1 || depth < 0 {
			return &BadFormatError{Format: s, Reason: "unbalanced or nested angle brackets"}
		}
	}
	if depth != 0 {
		return &BadFormatError{Format: s, Reason: "unterminated slot"}
	}
	return nil
}

// SetValue sets the value of the first slot named name. It returns true iff
// such a slot exists.
func (c *Compiled) SetValue(name, value string) bool {
	for i := range c.slots {
		if c.slots[i].name == name {
			c.slots[i].value = value
			return true
		}
	}
	return false
}

// HasSlot reports whether a slot named name exists.
func (c *Compiled) HasSlot(name string) bool {
	for i := range c.slots {
		if c.slots[i].name == name {
			return true
		}
	}
	return false
}

// Render concatenates text and slot values into the final line.
func (c *Compiled) Render() string {
	var b strings.Builder
	for i, s := range c.slots {
		b.WriteString(c.texts[i])
		b.WriteString(s.value)
	}
	b.WriteString(c.texts[len(c.slots)])
	return b.String()
}

// Clone returns a deep copy of c, including current slot values. Used by the
// registry to seed a new channel's template from the base template.
func (c *Compiled) Clone() *Compiled {
	out := &Compiled{
		texts: append([]string(nil), c.texts...),
		slots: append([]slot(nil), c.slots...),
	}
	return out
}
