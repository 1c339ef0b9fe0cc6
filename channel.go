package asynclog

// Channel is a handle bound to one channel ID, letting a producer submit
// records without repeating the ID on every call. Safe for concurrent use by
// multiple goroutines sharing the same channel ID.
type Channel struct {
	logger *Logger
	id     string
}

// ID returns the channel ID this handle is bound to.
func (c *Channel) ID() string { return c.id }

// SetValue sets name/value on this channel's own template.
func (c *Channel) SetValue(name, value string) bool {
	return c.logger.SetChannelValue(c.id, name, value)
}

func (c *Channel) Trace(message string)    { c.logger.Trace(c.id, message) }
func (c *Channel) Debug(message string)    { c.logger.Debug(c.id, message) }
func (c *Channel) Info(message string)     { c.logger.Info(c.id, message) }
func (c *Channel) Warning(message string)  { c.logger.Warning(c.id, message) }
func (c *Channel) Error(message string)    { c.logger.Error(c.id, message) }
func (c *Channel) Critical(message string) { c.logger.Critical(c.id, message) }
