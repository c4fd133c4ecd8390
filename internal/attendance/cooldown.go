package attendance

import "time"

// DefaultCooldown is the window in which repeated sightings of one identity are not written.
const DefaultCooldown = 30 * time.Second

// Cooldown remembers when each identity was last recorded in one session.
// It is owned by a single loop and is not safe for concurrent use.
type Cooldown struct {
	window time.Duration
	last   map[string]time.Time
}

// NewCooldown returns a tracker; a non-positive window falls back to DefaultCooldown.
func NewCooldown(window time.Duration) *Cooldown {
	if window <= 0 {
		window = DefaultCooldown
	}
	return &Cooldown{window: window, last: make(map[string]time.Time)}
}

// ShouldRecord reports whether id has no recorded sighting within the window before now.
func (c *Cooldown) ShouldRecord(id string, now time.Time) bool {
	last, ok := c.last[id]
	if !ok {
		return true
	}
	return now.Sub(last) >= c.window
}

// MarkRecorded stores now as id's last recorded sighting.
func (c *Cooldown) MarkRecorded(id string, now time.Time) {
	c.last[id] = now
}

// Window returns the configured cool-down window.
func (c *Cooldown) Window() time.Duration {
	return c.window
}
