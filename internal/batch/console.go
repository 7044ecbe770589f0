package batch

import (
	"fmt"
	"io"
)

// Console prints the human-readable progress of a batch.
type Console struct {
	w io.Writer
}

func NewConsole(w io.Writer) *Console {
	if w == nil {
		w = io.Discard
	}
	return &Console{w: w}
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.w, format, args...)
}

func (c *Console) Reading() { c.printf("\n📂 Reading system and user messages...\n") }
func (c *Console) SystemLoaded(n int) { c.printf("✅ Loaded %d system messages successfully\n", n) }
func (c *Console) UserLoaded(n int) { c.printf("✅ Loaded %d user messages\n", n) }
func (c *Console) LoadFailed(err error) { c.printf("❌ %v\n", err) }
func (c *Console) Starting() { c.printf("\n🚀 Starting API calls...\n") }
func (c *Console) CallingAPI() { c.printf("   ⏳ Calling API...\n") }
func (c *Console) Logging() { c.printf("   💾 Logging interaction...\n") }
func (c *Console) CallFailed(err error) { c.printf("   ❌ Error making API call: %v\n", err) }
func (c *Console) Completed(idx, total int) { c.printf("   ✅ Completed [%d/%d]\n", idx, total) }
func (c *Console) Cancelled(idx, total int) { c.printf("\n🛑 Cancelled at message [%d/%d]\n", idx, total) }
func (c *Console) Done(succeeded, total int) {
	c.printf("\n✨ All done! Processed %d/%d messages successfully\n", succeeded, total)
}

func (c *Console) Processing(idx, total int, user string) {
	c.printf("\n[%d/%d] Processing: %s\n", idx, total, Preview(user))
}

func (c *Console) SystemChosen(system string, empty bool) {
	if empty {
		c.printf("   🎲 Using empty system prompt\n")
		return
	}
	c.printf("   🎲 Using system prompt #%s\n", Preview(system))
}

// Preview returns the first 50 characters of s, marking the cut with "...".
func Preview(s string) string {
	r := []rune(s)
	if len(r) <= 50 {
		return s
	}
	return string(r[:50]) + "..."
}
