package lobby

import (
	"math"
	"strconv"

	"github.com/GraysonReimer/WebGuesser/internal/roster"
)

// iconRollAttempts bounds the rejection sampling in randomIcon; past it the
// roll falls back to the next icon over.
const iconRollAttempts = 64

// loadLocalUserInfo seeds the session identity from the preference store,
// generating a name and rolling an icon when nothing is remembered.
func (c *Coordinator) loadLocalUserInfo() {
	name, ok := c.prefs.Username()
	if !ok {
		name = c.generateName()
		c.prefs.SetUsername(name)
	}

	c.mu.Lock()
	c.username = name
	c.mu.Unlock()

	if c.prefs.Icon() == roster.IconUnset {
		c.prefs.SetIcon(c.randomIcon(roster.IconUnset))
	}
}

// randomIcon picks an icon index, rerolling while it matches exclude. A
// roll has a 1-in-101 chance of landing on the secret icon, which is never
// excluded.
func (c *Coordinator) randomIcon(exclude int) int {
	for i := 0; i < iconRollAttempts; i++ {
		roll := c.rand.Float64()
		if int(math.Round(roll*101)) == 100 {
			return roster.IconSecret
		}
		icon := int(math.Round(roll * float64(c.opts.IconRange-1)))
		if icon != exclude {
			return icon
		}
	}
	return (exclude + 1) % c.opts.IconRange
}

// generateName produces a throwaway display name: a base name plus a
// numeric suffix.
func (c *Coordinator) generateName() string {
	base := nameData[c.rand.Intn(len(nameData))]
	return base + strconv.Itoa(c.rand.Intn(101))
}

var nameData = []string{
	"Steven",
	"Richard",
	"Howard",
	"Ben",
	"Bob",
	"Joe",
	"Jim",
	"Tim",
	"Larry",
	"Lucas",
	"Micheal",
	"Ron",
	"Adam",
	"Liam",
	"Pablo",
	"Edward",
	"Plumblo",
	"Bill",
	"Jesse",
	"Hunter",
	"Kyle",
	"William",
	"Frank",
	"Jack",
	"Marcus",
}
