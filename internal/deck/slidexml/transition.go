package slidexml

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"svgdeck/internal/deck/opc"
)

// DefaultTransitionDuration is used when a transition has no duration.
const DefaultTransitionDuration = 0.5

// effect describes how one transition is written. choice is the element
// used inside the p14 branch; fallback is used by pre-2010 renderers.
type effect struct {
	name     string
	choice   string
	fallback string
	attrs    [][2]string
}

var effects = map[string]effect{
	"fade":     {name: "Fade", choice: "p:fade", fallback: "p:fade"},
	"push":     {name: "Push", choice: "p:push", fallback: "p:push", attrs: [][2]string{{"dir", "u"}}},
	"wipe":     {name: "Wipe", choice: "p:wipe", fallback: "p:wipe", attrs: [][2]string{{"dir", "r"}}},
	"split":    {name: "Split", choice: "p:split", fallback: "p:split", attrs: [][2]string{{"orient", "horz"}, {"dir", "out"}}},
	"reveal":   {name: "Reveal", choice: "p14:reveal", fallback: "p:fade"},
	"cover":    {name: "Cover", choice: "p:cover", fallback: "p:cover", attrs: [][2]string{{"dir", "l"}}},
	"random":   {name: "Random", choice: "p:random", fallback: "p:random"},
	"dissolve": {name: "Dissolve", choice: "p:dissolve", fallback: "p:dissolve"},
	"zoom":     {name: "Zoom", choice: "p:zoom", fallback: "p:zoom"},
}

// Effects returns the supported transition effect names, sorted.
func Effects() []string {
	names := make([]string, 0, len(effects)+1)
	for name := range effects {
		names = append(names, name)
	}
	names = append(names, "none")
	sort.Strings(names)
	return names
}

// EffectDisplayName returns the human readable name of an effect.
func EffectDisplayName(name string) string {
	if e, ok := effects[strings.ToLower(name)]; ok {
		return e.name
	}
	return name
}

// Transition is applied identically to every slide of a build.
type Transition struct {
	Effect string
	// Duration in seconds.
	Duration float64
	// AutoAdvance in seconds; nil advances on click only.
	AutoAdvance *float64
}

// ParseTransition validates a transition request. It returns nil when the
// effect is empty or "none".
func ParseTransition(name string, duration float64, autoAdvance *float64) (*Transition, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || key == "none" {
		return nil, nil
	}
	if _, ok := effects[key]; !ok {
		return nil, fmt.Errorf("unknown transition %q (supported: %s)", name, strings.Join(Effects(), ", "))
	}
	if duration < 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return nil, fmt.Errorf("transition duration must be a non-negative number, got %v", duration)
	}
	if duration == 0 {
		duration = DefaultTransitionDuration
	}
	if autoAdvance != nil && (*autoAdvance < 0 || math.IsNaN(*autoAdvance) || math.IsInf(*autoAdvance, 0)) {
		return nil, fmt.Errorf("auto-advance must be a non-negative number, got %v", *autoAdvance)
	}
	return &Transition{Effect: key, Duration: duration, AutoAdvance: autoAdvance}, nil
}

// Speed maps the duration onto the legacy spd attribute.
func (t *Transition) Speed() string {
	switch {
	case t.Duration <= 0.5:
		return "fast"
	case t.Duration <= 0.75:
		return "med"
	default:
		return "slow"
	}
}

func millis(seconds float64) string {
	return strconv.FormatInt(int64(math.Round(seconds*1000)), 10)
}

// appendTo adds the transition block to parent (the slide root).
func (t *Transition) appendTo(parent *etree.Element) {
	e := effects[t.Effect]
	alt := parent.CreateElement("mc:AlternateContent")
	alt.CreateAttr("xmlns:mc", opc.NSMarkupCompat)

	choice := alt.CreateElement("mc:Choice")
	choice.CreateAttr("xmlns:p14", opc.NSP14)
	choice.CreateAttr("Requires", "p14")
	modern := t.transitionElement(choice, e.choice, e.attrs)
	modern.CreateAttr("p14:dur", millis(t.Duration))

	fallback := alt.CreateElement("mc:Fallback")
	t.transitionElement(fallback, e.fallback, e.attrs)
}

func (t *Transition) transitionElement(parent *etree.Element, tag string, attrs [][2]string) *etree.Element {
	tr := parent.CreateElement("p:transition")
	tr.CreateAttr("spd", t.Speed())
	if t.AutoAdvance != nil {
		tr.CreateAttr("advTm", millis(*t.AutoAdvance))
	}
	el := tr.CreateElement(tag)
	if strings.HasPrefix(tag, "p:") {
		for _, attr := range attrs {
			el.CreateAttr(attr[0], attr[1])
		}
	}
	return tr
}
