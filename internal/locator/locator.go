// Package locator resolves semantic UI targets ("shutter button", "trash
// button") to screen coordinates in apps whose layouts this system does not
// control. Each target carries an ordered strategy chain; strategies fail
// independently and the chain bottoms out in a fixed screen-fraction
// coordinate that always succeeds. A miss anywhere in the chain is expected
// operation, not an error.
package locator

import (
	"sort"
	"strings"

	"github.com/pafech/kraken-bridge/internal/uitree"
)

// Kind selects the lookup a strategy performs.
type Kind int

const (
	// ByResourceID matches the structural identifier exactly, or by its
	// ":id/<name>" suffix when Value has no package prefix.
	ByResourceID Kind = iota
	// ByContentDesc matches the accessibility label.
	ByContentDesc
	// ByText matches visible text content.
	ByText
	// ByRegion collects interactive elements whose center falls inside a
	// named screen region and picks one by horizontal position.
	ByRegion
)

func (k Kind) String() string {
	switch k {
	case ByResourceID:
		return "resource-id"
	case ByContentDesc:
		return "content-desc"
	case ByText:
		return "text"
	case ByRegion:
		return "region"
	default:
		return "unknown"
	}
}

// Region names a screen-relative band used by positional strategies.
type Region int

const (
	// RegionBottomBar is the bottom 15% of the screen, where photo viewers
	// put their action bars.
	RegionBottomBar Region = iota
	// RegionTopBar is the top 12% of the screen.
	RegionTopBar
)

// Pick selects an element from a region's left-to-right ordering.
type Pick int

const (
	PickRightmost Pick = iota
	PickLeftmost
	PickMiddle
)

// Strategy is one link of a target's fallback chain.
type Strategy struct {
	Kind  Kind
	Value string
	Exact bool // exact match only; otherwise case-insensitive substring too
	In    Region
	Pick  Pick
}

// Target is an immutable semantic descriptor: the strategy chain plus the
// final fixed-coordinate fallback expressed as fractions of screen size.
type Target struct {
	Name       string
	Strategies []Strategy
	FallbackX  float64
	FallbackY  float64
}

// Match is a successful location. Node is nil when the fixed-coordinate
// fallback produced the match.
type Match struct {
	Node     *uitree.Node
	X, Y     int
	Strategy string // which link of the chain matched, "fallback" at the end
}

// Locate runs the target's strategy chain against the tree and returns the
// first hit. It never fails: exhaustion of the chain (or a nil tree) falls
// through to the fixed coordinate. screenW/screenH are the device pixels the
// fallback fractions are scaled by.
func Locate(root *uitree.Node, screenW, screenH int, t Target) Match {
	if root != nil {
		for _, s := range t.Strategies {
			if n := apply(root, screenW, screenH, s); n != nil {
				if x, y, err := n.CenterOf(); err == nil {
					return Match{Node: n, X: x, Y: y, Strategy: s.Kind.String()}
				}
			}
		}
	}

	return Match{
		X:        int(t.FallbackX * float64(screenW)),
		Y:        int(t.FallbackY * float64(screenH)),
		Strategy: "fallback",
	}
}

func apply(root *uitree.Node, screenW, screenH int, s Strategy) *uitree.Node {
	switch s.Kind {
	case ByResourceID:
		return findByResourceID(root, s.Value)
	case ByContentDesc:
		return findByString(root, s.Value, s.Exact, func(n *uitree.Node) string { return n.ContentDesc })
	case ByText:
		return findByString(root, s.Value, s.Exact, func(n *uitree.Node) string { return n.Text })
	case ByRegion:
		return findInRegion(root, screenW, screenH, s.In, s.Pick)
	default:
		return nil
	}
}

func findByResourceID(root *uitree.Node, id string) *uitree.Node {
	return uitree.First(root, func(n *uitree.Node) bool {
		if n.ResourceID == "" {
			return false
		}
		return n.ResourceID == id || strings.HasSuffix(n.ResourceID, ":id/"+id)
	})
}

// findByString matches an attribute exactly, or case-insensitively as a
// substring when the strategy allows it. Depth-first, first hit wins.
func findByString(root *uitree.Node, want string, exact bool, attr func(*uitree.Node) string) *uitree.Node {
	if n := uitree.First(root, func(n *uitree.Node) bool { return attr(n) == want }); n != nil {
		return n
	}
	if exact {
		return nil
	}
	lower := strings.ToLower(want)
	return uitree.First(root, func(n *uitree.Node) bool {
		v := attr(n)
		return v != "" && strings.Contains(strings.ToLower(v), lower)
	})
}

// regionRect converts a named region to pixels for the current screen.
func regionRect(region Region, screenW, screenH int) uitree.Rect {
	switch region {
	case RegionTopBar:
		return uitree.Rect{X1: 0, Y1: 0, X2: screenW, Y2: screenH * 12 / 100}
	default: // RegionBottomBar
		return uitree.Rect{X1: 0, Y1: screenH * 85 / 100, X2: screenW, Y2: screenH}
	}
}

type placed struct {
	node *uitree.Node
	x, y int
}

// findInRegion gathers enabled, clickable elements centered inside the region,
// orders them left-to-right, and picks by position.
func findInRegion(root *uitree.Node, screenW, screenH int, region Region, pick Pick) *uitree.Node {
	band := regionRect(region, screenW, screenH)

	var found []placed
	for _, n := range uitree.Collect(root, func(n *uitree.Node) bool {
		return n.IsClickable() && n.IsEnabled()
	}) {
		x, y, err := n.CenterOf()
		if err != nil {
			continue
		}
		if band.Contains(x, y) {
			found = append(found, placed{node: n, x: x, y: y})
		}
	}
	if len(found) == 0 {
		return nil
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].x < found[j].x })

	switch pick {
	case PickLeftmost:
		return found[0].node
	case PickMiddle:
		return found[len(found)/2].node
	default:
		return found[len(found)-1].node
	}
}
