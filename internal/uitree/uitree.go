// Package uitree models the foreground app's view hierarchy as produced by
// `uiautomator dump`. The locator package runs its strategy chain over this
// tree; nothing here knows what any element means.
package uitree

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Node is one element of the dumped hierarchy. Boolean attributes arrive as
// the strings "true"/"false" and are kept that way, mirroring the dump.
type Node struct {
	XMLName     xml.Name `xml:"node"`
	Text        string   `xml:"text,attr"`
	ResourceID  string   `xml:"resource-id,attr"`
	Class       string   `xml:"class,attr"`
	Package     string   `xml:"package,attr"`
	ContentDesc string   `xml:"content-desc,attr"`
	Clickable   string   `xml:"clickable,attr"`
	Enabled     string   `xml:"enabled,attr"`
	Focusable   string   `xml:"focusable,attr"`
	Scrollable  string   `xml:"scrollable,attr"`
	Bounds      string   `xml:"bounds,attr"`
	Nodes       []Node   `xml:"node"`
}

type hierarchy struct {
	XMLName xml.Name `xml:"hierarchy"`
	Nodes   []Node   `xml:"node"`
}

// IsClickable reports whether the element accepts taps.
func (n *Node) IsClickable() bool {
	return n.Clickable == "true"
}

// IsEnabled reports whether the element is interactive right now.
func (n *Node) IsEnabled() bool {
	return n.Enabled == "true"
}

// Rect is a parsed bounds rectangle in screen pixels.
type Rect struct {
	X1, Y1, X2, Y2 int
}

var boundsRe = regexp.MustCompile(`\[(-?\d+),(-?\d+)\]\[(-?\d+),(-?\d+)\]`)

// ParseBounds parses the dump's "[x1,y1][x2,y2]" bounds attribute.
func ParseBounds(bounds string) (Rect, error) {
	m := boundsRe.FindStringSubmatch(bounds)
	if len(m) != 5 {
		return Rect{}, fmt.Errorf("uitree: invalid bounds %q", bounds)
	}
	x1, _ := strconv.Atoi(m[1])
	y1, _ := strconv.Atoi(m[2])
	x2, _ := strconv.Atoi(m[3])
	y2, _ := strconv.Atoi(m[4])
	return Rect{X1: x1, Y1: y1, X2: x2, Y2: y2}, nil
}

// Center returns the midpoint of the rectangle.
func (r Rect) Center() (int, int) {
	return r.X1 + (r.X2-r.X1)/2, r.Y1 + (r.Y2-r.Y1)/2
}

// Contains reports whether (x, y) lies inside the rectangle.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X1 && x <= r.X2 && y >= r.Y1 && y <= r.Y2
}

// Width returns the rectangle width in pixels.
func (r Rect) Width() int { return r.X2 - r.X1 }

// Height returns the rectangle height in pixels.
func (r Rect) Height() int { return r.Y2 - r.Y1 }

// CenterOf parses the node's bounds and returns its center, or an error when
// the bounds attribute is malformed.
func (n *Node) CenterOf() (int, int, error) {
	r, err := ParseBounds(n.Bounds)
	if err != nil {
		return 0, 0, err
	}
	x, y := r.Center()
	return x, y, nil
}

// Parse turns raw uiautomator XML into a tree. The dump is frequently messy:
// adb prepends status lines and the XML can carry bare ampersands, so the
// input is trimmed and re-escaped before unmarshalling. When the dump has
// several top-level nodes a synthetic root is wrapped around them.
func Parse(raw string) (*Node, error) {
	start := strings.Index(raw, "<?xml")
	if start == -1 {
		start = strings.Index(raw, "<hierarchy")
	}
	if start == -1 {
		return nil, fmt.Errorf("uitree: no XML document in dump (%d bytes)", len(raw))
	}
	raw = raw[start:]
	if end := strings.LastIndex(raw, ">"); end != -1 && end < len(raw)-1 {
		raw = raw[:end+1]
	}

	raw = sanitizeEntities(raw)

	var h hierarchy
	if err := xml.Unmarshal([]byte(raw), &h); err != nil {
		return nil, fmt.Errorf("uitree: parse dump: %w", err)
	}
	if len(h.Nodes) == 0 {
		return nil, fmt.Errorf("uitree: dump has no nodes")
	}
	if len(h.Nodes) == 1 {
		return &h.Nodes[0], nil
	}
	return &Node{
		Class:  "android.view.View",
		Bounds: "[0,0][0,0]",
		Nodes:  h.Nodes,
	}, nil
}

// sanitizeEntities escapes stray ampersands without double-escaping the
// entities the dump already encodes.
func sanitizeEntities(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "&amp;amp;", "&amp;")
	s = strings.ReplaceAll(s, "&amp;lt;", "&lt;")
	s = strings.ReplaceAll(s, "&amp;gt;", "&gt;")
	s = strings.ReplaceAll(s, "&amp;quot;", "&quot;")
	s = strings.ReplaceAll(s, "&amp;apos;", "&apos;")
	s = strings.ReplaceAll(s, "&amp;#", "&#")
	return s
}

// Collect walks the tree depth-first and returns every node matching the
// predicate, in document order.
func Collect(root *Node, pred func(*Node) bool) []*Node {
	if root == nil {
		return nil
	}
	var out []*Node
	if pred(root) {
		out = append(out, root)
	}
	for i := range root.Nodes {
		out = append(out, Collect(&root.Nodes[i], pred)...)
	}
	return out
}

// First returns the first node (depth-first) matching the predicate, or nil.
func First(root *Node, pred func(*Node) bool) *Node {
	if root == nil {
		return nil
	}
	if pred(root) {
		return root
	}
	for i := range root.Nodes {
		if n := First(&root.Nodes[i], pred); n != nil {
			return n
		}
	}
	return nil
}

// Count returns the number of nodes in the tree.
func Count(root *Node) int {
	if root == nil {
		return 0
	}
	n := 1
	for i := range root.Nodes {
		n += Count(&root.Nodes[i])
	}
	return n
}
