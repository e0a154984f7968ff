package locator

import (
	"github.com/pafech/kraken-bridge/internal/config"
	"github.com/pafech/kraken-bridge/internal/session"
)

// Catalog builds the targets for the two supported apps from the current
// calibration. Immutable; the bridge swaps in a whole new catalog on config
// reload.
type Catalog struct {
	cal config.CalibrationConfig
}

// NewCatalog creates a catalog for the given calibration.
func NewCatalog(cal config.CalibrationConfig) *Catalog {
	return &Catalog{cal: cal}
}

// Shutter is Open Camera's capture button.
func (c *Catalog) Shutter() Target {
	return Target{
		Name: "shutter",
		Strategies: []Strategy{
			{Kind: ByResourceID, Value: "take_photo"},
			{Kind: ByContentDesc, Value: "Take Photo"},
			{Kind: ByContentDesc, Value: "Take Video"},
			{Kind: ByContentDesc, Value: "shutter"},
		},
		FallbackX: c.cal.Shutter.X,
		FallbackY: c.cal.Shutter.Y,
	}
}

// ModeToggle is the photo/video switch. Open Camera labels the control with
// the mode it switches TO, so the descriptor depends on the desired mode.
func (c *Catalog) ModeToggle(want session.CaptureMode) Target {
	desc := "Switch to video mode"
	text := "Video"
	if want == session.CapturePhoto {
		desc = "Switch to photo mode"
		text = "Photo"
	}
	return Target{
		Name: "mode-toggle",
		Strategies: []Strategy{
			{Kind: ByResourceID, Value: "switch_video"},
			{Kind: ByContentDesc, Value: desc},
			{Kind: ByText, Value: text, Exact: true},
			{Kind: ByRegion, In: RegionTopBar, Pick: PickRightmost},
		},
		FallbackX: c.cal.ModeToggle.X,
		FallbackY: c.cal.ModeToggle.Y,
	}
}

// Focus returns the bare-coordinate target for a focus tap. Focus taps land
// on the preview surface, which exposes no stable identifiers, so the chain
// is empty and the calibrated fraction is used directly.
func (c *Catalog) Focus(p session.FocusPoint) Target {
	var pt config.Point
	switch p {
	case session.FocusNear:
		pt = c.cal.FocusNear
	case session.FocusFar:
		pt = c.cal.FocusFar
	default:
		pt = c.cal.FocusCenter
	}
	return Target{
		Name:      "focus-" + p.String(),
		FallbackX: pt.X,
		FallbackY: pt.Y,
	}
}

// Trash is the gallery viewer's delete action. The positional strategy leans
// on photo viewers placing delete rightmost in the bottom action bar.
func (c *Catalog) Trash() Target {
	return Target{
		Name: "trash",
		Strategies: []Strategy{
			{Kind: ByResourceID, Value: "bottom_delete"},
			{Kind: ByContentDesc, Value: "Delete"},
			{Kind: ByText, Value: "Delete"},
			{Kind: ByRegion, In: RegionBottomBar, Pick: PickRightmost},
		},
		FallbackX: c.cal.Trash.X,
		FallbackY: c.cal.Trash.Y,
	}
}

// DeleteConfirm is the confirmation button of the delete dialog.
func (c *Catalog) DeleteConfirm() Target {
	return Target{
		Name: "delete-confirm",
		Strategies: []Strategy{
			{Kind: ByResourceID, Value: "button1"}, // android:id/button1 = positive dialog button
			{Kind: ByText, Value: "Yes", Exact: true},
			{Kind: ByText, Value: "Delete", Exact: true},
			{Kind: ByText, Value: "OK", Exact: true},
		},
		FallbackX: c.cal.Confirm.X,
		FallbackY: c.cal.Confirm.Y,
	}
}

// ShowControls is the center-screen tap that reveals the gallery viewer's
// chrome before the delete sequence. Pure coordinate target.
func (c *Catalog) ShowControls() Target {
	return Target{
		Name:      "show-controls",
		FallbackX: 0.5,
		FallbackY: 0.5,
	}
}

// SwipeEdges returns the calibrated left and right swipe endpoints for
// gallery navigation.
func (c *Catalog) SwipeEdges() (left, right config.Point) {
	return c.cal.SwipeEdgeL, c.cal.SwipeEdgeR
}
