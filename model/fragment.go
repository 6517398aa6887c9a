package model

import "image"

// Box is the bounding box of a recognized text region in pixels
type Box struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// BoxFromRect converts an image rectangle to a Box
func BoxFromRect(r image.Rectangle) Box {
	return Box{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()}
}

// TextFragment is one recognized text region of an answer sheet.
// Text is never empty and has its whitespace collapsed.
type TextFragment struct {
	Text       string  `json:"text"`
	Box        Box     `json:"box"`
	Confidence float64 `json:"confidence,omitempty"`
}
