// Package detector provides fiducial marker detection interfaces and types.
package detector

import (
	"gonum.org/v1/gonum/floats"
)

// Point is a 2D point in pixel coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Marker is one detected tag in one frame. Corners are in the order the
// detector reports them, which is consistent around the quadrilateral.
type Marker struct {
	ID      int      `json:"id"`
	Corners [4]Point `json:"corners"`
}

// side returns the length of the edge from corner i to corner j.
func (m Marker) side(i, j int) float64 {
	a := []float64{m.Corners[i].X, m.Corners[i].Y}
	b := []float64{m.Corners[j].X, m.Corners[j].Y}
	return floats.Distance(a, b, 2)
}

// PixelSize returns the apparent edge length of the marker: the mean of two
// adjacent sides. It is zero for degenerate detections.
func (m Marker) PixelSize() float64 {
	return (m.side(0, 1) + m.side(1, 2)) / 2
}

// Center returns the centroid of the four corners.
func (m Marker) Center() Point {
	var c Point
	for _, p := range m.Corners {
		c.X += p.X
		c.Y += p.Y
	}
	c.X /= 4
	c.Y /= 4
	return c
}

// Square returns a marker whose corners form an axis-aligned square of the
// given side with its top-left corner at (x, y), ordered clockwise.
func Square(id int, x, y, side float64) Marker {
	return Marker{
		ID: id,
		Corners: [4]Point{
			{X: x, Y: y},
			{X: x + side, Y: y},
			{X: x + side, Y: y + side},
			{X: x, Y: y + side},
		},
	}
}
