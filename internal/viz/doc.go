// Package viz renders diagnostic views of a grid encoder: heat maps of a
// level's features over a 2-D slice of the unit cube (gonum/plot) and HTML
// charts of the level layout (go-echarts).
package viz
