// Package spatial provides broad-phase neighbour queries for the simulation.
//
// Structures store entity indices (not pointers) and reuse their buffers
// between ticks to keep GC pressure low.
package spatial

import "math"

// maxIdleCells bounds how many empty cells are kept around for reuse before
// the hash is rebuilt. The world is unbounded, so cells left behind by a
// moving crowd would otherwise accumulate forever.
const maxIdleCells = 4096

// SpatialHash buckets points into square cells of an unbounded plane.
//
// Optimal cell size equals the largest query radius: a radius query then
// touches at most a 3x3 block of cells.
type SpatialHash struct {
	cellSize    float64
	invCellSize float64
	cells       map[uint64][]uint32
	scratch     []uint32 // reusable buffer for query results
	count       int
}

// NewSpatialHash creates a hash with the given cell size.
func NewSpatialHash(cellSize float64) *SpatialHash {
	if cellSize <= 0 {
		cellSize = 32
	}
	return &SpatialHash{
		cellSize:    cellSize,
		invCellSize: 1.0 / cellSize,
		cells:       make(map[uint64][]uint32),
		scratch:     make([]uint32, 0, 64),
	}
}

func cellKey(col, row int32) uint64 {
	return uint64(uint32(col))<<32 | uint64(uint32(row))
}

func (h *SpatialHash) cellOf(v float64) int32 {
	return int32(math.Floor(v * h.invCellSize))
}

// Clear empties every cell but keeps their capacity.
func (h *SpatialHash) Clear() {
	if len(h.cells) > maxIdleCells {
		h.cells = make(map[uint64][]uint32)
	} else {
		for k, cell := range h.cells {
			h.cells[k] = cell[:0]
		}
	}
	h.count = 0
}

// Insert adds an entity index at (x, y).
func (h *SpatialHash) Insert(entityID uint32, x, y float64) {
	k := cellKey(h.cellOf(x), h.cellOf(y))
	h.cells[k] = append(h.cells[k], entityID)
	h.count++
}

// QueryRadius returns all entity indices potentially within radius of (cx, cy).
//
// IMPORTANT: The returned slice is reused on subsequent calls.
// Candidates may lie outside the radius; the caller does the exact check.
func (h *SpatialHash) QueryRadius(cx, cy, radius float64) []uint32 {
	h.scratch = h.scratch[:0]
	minCol, maxCol := h.cellOf(cx-radius), h.cellOf(cx+radius)
	minRow, maxRow := h.cellOf(cy-radius), h.cellOf(cy+radius)

	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			h.scratch = append(h.scratch, h.cells[cellKey(col, row)]...)
		}
	}
	return h.scratch
}

// Len returns the number of inserted entities.
func (h *SpatialHash) Len() int { return h.count }

// CellSize returns the configured cell size.
func (h *SpatialHash) CellSize() float64 { return h.cellSize }
