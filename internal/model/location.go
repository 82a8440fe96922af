package model

// Location представляет координаты в игровом мире.
// Value type, передаётся по значению (immutable).
type Location struct {
	RegionID uint16
	X        int32
	Y        int32
	Z        int32
	Heading  uint16
}

// NewLocation создаёт Location в указанном регионе.
func NewLocation(regionID uint16, x, y, z int32, heading uint16) Location {
	return Location{RegionID: regionID, X: x, Y: y, Z: z, Heading: heading}
}

// Offset возвращает точку, сдвинутую на dx/dy в том же регионе.
func (l Location) Offset(dx, dy int32) Location {
	l.X += dx
	l.Y += dy
	return l
}

// DistanceSquared возвращает квадрат расстояния до другой точки.
// Точки в разных регионах считаются бесконечно далёкими.
func (l Location) DistanceSquared(other Location) int64 {
	if l.RegionID != other.RegionID {
		return 1<<63 - 1
	}
	dx := int64(l.X - other.X)
	dy := int64(l.Y - other.Y)
	dz := int64(l.Z - other.Z)
	return dx*dx + dy*dy + dz*dz
}

// InRange reports whether other is within radius of l.
func (l Location) InRange(other Location, radius int32) bool {
	r := int64(radius)
	return l.DistanceSquared(other) <= r*r
}
