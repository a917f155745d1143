package trace

import "time"

// StartInfo is captured from the first point of a run and never updated.
type StartInfo struct {
	Timestamp *time.Time
	Details   string
}

// Segment is a maximal run of consecutive valid points sharing a category.
// Runs of CategoryNone are never emitted.
type Segment struct {
	Category Category
	Points   []Coordinate
	Start    StartInfo
}

// First returns the run's first coordinate, the anchor for marker rendering.
func (s Segment) First() Coordinate {
	return s.Points[0]
}

// Segments splits points into exception segments in a single pass.
//
// An invalid point closes the current run without contributing a coordinate,
// so two same-category runs on either side of it stay separate. Input order
// is trusted; the caller is responsible for supplying pings in time order.
func Segments(points []Point) []Segment {
	var s segmenter
	for i := range points {
		s.add(&points[i])
	}
	s.close()
	return s.out
}

type segmenter struct {
	category Category
	points   []Coordinate
	start    StartInfo
	out      []Segment
}

func (s *segmenter) add(p *Point) {
	if !p.Valid() {
		s.close()
		return
	}

	category := Classify(p.ExceptionType)
	if category != s.current() {
		s.close()
		s.category = category
		if category != CategoryNone {
			s.start = StartInfo{Timestamp: p.Timestamp, Details: p.Details()}
		}
	}

	if s.current() != CategoryNone {
		s.points = append(s.points, p.Coordinate())
	}
}

// current treats the zero value as CategoryNone.
func (s *segmenter) current() Category {
	if s.category == "" {
		return CategoryNone
	}
	return s.category
}

func (s *segmenter) close() {
	if s.current() != CategoryNone && len(s.points) > 0 {
		s.out = append(s.out, Segment{
			Category: s.category,
			Points:   s.points,
			Start:    s.start,
		})
	}
	s.category = CategoryNone
	s.points = nil
	s.start = StartInfo{}
}
