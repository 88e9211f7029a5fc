// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package espflash

// Field identifies which part of a message an annotation labels
type Field int

const (
	FieldDirection Field = iota
	FieldCommand
	FieldSize
	FieldChecksum // programmer -> module only
	FieldValue    // module -> programmer only
	FieldData
	FieldError
)

// String returns the field tag used in category names
func (f Field) String() string {
	switch f {
	case FieldDirection:
		return "dir"
	case FieldCommand:
		return "cmd"
	case FieldSize:
		return "size"
	case FieldChecksum:
		return "checksum"
	case FieldValue:
		return "value"
	case FieldData:
		return "data"
	case FieldError:
		return "error"
	default:
		return "unknown"
	}
}

// Category is the pair (direction, field) an annotation belongs to,
// e.g. "pm-cmd" or "mp-value".
type Category struct {
	Direction Direction
	Field     Field
}

// String returns the category id
func (c Category) String() string {
	return c.Direction.String() + "-" + c.Field.String()
}

// Description returns the human-readable category name, e.g. "PM Command"
func (c Category) Description() string {
	var field string
	switch c.Field {
	case FieldDirection:
		field = "Direction"
	case FieldCommand:
		field = "Command"
	case FieldSize:
		field = "Size"
	case FieldChecksum:
		field = "Checksum"
	case FieldValue:
		field = "Value"
	case FieldData:
		field = "Data"
	case FieldError:
		field = "Error"
	}
	if c.Direction == DirectionProgrammer {
		return "PM " + field
	}
	return "MP " + field
}

// Categories lists every category a decoder pair can emit, grouped by direction
func Categories() []Category {
	out := make([]Category, 0, 12)
	for _, d := range []Direction{DirectionProgrammer, DirectionModule} {
		out = append(out,
			Category{d, FieldDirection},
			Category{d, FieldCommand},
			Category{d, FieldSize},
			Category{d, checksumField(d)},
			Category{d, FieldData},
			Category{d, FieldError},
		)
	}
	return out
}

func checksumField(d Direction) Field {
	if d == DirectionProgrammer {
		return FieldChecksum
	}
	return FieldValue
}

// Annotation is a labeled offset range produced by the decoders
type Annotation struct {
	Start    uint64
	End      uint64
	Category Category
	Long     string
	Short    string
}

// IsError reports whether the annotation describes a framing or protocol error
func (a Annotation) IsError() bool {
	return a.Category.Field == FieldError
}

// Sink receives annotations as they are produced.
// Put is called synchronously from the decoding goroutine.
type Sink interface {
	Put(a Annotation)
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(a Annotation)

// Put calls f(a)
func (f SinkFunc) Put(a Annotation) {
	f(a)
}

// MultiSink fans an annotation out to several sinks in order
type MultiSink []Sink

// Put forwards a to every sink
func (m MultiSink) Put(a Annotation) {
	for _, s := range m {
		s.Put(a)
	}
}

// Collector stores every annotation it receives
type Collector struct {
	Annotations []Annotation
}

// Put appends a
func (c *Collector) Put(a Annotation) {
	c.Annotations = append(c.Annotations, a)
}

// Reset drops collected annotations
func (c *Collector) Reset() {
	c.Annotations = c.Annotations[:0]
}
