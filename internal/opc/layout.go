// internal/opc/layout.go
package opc

import (
	"fmt"
	"sort"
)

// NumBins is the number of particle-size bins in a histogram.
const NumBins = 16

// Kind is the binary encoding of a frame field.
type Kind uint8

const (
	KindU16 Kind = iota + 1 // little-endian uint16
	KindF32                 // little-endian IEEE-754 float32
)

func (k Kind) width() int {
	switch k {
	case KindU16:
		return 2
	case KindF32:
		return 4
	default:
		return 0
	}
}

func (k Kind) String() string {
	switch k {
	case KindU16:
		return "u16"
	case KindF32:
		return "f32"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Field locates one value inside a raw frame.
type Field struct {
	Offset int
	Width  int
	Kind   Kind
}

func u16At(off int) Field { return Field{Offset: off, Width: 2, Kind: KindU16} }
func f32At(off int) Field { return Field{Offset: off, Width: 4, Kind: KindF32} }

// Layout is the byte-offset table of a histogram frame.
// It is bound to one firmware revision; there is no version negotiation.
type Layout struct {
	Name string
	Size int

	Bins         [NumBins]Field
	FlowRate     Field
	SamplePeriod Field
	PM1          Field
	PM25         Field
	PM10         Field
}

// LayoutR2 is the OPC-R2 histogram frame: 64 bytes, bins at 0-31,
// flow rate at 36, sample period at 44, PM values at 50/54/58.
var LayoutR2 = func() Layout {
	l := Layout{
		Name:         "r2",
		Size:         64,
		FlowRate:     f32At(36),
		SamplePeriod: f32At(44),
		PM1:          f32At(50),
		PM25:         f32At(54),
		PM10:         f32At(58),
	}
	for i := 0; i < NumBins; i++ {
		l.Bins[i] = u16At(2 * i)
	}
	return l
}()

var layouts = map[string]Layout{
	LayoutR2.Name: LayoutR2,
}

// LookupLayout returns a registered layout by name.
func LookupLayout(name string) (Layout, bool) {
	l, ok := layouts[name]
	return l, ok
}

// LayoutNames lists registered layouts, sorted.
func LayoutNames() []string {
	out := make([]string, 0, len(layouts))
	for n := range layouts {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Validate checks that every field fits the frame and matches its kind.
func (l Layout) Validate() error {
	if l.Size <= 0 {
		return fmt.Errorf("opc layout %q: size must be > 0", l.Name)
	}

	check := func(name string, f Field, want Kind) error {
		if f.Kind != want {
			return fmt.Errorf("opc layout %q: field %s kind=%s want=%s", l.Name, name, f.Kind, want)
		}
		if f.Width != f.Kind.width() {
			return fmt.Errorf("opc layout %q: field %s width=%d want=%d", l.Name, name, f.Width, f.Kind.width())
		}
		if f.Offset < 0 || f.Offset+f.Width > l.Size {
			return fmt.Errorf("opc layout %q: field %s range=%d-%d outside frame of %d bytes",
				l.Name, name, f.Offset, f.Offset+f.Width-1, l.Size)
		}
		return nil
	}

	for i, f := range l.Bins {
		if err := check(fmt.Sprintf("bin%d", i), f, KindU16); err != nil {
			return err
		}
	}

	floats := []struct {
		name string
		f    Field
	}{
		{"flow_rate", l.FlowRate},
		{"sample_period", l.SamplePeriod},
		{"pm1", l.PM1},
		{"pm2_5", l.PM25},
		{"pm10", l.PM10},
	}
	for _, x := range floats {
		if err := check(x.name, x.f, KindF32); err != nil {
			return err
		}
	}

	return nil
}
