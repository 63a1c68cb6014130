package varfont

import (
	"fmt"
	"strings"
)

// Strategy selects how Resolve treats the variations of a font.
type Strategy int

// see Strategy
const (
	Preserve Strategy = iota // keep the font variable
	Instance                 // generate a static instance at explicit coordinates
	Named                    // generate a static instance at a named instance
)

func (s Strategy) String() string {
	switch s {
	case Preserve:
		return "preserve"
	case Instance:
		return "instance"
	case Named:
		return "named"
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// ParseStrategy parses preserve, instance or named.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(s) {
	case "preserve":
		return Preserve, nil
	case "instance":
		return Instance, nil
	case "named":
		return Named, nil
	}
	return 0, &ArgumentError{Name: "strategy", Msg: fmt.Sprintf("unknown strategy %q", s)}
}

// ResolveOptions are the options for Resolve.
type ResolveOptions struct {
	Strategy      Strategy
	Coordinates   map[Tag]float64 // user coordinates for Instance, axes default when absent
	InstanceIndex *int            // named instance for Named
	Instance      InstanceOptions
}

// Resolve returns the tables of the font according to the strategy. Preserve returns the tables unchanged, Instance and Named return the tables of a static instance.
func Resolve(sfnt *SFNT, opts ResolveOptions) (map[string][]byte, error) {
	switch opts.Strategy {
	case Preserve:
		tables := make(map[string][]byte, len(sfnt.Tables))
		for tag, b := range sfnt.Tables {
			tables[tag] = b
		}
		return tables, nil
	case Instance:
		return Generate(sfnt, opts.Coordinates, opts.Instance)
	case Named:
		if opts.InstanceIndex == nil {
			return nil, &ArgumentError{Name: "instance index", Msg: "required by the named strategy"}
		} else if sfnt.Fvar == nil {
			return nil, &ArgumentError{Name: "instance index", Msg: "font has no named instances"}
		}
		index := *opts.InstanceIndex
		if index < 0 || len(sfnt.Fvar.Instances) <= index {
			return nil, &ArgumentError{Name: "instance index", Msg: fmt.Sprintf("%d out of range [0,%d)", index, len(sfnt.Fvar.Instances))}
		}
		tracer().Infof("named instance %d: %s", index, NamedInstanceName(sfnt, index))
		return Generate(sfnt, sfnt.Fvar.Coordinates(index), opts.Instance)
	}
	return nil, &ArgumentError{Name: "strategy", Msg: fmt.Sprintf("unknown strategy %v", opts.Strategy)}
}

// NamedInstanceName returns the subfamily name of a named instance, such as Bold. It returns an empty string if it has no name.
func NamedInstanceName(sfnt *SFNT, index int) string {
	if sfnt.Fvar == nil || sfnt.Name == nil || index < 0 || len(sfnt.Fvar.Instances) <= index {
		return ""
	}
	name, _ := sfnt.Name.Find(sfnt.Fvar.Instances[index].SubfamilyNameID)
	return name
}

// FindNamedInstance returns the index of the named instance with the given subfamily or PostScript name, ignoring case.
func FindNamedInstance(sfnt *SFNT, name string) (int, error) {
	if sfnt.Fvar != nil && sfnt.Name != nil {
		for i, instance := range sfnt.Fvar.Instances {
			if subfamily, ok := sfnt.Name.Find(instance.SubfamilyNameID); ok && strings.EqualFold(subfamily, name) {
				return i, nil
			} else if instance.PostScriptNameID != 0xFFFF {
				if postScript, ok := sfnt.Name.Find(instance.PostScriptNameID); ok && strings.EqualFold(postScript, name) {
					return i, nil
				}
			}
		}
	}
	return 0, &ArgumentError{Name: "instance", Msg: fmt.Sprintf("no named instance %q", name)}
}
