package sample

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/go-logfmt/logfmt"
)

const (
	productKey = "product"
	stationKey = "station"
)

// Name identifies the characteristic a sample measures.  By convention the name is the measured
// quantity (e.g. cpk, bore_diameter) and the product and station are carried as metadata.  Names
// marshal to a modified logfmt, e.g. bore_diameter[product=P-100 station="line 2"].
type Name struct {
	name string
	md   map[string]string
}

// NewName returns a name with the associated metadata.  The metadata map is copied.
func NewName(name string, md map[string]string) Name {
	copied := make(map[string]string, len(md))
	for k, v := range md {
		copied[k] = v
	}
	return Name{name: name, md: copied}
}

// ForStation is shorthand for a name carrying product and station metadata.  Empty values are
// omitted.
func ForStation(name string, product string, station string) Name {
	md := make(map[string]string)
	if product != "" {
		md[productKey] = product
	}
	if station != "" {
		md[stationKey] = station
	}
	return Name{name: name, md: md}
}

// Base returns the name without metadata
func (n Name) Base() string {
	return n.name
}

// Product returns the product code, if any
func (n Name) Product() string {
	return n.md[productKey]
}

// Station returns the station name, if any
func (n Name) Station() string {
	return n.md[stationKey]
}

// With returns a copy of the name with additional metadata upserted
func (n Name) With(md map[string]string) Name {
	out := NewName(n.name, n.md)
	for k, v := range md {
		out.md[k] = v
	}
	return out
}

// String marshals the name, such as cpk[product=P-100 station=S1]
func (n Name) String() string {
	md, err := MarshalText(n.md)
	if err != nil {
		md = []byte{}
	}
	return n.name + string(md)
}

// MarshalText encodes metadata as key=value pairs in sorted key order enclosed in brackets.
// Keys with empty values are annotations and are written last as @key.  Empty metadata encodes
// to nothing.  Example: [product=P-100 station=S1 @baseline]
func MarshalText(m map[string]string) ([]byte, error) {
	if len(m) == 0 {
		return []byte{}, nil
	}
	keys := make([]string, 0, len(m))
	ann := make([]string, 0, len(m))
	for k, v := range m {
		switch v {
		case "":
			ann = append(ann, fmt.Sprintf("@%s", k))
		default:
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	sort.Strings(ann)

	var b bytes.Buffer
	b.WriteString("[")
	e := logfmt.NewEncoder(&b)
	for _, k := range keys {
		if err := e.EncodeKeyval(k, m[k]); err != nil {
			return nil, fmt.Errorf("failed to encode %s=%s: %v", k, m[k], err)
		}
	}
	if len(keys) > 0 && len(ann) > 0 {
		b.WriteString(" ")
	}
	b.WriteString(strings.Join(ann, " "))
	b.WriteString("]")
	return b.Bytes(), nil
}
