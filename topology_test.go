package grid

import (
	"testing"
)

func TestTopologyVersion(t *testing.T) {
	if !NoTopologyVersion.IsNone() {
		t.Fatalf("NoTopologyVersion must be none")
	}
	if NoTopologyVersion.String() != "none" {
		t.Fatalf("got %q", NoTopologyVersion.String())
	}
	v := TopologyVersion{Major: 3, Minor: 2}
	if n := v.Next(); n != (TopologyVersion{Major: 4}) {
		t.Fatalf("Next: got %v", n)
	}
	if v.String() != "3.2" {
		t.Fatalf("String: got %q", v.String())
	}
	cases := []struct {
		a, b TopologyVersion
		want int
	}{
		{TopologyVersion{Major: 1}, TopologyVersion{Major: 2}, -1},
		{TopologyVersion{Major: 2, Minor: 1}, TopologyVersion{Major: 2}, 1},
		{TopologyVersion{Major: 2, Minor: 1}, TopologyVersion{Major: 2, Minor: 1}, 0},
		{NoTopologyVersion, TopologyVersion{Major: 0}, -1},
	}
	for _, tt := range cases {
		if got := tt.a.Compare(tt.b); got != tt.want {
			t.Fatalf("%v.Compare(%v): got %d want %d", tt.a, tt.b, got, tt.want)
		}
	}
	if !(TopologyVersion{Major: 1}).Before(TopologyVersion{Major: 1, Minor: 1}) {
		t.Fatalf("Before: expected true")
	}
}

func TestCacheVersion_Compare(t *testing.T) {
	a := CacheVersion{TopologyVersion: 1, Order: 5, NodeOrder: 1}
	b := CacheVersion{TopologyVersion: 1, Order: 6, NodeOrder: 0}
	if a.Compare(b) >= 0 || b.Compare(a) <= 0 || a.Compare(a) != 0 {
		t.Fatalf("unexpected ordering")
	}
}

func TestCacheID(t *testing.T) {
	cases := []struct {
		name string
		want int32
	}{
		{"test", 3556498},
		{"a", 97},
		{"", 1},
	}
	for _, tt := range cases {
		if got := CacheID(tt.name); got != tt.want {
			t.Fatalf("CacheID(%q): got %d want %d", tt.name, got, tt.want)
		}
	}
	if CacheID("partitioned") != CacheID("partitioned") {
		t.Fatalf("CacheID is not deterministic")
	}
}
