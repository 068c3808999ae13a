package grid

import (
	"cmp"
	"fmt"
)

// TopologyVersion identifies a cluster membership and partition assignment
// epoch. Major advances on every membership change, minor on assignment
// changes within the same membership.
type TopologyVersion struct {
	Major int64 `json:"major"`
	Minor int32 `json:"minor"`
}

// NoTopologyVersion is the absent topology version.
var NoTopologyVersion = TopologyVersion{Major: -1}

// IsNone reports whether v is the absent version.
func (v TopologyVersion) IsNone() bool {
	return v == NoTopologyVersion
}

// Next returns the version of the next membership epoch.
func (v TopologyVersion) Next() TopologyVersion {
	return TopologyVersion{Major: v.Major + 1}
}

// Compare returns -1, 0 or 1 ordering v against o by major then minor.
func (v TopologyVersion) Compare(o TopologyVersion) int {
	if c := cmp.Compare(v.Major, o.Major); c != 0 {
		return c
	}
	return cmp.Compare(v.Minor, o.Minor)
}

// Before reports whether v is strictly older than o.
func (v TopologyVersion) Before(o TopologyVersion) bool {
	return v.Compare(o) < 0
}

func (v TopologyVersion) String() string {
	if v.IsNone() {
		return "none"
	}
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// CacheVersion orders updates issued by this node.
type CacheVersion struct {
	TopologyVersion int64 `json:"topology_version"`
	Order           int64 `json:"order"`
	NodeOrder       int32 `json:"node_order"`
}

// Compare orders versions by topology version, then order, then node order.
func (v CacheVersion) Compare(o CacheVersion) int {
	if c := cmp.Compare(v.TopologyVersion, o.TopologyVersion); c != 0 {
		return c
	}
	if c := cmp.Compare(v.Order, o.Order); c != 0 {
		return c
	}
	return cmp.Compare(v.NodeOrder, o.NodeOrder)
}
