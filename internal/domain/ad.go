package domain

// BannerEdge is the screen edge a banner ad is anchored to.
type BannerEdge string

// Banner edges.
const (
	BannerTop    BannerEdge = "top"
	BannerBottom BannerEdge = "bottom"
)

// Valid reports whether e is a known edge.
func (e BannerEdge) Valid() bool {
	return e == BannerTop || e == BannerBottom
}

// AdSource labels ledger credits that come from rewarded ads.
const AdSource = "ad"
