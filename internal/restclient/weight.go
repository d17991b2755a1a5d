package restclient

// DepthWeight scales an order-book depth request's rate-limit cost by the
// requested limit, matching the tiers venues publish for their depth
// endpoint: deeper snapshots cost proportionally more of the request
// budget than shallow ones.
func DepthWeight(limit int) float64 {
	switch {
	case limit <= 100:
		return 5
	case limit <= 500:
		return 25
	case limit <= 1000:
		return 50
	default:
		return 250
	}
}
