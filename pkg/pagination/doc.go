// Package pagination applies limit/offset windows to listing results.
//
// Listings from the SRD API are returned in full, so the gateway filters
// and then slices them locally. Callers pass the raw query values; the
// package clamps them into a safe window:
//
//	req := pagination.Request{Limit: 500, Offset: -3}
//	page, limit, offset := pagination.Page(docs, req) // limit=200, offset=0
//
// Rules:
//   - Limit 0 means "not given" and becomes DefaultLimit (50)
//   - Any other limit is clamped to [MinLimit, MaxLimit] (1..200)
//   - Negative offsets become 0
//   - An offset past the end yields an empty page, never nil
package pagination
