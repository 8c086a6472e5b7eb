package model

// LicenseStats reports how many licenses sit in each status. Counts reflect
// stored status: a stale active license past its deadline is counted as
// active until the next validation call flips it.
type LicenseStats struct {
	Unused  int64 `json:"unused"`
	Active  int64 `json:"active"`
	Expired int64 `json:"expired"`
	Revoked int64 `json:"revoked"`
	Total   int64 `json:"total"`
}
