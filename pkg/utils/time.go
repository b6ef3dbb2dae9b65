package utils

import "time"

// NowRFC3339 stamps API response metadata with the current UTC time
func NowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}
