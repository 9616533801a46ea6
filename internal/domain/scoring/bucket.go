package scoring

import "fmt"

// Bucket groups runs into distance bands.
type Bucket string

// Distance bands, upper bounds exclusive.
const (
	BucketKM1To3   Bucket = "KM_1_3"
	BucketKM3To8   Bucket = "KM_3_8"
	BucketKM8To15  Bucket = "KM_8_15"
	BucketKM15To25 Bucket = "KM_15_25"
	BucketKM25Plus Bucket = "KM_25P"
)

// BucketFor returns the band of a distance in meters.
func BucketFor(distanceMeters float64) Bucket {
	switch {
	case distanceMeters < 3000:
		return BucketKM1To3
	case distanceMeters < 8000:
		return BucketKM3To8
	case distanceMeters < 15000:
		return BucketKM8To15
	case distanceMeters < 25000:
		return BucketKM15To25
	default:
		return BucketKM25Plus
	}
}

// DistanceLabel formats a distance as kilometers with two decimals, e.g. "5.94 km".
func DistanceLabel(distanceMeters float64) string {
	return fmt.Sprintf("%.2f km", distanceMeters/1000)
}
