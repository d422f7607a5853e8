// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Face matching constants
const (
	// DefaultDistanceThreshold is the cosine distance below which two faces match.
	// Lower values = stricter matching
	DefaultDistanceThreshold = 0.40

	// DefaultCropSize is the side of the square face crop passed to the embedding model
	DefaultCropSize = 160
)

// Image constants
const (
	// MaxImageBytes caps a single downloaded or uploaded image
	MaxImageBytes = 20 << 20

	// MaxImagePixels caps width*height of an image before it is decoded
	MaxImagePixels = 6000 * 6000

	// NormalizedContentType is the MIME type of every stored post image
	NormalizedContentType = "image/jpeg"
)

// Processing constants
const (
	// WorkerPoolSize is the default number of parallel candidate fetches during a scan
	WorkerPoolSize = 8
)
