package constants

import "time"

// Handler constants
const (
	// MaxUploadSize is the request body limit for multipart image uploads
	MaxUploadSize = 2*MaxImageBytes + 1<<20

	// DefaultSearchLimit is the number of candidates returned in "all" mode when no limit is given
	DefaultSearchLimit = 50

	// MaxSearchLimit caps the limit query parameter
	MaxSearchLimit = 500

	// EventChannelBuffer is the buffer size of each search job event listener
	EventChannelBuffer = 100

	// JobRetention is how long finished search jobs stay queryable
	JobRetention = time.Hour
)

// Search modes
const (
	SearchModeBest = "best"
	SearchModeAll  = "all"
)
