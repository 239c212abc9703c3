package simulate

// HTTP status code constants.
const (
	StatusOK       = 200
	StatusCreated  = 201
	StatusAccepted = 202
)

// Traffic configuration constants.
const (
	StatusTooManyRequests = 429
	PercentageMultiplier  = 100
)
