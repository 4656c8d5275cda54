package worker

import "time"

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis

	requeueBackoff    = 2 * time.Second
	redisErrorBackoff = 3 * time.Second
	shutdownFlush     = 5 * time.Second
	requeueTimeout    = 3 * time.Second
)
