package util

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// LogProgressFunc adds to the progress. It can be called concurrently; negative values are ignored.
type LogProgressFunc func(addProgress int)

// LogProgress returns a function which accumulates progress towards total and logs a line each
// time another tenth of the total is reached. The message is used as the log line prefix.
func LogProgress(log zerolog.Logger, message string, total int) LogProgressFunc {
	const ticks = 10

	start := time.Now()
	var current atomic.Uint64
	var mu sync.Mutex

	logAt := func(value uint64) {
		mu.Lock()
		defer mu.Unlock()

		percentage := float64(100)
		if total > 0 {
			percentage = float64(value) / float64(total) * 100
		}
		log.Info().
			Uint64("current", value).
			Int("total", total).
			Str("elapsed", time.Since(start).Round(time.Millisecond).String()).
			Msgf("%s progress %.1f%%", message, percentage)
	}

	logAt(0)

	step := uint64(total) / ticks
	if step == 0 {
		step = 1
	}

	return func(add int) {
		if add <= 0 {
			return
		}
		value := current.Add(uint64(add))
		previous := value - uint64(add)
		if previous/step != value/step || value == uint64(total) {
			logAt(value)
		}
	}
}
