package engine

import (
	"fmt"
	"math/rand"
	"strconv"
	"sync/atomic"
	"time"
)

var lastIDStamp int64

// nextIDStamp returns a strictly increasing millisecond stamp so that two
// calls within the same process never produce the same value.
func nextIDStamp() int64 {
	for {
		now := time.Now().UnixMilli()
		last := atomic.LoadInt64(&lastIDStamp)
		if now <= last {
			now = last + 1
		}
		if atomic.CompareAndSwapInt64(&lastIDStamp, last, now) {
			return now
		}
	}
}

// NewTaskID generates an opaque unique task identifier: a time-based stamp
// with a random suffix.
func NewTaskID() string {
	return strconv.FormatInt(nextIDStamp(), 10) + fmt.Sprintf("%03d", rand.Intn(1000))
}
