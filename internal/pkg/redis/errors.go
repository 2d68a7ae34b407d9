package redis

import (
	"errors"

	"github.com/redis/go-redis/v9"
)

var (
	ErrInvalidConfig = errors.New("redis: invalid configuration")
	ErrClosed        = errors.New("redis: client is closed")
)

// IsNil reports a missing key
func IsNil(err error) bool {
	return errors.Is(err, redis.Nil)
}

// IsClosed reports use of a closed client
func IsClosed(err error) bool {
	return errors.Is(err, redis.ErrClosed) || errors.Is(err, ErrClosed)
}
