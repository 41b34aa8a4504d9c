// Package cache implements the process-wide key/value store backing the
// installer's step state. Entries never leave the process and are never
// written to the cluster.
package cache

import "time"

const (
	NoExpiration      time.Duration = -1
	DefaultExpiration time.Duration = 0
)

type item struct {
	Value      interface{}
	Expiration int64
}

func (i item) Expired() bool {
	if i.Expiration == 0 {
		return false
	}
	return time.Now().UnixNano() > i.Expiration
}

type Cache interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{})
	SetWithTTL(key string, value interface{}, ttl time.Duration)
	Delete(key string)
	Has(key string) bool
	Keys() []string
	Count() int
	Flush()
	Range(f func(key string, value interface{}) bool)
}
