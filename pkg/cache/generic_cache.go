package cache

import (
	"sync"
	"time"
)

type GenericCache struct {
	defaultTTL time.Duration
	store      sync.Map
}

func New(defaultTTL time.Duration) Cache {
	return &GenericCache{defaultTTL: defaultTTL}
}

func (c *GenericCache) Get(key string) (interface{}, bool) {
	val, ok := c.store.Load(key)
	if ok {
		item := val.(item)
		if !item.Expired() {
			return item.Value, true
		}
		c.store.Delete(key)
	}
	return nil, false
}

func (c *GenericCache) Set(key string, value interface{}) {
	c.SetWithTTL(key, value, DefaultExpiration)
}

func (c *GenericCache) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	var expires int64
	if ttl == DefaultExpiration {
		ttl = c.defaultTTL
	}
	if ttl > 0 {
		expires = time.Now().Add(ttl).UnixNano()
	}
	c.store.Store(key, item{
		Value:      value,
		Expiration: expires,
	})
}

func (c *GenericCache) Delete(k string) {
	c.store.Delete(k)
}

func (c *GenericCache) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

func (c *GenericCache) Keys() []string {
	var keys []string
	c.store.Range(func(key, value interface{}) bool {
		item := value.(item)
		if !item.Expired() {
			if kStr, ok := key.(string); ok {
				keys = append(keys, kStr)
			}
		}
		return true
	})
	return keys
}

func (c *GenericCache) Count() int {
	count := 0
	c.store.Range(func(key, value interface{}) bool {
		item := value.(item)
		if !item.Expired() {
			count++
		}
		return true
	})
	return count
}

func (c *GenericCache) Flush() {
	c.store = sync.Map{}
}

func (c *GenericCache) Range(f func(key string, value interface{}) bool) {
	c.store.Range(func(key, value interface{}) bool {
		item := value.(item)
		if item.Expired() {
			return true
		}
		kStr, ok := key.(string)
		if !ok {
			return true
		}
		return f(kStr, item.Value)
	})
}
