package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// saveDisplayScript bumps the version, stores the payload and notifies
// subscribers in one round trip so readers never see a state without its version.
// Only the payload expires; the version counter outlives it so pollers never see it go backwards.
var saveDisplayScript = redis.NewScript(`
local version = redis.call("INCR", KEYS[1])
redis.call("SET", KEYS[2], ARGV[1])
local ttl = tonumber(ARGV[2])
if ttl > 0 then
  redis.call("PEXPIRE", KEYS[2], ttl)
end
redis.call("PUBLISH", KEYS[3], version)
return version
`)

// SaveDisplayState overwrites the display payload for a station and returns the new version.
func (c *Client) SaveDisplayState(ctx context.Context, stationKey, payload string, ttl time.Duration) (int64, error) {
	if c.store == nil {
		return 0, errors.New("redis client not initialized")
	}
	versionKey := c.DisplayVersionKey(stationKey)
	stateKey := c.DisplayStateKey(stationKey)
	channel := c.DisplayChannel(stationKey)

	if c.raw != nil {
		return saveDisplayScript.Run(ctx, c.raw, []string{versionKey, stateKey, channel}, payload, ttl.Milliseconds()).Int64()
	}

	version, err := c.Incr(ctx, versionKey)
	if err != nil {
		return 0, err
	}
	if err := c.Set(ctx, stateKey, payload, ttl); err != nil {
		return 0, err
	}
	if err := c.Publish(ctx, channel, version); err != nil {
		return 0, err
	}
	return version, nil
}

// LoadDisplayState returns the stored payload and version. found is false when
// the payload was never written or has expired; version is still the last one issued.
func (c *Client) LoadDisplayState(ctx context.Context, stationKey string) (string, int64, bool, error) {
	found := true
	payload, err := c.Get(ctx, c.DisplayStateKey(stationKey))
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			return "", 0, false, err
		}
		found = false
	}
	raw, err := c.Get(ctx, c.DisplayVersionKey(stationKey))
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", 0, false, err
	}
	var version int64
	if raw != "" {
		version, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return "", 0, false, err
		}
	}
	return payload, version, found, nil
}
