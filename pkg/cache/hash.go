package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// hashKey builds "prefix:sha256(parts...)".
func hashKey(prefix string, parts ...any) string {
	data, _ := json.Marshal(parts)
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s:%s", prefix, hex.EncodeToString(hash[:]))
}

// Hash returns the hex SHA-256 of data.
func Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// AssetKey identifies the parse result of one asset file. Any change to the
// file's size or modification time, or to the parser revision, yields a new key.
func AssetKey(parser, path string, size int64, modTime time.Time) string {
	return hashKey("asset", parser, path, size, modTime.UnixNano())
}
