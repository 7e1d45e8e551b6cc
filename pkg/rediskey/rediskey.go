package rediskey

import "fmt"

// Key namespaces shared by every binary that touches redis. Keep them here
// so the API server and the sweeper never drift apart.
const (
	SequencePrefix = "seq"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildSequenceKey returns "seq:{prefix}:{day}", the daily counter behind
// human-facing reference codes.
func BuildSequenceKey(prefix, day string) string {
	return NamespaceKey(SequencePrefix, fmt.Sprintf("%s:%s", prefix, day))
}
