package env

import (
	"os"
	"strconv"
	"strings"
)

const (
	ListenAddr     = "RELAY_LISTEN_ADDR"
	AllowedOrigins = "RELAY_ALLOWED_ORIGINS"
	SendBuffer     = "RELAY_SEND_BUFFER"
	Workers        = "RELAY_WORKERS"
	QueueSize      = "RELAY_QUEUE_SIZE"
	ChatRedisURL   = "CHAT_REDIS_URL"
	ChatRedisPass  = "CHAT_REDIS_PASS"
	Passphrase     = "CHAT_PASSPHRASE"
)

func Get(key string) string {
	return os.Getenv(key)
}

func GetOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// GetInt returns defaultVal when the variable is unset or not a positive
// integer.
func GetInt(key string, defaultVal int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return defaultVal
	}
	return n
}

// GetList splits a comma-separated variable, dropping blanks.
func GetList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
