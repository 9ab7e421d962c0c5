package redis

import (
	"fmt"
	"strings"
)

const (
	// KeyPrefixSession is the prefix for session keys
	KeyPrefixSession = "marks:session:"
	// KeyPrefixOAuthState is the prefix for pending OAuth state keys
	KeyPrefixOAuthState = "marks:oauth:state:"
	// channelSuffix is appended to a session key to form its event channel
	channelSuffix = ":events"
)

// SessionKey returns the Redis key holding a session's principal
func SessionKey(id string) string {
	return KeyPrefixSession + id
}

// SessionChannel returns the Pub/Sub channel for a session's principal changes
func SessionChannel(id string) string {
	return SessionKey(id) + channelSuffix
}

// SessionChannelPattern matches the event channel of every session
const SessionChannelPattern = KeyPrefixSession + "*" + channelSuffix

// SessionIDFromChannel extracts the session ID from a session event channel
func SessionIDFromChannel(channel string) (string, error) {
	key, ok := strings.CutSuffix(channel, channelSuffix)
	if !ok {
		return "", fmt.Errorf("invalid session channel: %s", channel)
	}
	return ExtractSessionID(key)
}

// OAuthStateKey returns the Redis key for a pending OAuth state
func OAuthStateKey(state string) string {
	return KeyPrefixOAuthState + state
}

// ExtractSessionID extracts the session ID from a session key
func ExtractSessionID(key string) (string, error) {
	if len(key) <= len(KeyPrefixSession) || key[:len(KeyPrefixSession)] != KeyPrefixSession {
		return "", fmt.Errorf("invalid session key: %s", key)
	}
	return key[len(KeyPrefixSession):], nil
}
