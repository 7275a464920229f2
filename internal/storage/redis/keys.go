package redis

import "fmt"

// Key prefix for all game-related data
const keyPrefix = "wordbomb"

// dictionaryKey returns the Redis key for the dictionary word set
func dictionaryKey() string {
	return fmt.Sprintf("%s:dictionary", keyPrefix)
}

// sequencesKey returns the Redis key for the ordered sequence list
func sequencesKey() string {
	return fmt.Sprintf("%s:sequences", keyPrefix)
}

// matchKey returns the Redis key for a MatchSummary
func matchKey(id string) string {
	return fmt.Sprintf("%s:match:%s", keyPrefix, id)
}

// matchIndexKey returns the Redis key for the LIST of match IDs, newest first
func matchIndexKey() string {
	return fmt.Sprintf("%s:idx:matches", keyPrefix)
}
