// Package redisnotify publishes task failure events to Redis pub/sub.
//
// Each event is a JSON object on a single channel, so any number of
// processes can watch a fleet of task chains:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	chain.AddListener(redisnotify.New(client))
//
// Subscribers decode messages into Event.
package redisnotify
