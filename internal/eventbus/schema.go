package eventbus

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by instance name so that
// several corkboard servers can share one Redis server.
//
// Key pattern: corkboard:{instance_name}:{entity}
// Channel pattern: corkboard:{instance_name}:{event_type}_events

// BoardEventsChannel returns the Pub/Sub channel name for board events.
// Pattern: corkboard:{instance_name}:board_events
func BoardEventsChannel(instanceName string) string {
	return fmt.Sprintf("corkboard:%s:board_events", instanceName)
}

// LastEventKey returns the Redis key holding the most recent event JSON.
// Pattern: corkboard:{instance_name}:last_event
func LastEventKey(instanceName string) string {
	return fmt.Sprintf("corkboard:%s:last_event", instanceName)
}
