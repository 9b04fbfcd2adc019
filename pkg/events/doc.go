/*
Package events provides a lightweight pub/sub broker used to observe memory
engine activity (episode completion, pattern extraction, cache eviction,
circuit breaker transitions) without coupling those components to any
particular consumer. Publish never blocks on a slow subscriber: a full
subscriber buffer simply drops that event for that subscriber.
*/
package events
