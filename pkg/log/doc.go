/*
Package log provides structured logging for the memory engine using zerolog.

All components obtain a child logger via WithComponent(name) so that log
lines carry a "component" field identifying their source (synchronizer,
extractor, retriever, cache, graph, queue, circuitbreaker). The global
logger is configured once via Init and is safe for concurrent use.
*/
package log
