// Package topic provides hierarchical topic types and pattern matching for the event bus.
//
// # Topic Format
//
// Topics use colon-notation to create hierarchical namespaces:
//
//	canvas-events-definitions:node-moved
//	canvas-events-definitions:zoom-to-bbox:before
//	workspace:active-view-changed
//
// # Wildcards
//
// Two wildcard patterns are supported:
//
//   - "*" matches exactly one segment
//   - "**" matches zero or more segments
//
// Examples:
//
//	canvas-events-definitions:*           matches ...:node-moved, not ...:zoom-to-bbox:before
//	canvas-events-definitions:**          matches every canvas event
//	*:*:before                            matches every Before phase
//	**                                    matches everything
//
// # Usage
//
//	m := topic.NewMatcher()
//	m.Add(topic.Topic("canvas-events-definitions:**"))
//	m.Add(topic.Topic("canvas-events-definitions:node-moved"))
//
//	matches := m.Match(topic.Topic("canvas-events-definitions:node-moved"))
//	// matches contains both patterns
package topic
