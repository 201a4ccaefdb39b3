// package normalizer converts raw, service-shaped playlist payloads into
// ordered normalized entries. Each service's payload shape is handled by a
// dedicated mapping function; entries without a usable ISRC are dropped.
package normalizer
