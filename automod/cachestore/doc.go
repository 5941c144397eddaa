// Component for caching small string values (identifiers, JSON blobs, scores) under a namespace name and key, with purging.
//
// Includes an interface and implementations using redis, in-process memory, and a JSON file on local disk.
//
// The post fetcher uses this as a read-through cache of handle→DID and AT-URI→CID mappings, and the score client caches external service results keyed by a hash of the post text. Nothing in the cache is authoritative: entries can be dropped at any time, and are rebuilt on the next miss.
package cachestore
