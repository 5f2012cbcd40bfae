// Package cache implements a fixed-capacity, in-memory key–payload cache.
//
// Goals for this package:
//   - Keep bookkeeping intrusive: payloads embed Slot, so the cache never
//     allocates a node per entry
//   - Provide O(1) Get/Set/Delete via a map plus a dense, swap-remove pool
//   - Approximate LRU with power-of-two-choices eviction: sample two slots,
//     drop the one with the older tick
//   - Stay allocation-free in steady state when callers reuse payloads
//
// Cache itself is single-owner. Locked adds a mutex for shared use.
package cache
