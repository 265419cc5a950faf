// Package federation coordinates pools of interchangeable backends.
//
// The same machinery serves the compute federation (completion providers)
// and the memory federation (storage providers):
//   - Descriptor: identity, capability tags, priority, health and rolling metrics
//   - Registry: id-keyed set of descriptors paired with their adapters
//   - HealthMonitor: periodic prober that flips health independently of traffic
//   - Select: orders healthy backends for a request type
//   - Invoke: bounded retry with exponential backoff that updates metrics per attempt
//
// Fallback walks and result aggregation live in the facades
// (packages compute and memory) since they differ per domain.
package federation
