// Package core contains the gateway domain entities, state machines and the
// asynchronous processing pipeline contracts. Storage, queue and transport
// adapters depend on this package; core must not depend on any of them.
package core
