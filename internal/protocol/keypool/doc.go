// Package keypool implements one-time symmetric key pools.
//
// A pool is generated and published by its owner, who encrypts with it;
// peers download a copy to decrypt. Each key is selected at most once per
// process, uniformly at random among the unconsumed keys so consumption
// order is not predictable from traffic. Key IDs travel in clear on the
// wire, so randomisation gives no protection against ID replay.
//
// Consumption is tracked only by the owning sender. The directory and the
// receivers never learn which keys were used.
package keypool
