// Package integrity holds the cryptographic pieces of vote casting: session
// key derivation, vote signatures, voter receipts and the audit hash chain.
//
// Everything here is a pure function of its inputs. Persistence and time
// lookups belong to the callers, so the same code can re-derive and verify
// stored material later.
//
// Encodings are fixed. Changing any tag or field order invalidates every
// stored signature, receipt and chain hash.
package integrity
