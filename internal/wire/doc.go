// Package wire defines the closed message vocabulary exchanged between the
// Director and its Shards: the tag enumeration, the tagged envelope that
// carries every request and reply, and the Value union that is the only
// payload type a variable can hold.
//
// # Overview
//
// Every Director/Shard interaction is one Envelope: a source rank, a Tag
// from the closed enumeration, and a JSON payload whose shape is determined
// by the tag (see the per-tag request/reply types below). Replies reuse the
// request's tag. This package has no knowledge of HTTP, goroutines, or
// storage — it is pure wire format, analogous to the reference
// implementation's `tags.py` plus the ad hoc tuples it sent over MPI.
//
// # Tag vocabulary
//
//	ALLOC, READ, MODIFY, FREE, MAP, FILTER, REDUCE, QUIT
//
// plus two transport-bootstrap tags that are not Director-API operations:
//
//	REGISTER  — a Shard announcing its rank and address to the Director
//	DIRECTORY — the Director pushing the rank→address book to a Shard
package wire
