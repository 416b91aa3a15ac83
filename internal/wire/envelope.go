package wire

import (
	"encoding/json"

	"github.com/dreamware/distmem/internal/funcs"
)

// Envelope is the single shape every message takes on the wire: a source
// rank, a Tag selecting how Payload should be interpreted, and the raw
// payload bytes. Replies reuse the request's Tag, so a caller that sent a
// TagModify always decodes the response as a ModifyReply.
type Envelope struct {
	Source  int             `json:"source"`
	Tag     Tag             `json:"tag"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode builds an Envelope from a source rank, a tag, and a
// JSON-marshalable payload struct.
func Encode(source int, tag Tag, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Source: source, Tag: tag, Payload: raw}, nil
}

// Decode unmarshals the Envelope's payload into out.
func (e Envelope) Decode(out any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(e.Payload, out)
}

// AllocRequest carries the value to store; size is derived from Value.Len().
type AllocRequest struct {
	Value Value `json:"value"`
}

// AllocReply returns the LocalName assigned to the newly stored value.
type AllocReply struct {
	LocalName string `json:"local_name"`
}

// ReadRequest names the stripe to read.
type ReadRequest struct {
	LocalName string `json:"local_name"`
}

// ReadReply carries the stripe's current value, or Absent=true if the name
// is not present in the Shard's Store (the MissingName case, tightened per
// spec §9 into an explicit sentinel rather than an ambiguous empty payload).
type ReadReply struct {
	Value  Value `json:"value"`
	Absent bool  `json:"absent,omitempty"`
}

// ModifyRequest carries a last-writer-wins update. Index is nil for Int
// variables and non-nil, already translated to a local (stripe-relative)
// index, for List variables. Timestamp is the Director's clock reading at
// send time, compared against the Shard's ModificationHistory.
type ModifyRequest struct {
	LocalName string `json:"local_name"`
	NewValue  int64  `json:"new_value"`
	Index     *int   `json:"index,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// ModifyReply reports whether the write committed.
type ModifyReply struct {
	Ok bool `json:"ok"`
}

// FreeRequest names the stripe to destroy.
type FreeRequest struct {
	LocalName string `json:"local_name"`
}

// FreeReply reports how many elements were freed.
type FreeReply struct {
	Count int `json:"count"`
}

// MapRequest applies Fn pointwise to every element of the named stripe.
// The Shard answers with an empty acknowledgement and no result.
type MapRequest struct {
	LocalName string    `json:"local_name"`
	Fn        funcs.Ref `json:"fn"`
}

// FilterRequest removes elements failing Pred from the named stripe.
type FilterRequest struct {
	LocalName string    `json:"local_name"`
	Pred      funcs.Ref `json:"pred"`
}

// FilterReply reports how many elements were removed, whether the stripe
// still exists on the Shard, and (so the Director can re-derive
// ListStripeIndex ranges without a second round-trip) how many elements
// remain.
type FilterReply struct {
	Removed      int  `json:"removed"`
	StillPresent bool `json:"still_present"`
	RemainingLen int  `json:"remaining_len"`
}

// ReduceRequest carries the remaining stripe names in pipeline order, the
// fold function, and the accumulator so far. A Shard receiving this folds
// its own stripe into Acc, then either forwards a ReduceRequest with
// Names[1:] to the next stripe's owner, or (if Names has length 1) sends
// the final accumulator to the Director as a ReduceReply tagged TagReduce.
type ReduceRequest struct {
	Names []string  `json:"names"`
	Fn    funcs.Ref `json:"fn"`
	Acc   int64     `json:"acc"`
}

// ReduceReply carries the final accumulator, sent by the Shard owning the
// last stripe directly to the Director.
type ReduceReply struct {
	Acc int64 `json:"acc"`
}

// RegisterRequest announces a Shard's rank and externally reachable
// address to the Director.
type RegisterRequest struct {
	Rank int    `json:"rank"`
	Addr string `json:"addr"`
}

// DirectoryRequest pushes the Director's current rank→address book to a
// Shard, so Shards can dial each other directly for REDUCE hops.
type DirectoryRequest struct {
	Addresses map[int]string `json:"addresses"`
}
