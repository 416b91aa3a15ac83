package wire

import "fmt"

// Tag identifies the kind of operation carried by an Envelope. The
// enumeration is closed: a Shard that receives a Tag it does not recognize
// must treat it as an UnknownTag fault (see internal/direrr) and terminate —
// there is no graceful degradation path for an unrecognized tag.
type Tag int

const (
	// TagAlloc creates a new variable on the receiving Shard.
	TagAlloc Tag = iota
	// TagRead retrieves the current value of a variable.
	TagRead
	// TagModify performs a last-writer-wins update of a variable.
	TagModify
	// TagFree destroys a variable and returns its element count.
	TagFree
	// TagMap applies a registered function pointwise, in place. Fire-and-forget.
	TagMap
	// TagFilter removes elements that fail a registered predicate.
	TagFilter
	// TagReduce folds a variable's elements into a running accumulator and
	// forwards the accumulator to the next stripe's owner, or to the
	// Director if this is the last stripe in the pipeline.
	TagReduce
	// TagQuit terminates the receiving Shard.
	TagQuit
	// TagRegister announces a Shard's rank and address to the Director.
	// Transport bootstrap only; not part of the Director API.
	TagRegister
	// TagDirectory pushes the current rank→address book to a Shard.
	// Transport bootstrap only; not part of the Director API.
	TagDirectory
)

// String renders the tag the way a log line or an UnknownTag diagnostic
// should: a short, stable, human-readable name.
func (t Tag) String() string {
	switch t {
	case TagAlloc:
		return "ALLOC"
	case TagRead:
		return "READ"
	case TagModify:
		return "MODIFY"
	case TagFree:
		return "FREE"
	case TagMap:
		return "MAP"
	case TagFilter:
		return "FILTER"
	case TagReduce:
		return "REDUCE"
	case TagQuit:
		return "QUIT"
	case TagRegister:
		return "REGISTER"
	case TagDirectory:
		return "DIRECTORY"
	default:
		return fmt.Sprintf("TAG(%d)", int(t))
	}
}
