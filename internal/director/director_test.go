package director

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/distmem/internal/funcs"
	"github.com/dreamware/distmem/internal/wire"
)

// newFakeShardWithHandlers stands in for a Shard's /rpc endpoint, driven
// entirely by canned per-tag responses, for exercising the Director's
// side of the protocol in isolation from internal/shardsvc.
func newFakeShardWithHandlers(t *testing.T, handlers map[wire.Tag]func(wire.Envelope) wire.Envelope) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var env wire.Envelope
		require.NoError(t, json.NewDecoder(r.Body).Decode(&env))

		h, ok := handlers[env.Tag]
		if !ok {
			t.Fatalf("fakeShard: no handler registered for tag %s", env.Tag)
		}
		reply := h(env)
		json.NewEncoder(w).Encode(reply)
	}))
}

func TestDirectorAddReadFreeSingleInt(t *testing.T) {
	srv := newFakeShardWithHandlers(t, map[wire.Tag]func(wire.Envelope) wire.Envelope{
		wire.TagAlloc: func(env wire.Envelope) wire.Envelope {
			e, _ := wire.Encode(1, wire.TagAlloc, wire.AllocReply{LocalName: "1-0"})
			return e
		},
		wire.TagRead: func(env wire.Envelope) wire.Envelope {
			e, _ := wire.Encode(1, wire.TagRead, wire.ReadReply{Value: wire.IntValue(42)})
			return e
		},
		wire.TagFree: func(env wire.Envelope) wire.Envelope {
			e, _ := wire.Encode(1, wire.TagFree, wire.FreeReply{Count: 1})
			return e
		},
	})
	defer srv.Close()

	d := New(Config{MaxPerShard: 10})
	d.RegisterShard(1, srv.URL)

	ctx := context.Background()
	h, err := d.Add(ctx, wire.IntValue(42))
	require.NoError(t, err)
	require.Len(t, h.Stripes, 1)

	v, err := d.Read(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.Int)

	require.NoError(t, d.Free(ctx, h))
	assert.False(t, h.Live())

	err = d.Free(ctx, h)
	assert.Error(t, err, "free on an already-empty handle must fail with DoubleFree")
}

func TestDirectorAddInvalidTypeFails(t *testing.T) {
	d := New(Config{MaxPerShard: 10})
	_, err := d.Add(context.Background(), wire.Value{Kind: wire.ValueKind(99)})
	assert.Error(t, err)
}

func TestDirectorAddOversubscribeFailsOutOfMemory(t *testing.T) {
	d := New(Config{MaxPerShard: 5})
	d.RegisterShard(1, "http://unused")
	d.RegisterShard(2, "http://unused")

	list := make([]int64, 11)
	_, err := d.Add(context.Background(), wire.ListValue(list))
	assert.Error(t, err)
}

func TestDirectorModifyIntSendsNilIndex(t *testing.T) {
	var gotIndex *int = &[]int{99}[0] // sentinel to detect "not overwritten"
	srv := newFakeShardWithHandlers(t, map[wire.Tag]func(wire.Envelope) wire.Envelope{
		wire.TagAlloc: func(env wire.Envelope) wire.Envelope {
			e, _ := wire.Encode(1, wire.TagAlloc, wire.AllocReply{LocalName: "1-0"})
			return e
		},
		wire.TagModify: func(env wire.Envelope) wire.Envelope {
			var req wire.ModifyRequest
			_ = env.Decode(&req)
			gotIndex = req.Index
			e, _ := wire.Encode(1, wire.TagModify, wire.ModifyReply{Ok: true})
			return e
		},
	})
	defer srv.Close()

	d := New(Config{MaxPerShard: 10})
	d.RegisterShard(1, srv.URL)

	ctx := context.Background()
	h, err := d.Add(ctx, wire.IntValue(1))
	require.NoError(t, err)

	ok, err := d.Modify(ctx, h, 7, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Nil(t, gotIndex, "Int modify must send a nil index")
}

func TestDirectorModifyListTranslatesIndexAcrossStripes(t *testing.T) {
	var gotLocalName string
	var gotIndex int
	srv := newFakeShardWithHandlers(t, map[wire.Tag]func(wire.Envelope) wire.Envelope{
		wire.TagAlloc: func(env wire.Envelope) wire.Envelope {
			e, _ := wire.Encode(1, wire.TagAlloc, wire.AllocReply{LocalName: "1-0"})
			return e
		},
		wire.TagModify: func(env wire.Envelope) wire.Envelope {
			var req wire.ModifyRequest
			_ = env.Decode(&req)
			gotLocalName = req.LocalName
			require.NotNil(t, req.Index)
			gotIndex = *req.Index
			e, _ := wire.Encode(1, wire.TagModify, wire.ModifyReply{Ok: true})
			return e
		},
	})
	defer srv.Close()

	// Manually build a handle with the two-stripe shape from scenario S3/S4
	// (sizes 9 and 6), both pointing at the same fake shard for simplicity.
	h := &Handle{
		Kind: wire.KindList,
		Stripes: []StripeDescriptor{
			{LocalName: "1-0", Low: 0, High: 8},
			{LocalName: "1-1", Low: 9, High: 14},
		},
	}

	d := New(Config{MaxPerShard: 10})
	d.RegisterShard(1, srv.URL)

	idx := 12
	ok, err := d.Modify(context.Background(), h, 42, &idx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1-1", gotLocalName)
	assert.Equal(t, 3, gotIndex)
}

func TestDirectorModifyOutOfBoundsIndex(t *testing.T) {
	h := &Handle{
		Kind:    wire.KindList,
		Stripes: []StripeDescriptor{{LocalName: "1-0", Low: 0, High: 8}},
	}
	d := New(Config{MaxPerShard: 10})
	d.RegisterShard(1, "http://unused")

	idx := 99
	_, err := d.Modify(context.Background(), h, 1, &idx)
	assert.Error(t, err)
}

func TestDirectorFilterDropsEmptiedStripeAndReindexes(t *testing.T) {
	srv := newFakeShardWithHandlers(t, map[wire.Tag]func(wire.Envelope) wire.Envelope{
		wire.TagFilter: func(env wire.Envelope) wire.Envelope {
			var req wire.FilterRequest
			_ = env.Decode(&req)
			var reply wire.FilterReply
			if req.LocalName == "1-0" {
				reply = wire.FilterReply{Removed: 9, StillPresent: false, RemainingLen: 0}
			} else {
				reply = wire.FilterReply{Removed: 0, StillPresent: true, RemainingLen: 6}
			}
			e, _ := wire.Encode(1, wire.TagFilter, reply)
			return e
		},
	})
	defer srv.Close()

	d := New(Config{MaxPerShard: 10})
	d.RegisterShard(1, srv.URL)

	h := &Handle{
		Kind: wire.KindList,
		Stripes: []StripeDescriptor{
			{LocalName: "1-0", Low: 0, High: 8},
			{LocalName: "1-1", Low: 9, High: 14},
		},
	}

	require.NoError(t, d.Filter(context.Background(), h, funcs.Ref{Name: "isEven"}))
	require.Len(t, h.Stripes, 1)
	assert.Equal(t, "1-1", h.Stripes[0].LocalName)
	assert.Equal(t, 0, h.Stripes[0].Low)
	assert.Equal(t, 5, h.Stripes[0].High)
}

func TestDirectorReduceAwaitsFinalAccumulatorFromLastShard(t *testing.T) {
	d := New(Config{MaxPerShard: 10})
	server := NewServer(d, nil)

	dirSrv := httptest.NewUnstartedServer(server.Handler())
	dirSrv.Start()
	defer dirSrv.Close()

	shardSrv := newFakeShardWithHandlers(t, map[wire.Tag]func(wire.Envelope) wire.Envelope{
		wire.TagReduce: func(env wire.Envelope) wire.Envelope {
			var req wire.ReduceRequest
			_ = env.Decode(&req)

			// Simulate the Shard folding its value then, since this is the
			// last stripe, delivering the final accumulator straight to
			// the Director rather than replying on this connection.
			go func() {
				finalEnv, _ := wire.Encode(1, wire.TagReduce, wire.ReduceReply{Acc: req.Acc + 10})
				body, _ := json.Marshal(finalEnv)
				http.Post(dirSrv.URL+"/rpc", "application/json", bytes.NewReader(body))
			}()

			e, _ := wire.Encode(1, wire.TagReduce, struct{}{})
			return e
		},
	})
	defer shardSrv.Close()

	d.RegisterShard(1, shardSrv.URL)

	h := &Handle{Kind: wire.KindList, Stripes: []StripeDescriptor{{LocalName: "1-0", Low: 0, High: 3}}}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	result, err := d.Reduce(ctx, h, funcs.Ref{Name: "sum"}, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(15), result)
}
