// Package integration exercises the Director and Shard roles wired
// together end to end, the same way the teacher's
// distributed_storage_test.go did against real coordinator/node
// binaries — except here the cluster is brought up in-process via
// httptest servers wrapping internal/director.Server and
// internal/shardsvc.Server, so the suite needs no separately built
// binaries and runs hermetically.
package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/distmem/internal/director"
	"github.com/dreamware/distmem/internal/funcs"
	"github.com/dreamware/distmem/internal/shardsvc"
	"github.com/dreamware/distmem/internal/wire"
)

// cluster bundles an in-process Director plus N Shards, all reachable
// over real HTTP via httptest, wired up exactly as cmd/director and
// cmd/shard would: Shards register with the Director, and the Director
// broadcasts the resulting rank->address directory back out.
type cluster struct {
	t        *testing.T
	Director *director.Director
	dirSrv   *httptest.Server

	shards   []*shardsvc.Dispatcher
	shardSrv []*httptest.Server

	cancel context.CancelFunc
}

func newCluster(t *testing.T, maxPerShard int, numShards int) *cluster {
	d := director.New(director.Config{MaxPerShard: maxPerShard})
	dirServer := director.NewServer(d, nil)
	dirSrv := httptest.NewServer(dirServer.Handler())
	t.Cleanup(dirSrv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	c := &cluster{t: t, Director: d, dirSrv: dirSrv, cancel: cancel}

	addrs := make(map[int]string)
	for rank := 1; rank <= numShards; rank++ {
		disp := shardsvc.New(shardsvc.Config{Rank: rank, DirectorAddr: dirSrv.URL})
		go disp.Run(ctx)

		srv := httptest.NewServer(shardsvc.NewServer(disp).Handler())
		t.Cleanup(srv.Close)

		c.shards = append(c.shards, disp)
		c.shardSrv = append(c.shardSrv, srv)
		addrs[rank] = srv.URL

		d.RegisterShard(rank, srv.URL)
	}

	for _, disp := range c.shards {
		disp.Directory().Replace(addrs)
	}

	return c
}

// loadTable fetches the Director's LoadTable from its /health endpoint,
// keyed by Shard rank as JSON encodes it.
func (c *cluster) loadTable() map[string]int {
	resp, err := http.Get(c.dirSrv.URL + "/health")
	require.NoError(c.t, err)
	defer resp.Body.Close()

	var body struct {
		LoadTable map[string]int `json:"load_table"`
	}
	require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&body))
	return body.LoadTable
}

func TestScenarioS1AddReadIntThenFree(t *testing.T) {
	c := newCluster(t, 10, 2)
	ctx := context.Background()

	h, err := c.Director.Add(ctx, wire.IntValue(42))
	require.NoError(t, err)

	v, err := c.Director.Read(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.Int)

	require.NoError(t, c.Director.Free(ctx, h))
	assert.False(t, h.Live())
}

func TestScenarioS2SmallListFitsOneStripe(t *testing.T) {
	c := newCluster(t, 10, 2)
	ctx := context.Background()

	h, err := c.Director.Add(ctx, wire.ListValue([]int64{1, 2, 3, 4}))
	require.NoError(t, err)
	require.Len(t, h.Stripes, 1)

	v, err := c.Director.Read(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3, 4}, v.List)
}

func TestScenarioS3StripedListAcrossTwoShards(t *testing.T) {
	c := newCluster(t, 10, 2)
	ctx := context.Background()

	list := make([]int64, 15)
	for i := range list {
		list[i] = int64(i)
	}

	h, err := c.Director.Add(ctx, wire.ListValue(list))
	require.NoError(t, err)
	require.Len(t, h.Stripes, 2)
	assert.Equal(t, 9, h.Stripes[0].Len())
	assert.Equal(t, 6, h.Stripes[1].Len())

	v, err := c.Director.Read(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, list, v.List)
}

func TestScenarioS4ModifyAtStripeBoundary(t *testing.T) {
	c := newCluster(t, 10, 2)
	ctx := context.Background()

	list := make([]int64, 15)
	for i := range list {
		list[i] = int64(i)
	}
	h, err := c.Director.Add(ctx, wire.ListValue(list))
	require.NoError(t, err)

	idx := 12
	ok, err := c.Director.Modify(ctx, h, 42, &idx)
	require.NoError(t, err)
	assert.True(t, ok)

	v, err := c.Director.Read(ctx, h)
	require.NoError(t, err)
	want := append([]int64(nil), list...)
	want[12] = 42
	assert.Equal(t, want, v.List)
}

func TestScenarioS5MapFilterReduce(t *testing.T) {
	c := newCluster(t, 10, 2)
	ctx := context.Background()

	list := make([]int64, 10)
	for i := range list {
		list[i] = int64(i)
	}
	h, err := c.Director.Add(ctx, wire.ListValue(list))
	require.NoError(t, err)

	require.NoError(t, c.Director.Map(ctx, h, funcs.Ref{Name: "square"}))
	require.NoError(t, c.Director.Filter(ctx, h, funcs.Ref{Name: "isOdd"}))

	result, err := c.Director.Reduce(ctx, h, funcs.Ref{Name: "product"}, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(893025), result, "1*9*25*49*81 == 893025")
}

func TestScenarioS6FreeThenDoubleFreeFails(t *testing.T) {
	c := newCluster(t, 10, 2)
	ctx := context.Background()

	h, err := c.Director.Add(ctx, wire.IntValue(1))
	require.NoError(t, err)

	require.NoError(t, c.Director.Free(ctx, h))
	err = c.Director.Free(ctx, h)
	assert.Error(t, err)
}

func TestScenarioS7OversubscribeFailsOutOfMemory(t *testing.T) {
	c := newCluster(t, 5, 2)
	ctx := context.Background()

	list := make([]int64, 11)
	_, err := c.Director.Add(ctx, wire.ListValue(list))
	assert.Error(t, err)
}

func TestFilterAlwaysTrueLeavesHandleAndLoadUnchanged(t *testing.T) {
	c := newCluster(t, 10, 2)
	ctx := context.Background()

	h, err := c.Director.Add(ctx, wire.ListValue([]int64{1, 2, 3}))
	require.NoError(t, err)

	before, err := c.Director.Read(ctx, h)
	require.NoError(t, err)
	stripesBefore := append([]director.StripeDescriptor(nil), h.Stripes...)
	loadBefore := c.loadTable()

	require.NoError(t, c.Director.Filter(ctx, h, funcs.Ref{Name: "alwaysTrue"}))

	after, err := c.Director.Read(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, before.List, after.List)
	assert.Equal(t, stripesBefore, h.Stripes)
	assert.Equal(t, loadBefore, c.loadTable())
}

func TestFilterAlwaysFalseEmptiesHandle(t *testing.T) {
	c := newCluster(t, 10, 2)
	ctx := context.Background()

	h, err := c.Director.Add(ctx, wire.ListValue([]int64{1, 2, 3}))
	require.NoError(t, err)

	require.NoError(t, c.Director.Filter(ctx, h, funcs.Ref{Name: "alwaysFalse"}))
	assert.False(t, h.Live())
}

func TestMapIsLinearOverEveryElement(t *testing.T) {
	c := newCluster(t, 10, 2)
	ctx := context.Background()

	list := []int64{1, 2, 3, 4, 5}
	h, err := c.Director.Add(ctx, wire.ListValue(list))
	require.NoError(t, err)

	require.NoError(t, c.Director.Map(ctx, h, funcs.Ref{Name: "increment"}))

	v, err := c.Director.Read(ctx, h)
	require.NoError(t, err)

	want := make([]int64, len(list))
	for i, x := range list {
		want[i] = x + 1
	}
	assert.Equal(t, want, v.List)
}

func TestModifySerialCallsCommitInProgramOrder(t *testing.T) {
	c := newCluster(t, 10, 2)
	ctx := context.Background()

	h, err := c.Director.Add(ctx, wire.IntValue(0))
	require.NoError(t, err)

	for i := int64(1); i <= 5; i++ {
		ok, err := c.Director.Modify(ctx, h, i, nil)
		require.NoError(t, err)
		require.True(t, ok)
	}

	v, err := c.Director.Read(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, int64(5), v.Int)
}

func TestReduceAcrossStripedShardsMatchesSequentialFold(t *testing.T) {
	c := newCluster(t, 10, 2)
	ctx := context.Background()

	list := make([]int64, 15)
	for i := range list {
		list[i] = int64(i + 1)
	}
	h, err := c.Director.Add(ctx, wire.ListValue(list))
	require.NoError(t, err)

	result, err := c.Director.Reduce(ctx, h, funcs.Ref{Name: "sum"}, 0)
	require.NoError(t, err)

	var want int64
	for _, x := range list {
		want += x
	}
	assert.Equal(t, want, result)
}

func TestQuitNotifiesEveryShard(t *testing.T) {
	c := newCluster(t, 10, 2)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, c.Director.Quit(ctx))
}
