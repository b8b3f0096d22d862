package relay

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/tcprelay/internal/protocol/frame"
)

func TestHandleReadRoutesFragmentedFrames(t *testing.T) {
	a, _ := newTestAdapter(4)
	addConn(t, a.table, 4, "127.0.0.1", 9000)
	sender := addConn(t, a.table, 5, "127.0.0.1", 9001)

	// Chunks smaller than the frames force reassembly across reads.
	sender.feed("127.0.", "0.1:90", "00:hel", "lo\n127.0.0.1:9000:world\r", "\n")
	a.handleRead(context.Background(), 5)

	assert.Equal(t, "helloworld", outbound(a.table, 4))
	assert.Equal(t, 2, a.table.Len(), "sender stays connected")
	assert.Equal(t, uint64(2), a.framesDelivered.Load())
	assert.False(t, sender.isClosed())
}

func TestHandleReadFragmentationInvariant(t *testing.T) {
	stream := "127.0.0.1:9000:a\nbad\n127.0.0.1:9000:b:c\r\n\n127.0.0.1:1:d\n127.0.0.1:9000:e\n"

	run := func(chunks []string, chunkSize int) (string, string) {
		a, _ := newTestAdapter(chunkSize)
		addConn(t, a.table, 4, "127.0.0.1", 9000)
		sender := addConn(t, a.table, 5, "127.0.0.1", 9001)
		sender.feed(chunks...)
		a.handleRead(context.Background(), 5)
		return outbound(a.table, 4), outbound(a.table, 5)
	}

	wantDst, wantSrc := run([]string{stream}, 1024)
	assert.Equal(t, "ab:ce", wantDst)
	assert.Equal(t, frame.MalformedDiagnostic+frame.NotFoundDiagnostic, wantSrc)

	for split := 1; split < len(stream); split++ {
		dst, src := run([]string{stream[:split], stream[split:]}, 1024)
		require.Equal(t, wantDst, dst, "split at %d", split)
		require.Equal(t, wantSrc, src, "split at %d", split)
	}

	var bytewise []string
	for i := range stream {
		bytewise = append(bytewise, stream[i:i+1])
	}
	dst, src := run(bytewise, 3)
	assert.Equal(t, wantDst, dst)
	assert.Equal(t, wantSrc, src)
}

func TestHandleReadEOFProcessesFramesThenDisconnects(t *testing.T) {
	a, reg := newTestAdapter(1024)
	addConn(t, a.table, 4, "127.0.0.1", 9000)
	sender := addConn(t, a.table, 5, "127.0.0.1", 9001)

	sender.feed("127.0.0.1:9000:last words\n")
	sender.eof = true
	a.handleRead(context.Background(), 5)

	assert.Equal(t, "last words", outbound(a.table, 4))
	assert.True(t, sender.isClosed())
	assert.Contains(t, reg.removed, 5)
	_, _, ok := a.table.Peer(5)
	assert.False(t, ok)
}

func TestHandleReadErrorDisconnects(t *testing.T) {
	a, _ := newTestAdapter(1024)
	h := addConn(t, a.table, 5, "127.0.0.1", 9001)
	h.readErr = errors.New("connection reset by peer")

	a.handleRead(context.Background(), 5)

	assert.True(t, h.isClosed())
	assert.Zero(t, a.table.Len())
}

func TestHandleReadUnknownConnection(t *testing.T) {
	a, _ := newTestAdapter(1024)
	assert.NotPanics(t, func() { a.handleRead(context.Background(), 42) })
}

func TestHandleReadDeferredNotificationDrainsAgain(t *testing.T) {
	a, _ := newTestAdapter(1024)
	addConn(t, a.table, 4, "127.0.0.1", 9000)
	sender := addConn(t, a.table, 5, "127.0.0.1", 9001)

	// Another task holds the read claim and a second notification arrives.
	c := a.table.BeginRead(5)
	require.NotNil(t, c)
	a.handleRead(context.Background(), 5)
	sender.feed("127.0.0.1:9000:x\n")

	// The owner finishes, sees the deferred notification and drains again.
	require.True(t, a.table.FinishRead(c))
	reason, gone := a.drain(context.Background(), c, make([]byte, 64))
	assert.Empty(t, reason)
	assert.False(t, gone)
	assert.False(t, a.table.FinishRead(c))

	assert.Equal(t, "x", outbound(a.table, 4))
}

func TestHandleReadStaleTaskLeavesReusedDescriptorAlone(t *testing.T) {
	a, reg := newTestAdapter(1024)
	gated := newGatedHandle()
	old := &Connection{ID: 5, SessionID: "old", IP: "127.0.0.1", Port: 1111}
	require.NoError(t, a.table.Insert(old, gated))

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.handleRead(context.Background(), 5)
	}()
	<-gated.entered

	// The old connection is torn down while its read is parked and the
	// kernel hands descriptor 5 to a new client, whose read is in flight.
	require.True(t, a.table.Remove(old))
	fresh := addConn(t, a.table, 5, "127.0.0.1", 2222)
	claim := a.table.BeginRead(5)
	require.NotNil(t, claim)

	// The parked read fails the way a closed descriptor does.
	gated.release <- errors.New("bad file descriptor")
	<-done

	assert.True(t, gated.isClosed())
	assert.False(t, fresh.isClosed())
	assert.Equal(t, 1, a.table.Len())
	_, addr, ok := a.table.Peer(5)
	require.True(t, ok)
	assert.Equal(t, "127.0.0.1:2222", addr)
	assert.Equal(t, []int{5}, reg.removed, "only the old entry was deregistered")
	assert.Zero(t, a.ConnCount.Load(), "no disconnect was recorded")

	assert.Nil(t, a.table.BeginRead(5), "the new read claim is intact")
	assert.True(t, a.table.FinishRead(claim))
	assert.False(t, a.table.FinishRead(claim))
}

func TestHandleWriteStaleTaskLeavesReusedDescriptorAlone(t *testing.T) {
	a, reg := newTestAdapter(1024)
	gated := newGatedHandle()
	old := &Connection{ID: 5, SessionID: "old", IP: "127.0.0.1", Port: 1111}
	require.NoError(t, a.table.Insert(old, gated))
	a.table.Do(func(v *View) { v.QueueOutbound(old, []byte("stale")) })

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.handleWrite(context.Background(), 5)
	}()
	<-gated.entered

	require.True(t, a.table.Remove(old))
	fresh := addConn(t, a.table, 5, "127.0.0.1", 2222)
	claim := a.table.BeginWrite(5)
	require.NotNil(t, claim)
	a.table.Do(func(v *View) { v.QueueOutbound(claim, []byte("fresh")) })

	gated.release <- errors.New("bad file descriptor")
	<-done

	assert.False(t, fresh.isClosed())
	assert.Equal(t, 1, a.table.Len())
	assert.Equal(t, []int{5}, reg.removed)
	assert.Zero(t, a.ConnCount.Load())
	assert.Equal(t, "fresh", outbound(a.table, 5), "the new outbound buffer is untouched")
	interest, ok := reg.get(5)
	require.True(t, ok)
	assert.Equal(t, InterestReadWrite, interest)

	assert.Nil(t, a.table.BeginWrite(5), "the new write claim is intact")
	assert.True(t, a.table.FinishWrite(claim))
}

func TestHandleWriteFlushesAndDemotes(t *testing.T) {
	a, reg := newTestAdapter(1024)
	h := addConn(t, a.table, 4, "127.0.0.1", 9000)
	a.table.Do(func(v *View) { v.QueueOutbound(v.Get(4), []byte("hello")) })

	a.handleWrite(context.Background(), 4)

	assert.Equal(t, "hello", h.written())
	assert.Empty(t, outbound(a.table, 4))
	interest, _ := reg.get(4)
	assert.Equal(t, InterestRead, interest)
}

func TestHandleWritePartialKeepsRemainder(t *testing.T) {
	a, reg := newTestAdapter(1024)
	h := addConn(t, a.table, 4, "127.0.0.1", 9000)
	h.setWriteBudget(3)
	a.table.Do(func(v *View) { v.QueueOutbound(v.Get(4), []byte("hello world")) })

	a.handleWrite(context.Background(), 4)

	assert.Equal(t, "hel", h.written())
	assert.Equal(t, "lo world", outbound(a.table, 4))
	interest, _ := reg.get(4)
	assert.Equal(t, InterestReadWrite, interest, "still armed for the next writable edge")

	// Socket drains; the next notification sends the rest.
	h.setWriteBudget(-1)
	a.handleWrite(context.Background(), 4)
	assert.Equal(t, "hello world", h.written())
	interest, _ = reg.get(4)
	assert.Equal(t, InterestRead, interest)
}

func TestHandleWriteEmptyIsNoop(t *testing.T) {
	a, reg := newTestAdapter(1024)
	h := addConn(t, a.table, 4, "127.0.0.1", 9000)

	a.handleWrite(context.Background(), 4)

	assert.Empty(t, h.written())
	assert.Zero(t, reg.modifyCount())
}

func TestHandleWriteErrorDisconnects(t *testing.T) {
	a, _ := newTestAdapter(1024)
	h := addConn(t, a.table, 4, "127.0.0.1", 9000)
	h.writeErr = errors.New("broken pipe")
	a.table.Do(func(v *View) { v.QueueOutbound(v.Get(4), []byte("hello")) })

	a.handleWrite(context.Background(), 4)

	assert.True(t, h.isClosed())
	assert.Zero(t, a.table.Len())
}

func TestHandleWriteSendsLargeBacklog(t *testing.T) {
	a, _ := newTestAdapter(1024)
	h := addConn(t, a.table, 4, "127.0.0.1", 9000)

	big := strings.Repeat("0123456789", 10_000)
	a.table.Do(func(v *View) { v.QueueOutbound(v.Get(4), []byte(big)) })

	a.handleWrite(context.Background(), 4)
	assert.Equal(t, big, h.written())
}

func TestWriteFull(t *testing.T) {
	h := newFakeHandle()
	h.setWriteBudget(4)

	n, err := writeFull(h, []byte("abcdef"))
	assert.Equal(t, 4, n)
	assert.ErrorIs(t, err, ErrWouldBlock)

	h.setWriteBudget(-1)
	n, err = writeFull(h, []byte("gh"))
	assert.Equal(t, 2, n)
	assert.NoError(t, err)
	assert.Equal(t, "abcdgh", h.written())
}
