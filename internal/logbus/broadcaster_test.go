package logbus

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternlight/devmux/internal/proc"
)

func testKey() proc.Key {
	return proc.Key{ProjectDir: "/tmp/demo", Name: "web"}
}

func TestPublishPreservesOrder(t *testing.T) {
	b := New(nil)
	ch, cancel := b.Subscribe()
	defer cancel()

	const n = 500
	for i := 0; i < n; i++ {
		b.Publish(Record{Process: "web", Stream: Stdout, Text: fmt.Sprintf("line-%d", i)})
	}
	for i := 0; i < n; i++ {
		select {
		case rec := <-ch:
			require.Equal(t, fmt.Sprintf("line-%d", i), rec.Text)
		case <-time.After(3 * time.Second):
			t.Fatalf("record %d never arrived", i)
		}
	}
}

func TestSlowSubscriberDoesNotBlockPublisher(t *testing.T) {
	b := New(nil)
	ch, cancel := b.Subscribe()
	defer cancel()

	// Publish far more than the delivery channel buffers without reading.
	published := make(chan struct{})
	go func() {
		for i := 0; i < 2000; i++ {
			b.Publish(Record{Text: fmt.Sprintf("line-%d", i)})
		}
		close(published)
	}()
	select {
	case <-published:
	case <-time.After(3 * time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}

	// Everything is still there, in order.
	for i := 0; i < 2000; i++ {
		rec := <-ch
		require.Equal(t, fmt.Sprintf("line-%d", i), rec.Text)
	}
}

func TestCancelClosesChannel(t *testing.T) {
	b := New(nil)
	ch, cancel := b.Subscribe()
	cancel()

	assert.Eventually(t, func() bool {
		_, open := <-ch
		return !open
	}, 2*time.Second, 10*time.Millisecond)

	// Publishing after cancel must not panic or block.
	b.Publish(Record{Text: "after"})
}

func TestMultipleSubscribersEachGetEverything(t *testing.T) {
	b := New(nil)
	ch1, cancel1 := b.Subscribe()
	defer cancel1()
	ch2, cancel2 := b.Subscribe()
	defer cancel2()

	b.Publish(Record{Text: "shared"})

	for _, ch := range []<-chan Record{ch1, ch2} {
		select {
		case rec := <-ch:
			assert.Equal(t, "shared", rec.Text)
		case <-time.After(2 * time.Second):
			t.Fatal("subscriber missed the record")
		}
	}
}

func TestAttachSplitsLinesAndTagsStreams(t *testing.T) {
	b := New(nil)
	ch, cancel := b.Subscribe()
	defer cancel()

	stdout := strings.NewReader("out-1\nout-2\n")
	stderr := strings.NewReader("err-1\n")
	b.Attach(testKey(), stdout, stderr)

	got := map[Stream][]string{}
	for i := 0; i < 3; i++ {
		select {
		case rec := <-ch:
			assert.Equal(t, "/tmp/demo", rec.ProjectDir)
			assert.Equal(t, "web", rec.Process)
			got[rec.Stream] = append(got[rec.Stream], rec.Text)
		case <-time.After(3 * time.Second):
			t.Fatalf("missing records, got %v", got)
		}
	}
	assert.Equal(t, []string{"out-1", "out-2"}, got[Stdout])
	assert.Equal(t, []string{"err-1"}, got[Stderr])
}

func TestOversizedLineStillDrainsStream(t *testing.T) {
	b := New(nil)

	// io.Pipe blocks every write until the reader consumes it, so the reader
	// goroutine must keep consuming past the scan failure or the writes below
	// never complete.
	pr, pw := io.Pipe()
	done := make(chan struct{})
	go func() {
		b.readLines(testKey(), Stdout, pr)
		close(done)
	}()

	big := append(bytes.Repeat([]byte("a"), maxLine+1), '\n')
	_, err := pw.Write(big)
	require.NoError(t, err)
	_, err = pw.Write([]byte("after the failure\n"))
	require.NoError(t, err)
	require.NoError(t, pw.Close())

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("reader stopped consuming after an oversized line")
	}
}
