// ============================================================================
// OFF-HEAP SPSC RING CONCURRENCY SUITE
// ============================================================================
//
// Producer and consumer on separate goroutines (and, with GOMAXPROCS >= 2,
// separate OS threads). Every test checks strict FIFO delivery with no loss
// and no duplication.

package offheap

import (
	"fmt"
	"runtime"
	"sync"
	"testing"
	"time"

	"spscring/constants"
)

// produceSeq pushes 1..n as little-endian words, yielding on NotReady.
func produceSeq(r *Ring, n uint64) {
	for v := uint64(1); v <= n; v++ {
		off := r.WriteAcquire()
		for off == NotReady {
			runtime.Gosched()
			off = r.WriteAcquire()
		}
		r.PutUint64(off, 0, v)
		r.WriteRelease(off)
	}
}

// consumeSeq pops n words and reports the first ordering violation.
func consumeSeq(r *Ring, n uint64, deadline time.Duration) error {
	timeout := time.After(deadline)
	for want := uint64(1); want <= n; want++ {
		off := r.ReadAcquire()
		for off == NotReady {
			select {
			case <-timeout:
				return fmt.Errorf("timed out waiting for record %d", want)
			default:
			}
			runtime.Gosched()
			off = r.ReadAcquire()
		}
		if got := r.Uint64(off, 0); got != want {
			return fmt.Errorf("record %d: got %d", want, got)
		}
		r.ReadRelease(off)
	}
	return nil
}

// capacity=8, messageSize=4, records 1..10 written one at a time while the
// consumer drains one at a time.
func TestConcurrentRoundTripSmall(t *testing.T) {
	r := New(8, 4)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for v := byte(1); v <= 10; v++ {
			for !r.Offer([]byte{v, 0, 0, 0}) {
				runtime.Gosched()
			}
		}
	}()

	got := make([]byte, 0, 10)
	buf := make([]byte, 4)
	deadline := time.Now().Add(5 * time.Second)
	for len(got) < 10 && time.Now().Before(deadline) {
		if r.Poll(buf) {
			got = append(got, buf[0])
			continue
		}
		runtime.Gosched()
	}
	wg.Wait()

	if len(got) != 10 {
		t.Fatalf("received %d records, want 10", len(got))
	}
	for i, v := range got {
		if v != byte(i+1) {
			t.Fatalf("order broken: got %v", got)
		}
	}
	if !r.IsEmpty() {
		t.Fatal("ring not empty after balanced traffic")
	}
}

func TestConcurrentFIFO(t *testing.T) {
	const n = 200_000
	cases := []struct {
		capacity int
		opts     []Option
	}{
		{2, nil},
		{8, nil},
		{64, nil},
		{1024, nil},
		{64, []Option{WithLookAheadStep(0)}},
		{64, []Option{WithLookAheadStep(1)}},
	}
	for _, c := range cases {
		t.Run(fmt.Sprintf("cap_%d", c.capacity), func(t *testing.T) {
			r := New(c.capacity, 8, c.opts...)
			done := make(chan struct{})
			go func() {
				defer close(done)
				produceSeq(r, n)
			}()
			if err := consumeSeq(r, n, 20*time.Second); err != nil {
				t.Fatal(err)
			}
			<-done
			if !r.IsEmpty() {
				t.Fatalf("Size = %d after drain", r.Size())
			}
		})
	}
}

// Two views over one region, as two processes would hold them.
func TestConcurrentSharedViews(t *testing.T) {
	const n = 100_000
	region := make([]byte, RequiredSize(128, 16)+constants.CacheLineSize)

	producer, err := Attach(region, 128, 16, Producer|Init)
	if err != nil {
		t.Fatal(err)
	}
	consumer, err := Attach(region, 128, 16, Consumer|Init)
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		produceSeq(producer, n)
	}()
	if err := consumeSeq(consumer, n, 20*time.Second); err != nil {
		t.Fatal(err)
	}
	<-done
	if !producer.IsEmpty() || !consumer.IsEmpty() {
		t.Fatal("views disagree on emptiness after drain")
	}
}

func TestSizeBoundedUnderTraffic(t *testing.T) {
	const n = 100_000
	r := New(16, 8)
	stop := make(chan struct{})
	bad := make(chan int, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			if sz := r.Size(); sz < 0 || sz > r.Capacity() {
				select {
				case bad <- sz:
				default:
				}
			}
			runtime.Gosched()
		}
	}()

	go produceSeq(r, n)
	err := consumeSeq(r, n, 30*time.Second)
	close(stop)
	wg.Wait()
	if err != nil {
		t.Fatal(err)
	}
	select {
	case sz := <-bad:
		t.Fatalf("Size = %d outside [0, %d]", sz, r.Capacity())
	default:
	}
}
