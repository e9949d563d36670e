package discovery

import (
	"fmt"
	"testing"
	"time"
)

func TestDiscover(t *testing.T) {
	n := 4
	found := make(chan error, n)
	fatal := make(chan error, n)
	stop := make(chan struct{})

	// a node of another room on the same ports must stay invisible
	other, err := NewWithOptions("other-room", WithPortRange(9100, 9110), WithAttempts(1))
	if err != nil {
		t.Fatal(err)
	}
	other.Publish("intruder")
	defer other.Close()

	for i := range n {
		go func() {
			discover, err := NewWithOptions("room-1",
				WithPortRange(9100, 9110),
				WithAttempts(0),
				WithInterval(100*time.Millisecond),
			)
			if err != nil {
				found <- err
				fatal <- nil
				return
			}
			discover.Publish(fmt.Sprintf("blob-%d", i))
			set := make(map[string]struct{})
			for len(set) < n-1 {
				select {
				case entry := <-discover.Entries:
					t.Logf("from node %d: %+v", i, entry)
					if entry.Room != "room-1" {
						found <- fmt.Errorf("node %d got entry of room %s", i, entry.Room)
						fatal <- discover.Close()
						return
					}
					set[entry.Blob] = struct{}{}
				case <-time.After(10 * time.Second):
					found <- fmt.Errorf("node %d found only %d entries", i, len(set))
					fatal <- discover.Close()
					return
				}
			}
			for j := range n {
				if j == i {
					continue
				}
				if _, ok := set[fmt.Sprintf("blob-%d", j)]; !ok {
					found <- fmt.Errorf("node %d did not find entry %d", i, j)
					fatal <- discover.Close()
					return
				}
			}
			found <- nil
			<-stop
			fatal <- discover.Close()
		}()
	}
	// nobody stops serving before every node is done searching
	var firstErr error
	for range n {
		if err := <-found; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	close(stop)
	for range n {
		if err := <-fatal; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		t.Fatal(firstErr)
	}
}

func TestRepublishIsRediscovered(t *testing.T) {
	a, err := NewWithOptions("r", WithPortRange(9200, 9201), WithAttempts(0), WithInterval(50*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	b, err := NewWithOptions("r", WithPortRange(9200, 9201), WithAttempts(0), WithInterval(50*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	b.Publish("offer")
	expect := func(blob string) {
		t.Helper()
		select {
		case e := <-a.Entries:
			if e.Blob != blob || e.Port != b.Port() {
				t.Fatalf("unexpected entry %+v", e)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("blob %q not discovered", blob)
		}
	}
	expect("offer")
	b.Publish("answer")
	expect("answer")
}
