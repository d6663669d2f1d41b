package registry

import (
	"reflect"
	"sync"
	"testing"

	"parley/pkg/chat"
)

type fakeClient struct {
	id   string
	name string
}

func (c *fakeClient) ID() string          { return c.id }
func (c *fakeClient) Username() string    { return c.name }
func (c *fakeClient) Deliver(string) bool { return true }

var _ chat.Client = (*fakeClient)(nil)

func TestTryRegisterClaimsOnce(t *testing.T) {
	online := NewOnline()
	first := &fakeClient{id: "1", name: "alice"}
	second := &fakeClient{id: "2", name: "alice"}

	if !online.TryRegister("alice", first) {
		t.Fatal("first registration should succeed")
	}
	if online.TryRegister("alice", second) {
		t.Error("second registration should fail while first is live")
	}
	if got, _ := online.Lookup("alice"); got != first {
		t.Error("lookup should return the first session")
	}
}

func TestRemoveIsIdentityGuarded(t *testing.T) {
	online := NewOnline()
	stale := &fakeClient{id: "1", name: "alice"}
	fresh := &fakeClient{id: "2", name: "alice"}

	if !online.TryRegister("alice", stale) {
		t.Fatal("registration failed")
	}
	online.Remove("alice", stale)
	if !online.TryRegister("alice", fresh) {
		t.Fatal("re-registration after removal failed")
	}

	// A stale session's late cleanup must not evict the newer login.
	online.Remove("alice", stale)
	if got, exists := online.Lookup("alice"); !exists || got != fresh {
		t.Error("stale removal evicted the fresh session")
	}

	online.Remove("alice", fresh)
	if _, exists := online.Lookup("alice"); exists {
		t.Error("fresh session should be removed by its own cleanup")
	}
}

func TestConcurrentClaimsExactlyOneWinner(t *testing.T) {
	online := NewOnline()

	const contenders = 32
	var wg sync.WaitGroup
	results := make([]bool, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = online.TryRegister("alice", &fakeClient{id: string(rune('a' + i)), name: "alice"})
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, won := range results {
		if won {
			winners++
		}
	}
	if winners != 1 {
		t.Errorf("expected exactly one winner, got %d", winners)
	}
	if online.Count() != 1 {
		t.Errorf("expected one online session, got %d", online.Count())
	}
}

func TestUsernamesSnapshot(t *testing.T) {
	online := NewOnline()
	online.TryRegister("carol", &fakeClient{id: "1", name: "carol"})
	online.TryRegister("alice", &fakeClient{id: "2", name: "alice"})
	online.TryRegister("bob", &fakeClient{id: "3", name: "bob"})

	want := []string{"alice", "bob", "carol"}
	if got := online.Usernames(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}
