package rbac

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// chainStore builds a linear hierarchy of depth profiles, each with one grant.
func chainStore(depth int) (*fakeStore, Profile) {
	store := newFakeStore()
	var prev Profile
	for i := 0; i < depth; i++ {
		p := store.profile(fmt.Sprintf("level-%d", i), true)
		store.grant(p, Actions()[i%len(Actions())], Resources()[i%len(Resources())], true)
		if i > 0 {
			store.inherit(p, prev)
		}
		prev = p
	}
	return store, prev
}

func BenchmarkResolveEffectivePermissions(b *testing.B) {
	for _, depth := range []int{4, 32} {
		store, leaf := chainStore(depth)
		svc := NewService(store)
		b.Run(fmt.Sprintf("depth=%d", depth), func(b *testing.B) {
			ctx := context.Background()
			for i := 0; i < b.N; i++ {
				if _, err := svc.ResolveEffectivePermissions(ctx, leaf.Name); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkAuthorizeCached(b *testing.B) {
	store, leaf := chainStore(16)
	svc := NewService(store, WithCache(NewMemoryCache(time.Minute)))
	id := Identity{UserID: 1, Email: "bench@dim.gov", Profile: leaf.Name}
	req := Requirement{Action: ActionExibir, Resource: ResourceProcesso}
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := svc.Authorize(ctx, id, req); err != nil {
			b.Fatal(err)
		}
	}
}
