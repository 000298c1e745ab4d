package abcache_test

import (
	"context"
	"fmt"

	"github.com/LavishGent/abcache/pkg/abcache"
)

func ExampleScore() {
	fmt.Printf("%.2f\n", abcache.Score("alice", "7"))
	fmt.Printf("%.2f\n", abcache.Score("alice", "grp-shop"))
	// Output:
	// 20.55
	// 93.99
}

func ExampleService_VariantForUser() {
	gw := abcache.NewMemoryGateway()
	gw.PutTenant("shop", shopData())

	svc, err := abcache.NewFromConfig(abcache.TestConfig(), abcache.WithGateway(gw))
	if err != nil {
		fmt.Println(err)
		return
	}
	defer svc.Close()

	variant, ok, err := svc.VariantForUser(context.Background(), "shop", "alice", 7)
	if err != nil || !ok {
		fmt.Println("no variant", err)
		return
	}
	fmt.Println(variant.Key, variant.Payload)
	// Output: control {"price":100}
}
