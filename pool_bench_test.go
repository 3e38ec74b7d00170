//go:build bench

package scribdlink

import (
	"context"
	"fmt"
	"testing"
)

// BenchmarkResolvePoolSize benchmarks pool size calculation.
func BenchmarkResolvePoolSize(b *testing.B) {
	for _, w := range []int{0, 1, 2, 4, 8} {
		b.Run(workerName(w), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = ResolvePoolSize(w)
			}
		})
	}
}

func workerName(w int) string {
	if w == 0 {
		return "auto"
	}
	return fmt.Sprintf("%d", w)
}

// BenchmarkResolverPoolAcquireRelease benchmarks the acquire/release cycle.
// The function backend opens no connection until a resolution runs.
func BenchmarkResolverPoolAcquireRelease(b *testing.B) {
	ctx := context.Background()
	for _, size := range []int{1, 2, 4, 8} {
		b.Run(fmt.Sprintf("size=%d", size), func(b *testing.B) {
			pool := NewResolverPool(size, WithAPIKey("bench"))
			defer pool.Close()

			// Create every resolver up front
			warm := make([]*Resolver, size)
			for i := range warm {
				r, err := pool.Acquire(ctx)
				if err != nil {
					b.Fatal(err)
				}
				warm[i] = r
			}
			for _, r := range warm {
				pool.Release(r)
			}

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				r, err := pool.Acquire(ctx)
				if err != nil {
					b.Fatal(err)
				}
				pool.Release(r)
			}
		})
	}
}

// BenchmarkExtractIdentity benchmarks both URL patterns.
func BenchmarkExtractIdentity(b *testing.B) {
	urls := map[string]string{
		"primary":  "https://www.scribd.com/document/456/My-Great-Report?utm=x",
		"fallback": "https://www.scribd.com/presentation/789",
	}
	for name, u := range urls {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := ExtractIdentity(u); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkGenerate benchmarks target URL construction.
func BenchmarkGenerate(b *testing.B) {
	id := Identity{DocumentID: "456", TitleSlug: "My-Great-Report-With-A-Longer-Title"}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = Generate(id)
	}
}
