package reader

import (
	"bytes"
	"context"
	"fmt"
	"testing"
)

// BenchmarkChunkReader measures line splitting throughput over a 4 MiB input.
func BenchmarkChunkReader(b *testing.B) {
	var buf bytes.Buffer
	for i := 0; buf.Len() < 4<<20; i++ {
		fmt.Fprintf(&buf, `10.0.0.%d - - [17/Feb/2026:12:00:00 +0000] "GET /page/%d HTTP/1.1" 200 5678 0.042`+"\n", i%255, i)
	}
	input := buf.Bytes()

	b.SetBytes(int64(len(input)))
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		r := New(bytes.NewReader(input), int64(len(input)), WithChunkSize(256<<10))
		_ = r.Each(context.Background(), func(string) {})
	}
}
