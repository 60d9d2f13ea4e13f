package safearchive_test

import (
	"fmt"
	"io"
	"testing"

	"github.com/meigma/safearchive"
	"github.com/meigma/safearchive/internal/testutil"
)

func BenchmarkResolve(b *testing.B) {
	sizes := []int{4 << 10, 256 << 10, 4 << 20}

	for _, size := range sizes {
		dir := b.TempDir()
		testutil.WriteTree(b, dir, testutil.Tree{
			"data.bin":  string(make([]byte, size)),
			"page.html": string(make([]byte, size)),
		})
		a, err := safearchive.New(b.Context(), dir, safearchive.WithSafeExtensions("html"))
		if err != nil {
			b.Fatal(err)
		}

		for _, name := range []string{"data.bin", "page.html"} {
			b.Run(fmt.Sprintf("size=%dk/%s", size>>10, name), func(b *testing.B) {
				b.SetBytes(int64(size))
				b.ReportAllocs()
				for b.Loop() {
					res, err := a.Resolve("/" + name)
					if err != nil {
						b.Fatal(err)
					}
					if res.Outcome != safearchive.OutcomeServe {
						b.Fatalf("outcome = %s", res.Outcome)
					}
					_, _ = io.Copy(io.Discard, res.File)
					res.File.Close()
				}
			})
		}
		a.Close()
	}
}
