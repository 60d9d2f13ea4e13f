package safearchive_test

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/meigma/safearchive"
)

func ExampleArchive_Resolve() {
	dir, err := os.MkdirTemp("", "reports")
	if err != nil {
		fmt.Println(err)
		return
	}
	defer os.RemoveAll(dir)
	_ = os.WriteFile(filepath.Join(dir, "report.html"), []byte("<p>ok</p>"), 0o600)
	_ = os.WriteFile(filepath.Join(dir, "data.bin"), []byte("original"), 0o600)

	a, err := safearchive.New(context.Background(), dir,
		safearchive.WithURLName("reports"),
		safearchive.WithSafeExtensions("html"),
	)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer a.Close()

	for _, p := range []string{"/", "/report.html", "/data.bin", "/../etc/passwd"} {
		res, err := a.Resolve(p)
		if err != nil {
			fmt.Println(err)
			return
		}
		switch res.Outcome {
		case safearchive.OutcomeServe:
			body, _ := io.ReadAll(res.File)
			res.File.Close()
			fmt.Printf("%s: %s %q\n", p, res.Outcome, body)
		case safearchive.OutcomeRedirect:
			fmt.Printf("%s: %s %s\n", p, res.Outcome, res.Location)
		default:
			fmt.Printf("%s: %s\n", p, res.Outcome)
		}
	}

	_ = os.WriteFile(filepath.Join(dir, "data.bin"), []byte("modified"), 0o600)
	res, _ := a.Resolve("/data.bin")
	fmt.Println("/data.bin after edit:", res.Outcome)

	// Output:
	// /: redirect index.html
	// /report.html: serve "<p>ok</p>"
	// /data.bin: serve "original"
	// /../etc/passwd: not_found
	// /data.bin after edit: forbidden
}
