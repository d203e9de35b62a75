package cli

import (
	"fmt"
	"io"
	"os"
)

// writeOutput renders to path, or to stdout when path is empty. Binary
// formats refuse stdout.
func writeOutput(stdout io.Writer, path, format string, render func(io.Writer) error) (err error) {
	if path == "" {
		if format == "xlsx" {
			return fmt.Errorf("--out is required for xlsx output")
		}
		return render(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()
	return render(f)
}

func checkFormat(format string, allowed ...string) error {
	for _, a := range allowed {
		if format == a {
			return nil
		}
	}
	return fmt.Errorf("unsupported format %q", format)
}
