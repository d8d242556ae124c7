package diagnostics

import (
	"os"

	"github.com/bradleyjkemp/memviz"
)

// DumpStructure writes a Graphviz DOT rendering of v to path, the same
// bradleyjkemp/memviz.Map call the teacher's command-line parser tests
// use to visualize a parsed command tree. Intended for a malformed trial
// that the interpreter aborted on: passing the *trial.Trial lets a
// developer see exactly which segment and field went wrong without
// stepping through a debugger.
func DumpStructure(path string, v interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	memviz.Map(f, v)
	return nil
}
