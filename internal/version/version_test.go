package version

import (
	"strings"
	"testing"
)

func TestGetVersionInfo(t *testing.T) {
	orig := GitCommit
	defer func() { GitCommit = orig }()

	GitCommit = "0123456789abcdef"
	got := GetVersionInfo("owondump")
	if !strings.HasPrefix(got, "owondump version "+Version+" (commit 0123456)") {
		t.Fatalf("version line = %q", strings.SplitN(got, "\n", 2)[0])
	}
	if !strings.Contains(got, "\nPlatform: ") {
		t.Fatalf("platform missing: %q", got)
	}

	GitCommit = "unknown"
	if got := GetVersionInfo("owon-reader"); strings.Contains(got, "commit") {
		t.Fatalf("unknown commit printed: %q", got)
	}
}
