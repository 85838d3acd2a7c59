package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func stubBuildInfo(t *testing.T, mainVersion string, ok bool) {
	t.Helper()
	orig := readBuildInfo
	readBuildInfo = func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{Main: debug.Module{Version: mainVersion}}, ok
	}
	t.Cleanup(func() { readBuildInfo = orig })
}

func setVersion(t *testing.T, v string) {
	t.Helper()
	orig := Version
	Version = v
	t.Cleanup(func() { Version = orig })
}

func TestResolved_PrefersLdflags(t *testing.T) {
	setVersion(t, "v1.2.3")
	stubBuildInfo(t, "v0.0.1", true)
	assert.Equal(t, "v1.2.3", Resolved())
}

func TestResolved_FallsBackToModuleVersion(t *testing.T) {
	setVersion(t, "unknown")
	stubBuildInfo(t, "v0.4.0", true)
	assert.Equal(t, "v0.4.0", Resolved())
}

func TestResolved_DevelBuild(t *testing.T) {
	setVersion(t, "unknown")
	stubBuildInfo(t, "(devel)", true)
	assert.Equal(t, "unknown", Resolved())

	stubBuildInfo(t, "", false)
	assert.Equal(t, "unknown", Resolved())
}

func TestString(t *testing.T) {
	setVersion(t, "v1.0.0")
	assert.Equal(t, "docvars v1.0.0 (commit unknown, built unknown)", String())
}
