package jobbuilder

import (
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneScriptWritesCredentials(t *testing.T) {
	assert.True(t, strings.HasPrefix(cloneScript, "set -e\n"+credentialFuncs))
	assert.Contains(t, cloneScript, `write_credentials "`+credentialsFile+`"`)
}

func TestWriteCredentialsRoundTrip(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	git, err := exec.LookPath("git")
	if err != nil {
		t.Skip("git not available")
	}

	tests := []struct {
		name     string
		url      string
		protocol string
		host     string
		username string
		password string
	}{
		{name: "plain", url: "https://example.com/org/repo.git", protocol: "https", host: "example.com", username: "bot", password: "ghp_plainToken123"},
		{name: "reserved chars", url: "https://example.com/org/repo.git", protocol: "https", host: "example.com", username: "me@corp", password: "p@ss/w%41rd"},
		{name: "percent sequence", url: "https://example.com/org/repo.git", protocol: "https", host: "example.com", username: "bot", password: "abc%41def"},
		{name: "http with port", url: "http://git.internal:8080/org/repo.git", protocol: "http", host: "git.internal:8080", username: "bot", password: "s3cret: x"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			file := filepath.Join(t.TempDir(), "git-credentials")

			write := exec.Command(sh, "-c", credentialFuncs+`write_credentials "$1"`, "sh", file)
			write.Env = []string{
				envCloneURL + "=" + tc.url,
				envGitUsername + "=" + tc.username,
				envGitPassword + "=" + tc.password,
				"PATH=" + filepath.Dir(sh) + ":/usr/bin:/bin",
			}
			out, err := write.CombinedOutput()
			require.NoError(t, err, string(out))

			get := exec.Command(git, "credential-store", "--file="+file, "get")
			get.Stdin = strings.NewReader("protocol=" + tc.protocol + "\nhost=" + tc.host + "\n\n")
			out, err = get.Output()
			require.NoError(t, err)
			assert.Contains(t, string(out), "username="+tc.username+"\n")
			assert.Contains(t, string(out), "password="+tc.password+"\n")
		})
	}
}
