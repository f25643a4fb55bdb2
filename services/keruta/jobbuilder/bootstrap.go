package jobbuilder

import (
	"strings"

	corev1 "k8s.io/api/core/v1"
)

const bootstrapArg0 = "keruta-bootstrap"

// bootstrapScript runs every optional setup step and then execs "$@". No step can fail
// the container.
const bootstrapScript = `KERUTA_WORKDIR=__WORKDIR__
KERUTA_DIR="$KERUTA_WORKDIR/.keruta"
log() { echo "[keruta-bootstrap] $*"; }
mkdir -p "$KERUTA_DIR" 2>/dev/null || log "cannot create $KERUTA_DIR"

if ! command -v curl >/dev/null 2>&1; then
  if command -v apk >/dev/null 2>&1; then
    apk add --no-cache curl >/dev/null 2>&1
  elif command -v apt-get >/dev/null 2>&1; then
    (apt-get update && apt-get install -y curl) >/dev/null 2>&1
  elif command -v dnf >/dev/null 2>&1; then
    dnf install -y curl >/dev/null 2>&1
  elif command -v yum >/dev/null 2>&1; then
    yum install -y curl >/dev/null 2>&1
  fi
  command -v curl >/dev/null 2>&1 || log "warning: curl is not available, downloads are skipped"
fi

fetch() {
  command -v curl >/dev/null 2>&1 || return 1
  curl -fsSL "$1" -o "$2.part" && [ -s "$2.part" ] && mv "$2.part" "$2" && return 0
  rm -f "$2.part"
  return 1
}

if [ -n "$KERUTA_API_URL" ] && [ -n "$KERUTA_REPOSITORY_ID" ] && fetch "$KERUTA_API_URL/api/v1/repositories/$KERUTA_REPOSITORY_ID/script" "$KERUTA_DIR/install.sh"; then
  log "running repository install script"
  (cd "$KERUTA_WORKDIR" && sh "$KERUTA_DIR/install.sh") || log "install script exited with $?"
elif [ -f "$KERUTA_DIR/install.sh" ]; then
  log "running local install script"
  (cd "$KERUTA_WORKDIR" && sh "$KERUTA_DIR/install.sh") || log "install script exited with $?"
else
  log "no install script"
fi

if [ -n "$KERUTA_API_URL" ] && [ -n "$KERUTA_DOCUMENT_ID" ]; then
  fetch "$KERUTA_API_URL/api/v1/documents/$KERUTA_DOCUMENT_ID/content" "$KERUTA_DIR/document.md" && log "document saved to $KERUTA_DIR/document.md"
fi

if [ -z "$KERUTA_AGENT_RELEASE_URL" ]; then
  log "KERUTA_AGENT_RELEASE_URL is not set, skipping agent download"
elif fetch "$KERUTA_AGENT_RELEASE_URL" "` + AgentBinaryPath + `" && chmod +x "` + AgentBinaryPath + `"; then
  log "agent installed to ` + AgentBinaryPath + `"
else
  log "warning: agent download failed, continuing without it"
fi

if [ -n "$KERUTA_AGENT_INSTALL_COMMAND" ]; then
  sh -c "$KERUTA_AGENT_INSTALL_COMMAND" || log "agent install command exited with $?"
fi
if [ -n "$KERUTA_AGENT_EXECUTE_COMMAND" ]; then
  sh -c "$KERUTA_AGENT_EXECUTE_COMMAND" || log "agent execute command exited with $?"
fi

cd "$KERUTA_WORKDIR" 2>/dev/null || true
if [ "$#" -gt 0 ]; then
  exec "$@"
fi
log "no command given"
`

// BootstrapScript renders the setup sequence for a checkout mounted at mountPath.
func BootstrapScript(mountPath string) string {
	return strings.Replace(bootstrapScript, "__WORKDIR__", shellQuote(mountPath), 1)
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// originalCommand returns the command the container runs before bootstrapping. A container
// that is already wrapped yields the command it was wrapped around.
func originalCommand(c corev1.Container) []string {
	if len(c.Command) >= 4 && c.Command[0] == "/bin/sh" && c.Command[1] == "-c" && c.Command[3] == bootstrapArg0 {
		return append([]string(nil), c.Command[4:]...)
	}
	return append(append([]string(nil), c.Command...), c.Args...)
}

// WithBootstrap returns a copy of c whose command runs the bootstrap sequence in mountPath
// before handing off to the original command, with volumeName mounted there. Applying it
// again replaces the previous wrapping and keeps a single mount per path.
func WithBootstrap(c corev1.Container, volumeName, mountPath string) corev1.Container {
	out := *c.DeepCopy()
	original := originalCommand(c)

	out.Command = append([]string{"/bin/sh", "-c", BootstrapScript(mountPath), bootstrapArg0}, original...)
	out.Args = nil
	if out.WorkingDir == "" {
		out.WorkingDir = mountPath
	}

	for _, m := range out.VolumeMounts {
		if m.MountPath == mountPath {
			return out
		}
	}
	out.VolumeMounts = append(out.VolumeMounts, Mount(volumeName, mountPath))
	return out
}
