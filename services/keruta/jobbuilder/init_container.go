package jobbuilder

import (
	corev1 "k8s.io/api/core/v1"
)

const (
	CloneContainerName = "git-clone"
	DefaultCloneImage  = "alpine/git:latest"

	credentialsFile = CredentialsMountPath + "/git-credentials"

	envCloneURL    = "KERUTA_CLONE_URL"
	envCloneBranch = "KERUTA_CLONE_BRANCH"
	envCloneDir    = "KERUTA_CLONE_DIR"
	envGitUsername = "GIT_USERNAME"
	envGitPassword = "GIT_PASSWORD"
)

// credentialFuncs defines write_credentials, which writes a git-credential-store line for
// KERUTA_CLONE_URL. Credential-store decodes the user and password fields, so every byte
// of both is percent-encoded.
const credentialFuncs = `urlencode() {
  printf '%s' "$1" | od -An -v -tx1 | tr -d ' \n' | sed 's/../%&/g'
}
write_credentials() {
  scheme=${KERUTA_CLONE_URL%%://*}
  host=$(echo "$KERUTA_CLONE_URL" | sed -E 's#^[a-z+]+://([^/@]*@)?([^/]+).*#\2#')
  printf '%s://%s:%s@%s\n' "$scheme" "$(urlencode "$GIT_USERNAME")" "$(urlencode "$GIT_PASSWORD")" "$host" > "$1"
}
`

// cloneScript clones through a temporary directory so a fresh volume that already holds
// entries such as lost+found can still receive the checkout.
const cloneScript = `set -e
` + credentialFuncs + `if [ -d "$KERUTA_CLONE_DIR/.git" ]; then
  echo "reusing existing checkout in $KERUTA_CLONE_DIR"
else
  if [ -n "$GIT_USERNAME" ]; then
    umask 077
    write_credentials "` + credentialsFile + `"
  fi
  tmp=$(mktemp -d)
  if [ -n "$KERUTA_CLONE_BRANCH" ]; then
    git clone --depth 1 --single-branch --branch "$KERUTA_CLONE_BRANCH" "$KERUTA_CLONE_URL" "$tmp/checkout"
  else
    git clone --depth 1 --single-branch "$KERUTA_CLONE_URL" "$tmp/checkout"
  fi
  mkdir -p "$KERUTA_CLONE_DIR"
  cp -a "$tmp/checkout/." "$KERUTA_CLONE_DIR/"
  rm -rf "$tmp"
fi
mkdir -p "$KERUTA_CLONE_DIR/.git/info"
grep -qxF '.keruta/' "$KERUTA_CLONE_DIR/.git/info/exclude" 2>/dev/null || echo '.keruta/' >> "$KERUTA_CLONE_DIR/.git/info/exclude"
`

// GitCredentials names the secret holding username and password keys.
type GitCredentials struct {
	SecretName  string
	UsernameKey string
	PasswordKey string
}

type CloneInput struct {
	Image       string
	URL         string
	Branch      string
	VolumeName  string
	MountPath   string
	Credentials *GitCredentials
}

func secretEnv(name, secret, key string) corev1.EnvVar {
	return corev1.EnvVar{
		Name: name,
		ValueFrom: &corev1.EnvVarSource{
			SecretKeyRef: &corev1.SecretKeySelector{
				LocalObjectReference: corev1.LocalObjectReference{Name: secret},
				Key:                  key,
			},
		},
	}
}

func BuildCloneInitContainer(in CloneInput) corev1.Container {
	image := in.Image
	if image == "" {
		image = DefaultCloneImage
	}

	env := []corev1.EnvVar{
		{Name: envCloneURL, Value: in.URL},
		{Name: envCloneBranch, Value: in.Branch},
		{Name: envCloneDir, Value: in.MountPath},
	}
	mounts := []corev1.VolumeMount{Mount(in.VolumeName, in.MountPath)}

	if in.Credentials != nil {
		env = append(env,
			secretEnv(envGitUsername, in.Credentials.SecretName, in.Credentials.UsernameKey),
			secretEnv(envGitPassword, in.Credentials.SecretName, in.Credentials.PasswordKey),
			corev1.EnvVar{Name: "GIT_CONFIG_COUNT", Value: "1"},
			corev1.EnvVar{Name: "GIT_CONFIG_KEY_0", Value: "credential.helper"},
			corev1.EnvVar{Name: "GIT_CONFIG_VALUE_0", Value: "store --file=" + credentialsFile},
		)
		mounts = append(mounts, Mount(CredentialsVolumeName, CredentialsMountPath))
	}

	return corev1.Container{
		Name:            CloneContainerName,
		Image:           image,
		ImagePullPolicy: corev1.PullIfNotPresent,
		Command:         []string{"/bin/sh", "-c", cloneScript},
		Env:             env,
		VolumeMounts:    mounts,
	}
}
