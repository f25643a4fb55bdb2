package jobbuilder

import (
	"fmt"

	"github.com/keruta-io/keruta/services/keruta/db/models"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
)

const (
	MainContainerName = "keruta-agent"
	AgentBinaryPath   = "/usr/local/bin/keruta-agent"
)

// agentLaunchScript downloads the agent when the image does not ship it, then runs it for
// the task named in the environment.
const agentLaunchScript = `if [ ! -x "` + AgentBinaryPath + `" ] && [ -n "$` + EnvAgentReleaseURL + `" ]; then
  curl -fsSL "$` + EnvAgentReleaseURL + `" -o "` + AgentBinaryPath + `" && chmod +x "` + AgentBinaryPath + `"
fi
exec "` + AgentBinaryPath + `" execute --task-id "$` + EnvTaskID + `" --api-url "$` + EnvAPIURL + `"`

type MainContainerInput struct {
	Image     string
	Env       []corev1.EnvVar
	Resources *models.Resources
}

func BuildMainContainer(in MainContainerInput) (corev1.Container, error) {
	if in.Image == "" {
		return corev1.Container{}, fmt.Errorf("main container: image is required")
	}
	requirements, err := BuildResources(in.Resources)
	if err != nil {
		return corev1.Container{}, fmt.Errorf("main container: %w", err)
	}

	return corev1.Container{
		Name:            MainContainerName,
		Image:           in.Image,
		ImagePullPolicy: corev1.PullIfNotPresent,
		Command:         []string{"/bin/sh", "-c", agentLaunchScript},
		Env:             append([]corev1.EnvVar(nil), in.Env...),
		Resources:       requirements,
	}, nil
}

// BuildResources uses the same quantities for requests and limits. Empty values are left
// unset.
func BuildResources(res *models.Resources) (corev1.ResourceRequirements, error) {
	var requirements corev1.ResourceRequirements
	if res == nil {
		return requirements, nil
	}

	list := corev1.ResourceList{}
	if res.CPU != "" {
		q, err := resource.ParseQuantity(res.CPU)
		if err != nil {
			return requirements, fmt.Errorf("invalid cpu quantity %q: %w", res.CPU, err)
		}
		list[corev1.ResourceCPU] = q
	}
	if res.Memory != "" {
		q, err := resource.ParseQuantity(res.Memory)
		if err != nil {
			return requirements, fmt.Errorf("invalid memory quantity %q: %w", res.Memory, err)
		}
		list[corev1.ResourceMemory] = q
	}
	if len(list) == 0 {
		return requirements, nil
	}
	requirements.Requests = list
	requirements.Limits = list.DeepCopy()
	return requirements, nil
}
