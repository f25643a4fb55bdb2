package jobbuilder

import (
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
)

const (
	WorkVolumeName        = "workspace"
	RepositoryVolumeName  = "repository"
	CredentialsVolumeName = "git-credentials"
	CredentialsMountPath  = "/keruta-credentials"
)

func WorkVolume(name string) corev1.Volume {
	return corev1.Volume{
		Name: name,
		VolumeSource: corev1.VolumeSource{
			EmptyDir: &corev1.EmptyDirVolumeSource{},
		},
	}
}

func RepositoryVolume(name, claimName string) corev1.Volume {
	return corev1.Volume{
		Name: name,
		VolumeSource: corev1.VolumeSource{
			PersistentVolumeClaim: &corev1.PersistentVolumeClaimVolumeSource{
				ClaimName: claimName,
			},
		},
	}
}

// CredentialsVolume is memory backed so git credentials never reach a disk.
func CredentialsVolume() corev1.Volume {
	limit := resource.MustParse("1Mi")
	return corev1.Volume{
		Name: CredentialsVolumeName,
		VolumeSource: corev1.VolumeSource{
			EmptyDir: &corev1.EmptyDirVolumeSource{
				Medium:    corev1.StorageMediumMemory,
				SizeLimit: &limit,
			},
		},
	}
}

func Mount(volumeName, mountPath string) corev1.VolumeMount {
	return corev1.VolumeMount{Name: volumeName, MountPath: mountPath}
}
