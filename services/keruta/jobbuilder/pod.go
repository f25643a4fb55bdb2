package jobbuilder

import (
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

type PodOptions struct {
	ServiceAccountName string
}

func BuildPodTemplate(
	meta metav1.ObjectMeta,
	initContainers []corev1.Container,
	containers []corev1.Container,
	volumes []corev1.Volume,
	opts PodOptions,
) corev1.PodTemplateSpec {
	labels := make(map[string]string, len(meta.Labels))
	for k, v := range meta.Labels {
		labels[k] = v
	}

	return corev1.PodTemplateSpec{
		ObjectMeta: metav1.ObjectMeta{
			Labels: labels,
		},
		Spec: corev1.PodSpec{
			RestartPolicy:      corev1.RestartPolicyNever,
			ServiceAccountName: opts.ServiceAccountName,
			InitContainers:     append([]corev1.Container(nil), initContainers...),
			Containers:         append([]corev1.Container(nil), containers...),
			Volumes:            append([]corev1.Volume(nil), volumes...),
		},
	}
}
