package jobbuilder

import (
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

type JobOptions struct {
	// TTLSecondsAfterFinished of zero keeps finished jobs until deleted.
	TTLSecondsAfterFinished int32
}

// BuildJob never retries: a failed pod fails the job.
func BuildJob(meta metav1.ObjectMeta, template corev1.PodTemplateSpec, opts JobOptions) *batchv1.Job {
	backoffLimit := int32(0)
	template = *template.DeepCopy()
	template.Spec.RestartPolicy = corev1.RestartPolicyNever

	job := &batchv1.Job{
		TypeMeta: metav1.TypeMeta{
			Kind:       "Job",
			APIVersion: "batch/v1",
		},
		ObjectMeta: *meta.DeepCopy(),
		Spec: batchv1.JobSpec{
			BackoffLimit: &backoffLimit,
			Template:     template,
		},
	}
	if opts.TTLSecondsAfterFinished > 0 {
		ttl := opts.TTLSecondsAfterFinished
		job.Spec.TTLSecondsAfterFinished = &ttl
	}
	return job
}
