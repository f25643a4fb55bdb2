package jobbuilder

import (
	"testing"

	"github.com/keruta-io/keruta/pkg/kubernetes"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
	"sigs.k8s.io/controller-runtime/pkg/client/interceptor"
)

const testNamespace = "keruta"

func newTestGateway(t *testing.T, funcs *interceptor.Funcs, objs ...client.Object) (*kubernetes.Gateway, client.Client) {
	t.Helper()
	scheme, err := kubernetes.NewScheme()
	require.NoError(t, err)

	builder := fake.NewClientBuilder().WithScheme(scheme).WithObjects(objs...)
	if funcs != nil {
		builder = builder.WithInterceptorFuncs(*funcs)
	}
	c := builder.Build()
	return kubernetes.NewGatewayWithClient(c, testNamespace, zap.NewNop()), c
}

func envNames(env []corev1.EnvVar) []string {
	names := make([]string, 0, len(env))
	for _, e := range env {
		names = append(names, e.Name)
	}
	return names
}

func findEnv(env []corev1.EnvVar, name string) (corev1.EnvVar, int) {
	var found corev1.EnvVar
	count := 0
	for _, e := range env {
		if e.Name == name {
			found = e
			count++
		}
	}
	return found, count
}
