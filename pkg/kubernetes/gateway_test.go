package kubernetes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
)

func newFakeGateway(t *testing.T, objs ...corev1.Secret) *Gateway {
	t.Helper()
	scheme, err := NewScheme()
	require.NoError(t, err)

	builder := fake.NewClientBuilder().WithScheme(scheme)
	for i := range objs {
		builder = builder.WithObjects(&objs[i])
	}
	return NewGatewayWithClient(builder.Build(), "keruta", zap.NewNop())
}

func TestDisabledGateway(t *testing.T) {
	g := NewGateway(Config{Enabled: false, DefaultNamespace: "jobs"}, zap.NewNop())

	assert.False(t, g.Enabled())
	assert.Equal(t, "jobs", g.DefaultNamespace())

	_, err := g.Client()
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = g.Secret(context.Background(), "", "anything")
	assert.ErrorIs(t, err, ErrUnavailable)

	err = g.Create(context.Background(), &corev1.ConfigMap{ObjectMeta: metav1.ObjectMeta{Name: "x"}})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestDefaultNamespaceFallback(t *testing.T) {
	var g *Gateway
	assert.Equal(t, "default", g.DefaultNamespace())
	assert.False(t, g.Enabled())

	g = NewGateway(Config{}, zap.NewNop())
	assert.Equal(t, "default", g.DefaultNamespace())
}

func TestSecretLookup(t *testing.T) {
	ctx := context.Background()
	g := newFakeGateway(t, corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Name: "git-credentials-r1", Namespace: "keruta"},
		Data:       map[string][]byte{"username": []byte("bot")},
	})

	secret, err := g.Secret(ctx, "", "git-credentials-r1")
	require.NoError(t, err)
	require.NotNil(t, secret)
	assert.Equal(t, "bot", string(secret.Data["username"]))

	missing, err := g.Secret(ctx, "keruta", "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCreateGetDeleteBatchJob(t *testing.T) {
	ctx := context.Background()
	g := newFakeGateway(t)

	job := &batchv1.Job{ObjectMeta: metav1.ObjectMeta{Name: "keruta-job-1"}}
	require.NoError(t, g.Create(ctx, job))
	assert.Equal(t, "keruta", job.Namespace)

	got, err := g.BatchJob(ctx, "keruta", "keruta-job-1")
	require.NoError(t, err)
	require.NotNil(t, got)

	require.NoError(t, g.DeleteBatchJob(ctx, "keruta", "keruta-job-1"))
	require.NoError(t, g.DeleteBatchJob(ctx, "keruta", "keruta-job-1"), "deleting twice is not an error")

	got, err = g.BatchJob(ctx, "keruta", "keruta-job-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}
