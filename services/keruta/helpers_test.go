package keruta

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/keruta-io/keruta/pkg/kubernetes"
	"github.com/keruta-io/keruta/services/keruta/config"
	"github.com/keruta-io/keruta/services/keruta/store"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
)

const testNamespace = "keruta"

type testEnv struct {
	components
	kube  client.Client
	store *store.Memory
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()

	scheme, err := kubernetes.NewScheme()
	require.NoError(t, err)
	kube := fake.NewClientBuilder().WithScheme(scheme).Build()
	gateway := kubernetes.NewGatewayWithClient(kube, testNamespace, zap.NewNop())

	cfg := config.Default()
	cfg.ProbeTimeout = time.Second

	st := store.NewMemory()
	return testEnv{
		components: newComponents(zap.NewNop(), cfg, st, gateway, nil),
		kube:       kube,
		store:      st,
	}
}

type producedMessage struct {
	topic string
	data  []byte
	id    string
}

type fakeProducer struct {
	mu       sync.Mutex
	messages []producedMessage
	err      error
}

func (p *fakeProducer) Produce(_ context.Context, topic string, data []byte, id string) (*jetstream.PubAck, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	p.messages = append(p.messages, producedMessage{topic: topic, data: data, id: id})
	return &jetstream.PubAck{Stream: EventsStreamName}, nil
}
