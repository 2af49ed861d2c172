package intake

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"kitchenprint/internal/models"
	"kitchenprint/internal/service"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
	closed    bool
	cancel    context.CancelFunc
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.msgs) == 0 {
		r.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

type fakeHandler struct {
	orders []*models.Order
}

func (h *fakeHandler) HandleOrder(_ context.Context, tenantID int64, order *models.Order) (*service.DispatchResult, error) {
	if order.OrderID <= 0 {
		return nil, service.ErrInvalidOrder
	}
	h.orders = append(h.orders, order)
	return &service.DispatchResult{TenantID: tenantID, OrderID: order.OrderID}, nil
}

func orderMessage(t *testing.T, offset int64, o models.Order) kafka.Message {
	t.Helper()
	raw, err := json.Marshal(o)
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Value: raw}
}

func TestConsumer_Run(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &fakeReader{cancel: cancel, msgs: []kafka.Message{
		orderMessage(t, 1, models.Order{TenantID: 1, OrderID: 10}),
		{Offset: 2, Value: []byte("{not json")},
		orderMessage(t, 3, models.Order{TenantID: 1, OrderID: 0}),
		orderMessage(t, 4, models.Order{TenantID: 2, OrderID: 11}),
	}}
	handler := &fakeHandler{}
	logger := zerolog.Nop()

	err := NewConsumer(reader, handler, &logger).Run(ctx)
	require.NoError(t, err)

	require.Len(t, handler.orders, 2)
	assert.Equal(t, int64(10), handler.orders[0].OrderID)
	assert.Equal(t, int64(11), handler.orders[1].OrderID)
	// poison messages are committed too
	assert.Equal(t, []int64{1, 2, 3, 4}, reader.committed)
	assert.True(t, reader.closed)
}

func TestConsumer_FetchError(t *testing.T) {
	logger := zerolog.Nop()
	reader := &erroringReader{err: errors.New("broker gone")}
	err := NewConsumer(reader, &fakeHandler{}, &logger).Run(context.Background())
	assert.ErrorContains(t, err, "broker gone")
}

func TestHandleMessage_MissingTenant(t *testing.T) {
	logger := zerolog.Nop()
	c := NewConsumer(nil, &fakeHandler{}, &logger)
	err := c.HandleMessage(context.Background(), []byte(`{"order_id": 5}`))
	assert.Error(t, err)
}

type erroringReader struct{ err error }

func (r *erroringReader) FetchMessage(context.Context) (kafka.Message, error) { return kafka.Message{}, r.err }
func (r *erroringReader) CommitMessages(context.Context, ...kafka.Message) error {
	return nil
}
func (r *erroringReader) Close() error { return nil }

type MockOrderHandler struct {
	mock.Mock
}

func (m *MockOrderHandler) HandleOrder(ctx context.Context, tenantID int64, order *models.Order) (*service.DispatchResult, error) {
	args := m.Called(ctx, tenantID, order)
	if res := args.Get(0); res != nil {
		return res.(*service.DispatchResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestHandleMessage_Dispatch(t *testing.T) {
	handler := new(MockOrderHandler)
	logger := zerolog.Nop()
	c := NewConsumer(nil, handler, &logger)

	handler.On("HandleOrder", mock.Anything, int64(3), mock.MatchedBy(func(o *models.Order) bool {
		return o.OrderID == 77 && len(o.Items) == 1 && o.Items[0].CategoryID == 5
	})).Return(&service.DispatchResult{TenantID: 3, OrderID: 77}, nil).Once()
	handler.On("HandleOrder", mock.Anything, int64(3), mock.MatchedBy(func(o *models.Order) bool {
		return o.OrderID == 78
	})).Return(nil, service.ErrInvalidOrder).Once()

	err := c.HandleMessage(context.Background(),
		[]byte(`{"tenant_id":3,"order_id":77,"items":[{"category_id":5,"name":"Soup","qty":1}]}`))
	assert.NoError(t, err)

	err = c.HandleMessage(context.Background(), []byte(`{"tenant_id":3,"order_id":78}`))
	assert.ErrorIs(t, err, service.ErrInvalidOrder)

	handler.AssertExpectations(t)
}
