package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rozo-hq/intent-relayer/pkg/chainclient"
	"github.com/rozo-hq/intent-relayer/pkg/circuitbreaker"
	"github.com/rozo-hq/intent-relayer/pkg/types"
)

type stubClient struct {
	chainID uint64
	pending []*types.Intent
}

func (c *stubClient) ChainID() uint64 { return c.chainID }
func (c *stubClient) GetIntent(context.Context, types.IntentID) (*types.Intent, error) {
	return nil, nil
}
func (c *stubClient) PendingIntents(context.Context) ([]*types.Intent, error) {
	return c.pending, nil
}
func (c *stubClient) SubscribeIntentCreated(context.Context) (<-chan types.IntentCreatedEvent, error) {
	return nil, nil
}
func (c *stubClient) SubmitFill(context.Context, types.Address, types.IntentData, types.Address, uint8) (common.Hash, error) {
	return common.Hash{}, nil
}
func (c *stubClient) SubmitRetry(context.Context, types.Address, types.IntentData, uint8) error {
	return nil
}
func (c *stubClient) Refund(context.Context, types.Address, types.IntentID) error {
	return nil
}

func newTestServer(apiKey string) (*Server, *circuitbreaker.CircuitBreaker) {
	cb := circuitbreaker.New(1500, true, 1, time.Minute, 5*time.Minute, nil)
	chains := map[uint64]chainclient.Client{
		1500: &stubClient{chainID: 1500, pending: []*types.Intent{{}, {}}},
	}
	breakers := map[uint64]*circuitbreaker.CircuitBreaker{1500: cb}
	return NewServer("8080", chains, breakers, apiKey, nil), cb
}

func TestHealthAndReady(t *testing.T) {
	s, _ := newTestServer("")
	handler := s.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusReportsChainState(t *testing.T) {
	s, cb := newTestServer("")
	cb.RecordFailure()
	handler := s.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "chain_1500")
	assert.Contains(t, rec.Body.String(), `"circuit":"open"`)
	assert.Contains(t, rec.Body.String(), `"pending_intents":2`)
}

func TestCircuitResetEndpoint(t *testing.T) {
	s, cb := newTestServer("")
	cb.RecordFailure()
	require.True(t, cb.IsOpen())
	handler := s.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/circuit/reset?chain=1500", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, cb.IsOpen())

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/circuit/reset?chain=99", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/circuit/reset?chain=1500", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMetricsAuth(t *testing.T) {
	s, _ := newTestServer("secret")
	handler := s.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
