package helpers

import (
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// MockRedis pairs a go-redis client with its expectation recorder
type MockRedis struct {
	Client *redis.Client
	Mock   redismock.ClientMock
}

func NewMockRedis() *MockRedis {
	client, mock := redismock.NewClientMock()

	return &MockRedis{
		Client: client,
		Mock:   mock,
	}
}

func (m *MockRedis) Close() error {
	return m.Client.Close()
}

func (m *MockRedis) ExpectationsWereMet(t *testing.T) {
	require.NoError(t, m.Mock.ExpectationsWereMet())
}

func (m *MockRedis) ExpectGetHit(key, value string) {
	m.Mock.ExpectGet(key).SetVal(value)
}

func (m *MockRedis) ExpectGetMiss(key string) {
	m.Mock.ExpectGet(key).RedisNil()
}

// ExpectSetWithTTL expects a plain SET with expiration, as issued by client.Set(ctx, key, value, ttl)
func (m *MockRedis) ExpectSetWithTTL(key, value string, ttl time.Duration) {
	m.Mock.ExpectSet(key, value, ttl).SetVal("OK")
}

func (m *MockRedis) ExpectPing() {
	m.Mock.ExpectPing().SetVal("PONG")
}
