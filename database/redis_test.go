package database_test

import (
	"context"
	"testing"

	"checkout-service/database"

	"github.com/stretchr/testify/assert"
)

func TestNewRedisClient_InvalidURL(t *testing.T) {
	client, err := database.NewRedisClient(context.Background(), "not-a-redis-url")

	assert.Nil(t, client)
	assert.ErrorContains(t, err, "invalid Redis URL")
}
