package mongoutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/zhihao1021/tjoy/tools/errs"
)

func TestValidateAndSetDefaults(t *testing.T) {
	req := require.New(t)

	err := (&Config{Database: "tjoy"}).ValidateAndSetDefaults()
	req.ErrorIs(err, errs.ErrArgs)

	err = (&Config{Address: []string{"a:27017"}}).ValidateAndSetDefaults()
	req.ErrorIs(err, errs.ErrArgs)

	c := &Config{Address: []string{"a:27017", "b:27017"}, Database: "tjoy", Username: "u", Password: "p@ss"}
	req.NoError(c.ValidateAndSetDefaults())
	req.Equal(defaultMaxPoolSize, c.MaxPoolSize)
	req.Equal(defaultMaxRetry, c.MaxRetry)
	req.Equal("mongodb://u:p%40ss@a:27017,b:27017/tjoy?authSource=tjoy&maxPoolSize=100", c.Uri)

	c = &Config{Uri: "mongodb://x/y", Database: "y"}
	req.NoError(c.ValidateAndSetDefaults())
	req.Equal("mongodb://x/y", c.Uri)
}

func TestShouldRetry(t *testing.T) {
	req := require.New(t)
	req.True(shouldRetry(context.Background(), errors.New("connection refused")))
	req.False(shouldRetry(context.Background(), mongo.CommandError{Code: 18}))
	req.True(shouldRetry(context.Background(), mongo.CommandError{Code: 11600}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req.False(shouldRetry(ctx, errors.New("x")))
}
