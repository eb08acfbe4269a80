package fetch_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-story/pkg/simplestory"
	"github.com/tendant/simple-story/pkg/simplestory/fetch"
)

func TestHTTP_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/icon.svg":
			w.Header().Set("Content-Type", "image/svg+xml")
			_, _ = w.Write([]byte("<svg/>"))
		case "/large.svg":
			_, _ = w.Write(bytes.Repeat([]byte("x"), 64))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := fetch.NewHTTP(fetch.WithClient(srv.Client()), fetch.WithMaxBytes(32))
	ctx := context.Background()

	body, err := f.Fetch(ctx, srv.URL+"/icon.svg")
	require.NoError(t, err)
	assert.Equal(t, "<svg/>", string(body))

	_, err = f.Fetch(ctx, srv.URL+"/missing.svg")
	var fetchErr *simplestory.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusNotFound, fetchErr.Status)

	_, err = f.Fetch(ctx, srv.URL+"/large.svg")
	assert.Error(t, err)
}

type fakeGetObject struct {
	bucket, key string
}

func (f *fakeGetObject) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.bucket, f.key = aws.ToString(in.Bucket), aws.ToString(in.Key)
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader([]byte("<svg>s3</svg>")))}, nil
}

func TestS3_Fetch(t *testing.T) {
	client := &fakeGetObject{}
	f := fetch.NewS3(client)

	body, err := f.Fetch(context.Background(), "s3://assets/icons/logo.svg")
	require.NoError(t, err)
	assert.Equal(t, "<svg>s3</svg>", string(body))
	assert.Equal(t, "assets", client.bucket)
	assert.Equal(t, "icons/logo.svg", client.key)

	_, err = f.Fetch(context.Background(), "https://assets/icons/logo.svg")
	assert.Error(t, err)
}

func TestMux_Fetch(t *testing.T) {
	var got string
	record := simplestory.AssetFetcherFunc(func(ctx context.Context, src string) ([]byte, error) {
		got = src
		return []byte("ok"), nil
	})
	m := fetch.NewMux().Handle("https", record).Handle("s3", record)

	tests := []struct {
		name    string
		src     string
		want    string
		wantErr bool
	}{
		{name: "https", src: "https://a.example.com/x.svg", want: "https://a.example.com/x.svg"},
		{name: "protocol relative", src: "//a.example.com/x.svg", want: "https://a.example.com/x.svg"},
		{name: "s3", src: "s3://bucket/x.svg", want: "s3://bucket/x.svg"},
		{name: "unknown scheme", src: "ftp://a.example.com/x.svg", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got = ""
			_, err := m.Fetch(context.Background(), tt.src)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCached_Fetch(t *testing.T) {
	var calls atomic.Int32
	fail := false
	next := simplestory.AssetFetcherFunc(func(ctx context.Context, src string) ([]byte, error) {
		calls.Add(1)
		if fail {
			return nil, errors.New("down")
		}
		return []byte("<svg/>"), nil
	})
	c := fetch.NewCached(next, 10, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		body, err := c.Fetch(ctx, "https://a.example.com/x.svg")
		require.NoError(t, err)
		assert.Equal(t, "<svg/>", string(body))
	}
	assert.Equal(t, int32(1), calls.Load())

	fail = true
	_, err := c.Fetch(ctx, "https://a.example.com/y.svg")
	assert.Error(t, err)
	_, err = c.Fetch(ctx, "https://a.example.com/y.svg")
	assert.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())

	c.Purge()
	fail = false
	_, err = c.Fetch(ctx, "https://a.example.com/x.svg")
	require.NoError(t, err)
	assert.Equal(t, int32(4), calls.Load())
}
