package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name string
	resp Response
	err  error
}

func (f *fakeProvider) Complete(ctx context.Context, req Request) (Response, error) {
	if f.err != nil {
		return Response{}, f.err
	}
	return f.resp, nil
}

func TestRouter_SelectsByModelPrefix(t *testing.T) {
	anthropic := &fakeProvider{name: "anthropic", resp: Response{Content: "claude"}}
	oai := &fakeProvider{name: "openai", resp: Response{Content: "gpt"}}
	bedrock := &fakeProvider{name: "bedrock", resp: Response{Content: "bedrock"}}
	router := NewRouter(anthropic, oai, bedrock)

	cases := []struct {
		model string
		want  string
	}{
		{"claude-sonnet-4.5", "claude"},
		{"gpt-4o", "gpt"},
		{"deepseek-chat", "gpt"},
		{"azure/gpt-4o", "gpt"},
		{"bedrock/anthropic.claude-3-sonnet", "bedrock"},
	}
	for _, tc := range cases {
		resp, err := router.Dispatch(context.Background(), Request{Model: tc.model})
		require.NoError(t, err)
		assert.Equal(t, tc.want, resp.Content)
	}
}

func TestRouter_UnmatchedModelReturnsUpstreamUnavailable(t *testing.T) {
	router := NewRouter(&fakeProvider{}, &fakeProvider{}, &fakeProvider{})
	_, err := router.Dispatch(context.Background(), Request{Model: "mistral-large"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestRouter_NilAdapterReturnsUpstreamUnavailable(t *testing.T) {
	router := NewRouter(nil, nil, nil)
	_, err := router.Dispatch(context.Background(), Request{Model: "claude-haiku-4.5"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestRouter_ProviderErrorWrappedAsUpstreamUnavailable(t *testing.T) {
	boom := errors.New("connection reset")
	router := NewRouter(&fakeProvider{err: boom}, nil, nil)
	_, err := router.Dispatch(context.Background(), Request{Model: "claude-opus-4.5"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.Contains(t, err.Error(), "connection reset")
}
