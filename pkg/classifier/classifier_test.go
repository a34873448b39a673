package classifier

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	text       string
	confidence float64
	err        error
	delay      time.Duration
}

func (f *fakeEngine) Complete(ctx context.Context, _ string) (string, float64, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", 0, ctx.Err()
		}
	}
	return f.text, f.confidence, f.err
}

func TestParseClassification_FirstKeywordWins(t *testing.T) {
	class, matched := parseClassification("the answer is CREATE not DELETE")
	assert.True(t, matched)
	assert.Equal(t, Create, class)
}

func TestParseClassification_NoMatchFallsBackToCreate(t *testing.T) {
	class, matched := parseClassification("I am not sure")
	assert.False(t, matched)
	assert.Equal(t, Create, class)
}

func TestClassify_UsesEngineOutput(t *testing.T) {
	c := New(DefaultConfig(), &fakeEngine{text: "READ", confidence: 0.9}, nil)
	res, err := c.Classify(context.Background(), "ls -la")
	require.NoError(t, err)
	assert.Equal(t, Read, res.Classification)
	assert.Equal(t, 0.9, res.Confidence)
}

func TestClassify_ConfidenceAlwaysInBounds(t *testing.T) {
	cases := []string{"", "ls -la", "asdkjaslkdj", "rm -rf /"}
	c := New(DefaultConfig(), NewRubricEngine(), nil)
	for _, cmd := range cases {
		res, err := c.Classify(context.Background(), cmd)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.Confidence, 0.0)
		assert.LessOrEqual(t, res.Confidence, 1.0)
	}
}

func TestClassify_EmptyCommandIsDefined(t *testing.T) {
	c := New(DefaultConfig(), NewRubricEngine(), nil)
	res, err := c.Classify(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, Create, res.Classification)
	assert.Less(t, res.Confidence, 0.5)
}

func TestClassify_TimesOutOnSlowEngine(t *testing.T) {
	cfg := Config{InferenceTimeout: 20 * time.Millisecond}
	c := New(cfg, &fakeEngine{text: "READ", delay: 200 * time.Millisecond}, nil)
	_, err := c.Classify(context.Background(), "ls")
	require.ErrorIs(t, err, ErrTimeout)
}

func TestRubricEngine_KnownVerbs(t *testing.T) {
	e := NewRubricEngine()
	tests := map[string]Classification{
		"ls -la":          Read,
		"cat file.txt":    Read,
		"touch newfile":   Create,
		"mkdir newdir":    Create,
		"chmod +x a.sh":   Update,
		"sed -i s/a/b/ f": Update,
		"rm -rf build/":   Delete,
	}
	for cmd, want := range tests {
		text, _, err := e.Complete(context.Background(), cmd)
		require.NoError(t, err)
		assert.Equal(t, string(want), text, "command %q", cmd)
	}
}
