package external

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/brainbolt/internal/question"
)

func TestConvertPlacesCorrectAnswerDeterministically(t *testing.T) {
	a, err := convert("test", "Science &amp; Nature", "medium", "What is H&#039;s symbol?", "H", []string{"He", "Hg", "Ho"})
	require.NoError(t, err)
	b, err := convert("test", "Science &amp; Nature", "medium", "What is H&#039;s symbol?", "H", []string{"He", "Hg", "Ho"})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, "What is H's symbol?", a.Prompt)
	assert.Equal(t, "science & nature", a.Category)
	assert.Equal(t, 5, a.Difficulty)
	require.Len(t, a.Choices, 4)
	assert.Equal(t, "H", a.Choices[a.CorrectIndex])
	assert.Equal(t, question.StableID(a.Prompt), a.ID)
}

func TestConvertRejectsUnknownLevel(t *testing.T) {
	_, err := convert("test", "x", "impossible", "q?", "a", []string{"b"})
	assert.Error(t, err)

	_, err = convert("test", "x", "easy", "q?", "a", nil)
	assert.Error(t, err)
}

func TestOpenTDBFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api.php", r.URL.Path)
		assert.Equal(t, "multiple", r.URL.Query().Get("type"))
		assert.Equal(t, "hard", r.URL.Query().Get("difficulty"))
		_, _ = w.Write([]byte(`{"response_code":0,"results":[
			{"category":"History","type":"multiple","difficulty":"hard","question":"Q1?","correct_answer":"A","incorrect_answers":["B","C","D"]}
		]}`))
	}))
	defer srv.Close()

	qs, err := NewOpenTDBClient(srv.URL, srv.Client()).Fetch(context.Background(), 1, "hard")
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, 8, qs[0].Difficulty)
	assert.Equal(t, "A", qs[0].Choices[qs[0].CorrectIndex])
}

func TestOpenTDBErrorCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response_code":1,"results":[]}`))
	}))
	defer srv.Close()

	_, err := NewOpenTDBClient(srv.URL, srv.Client()).Fetch(context.Background(), 1, "easy")
	assert.Error(t, err)
}

func TestTriviaAPIFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/questions", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		_, _ = w.Write([]byte(`[{"id":"x","category":"music","question":{"text":"Q2?"},"difficulty":"easy","correctAnswer":"A","incorrectAnswers":["B","C","D"]}]`))
	}))
	defer srv.Close()

	qs, err := NewTriviaAPIClient(srv.URL, "secret", srv.Client()).Fetch(context.Background(), 1, "easy")
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, 2, qs[0].Difficulty)
	assert.Equal(t, "music", qs[0].Category)
}

type stubSource struct {
	name string
	err  error
}

func (s stubSource) Name() string { return s.name }

func (s stubSource) Fetch(_ context.Context, _ int, level string) ([]question.Question, error) {
	if s.err != nil {
		return nil, s.err
	}
	q, err := convert(s.name, "general", level, "Shared prompt at "+level, "yes", []string{"no"})
	if err != nil {
		return nil, err
	}
	return []question.Question{q}, nil
}

type recordingSink struct {
	mu  sync.Mutex
	got []question.Question
}

func (r *recordingSink) Upsert(_ context.Context, qs []question.Question) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, qs...)
	return len(qs), nil
}

func TestImporterDeduplicatesAndSkipsFailures(t *testing.T) {
	sink := &recordingSink{}
	imp := NewImporter(sink, zerolog.Nop(),
		stubSource{name: "a"},
		stubSource{name: "b"},
		stubSource{name: "broken", err: assert.AnError},
	).WithRequestInterval(0)

	n, err := imp.Run(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, sink.got, 3)
}

func TestImporterFailsWhenEverySourceFails(t *testing.T) {
	imp := NewImporter(&recordingSink{}, zerolog.Nop(), stubSource{name: "broken", err: assert.AnError}).WithRequestInterval(0)

	_, err := imp.Run(context.Background(), 5)
	assert.Error(t, err)
}

func TestImporterThrottlesPerSource(t *testing.T) {
	imp := NewImporter(&recordingSink{}, zerolog.Nop(), stubSource{name: "a"}).WithRequestInterval(20 * time.Millisecond)

	start := time.Now()
	_, err := imp.Run(context.Background(), 1)
	require.NoError(t, err)
	// Three levels with a burst of one: the last call waits two intervals.
	assert.GreaterOrEqual(t, time.Since(start), 35*time.Millisecond)
}

func TestImporterStopsOnCancel(t *testing.T) {
	imp := NewImporter(&recordingSink{}, zerolog.Nop(), stubSource{name: "a"}).WithRequestInterval(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := imp.Run(ctx, 1)
	assert.Error(t, err)
}

type recordingInvalidator struct {
	calls [][2]int
	err   error
}

func (r *recordingInvalidator) Invalidate(_ context.Context, lo, hi int) error {
	r.calls = append(r.calls, [2]int{lo, hi})
	return r.err
}

func TestImporterInvalidatesImportedPools(t *testing.T) {
	inv := &recordingInvalidator{}
	imp := NewImporter(&recordingSink{}, zerolog.Nop(), stubSource{name: "a"}).
		WithRequestInterval(0).
		WithPoolInvalidator(inv)

	n, err := imp.Run(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, [][2]int{{2, 8}}, inv.calls)
}

func TestImporterIgnoresInvalidationFailure(t *testing.T) {
	inv := &recordingInvalidator{err: assert.AnError}
	imp := NewImporter(&recordingSink{}, zerolog.Nop(), stubSource{name: "a"}).
		WithRequestInterval(0).
		WithPoolInvalidator(inv)

	n, err := imp.Run(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, inv.calls, 1)
}

func TestImporterSkipsInvalidationWhenNothingFetched(t *testing.T) {
	inv := &recordingInvalidator{}
	imp := NewImporter(&recordingSink{}, zerolog.Nop()).
		WithRequestInterval(0).
		WithPoolInvalidator(inv)

	n, err := imp.Run(context.Background(), 1)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, inv.calls)
}
