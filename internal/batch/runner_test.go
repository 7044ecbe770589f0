package batch

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/time/rate"

	"ai-batcher/internal/llm"
	"ai-batcher/internal/prompts"
	"ai-batcher/internal/selector"
	"ai-batcher/internal/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreAnyFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreAnyFunction("net/http.(*persistConn).writeLoop"),
	)
}

type fakeLLM struct {
	mu    sync.Mutex
	calls [][]llm.Message
	reply func(n int, msgs []llm.Message) (llm.Response, error)
}

func (f *fakeLLM) Generate(ctx context.Context, msgs []llm.Message) (llm.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, msgs)
	n := len(f.calls)
	f.mu.Unlock()
	return f.reply(n, msgs)
}

func okReply(n int, msgs []llm.Message) (llm.Response, error) {
	return llm.Response{Content: "answer to " + msgs[1].Content, TotalDuration: time.Duration(n) * time.Second}, nil
}

type failingRecorder struct{}

func (failingRecorder) AppendInteraction(storage.Entry) error { return errors.New("disk full") }
func (failingRecorder) LoadInteractions() ([]storage.Entry, error) { return nil, nil }

type fixture struct {
	dir        string
	systemPath string
	userPath   string
	logPath    string
	rec        *storage.XLSXRecorder
}

func newFixture(t *testing.T, system, user string) fixture {
	t.Helper()
	dir := t.TempDir()
	fx := fixture{
		dir:        dir,
		systemPath: filepath.Join(dir, "system_message.txt"),
		userPath:   filepath.Join(dir, "user_message.txt"),
		logPath:    filepath.Join(dir, "chat_logs.xlsx"),
	}
	require.NoError(t, os.WriteFile(fx.systemPath, []byte(system), 0o644))
	require.NoError(t, os.WriteFile(fx.userPath, []byte(user), 0o644))
	rec, err := storage.NewXLSXRecorder(fx.logPath)
	require.NoError(t, err)
	fx.rec = rec
	return fx
}

func (fx fixture) runner(client llm.Client, seed int64, out *bytes.Buffer) *Runner {
	opts := Options{
		SystemPath: fx.systemPath,
		UserPath:   fx.userPath,
		Client:     client,
		Selector:   selector.New(seed, selector.DefaultEmptyProbability),
		Recorder:   fx.rec,
	}
	if out != nil {
		opts.Console = NewConsole(out)
	}
	return New(opts)
}

func (fx fixture) rows(t *testing.T) []storage.Entry {
	t.Helper()
	rows, err := fx.rec.LoadInteractions()
	require.NoError(t, err)
	return rows
}

func TestRun_EndToEndAgainstChatAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"model":"m","message":{"role":"assistant","content":"hi\\nthere"},"total_duration":2000000000}`))
	}))
	defer srv.Close()

	fx := newFixture(t, "A\nB\n", "hello\n")
	res, err := fx.runner(llm.NewOllama(srv.URL, "m", 0, nil), 0, nil).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, res.Total)
	require.Equal(t, 1, res.Succeeded)
	require.Len(t, res.Responses, 1)
	require.NotEmpty(t, res.RunID)

	rows := fx.rows(t)
	require.Len(t, rows, 1)
	row := rows[0]
	require.Equal(t, "hello", row.UserPrompt)
	require.Contains(t, []string{"A", "B", ""}, row.SystemPrompt)
	require.Equal(t, "hi\nthere", row.Response)
	require.NotNil(t, row.ResponseTime)
	require.Equal(t, 2.0, *row.ResponseTime)
	require.WithinDuration(t, time.Now(), row.Timestamp, time.Minute)
}

func TestRun_ConnectionErrorIsLogged(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	fx := newFixture(t, "A\nB\n", "hello\n")
	var out bytes.Buffer
	res, err := fx.runner(llm.NewOllama(url, "m", time.Second, nil), 0, &out).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, res.Succeeded)
	require.Equal(t, 1, res.Failed)
	require.Empty(t, res.Responses)

	rows := fx.rows(t)
	require.Len(t, rows, 1)
	require.True(t, strings.HasPrefix(rows[0].Response, "ERROR: "), rows[0].Response)
	require.Nil(t, rows[0].ResponseTime)
	require.Contains(t, out.String(), "❌ Error making API call")
	require.Contains(t, out.String(), "Processed 0/1 messages successfully")
}

func TestRun_MissingFilesProduceNoRows(t *testing.T) {
	for _, missing := range []string{"system", "user"} {
		t.Run(missing, func(t *testing.T) {
			fx := newFixture(t, "A\n", "hello\n")
			if missing == "system" {
				fx.systemPath = filepath.Join(fx.dir, "absent.txt")
			} else {
				fx.userPath = filepath.Join(fx.dir, "absent.txt")
			}
			client := &fakeLLM{reply: okReply}

			res, err := fx.runner(client, 1, nil).Run(context.Background())
			require.Nil(t, res)
			require.ErrorIs(t, err, prompts.ErrNotFound)
			require.Empty(t, client.calls)
			_, statErr := os.Stat(fx.logPath)
			require.True(t, os.IsNotExist(statErr), "log file must not be created")
		})
	}
}

func TestRun_EmptySystemPoolIsFatal(t *testing.T) {
	fx := newFixture(t, "\n  \n", "hello\n")
	client := &fakeLLM{reply: okReply}
	res, err := fx.runner(client, 1, nil).Run(context.Background())
	require.Nil(t, res)
	require.ErrorIs(t, err, prompts.ErrEmptyPool)
	require.Empty(t, client.calls)
}

func TestRun_RowsMatchUserLinesAndRerunAppends(t *testing.T) {
	fx := newFixture(t, "A\nB\nC\n", "one\n\n  two  \nthree\n\n")
	client := &fakeLLM{reply: func(n int, msgs []llm.Message) (llm.Response, error) {
		if n%2 == 0 {
			return llm.Response{}, &llm.NetworkError{URL: "x", StatusCode: 503, Message: "unavailable"}
		}
		return okReply(n, msgs)
	}}

	res, err := fx.runner(client, 5, nil).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, res.Total)
	require.Equal(t, 2, res.Succeeded)
	require.Equal(t, 1, res.Failed)

	first := fx.rows(t)
	require.Len(t, first, 3)
	require.Equal(t, []string{"one", "two", "three"}, []string{first[0].UserPrompt, first[1].UserPrompt, first[2].UserPrompt})
	require.Equal(t, 1.0, *first[0].ResponseTime)
	require.Nil(t, first[1].ResponseTime)
	require.Equal(t, "ERROR: 503 error for url x: unavailable", first[1].Response)

	_, err = fx.runner(client, 6, nil).Run(context.Background())
	require.NoError(t, err)
	all := fx.rows(t)
	require.Len(t, all, 6)
	require.Equal(t, first, all[:3], "earlier rows must be unchanged")
	require.Equal(t, "one", all[3].UserPrompt)
}

func TestRun_MalformedResponseIsRecoverable(t *testing.T) {
	fx := newFixture(t, "A\n", "one\ntwo\n")
	client := &fakeLLM{reply: func(n int, msgs []llm.Message) (llm.Response, error) {
		if n == 1 {
			return llm.Response{}, errors.Join(llm.ErrMalformedResponse, errors.New("missing total_duration"))
		}
		return okReply(n, msgs)
	}}

	res, err := fx.runner(client, 1, nil).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, res.Failed)
	require.Equal(t, 1, res.Succeeded)

	rows := fx.rows(t)
	require.Len(t, rows, 2)
	require.True(t, strings.HasPrefix(rows[0].Response, "ERROR: malformed chat response"))
	require.Equal(t, "answer to two", rows[1].Response)
}

func TestRun_SelectionFollowsSeed(t *testing.T) {
	fx := newFixture(t, "A\nB\nC\nD\n", "1\n2\n3\n4\n5\n6\n7\n8\n")
	client := &fakeLLM{reply: okReply}
	_, err := fx.runner(client, 99, nil).Run(context.Background())
	require.NoError(t, err)

	ref := selector.New(99, selector.DefaultEmptyProbability)
	pool := []string{"A", "B", "C", "D"}
	rows := fx.rows(t)
	require.Len(t, client.calls, 8)
	for i, call := range client.calls {
		want, _, err := ref.Select(pool)
		require.NoError(t, err)
		require.Equal(t, llm.Conversation(want, rows[i].UserPrompt), call)
		require.Equal(t, want, rows[i].SystemPrompt)
	}
}

func TestRun_RecorderFailureStopsRun(t *testing.T) {
	fx := newFixture(t, "A\n", "one\ntwo\n")
	client := &fakeLLM{reply: okReply}
	r := New(Options{
		SystemPath: fx.systemPath,
		UserPath:   fx.userPath,
		Client:     client,
		Selector:   selector.New(1, 0),
		Recorder:   failingRecorder{},
	})

	res, err := r.Run(context.Background())
	require.ErrorContains(t, err, "disk full")
	require.NotNil(t, res)
	require.Equal(t, 0, res.Succeeded)
	require.Len(t, client.calls, 1)
}

func TestRun_CancelStopsBeforeNextMessage(t *testing.T) {
	fx := newFixture(t, "A\n", "one\ntwo\nthree\n")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := &fakeLLM{reply: func(n int, msgs []llm.Message) (llm.Response, error) {
		if n == 2 {
			cancel()
			return llm.Response{}, &llm.NetworkError{Err: context.Canceled}
		}
		return okReply(n, msgs)
	}}

	var out bytes.Buffer
	res, err := fx.runner(client, 1, &out).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, res.Succeeded)
	require.Len(t, client.calls, 2)
	require.Len(t, fx.rows(t), 1, "the interrupted call is not logged")
	require.Contains(t, out.String(), "Cancelled at message [2/3]")
}

func TestRun_Pacing(t *testing.T) {
	fx := newFixture(t, "A\n", "one\ntwo\nthree\n")
	client := &fakeLLM{reply: okReply}
	r := New(Options{
		SystemPath: fx.systemPath,
		UserPath:   fx.userPath,
		Client:     client,
		Selector:   selector.New(1, 0),
		Recorder:   fx.rec,
		Limiter:    rate.NewLimiter(rate.Every(30*time.Millisecond), 1),
	})

	start := time.Now()
	res, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, res.Succeeded)
	require.GreaterOrEqual(t, time.Since(start), 55*time.Millisecond)
}

func TestRun_ConsoleProgress(t *testing.T) {
	long := strings.Repeat("x", 60)
	fx := newFixture(t, "A\n", "short\n"+long+"\n")
	var out bytes.Buffer
	_, err := fx.runner(&fakeLLM{reply: okReply}, 1, &out).Run(context.Background())
	require.NoError(t, err)

	s := out.String()
	for _, want := range []string{
		"✅ Loaded 1 system messages successfully",
		"✅ Loaded 2 user messages",
		"🚀 Starting API calls...",
		"[1/2] Processing: short\n",
		"[2/2] Processing: " + strings.Repeat("x", 50) + "...\n",
		"⏳ Calling API...",
		"💾 Logging interaction...",
		"✅ Completed [2/2]",
		"✨ All done! Processed 2/2 messages successfully",
	} {
		require.Contains(t, s, want)
	}
}

func TestPreview(t *testing.T) {
	require.Equal(t, "abc", Preview("abc"))
	require.Equal(t, strings.Repeat("é", 50), Preview(strings.Repeat("é", 50)))
	require.Equal(t, strings.Repeat("é", 50)+"...", Preview(strings.Repeat("é", 51)))
}
